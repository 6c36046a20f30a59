package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// BookmarkType distinguishes user bookmarks from the automatic last-read position
type BookmarkType string

const (
	// BookmarkTypeCustom is created by an explicit user action
	BookmarkTypeCustom BookmarkType = "CUSTOM"
	// BookmarkTypeLastRead is saved automatically when a book is closed
	BookmarkTypeLastRead BookmarkType = "LAST_READ"
)

// DefaultTitleLength is how many characters of the page text become a bookmark title
const DefaultTitleLength = 10

// LastReadTitle is the title given to automatic last-read bookmarks
const LastReadTitle = "Last read"

// Bookmark is a named character offset in a document
type Bookmark struct {
	ID             string       `json:"id"`
	URI            string       `json:"uri"`
	Title          string       `json:"title"`
	CharacterIndex int64        `json:"character_index"`
	Type           BookmarkType `json:"type"`
	CreatedAt      time.Time    `json:"created_at"`
}

// NewBookmark creates a custom bookmark
func NewBookmark(uri, title string, characterIndex int64) *Bookmark {
	return &Bookmark{
		ID:             GenerateID(),
		URI:            uri,
		Title:          title,
		CharacterIndex: characterIndex,
		Type:           BookmarkTypeCustom,
		CreatedAt:      time.Now(),
	}
}

// NewLastReadBookmark creates the automatic last-read bookmark of a document
func NewLastReadBookmark(uri, title string, characterIndex int64) *Bookmark {
	b := NewBookmark(uri, title, characterIndex)
	b.Type = BookmarkTypeLastRead
	return b
}

// IsLastRead reports whether the bookmark is the automatic last-read position
func (b *Bookmark) IsLastRead() bool {
	return b.Type == BookmarkTypeLastRead
}

// TitleFromText derives a bookmark title from the leading characters of page text
func TitleFromText(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > DefaultTitleLength {
		text = string([]rune(text)[:DefaultTitleLength])
	}
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

// HistoryEntry records the last position of a previously opened document
type HistoryEntry struct {
	URI        string    `json:"uri"`
	Title      string    `json:"title"`
	LastOffset int64     `json:"last_offset"`
	OpenedAt   time.Time `json:"opened_at"`
}
