package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/appnyang/leafreader/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"no open book"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// OpenBookRequest opens a document. Layout falls back to the server default when
// its viewport is unset; Offset overrides the saved position; FromHistory resumes
// at the offset recorded in the reading history.
type OpenBookRequest struct {
	URI         string               `json:"uri"`
	Layout      *domain.LayoutParams `json:"layout,omitempty"`
	Offset      *int64               `json:"offset,omitempty"`
	FromHistory bool                 `json:"from_history,omitempty"`
}

// PageResponse carries the text of one page
type PageResponse struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// GoToPageRequest targets a page index
type GoToPageRequest struct {
	Page int `json:"page"`
}

// GoToOffsetRequest targets a character offset
type GoToOffsetRequest struct {
	Offset int64 `json:"offset"`
}

// CreateBookmarkRequest bookmarks the current page
type CreateBookmarkRequest struct {
	Title string `json:"title"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Checks that the bookmark store is reachable
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Book endpoints

// handleOpenBook godoc
// @Summary      Open a document
// @Description  Closes the current book, opens uri and returns once the first pages exist
// @Tags         Books
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      OpenBookRequest  true  "Document to open"
// @Success      200      {object}  domain.ReaderStatus
// @Failure      400      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse
// @Failure      422      {object}  ErrorResponse
// @Router       /books/open [post]
func (s *Server) handleOpenBook(w http.ResponseWriter, r *http.Request) {
	var req OpenBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URI == "" {
		writeError(w, http.StatusBadRequest, "uri is required")
		return
	}

	params := s.layout
	if req.Layout != nil && req.Layout.Width > 0 && req.Layout.Height > 0 {
		params = *req.Layout
	}

	var (
		st  *domain.ReaderStatus
		err error
	)
	switch {
	case req.Offset != nil:
		st, err = s.reader.OpenAt(r.Context(), req.URI, params, *req.Offset)
	case req.FromHistory:
		st, err = s.reader.OpenFromHistory(r.Context(), req.URI, params)
	default:
		st, err = s.reader.Open(r.Context(), req.URI, params)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleCurrentBook godoc
// @Summary      Current book status
// @Tags         Books
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.ReaderStatus
// @Failure      409  {object}  ErrorResponse  "No open book"
// @Router       /books/current [get]
func (s *Server) handleCurrentBook(w http.ResponseWriter, r *http.Request) {
	st, err := s.reader.Status()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleCloseBook godoc
// @Summary      Close the open book
// @Description  Saves the last-read position and history entry
// @Tags         Books
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  StatusResponse
// @Router       /books/close [post]
func (s *Server) handleCloseBook(w http.ResponseWriter, r *http.Request) {
	if err := s.reader.Close(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleGetPage godoc
// @Summary      Page text
// @Tags         Pages
// @Produce      json
// @Security     BearerAuth
// @Param        index  path      int  true  "Page index"
// @Success      200    {object}  PageResponse
// @Failure      400    {object}  ErrorResponse
// @Failure      404    {object}  ErrorResponse  "Page not produced yet"
// @Router       /pages/{index} [get]
func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "invalid page index")
		return
	}

	text, err := s.reader.PageText(r.Context(), index)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PageResponse{Index: index, Text: text})
}

// Navigation endpoints

// handleGoToPage godoc
// @Summary      Go to page
// @Tags         Navigation
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      GoToPageRequest  true  "Target page"
// @Success      200      {object}  domain.ReaderStatus
// @Router       /navigation/page [post]
func (s *Server) handleGoToPage(w http.ResponseWriter, r *http.Request) {
	var req GoToPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	st, err := s.reader.GoToPage(req.Page)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleGoToOffset godoc
// @Summary      Go to character offset
// @Description  Jumps to the page containing offset. Pending is set when the page is not paginated yet.
// @Tags         Navigation
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      GoToOffsetRequest  true  "Target offset"
// @Success      200      {object}  domain.ReaderStatus
// @Router       /navigation/offset [post]
func (s *Server) handleGoToOffset(w http.ResponseWriter, r *http.Request) {
	var req GoToOffsetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	st, err := s.reader.GoToOffset(req.Offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleNextPage godoc
// @Summary      Next page
// @Tags         Navigation
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.ReaderStatus
// @Router       /navigation/next [post]
func (s *Server) handleNextPage(w http.ResponseWriter, r *http.Request) {
	st, err := s.reader.NextPage()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handlePrevPage godoc
// @Summary      Previous page
// @Tags         Navigation
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.ReaderStatus
// @Router       /navigation/prev [post]
func (s *Server) handlePrevPage(w http.ResponseWriter, r *http.Request) {
	st, err := s.reader.PrevPage()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Bookmark endpoints

// handleListBookmarks godoc
// @Summary      List bookmarks of the open book
// @Tags         Bookmarks
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.Bookmark
// @Router       /bookmarks [get]
func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	bookmarks, err := s.reader.Bookmarks(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if bookmarks == nil {
		bookmarks = []*domain.Bookmark{}
	}
	writeJSON(w, http.StatusOK, bookmarks)
}

// handleCreateBookmark godoc
// @Summary      Bookmark the current page
// @Description  An empty title is taken from the start of the page text
// @Tags         Bookmarks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      CreateBookmarkRequest  false  "Bookmark title"
// @Success      201      {object}  domain.Bookmark
// @Failure      409      {object}  ErrorResponse  "Offset already bookmarked"
// @Router       /bookmarks [post]
func (s *Server) handleCreateBookmark(w http.ResponseWriter, r *http.Request) {
	var req CreateBookmarkRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	b, err := s.reader.AddBookmark(r.Context(), req.Title)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// handleDeleteBookmark godoc
// @Summary      Delete a bookmark
// @Tags         Bookmarks
// @Produce      json
// @Security     BearerAuth
// @Param        title            query  string  true  "Bookmark title"
// @Param        character_index  query  int     true  "Bookmark offset"
// @Success      200  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /bookmarks [delete]
func (s *Server) handleDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err := strconv.ParseInt(q.Get("character_index"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid character_index")
		return
	}

	if err := s.reader.DeleteBookmark(r.Context(), q.Get("title"), offset); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// History endpoints

// handleListHistory godoc
// @Summary      Reading history
// @Tags         History
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query  int  false  "Maximum entries"
// @Success      200    {array}  domain.HistoryEntry
// @Router       /history [get]
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := s.reader.History(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []*domain.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// writeServiceError maps domain errors to HTTP statuses
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateOffset):
		writeError(w, http.StatusConflict, "bookmark already exists at this offset")
	case errors.Is(err, domain.ErrNoOpenBook):
		writeError(w, http.StatusConflict, "no open book")
	case errors.Is(err, domain.ErrDocumentUnreadable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
