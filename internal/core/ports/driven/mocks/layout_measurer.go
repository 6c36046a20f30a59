package mocks

import (
	"fmt"
	"sync/atomic"

	"github.com/appnyang/leafreader/internal/core/domain"
)

// MockMeasurer fits a fixed number of characters on every page
type MockMeasurer struct {
	PerPage int
	// Func, when set, replaces the fixed-capacity rule
	Func func(text []rune, params domain.LayoutParams) int
	// ValidateErr is returned by Validate
	ValidateErr error

	calls atomic.Int64
}

// NewMockMeasurer creates a measurer fitting perPage characters per page
func NewMockMeasurer(perPage int) *MockMeasurer {
	return &MockMeasurer{PerPage: perPage}
}

func (m *MockMeasurer) ID() string {
	return fmt.Sprintf("mock:%d", m.PerPage)
}

func (m *MockMeasurer) Measure(text []rune, params domain.LayoutParams) int {
	m.calls.Add(1)
	if m.Func != nil {
		return m.Func(text, params)
	}
	if len(text) < m.PerPage {
		return len(text)
	}
	return m.PerPage
}

// Calls returns the number of Measure calls
func (m *MockMeasurer) Calls() int64 {
	return m.calls.Load()
}

func (m *MockMeasurer) Validate(params domain.LayoutParams) error {
	return m.ValidateErr
}
