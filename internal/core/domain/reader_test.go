package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReaderStatus_Progress(t *testing.T) {
	assert.Equal(t, 0.0, ReaderStatus{PageCount: 1}.Progress())
	assert.Equal(t, 0.5, ReaderStatus{CurrentPage: 2, PageCount: 5}.Progress())
	assert.Equal(t, 1.0, ReaderStatus{CurrentPage: 4, PageCount: 5}.Progress())
}

func TestReaderStatus_EstimatedLength(t *testing.T) {
	tests := []struct {
		name   string
		status ReaderStatus
		want   int64
	}{
		{"complete", ReaderStatus{Complete: true, Length: 900, SizeBytes: 1200}, 900},
		{"paginating", ReaderStatus{Length: 300, SizeBytes: 1200}, 1200},
		{"size unknown", ReaderStatus{Length: 300, SizeBytes: -1}, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.EstimatedLength())
		})
	}
}
