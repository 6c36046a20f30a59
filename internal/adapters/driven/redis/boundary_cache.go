package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BoundaryCache = (*BoundaryCache)(nil)

const boundariesPrefix = "leaf:boundaries:"

var errCorruptBoundaries = errors.New("corrupt boundary record")

// BoundaryCache implements driven.BoundaryCache using Redis.
// Spans are stored as varint deltas since pages are contiguous.
type BoundaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBoundaryCache creates a Redis-backed boundary cache. A zero ttl keeps
// entries until evicted.
func NewBoundaryCache(client *redis.Client, ttl time.Duration) *BoundaryCache {
	return &BoundaryCache{client: client, ttl: ttl}
}

// Get returns the cached spans for a layout fingerprint
func (c *BoundaryCache) Get(ctx context.Context, key string) ([]domain.Page, error) {
	data, err := c.client.Get(ctx, boundariesPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get boundaries: %w", err)
	}

	pages, err := decodeSpans(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return pages, nil
}

// Put stores the spans of a complete pagination
func (c *BoundaryCache) Put(ctx context.Context, key string, pages []domain.Page) error {
	if err := c.client.Set(ctx, boundariesPrefix+key, encodeSpans(pages), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store boundaries: %w", err)
	}
	return nil
}

// encodeSpans writes count, then per page the character and byte lengths
func encodeSpans(pages []domain.Page) []byte {
	buf := binary.AppendUvarint(nil, uint64(len(pages)))
	for _, p := range pages {
		buf = binary.AppendUvarint(buf, uint64(p.End-p.Start))
		buf = binary.AppendUvarint(buf, uint64(p.ByteEnd-p.ByteStart))
	}
	return buf
}

func decodeSpans(data []byte) ([]domain.Page, error) {
	next := func() (int64, error) {
		v, n := binary.Uvarint(data)
		if n <= 0 {
			return 0, errCorruptBoundaries
		}
		data = data[n:]
		return int64(v), nil
	}

	count, err := next()
	if err != nil {
		return nil, err
	}
	if count > int64(len(data)) {
		return nil, errCorruptBoundaries
	}

	pages := make([]domain.Page, 0, count)
	var start, byteStart int64
	for i := 0; i < int(count); i++ {
		chars, err := next()
		if err != nil {
			return nil, err
		}
		bytes, err := next()
		if err != nil {
			return nil, err
		}
		pages = append(pages, domain.Page{
			Index:     i,
			Start:     start,
			End:       start + chars,
			ByteStart: byteStart,
			ByteEnd:   byteStart + bytes,
		})
		start += chars
		byteStart += bytes
	}
	if len(data) != 0 {
		return nil, errCorruptBoundaries
	}
	return pages, nil
}
