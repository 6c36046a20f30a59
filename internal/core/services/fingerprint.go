package services

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/appnyang/leafreader/internal/core/domain"
)

// layoutFingerprint identifies a document revision, decoded one way, paginated
// against one layout. Two opens with the same fingerprint produce identical page
// boundaries.
func layoutFingerprint(info *domain.DocumentInfo, params domain.LayoutParams, measurerID string) string {
	h, _ := blake2b.New256(nil)
	fmt.Fprintf(h, "%s\x00%d\x00%d\x00%s\x00%s\x00",
		info.URI, info.Size, info.ModTime.UnixNano(), info.Decoding, measurerID)
	_ = json.NewEncoder(h).Encode(params)
	return hex.EncodeToString(h.Sum(nil))
}
