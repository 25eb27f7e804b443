package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// HashSize is the size of a ContentHash in bytes.
const HashSize = sha256.Size

// ErrInvalidHash reports a textual hash that is not 64 hex characters.
var ErrInvalidHash = errors.New("canon: invalid content hash")

// ContentHash is a SHA-256 digest. Its text form is always 64 lowercase hex characters.
type ContentHash [HashSize]byte

// Sum hashes b. Empty input is allowed.
func Sum(b []byte) ContentHash {
	return ContentHash(sha256.Sum256(b))
}

// SumReader hashes everything read from r.
func SumReader(r io.Reader) (ContentHash, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return ContentHash{}, err
	}
	var out ContentHash
	copy(out[:], h.Sum(nil))
	return out, nil
}

// ParseContentHash decodes a 64 character hex hash. Upper-case input is
// accepted and normalized by String.
func ParseContentHash(s string) (ContentHash, error) {
	if len(s) != 2*HashSize {
		return ContentHash{}, fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidHash, 2*HashSize, len(s))
	}
	b, err := hex.DecodeString(strings.ToLower(s))
	if err != nil {
		return ContentHash{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	var out ContentHash
	copy(out[:], b)
	return out, nil
}

func (h ContentHash) String() string { return hex.EncodeToString(h[:]) }

func (h ContentHash) Bytes() []byte { return append([]byte(nil), h[:]...) }

// Short is a log-friendly prefix of the hex form.
func (h ContentHash) Short() string { return h.String()[:16] }
