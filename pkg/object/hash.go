package object

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashSize is the width in bytes of a repository content hash.
const HashSize = 20

// Hash is an opaque 20-byte content hash. The zero value means "absent".
type Hash [HashSize]byte

// ZeroHash is the absent hash.
var ZeroHash Hash

// ParseHash decodes a 40-character hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	s = strings.TrimSpace(s)
	if len(s) != 2*HashSize {
		return h, fmt.Errorf("parse hash %q: want %d hex characters, got %d", s, 2*HashSize, len(s))
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, fmt.Errorf("parse hash %q: %w", s, err)
	}
	return h, nil
}

// HashFromBytes copies a raw 20-byte slice into a Hash.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("hash from bytes: want %d bytes, got %d", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// IsZero reports whether h is the absent hash.
func (h Hash) IsZero() bool { return h == ZeroHash }

// String returns the lowercase hex form.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Short returns the first 8 hex characters, for log lines.
func (h Hash) Short() string { return h.String()[:8] }

// Value stores the hash as a 20-byte BLOB.
func (h Hash) Value() (driver.Value, error) {
	return h[:], nil
}

// Scan reads a hash from a BLOB column.
func (h *Hash) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		parsed, err := HashFromBytes(v)
		if err != nil {
			return err
		}
		*h = parsed
		return nil
	case string:
		parsed, err := HashFromBytes([]byte(v))
		if err != nil {
			return err
		}
		*h = parsed
		return nil
	case nil:
		*h = ZeroHash
		return nil
	default:
		return fmt.Errorf("scan hash: unsupported source type %T", src)
	}
}

// JoinHashes concatenates hashes at a fixed stride of HashSize bytes.
func JoinHashes(hs []Hash) []byte {
	out := make([]byte, 0, len(hs)*HashSize)
	for _, h := range hs {
		out = append(out, h[:]...)
	}
	return out
}

// SplitHashes is the inverse of JoinHashes.
func SplitHashes(b []byte) ([]Hash, error) {
	if len(b)%HashSize != 0 {
		return nil, fmt.Errorf("split hashes: length %d is not a multiple of %d", len(b), HashSize)
	}
	out := make([]Hash, 0, len(b)/HashSize)
	for i := 0; i < len(b); i += HashSize {
		var h Hash
		copy(h[:], b[i:i+HashSize])
		out = append(out, h)
	}
	return out, nil
}
