package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Size is the length in bytes of a content digest.
const Size = sha256.Size

// Digest is a SHA-256 content digest as reported by the storage API.
type Digest [Size]byte

// Sum calculates the digest of data.
func Sum(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}

// ParseHex decodes a hex encoded digest. The storage API reports upper case hex,
// both cases are accepted.
func ParseHex(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return d, fmt.Errorf("decode checksum %q: %w", s, err)
	}
	if len(raw) != Size {
		return d, fmt.Errorf("checksum %q has %d bytes, want %d", s, len(raw), Size)
	}
	copy(d[:], raw)
	return d, nil
}

// String returns the upper case hex form used by the storage API.
func (d Digest) String() string {
	return strings.ToUpper(hex.EncodeToString(d[:]))
}

// Equal compares a digest with an optional remote digest. A missing remote digest never matches.
func (d Digest) Equal(other *Digest) bool {
	return other != nil && *other == d
}
