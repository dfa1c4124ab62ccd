package embeddings

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/ternarybob/docent/internal/vectors"
)

// FallbackDimension is the fixed dimension of deterministic embeddings
const FallbackDimension = 384

// FallbackEmbedding computes a deterministic embedding from the text alone,
// with no external calls. The same text always yields the same vector.
//
// Construction: SHA-256 of the UTF-8 bytes seeds a hash chain. Each 32-byte
// digest contributes 16 big-endian uint16 values, each mapped into [-1, 1]
// via ((v mod 1000) / 500) - 1; the digest is re-hashed until 384 values are
// collected, then the vector is normalized to unit length.
func FallbackEmbedding(text string) []float32 {
	digest := sha256.Sum256([]byte(text))
	seed := digest[:]

	values := make([]float32, 0, FallbackDimension)
	for len(values) < FallbackDimension {
		for i := 0; i+1 < len(seed) && len(values) < FallbackDimension; i += 2 {
			v := binary.BigEndian.Uint16(seed[i : i+2])
			values = append(values, float32(float64(v%1000)/500.0-1.0))
		}
		next := sha256.Sum256(seed)
		seed = next[:]
	}

	return vectors.Normalize(values)
}
