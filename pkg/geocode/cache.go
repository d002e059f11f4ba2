package geocode

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/sells-group/prospect-cli/internal/textnorm"
)

// CacheKey returns the SHA-256 hex of the folded query, so queries that
// differ only by case, accents, or spacing share an entry.
func CacheKey(query string) string {
	h := sha256.Sum256([]byte(textnorm.Fold(query)))
	return hex.EncodeToString(h[:])
}
