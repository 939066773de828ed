package random

import (
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

// KeyPrefix is the literal prefix every XJP API key carries. Header extraction
// matches on "XJP"; full verification requires the trailing underscore too.
const KeyPrefix = "XJP_"

// GetUUID generates a UUID and returns it as a string without hyphens.
func GetUUID() string {
	code := uuid.New().String()
	code = strings.Replace(code, "-", "", -1)
	return code
}

// GenerateKey creates a new API key: 32 cryptographically random bytes,
// URL-safe base64 encoded without padding, prefixed with "XJP_". The raw key
// is shown to the operator exactly once; only its hash is ever stored.
func GenerateKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the platform entropy source is broken.
		panic(err)
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(buf)
}
