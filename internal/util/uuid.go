package util

import (
	"encoding/base64"

	"github.com/google/uuid"
)

// ShortUUID generates a short URL-safe UUID with 22 symbols
func ShortUUID() string {
	u := uuid.New()
	return base64.RawURLEncoding.EncodeToString(u[:])
}
