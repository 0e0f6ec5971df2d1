// nexchan/utils/security.go
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// GetIPAddress extracts the client IP from a request. The first entry of a
// forwarded-for style header wins over the direct peer address.
func GetIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// HashToken produces the lookup hash for a session bearer token. Raw
// tokens are never stored.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// CheckMasterKey verifies the operator master key against its bcrypt hash.
func CheckMasterKey(bcryptHash, key string) bool {
	if bcryptHash == "" || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(bcryptHash), []byte(key)) == nil
}
