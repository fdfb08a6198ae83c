package api

import (
	"log"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// RequireWriteToken guards mutating endpoints with a bearer token
// checked against a bcrypt hash. An empty hash disables the check,
// which is the development default.
func RequireWriteToken(tokenHash string, next http.Handler) http.Handler {
	if tokenHash == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || !CheckTokenHash(token, tokenHash) {
			log.Printf("Unauthorized write attempt: Method='%s', Path='%s', RemoteAddr='%s'", r.Method, r.URL.Path, r.RemoteAddr)
			SendJSONResponse(w, false, "Missing or invalid bearer token", nil, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}

// HashToken produces a bcrypt hash suitable for GRIDTOOLS_WRITE_TOKEN_HASH.
func HashToken(token string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckTokenHash verifies a presented token against its stored hash.
func CheckTokenHash(token, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
	return err == nil
}
