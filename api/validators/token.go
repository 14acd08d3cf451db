package validators

import "strings"

// BearerToken extracts the opaque token from an Authorization header. The
// bare token (no scheme) is accepted too.
func BearerToken(raw string) string {
	token := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
