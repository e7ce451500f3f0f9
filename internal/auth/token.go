package auth

import "strings"

const bearerPrefix = "bearer "

// ExtractToken picks the handshake token, preferring the auth field over the
// Authorization header. A "Bearer " prefix is stripped from either.
func ExtractToken(authField, header string) string {
	for _, candidate := range []string{authField, header} {
		if token := stripBearer(candidate); token != "" {
			return token
		}
	}
	return ""
}

func stripBearer(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= len(bearerPrefix) && strings.EqualFold(value[:len(bearerPrefix)], bearerPrefix) {
		value = strings.TrimSpace(value[len(bearerPrefix):])
	}
	return value
}
