package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/redmonkez12/credentials-api/internal/httputil"
	"github.com/redmonkez12/credentials-api/internal/logging"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const ClaimsContextKey ContextKey = "claims"

// TokenHeader is the header the token is presented in
const TokenHeader = "x-auth-token"

const (
	msgNoToken      = "No token, authorization denied"
	msgInvalidToken = "Token is not valid"
)

// Middleware handles authentication for protected routes
type Middleware struct {
	tokenService TokenService
}

func NewMiddleware(tokenService TokenService) *Middleware {
	return &Middleware{tokenService: tokenService}
}

// RequireAuth rejects requests without a valid token and stores the verified
// claims in the request context
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.GetLoggerFromContext(r.Context())

		// Priority 1: x-auth-token header
		token := strings.TrimSpace(r.Header.Get(TokenHeader))

		// Priority 2: Authorization header
		if token == "" {
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
					logger.Warn("invalid authorization header format")
					httputil.RespondMessage(w, msgInvalidToken, http.StatusUnauthorized)
					return
				}
				token = strings.TrimSpace(parts[1])
			}
		}

		if token == "" {
			httputil.RespondMessage(w, msgNoToken, http.StatusUnauthorized)
			return
		}

		claims, err := m.tokenService.VerifyToken(token)
		if err != nil {
			logger.Warn("token rejected", "reason", err.Error())
			httputil.RespondMessage(w, msgInvalidToken, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaimsFromContext extracts the verified claims from the request context
func GetClaimsFromContext(ctx context.Context) (*TokenClaims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*TokenClaims)
	return claims, ok
}
