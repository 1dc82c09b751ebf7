package httpapi

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kingpin-stream/economy-core/internal/apperrors"
	"github.com/kingpin-stream/economy-core/pkg/logger"
)

// publicPaths never require a bearer token (§6 webhook ingress carries its
// own bot-secret/signing-secret check instead, see wrapWithBotSecret).
var publicPaths = map[string]struct{}{
	"/healthz": {},
}

type ctxKey string

const (
	ctxUserIDKey ctxKey = "httpapi.userID"
	ctxRoleKey   ctxKey = "httpapi.role"
)

// Claims is the JWT payload identifying a player session. Sub is the
// economy-core user id directly, since the platform that issues these
// tokens already resolved the player's account.
type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTValidator abstracts player-session token validation so httpapi isn't
// tied to one issuer.
type JWTValidator interface {
	Validate(token string) (*Claims, error)
}

// SupabaseJWTValidator validates Supabase-issued JWTs (HS256).
type SupabaseJWTValidator struct {
	secret []byte
	aud    string
}

// NewSupabaseJWTValidator builds a validator, or nil if secret is blank.
func NewSupabaseJWTValidator(secret, aud string) *SupabaseJWTValidator {
	secret = strings.TrimSpace(secret)
	aud = strings.TrimSpace(aud)
	if secret == "" {
		return nil
	}
	return &SupabaseJWTValidator{secret: []byte(secret), aud: aud}
}

func (v *SupabaseJWTValidator) Validate(token string) (*Claims, error) {
	if v == nil || len(v.secret) == 0 {
		return nil, fmt.Errorf("jwt secret not configured")
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if v.aud != "" && claims.Audience != nil {
		validAud := false
		for _, a := range claims.Audience {
			if strings.EqualFold(strings.TrimSpace(a), v.aud) {
				validAud = true
				break
			}
		}
		if !validAud {
			return nil, fmt.Errorf("invalid audience")
		}
	}
	return claims, nil
}

// wrapWithAuth resolves the bearer token into a player user id and role,
// rejecting requests that carry neither a valid token nor hit a public path.
func wrapWithAuth(next http.Handler, validator JWTValidator, log *logger.Logger) http.Handler {
	if validator == nil && log != nil {
		log.Warn("no JWT validator configured; all authenticated endpoints will reject")
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if _, ok := publicPaths[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}
		token := extractToken(r)
		if token == "" || validator == nil {
			unauthorised(w)
			return
		}
		claims, err := validator.Validate(token)
		if err != nil {
			unauthorised(w)
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserIDKey, claims.Sub)
		ctx = context.WithValue(ctx, ctxRoleKey, claims.Role)
		if isAdminPath(r.URL.Path) && strings.ToLower(claims.Role) != "admin" {
			writeJSON(w, http.StatusForbidden, errorEnvelope{Error: errorDetail{Code: apperrors.Authz, Message: apperrors.CanonicalMessage(apperrors.Authz)}})
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isAdminPath(path string) bool {
	return strings.HasPrefix(path, "/admin")
}

func extractToken(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.Fields(authHeader)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func unauthorised(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSON(w, http.StatusUnauthorized, errorEnvelope{Error: errorDetail{Code: apperrors.Authz, Message: apperrors.CanonicalMessage(apperrors.Authz)}})
}

// userIDFromContext returns the authenticated player's user id.
func userIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxUserIDKey).(string)
	return id, ok && id != ""
}

// wrapWithBotSecret authenticates the webhook ingress endpoint against the
// configured shared secret (§6 Environment "bot shared-secret for
// channel-point ingress"), bypassing the player JWT flow entirely since the
// caller here is the bot/relay, not a player's browser session.
func wrapWithBotSecret(next http.Handler, secret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get("X-Bot-Secret")
		if secret != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) == 1 {
			next.ServeHTTP(w, r)
			return
		}
		unauthorised(w)
	})
}
