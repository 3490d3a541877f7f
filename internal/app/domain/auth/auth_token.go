package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const SessionCookieName = "access_token"

// TokenSource tells where ExtractToken found the token.
type TokenSource string

const (
	TokenFromCookie TokenSource = "cookie"
	TokenFromHeader TokenSource = "header"
)

// SessionCarrier moves the session token between client and server, as an
// HttpOnly cookie or a bearer header.
type SessionCarrier struct {
	production bool
	maxAge     time.Duration
}

func NewSessionCarrier(production bool, maxAge time.Duration) *SessionCarrier {
	return &SessionCarrier{production: production, maxAge: maxAge}
}

func (s *SessionCarrier) cookie(value string, maxAge int) *http.Cookie {
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	// SameSite=None is only accepted together with Secure.
	if s.production {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
	}
	return cookie
}

func (s *SessionCarrier) SetSession(c *gin.Context, token string) {
	http.SetCookie(c.Writer, s.cookie(token, int(s.maxAge.Seconds())))
}

// ClearSession expires the cookie. Copies of the token held elsewhere stay
// valid until they expire.
func (s *SessionCarrier) ClearSession(c *gin.Context) {
	cookie := s.cookie("", -1)
	cookie.Expires = time.Unix(0, 0)
	http.SetCookie(c.Writer, cookie)
}

// ExtractToken checks the cookie first and falls back to the
// Authorization header.
func (s *SessionCarrier) ExtractToken(r *http.Request) (string, TokenSource, bool) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, TokenFromCookie, true
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token, TokenFromHeader, true
			}
		}
	}
	return "", "", false
}
