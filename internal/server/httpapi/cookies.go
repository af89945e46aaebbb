package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/dmitrijs2005/taskcamp/internal/server/auth"
)

// CookieConfig controls the auth cookies set on login and refresh.
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (c CookieConfig) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c CookieConfig) set(w http.ResponseWriter, pair *auth.TokenPair) {
	http.SetCookie(w, c.cookie(common.AccessTokenCookieName, pair.AccessToken, int(c.AccessTTL.Seconds())))
	http.SetCookie(w, c.cookie(common.RefreshTokenCookieName, pair.RefreshToken, int(c.RefreshTTL.Seconds())))
}

func (c CookieConfig) clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(common.AccessTokenCookieName, "", -1))
	http.SetCookie(w, c.cookie(common.RefreshTokenCookieName, "", -1))
}
