package auth

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// TokenCallback receives the token after a successful code exchange
type TokenCallback func(w http.ResponseWriter, r *http.Request, t *oauth2.Token)

// AuthHandler redirects to the oauth provider's credential acceptance page
func AuthHandler(c *oauth2.Config, state string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := c.AuthCodeURL(state, oauth2.AccessTypeOffline)
		http.Redirect(w, r, u, http.StatusFound)
	}
}

// AuthCallbackHandlerF receives the callback from the oauth provider with the credentials
func AuthCallbackHandlerF(c *oauth2.Config, state string, f TokenCallback) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if s := r.Form.Get("state"); s != state {
			log.Warn().Msg("oauth callback with invalid state")
			http.Error(w, "State invalid", http.StatusBadRequest)
			return
		}

		if e := r.Form.Get("error"); e != "" {
			http.Error(w, "Authentication failed: "+e, http.StatusBadRequest)
			return
		}

		code := r.Form.Get("code")
		if code == "" {
			http.Error(w, "Code not found", http.StatusBadRequest)
			return
		}

		token, err := c.Exchange(r.Context(), code)
		if err != nil {
			log.Error().Err(err).Msg("exchanging code for token")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		f(w, r, token)
	}
}

// NewState creates a random state string for CSRF protection
func NewState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
