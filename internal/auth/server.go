package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	// CallbackPort is the port for the OAuth callback server
	CallbackPort = 8089
	// AuthTimeout is how long to wait for the user to complete auth
	AuthTimeout = 5 * time.Minute
)

const successPage = `<!DOCTYPE html>
<html>
<head><title>Authentication Successful</title></head>
<body style="font-family: system-ui; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0;">
<div style="text-align: center;">
<h1 style="color: #5CB338;">Connected!</h1>
<p>You can close this window and return to the terminal.</p>
</div>
</body>
</html>`

// CallbackURL is the redirect URL served by Authenticate
func CallbackURL() string {
	return fmt.Sprintf("http://localhost:%d/callback", CallbackPort)
}

// Authenticate runs the OAuth flow with a local callback server.
// The authorization URL is written to out for the user to open.
func Authenticate(ctx context.Context, cfg *oauth2.Config, out io.Writer) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", CallbackPort))
	if err != nil {
		return nil, fmt.Errorf("starting callback server: %w", err)
	}
	return authenticate(ctx, cfg, listener, out, AuthTimeout)
}

func authenticate(ctx context.Context, cfg *oauth2.Config, listener net.Listener, out io.Writer, timeout time.Duration) (*oauth2.Token, error) {
	state, err := NewState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	tokenChan := make(chan *oauth2.Token, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.Handle("/callback", AuthCallbackHandlerF(cfg, state, func(w http.ResponseWriter, r *http.Request, t *oauth2.Token) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, successPage)
		tokenChan <- t
	}))

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	defer shutdownServer(server)

	go func() {
		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "To authenticate with Strava, open this URL in your browser:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %s\n", authURL)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Waiting for authentication...")

	select {
	case t := <-tokenChan:
		log.Info().Int64("athlete", ExtractAthleteID(t)).Msg("authenticated")
		return t, nil
	case err := <-errChan:
		return nil, err
	case <-time.After(timeout):
		return nil, fmt.Errorf("authentication timeout after %v", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// shutdownServer gracefully shuts down the HTTP server
func shutdownServer(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("callback server shutdown")
	}
}
