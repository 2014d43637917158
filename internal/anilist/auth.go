package anilist

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"time"

	"github.com/alvarorichard/aniplay/internal/util"
	"github.com/pkg/errors"
)

const (
	callbackPort = "19338"
	callbackPath = "/callback"
	tokenPath    = "/token"
	authTimeout  = 5 * time.Minute
)

// callbackPage lifts the implicit-grant token out of the URL fragment and
// posts it back to the local server; fragments never reach the backend
// directly.
const callbackPage = `<!DOCTYPE html>
<html>
<head><title>aniplay</title></head>
<body>
<p>Completing AniList login...</p>
<script>
const params = new URLSearchParams(window.location.hash.substring(1));
fetch('/token?access_token=' + encodeURIComponent(params.get('access_token') || ''))
	.then(() => document.body.innerHTML = '<p>Logged in. You can close this tab.</p>')
	.catch(() => document.body.innerHTML = '<p>Login failed. Return to the terminal.</p>');
</script>
</body>
</html>`

// Authenticator runs the implicit OAuth flow against AniList.
type Authenticator struct {
	clientID     string
	tokenChannel chan string
	httpServer   *http.Server
}

// NewAuthenticator builds the flow for the given OAuth client id.
func NewAuthenticator(clientID string) *Authenticator {
	return &Authenticator{
		clientID:     clientID,
		tokenChannel: make(chan string, 1),
	}
}

// LoginURL is the AniList authorize URL the user's browser must visit.
func (a *Authenticator) LoginURL() string {
	u := url.URL{
		Scheme: "https",
		Host:   "anilist.co",
		Path:   "/api/v2/oauth/authorize",
	}
	q := u.Query()
	q.Set("client_id", a.clientID)
	q.Set("response_type", "token")
	u.RawQuery = q.Encode()
	return u.String()
}

// Run starts the callback server, opens the browser and blocks until a token
// arrives or the flow times out.
func (a *Authenticator) Run(ctx context.Context) (string, error) {
	if err := a.startCallbackServer(); err != nil {
		return "", err
	}
	defer a.stopCallbackServer()

	loginURL := a.LoginURL()
	if err := openBrowser(loginURL); err != nil {
		util.Warn("Failed to open browser automatically", "error", err)
		fmt.Println("Open this URL to log in:", loginURL)
	}

	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), "timed out waiting for AniList token")
	case token, ok := <-a.tokenChannel:
		if !ok || token == "" {
			return "", errors.New("failed to receive token")
		}
		return token, nil
	}
}

func (a *Authenticator) startCallbackServer() error {
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, callbackPage)
	})
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("access_token")
		select {
		case a.tokenChannel <- token:
		default:
		}
		w.WriteHeader(http.StatusOK)
	})

	listener, err := net.Listen("tcp", "127.0.0.1:"+callbackPort)
	if err != nil {
		return errors.Wrapf(err, "could not listen on port %s", callbackPort)
	}

	a.httpServer = &http.Server{Handler: mux}
	go func() {
		if err := a.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.Error("Auth callback server error", "error", err)
		}
	}()
	return nil
}

func (a *Authenticator) stopCallbackServer() {
	if a.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.httpServer.Shutdown(ctx)
}

func openBrowser(rawURL string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", rawURL).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL).Start()
	default:
		return exec.Command("xdg-open", rawURL).Start()
	}
}
