package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

const authSuccessPage = `<!DOCTYPE html><html><body style="font-family:system-ui;text-align:center;padding-top:20vh"><h1>Kai is authorized</h1><p>You can close this window and return to the terminal.</p></body></html>`

// OAuthConfigFromFile reads client credentials downloaded from the
// Google console and requests the send-only Gmail scope.
func OAuthConfigFromFile(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	return google.ConfigFromJSON(data, gmail.GmailSendScope)
}

// LoopbackAuth runs the installed-app OAuth flow. The browser is sent to
// Google and redirected back to a listener on 127.0.0.1.
type LoopbackAuth struct {
	Config  *oauth2.Config
	Open    func(url string) error // nil means OpenBrowser
	Timeout time.Duration          // default 5m
}

// Token waits for the user to approve access and exchanges the code
func (a *LoopbackAuth) Token(ctx context.Context) (*oauth2.Token, error) {
	timeout := a.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	open := a.Open
	if open == nil {
		open = OpenBrowser
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for callback: %w", err)
	}

	cfg := *a.Config
	cfg.RedirectURL = "http://" + listener.Addr().String()
	state := uuid.NewString()

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	server := &http.Server{
		Handler:           callbackHandler(state, codeCh, errCh),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errCh <- err:
			default:
			}
		}
	}()
	defer server.Shutdown(context.Background())

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if err := open(authURL); err != nil {
		return nil, fmt.Errorf("open %s: %w", authURL, err)
	}

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, err
	case <-time.After(timeout):
		return nil, fmt.Errorf("timed out waiting for authorization")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return token, nil
}

// callbackHandler accepts the redirect carrying the authorization code.
// Requests without a code or error (favicon) are ignored.
func callbackHandler(state string, codeCh chan<- string, errCh chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if msg := q.Get("error"); msg != "" {
			http.Error(w, "Authorization failed: "+msg, http.StatusBadRequest)
			select {
			case errCh <- fmt.Errorf("oauth error: %s", msg):
			default:
			}
			return
		}
		code := q.Get("code")
		if code == "" {
			http.NotFound(w, r)
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, authSuccessPage)
		select {
		case codeCh <- code:
		default:
		}
	})
}

// SaveToken writes token as JSON readable only by the owner
func SaveToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// OpenBrowser opens url in the desktop browser
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		for _, name := range []string{"xdg-open", "sensible-browser"} {
			if _, err := exec.LookPath(name); err == nil {
				cmd = exec.Command(name, url)
				break
			}
		}
		if cmd == nil {
			return fmt.Errorf("no browser found")
		}
	}
	return cmd.Start()
}
