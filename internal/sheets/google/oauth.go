package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultTokenFile is where Authorize saves the token when
// GOOGLE_OAUTH_TOKEN_FILE is unset.
const DefaultTokenFile = "token.json"

func hasOAuthClient() bool {
	return strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON")) != "" ||
		strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_FILE")) != ""
}

// readEnvOrFile returns the inline value of jsonKey, or the contents of
// the file named by fileKey. ok is false when neither is set.
func readEnvOrFile(jsonKey, fileKey string) (data []byte, ok bool, err error) {
	if v := strings.TrimSpace(os.Getenv(jsonKey)); v != "" {
		return []byte(v), true, nil
	}
	if path := strings.TrimSpace(os.Getenv(fileKey)); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, true, fmt.Errorf("read %s: %w", path, err)
		}
		return data, true, nil
	}
	return nil, false, nil
}

func loadOAuthConfig() (*oauth2.Config, error) {
	b, ok, err := readEnvOrFile("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	cfg, err := goauth.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

func loadOAuthToken() (*oauth2.Token, error) {
	b, ok, err := readEnvOrFile("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	return &tok, nil
}

func newOAuthSheetsService(ctx context.Context) (*gsheet.Service, error) {
	cfg, err := loadOAuthConfig()
	if err != nil {
		return nil, err
	}
	tok, err := loadOAuthToken()
	if err != nil {
		return nil, err
	}

	// The token source refreshes through the pooled client.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(cfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Authorize runs the installed-app consent flow. It prints the consent URL
// to out, waits for the redirect on localhost:redirectPort and saves the
// token to GOOGLE_OAUTH_TOKEN_FILE (DefaultTokenFile when unset).
func Authorize(ctx context.Context, redirectPort string, out io.Writer) (string, error) {
	cfg, err := loadOAuthConfig()
	if err != nil {
		return "", err
	}
	if redirectPort == "" {
		redirectPort = "8085"
	}
	cfg.RedirectURL = "http://localhost:" + redirectPort + "/callback"

	ln, err := net.Listen("tcp", "localhost:"+redirectPort)
	if err != nil {
		return "", fmt.Errorf("listen for oauth callback: %w", err)
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if msg := r.URL.Query().Get("error"); msg != "" {
			http.Error(w, "OAuth error: "+msg, http.StatusBadRequest)
			errCh <- fmt.Errorf("oauth error: %s", msg)
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		codeCh <- r.URL.Query().Get("code")
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	fmt.Fprintf(out, "Open this URL to authorize:\n%s\n", cfg.AuthCodeURL("ledger", oauth2.AccessTypeOffline))

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return "", err
	case <-time.After(5 * time.Minute):
		return "", errors.New("authorization timed out")
	case <-ctx.Done():
		return "", ctx.Err()
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}

	path := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_FILE"))
	if path == "" {
		path = DefaultTokenFile
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return "", fmt.Errorf("write token: %w", err)
	}
	return path, nil
}
