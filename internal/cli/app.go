// Package cli implements the interactive sbase shell: a small REPL for
// exercising authentication, datastore and file operations against a
// Singlebase project.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	singlebase "github.com/singlebase/singlebase-go"
	"github.com/singlebase/singlebase-go/config"
)

// App holds the SDK client plus the I/O streams the commands talk to.
type App struct {
	sb       *singlebase.Client
	clientID string
	reader   *bufio.Reader
	out      io.Writer
}

// NewApp wires an SDK client from cfg and prepares the shell.
func NewApp(cfg *config.Config) (*App, error) {
	sb, err := singlebase.New(singlebase.Options{Config: cfg})
	if err != nil {
		return nil, err
	}

	id, err := ensureClientID(cfg.CacheDir)
	if err != nil {
		sb.Close()
		return nil, err
	}

	return &App{
		sb:       sb,
		clientID: id,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}, nil
}

// ensureClientID returns a stable per-install identifier, creating one on
// first run. It is sent as device metadata on sign-in so sessions can be
// told apart in the project dashboard.
func ensureClientID(dir string) (string, error) {
	if dir == "" {
		return uuid.NewString(), nil
	}
	path := filepath.Join(dir, "client_id")
	if b, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(b)); id != "" {
			return id, nil
		}
	}
	id := uuid.NewString()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id), 0o600); err != nil {
		return "", err
	}
	return id, nil
}

// Run starts the REPL and blocks until the user exits.
func (a *App) Run(ctx context.Context) {
	defer a.sb.Close()
	runREPL(ctx, a, a.status, bufio.NewScanner(os.Stdin))
}

func (a *App) isLoggedIn() bool {
	return a.sb.Auth.IsAuthenticated()
}

func (a *App) status() string {
	if email := a.sb.Auth.Email(); email != "" {
		return email
	}
	return "anonymous"
}

func (a *App) credentials() (string, string, error) {
	email, err := GetSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return "", "", err
	}
	pw, err := GetPassword(a.out, "Password")
	if err != nil {
		return "", "", err
	}
	return email, pw, nil
}

// SignUp creates an account and, when the backend returns a session, signs
// the user in.
func (a *App) SignUp(ctx context.Context) error {
	email, password, err := a.credentials()
	if err != nil {
		return err
	}
	res := a.sb.Auth.SignUpWithPassword(ctx, email, password, map[string]any{"client_id": a.clientID})
	if !res.OK {
		fmt.Fprintln(a.out, "Sign-up failed:", res.Err)
		return res.Err
	}
	fmt.Fprintln(a.out, "Account created.")
	return nil
}

// SignIn authenticates with email and password.
func (a *App) SignIn(ctx context.Context) error {
	email, password, err := a.credentials()
	if err != nil {
		return err
	}
	res := a.sb.Auth.SignInWithPassword(ctx, email, password)
	if !res.OK {
		fmt.Fprintln(a.out, "Sign-in failed:", res.Err)
		return res.Err
	}
	fmt.Fprintln(a.out, "Signed in as", a.sb.Auth.Email())
	return nil
}

// WhoAmI prints the current user profile.
func (a *App) WhoAmI(ctx context.Context) error {
	user := a.sb.Auth.GetUser(ctx)
	if user == nil {
		fmt.Fprintln(a.out, "Not signed in.")
		return nil
	}
	b, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, string(b))
	return nil
}

// Token prints the current token and when it expires.
func (a *App) Token(ctx context.Context) error {
	tok := a.sb.Auth.GetIDToken(ctx, true)
	if tok == "" {
		fmt.Fprintln(a.out, "No usable token.")
		return nil
	}
	fmt.Fprintln(a.out, tok)
	if s := a.sb.Auth.CurrentSession(); s != nil && s.TokenInfo != nil {
		fmt.Fprintln(a.out, "Expires:", time.Unix(s.TokenInfo.Exp, 0).Format(time.RFC3339))
	}
	return nil
}

// Refresh forces a token refresh regardless of remaining validity.
func (a *App) Refresh(ctx context.Context) error {
	if _, err := a.sb.Auth.RefreshSession(ctx); err != nil {
		fmt.Fprintln(a.out, "Refresh failed:", err)
		return err
	}
	fmt.Fprintln(a.out, "Session refreshed.")
	return nil
}

// List fetches and prints documents from the named collection.
func (a *App) List(ctx context.Context, name string) error {
	coll, err := a.sb.Collection(name)
	if err != nil {
		return err
	}
	docs, err := coll.Fetch(ctx, nil)
	if err != nil {
		fmt.Fprintln(a.out, "Fetch failed:", err)
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(a.out, "No documents.")
		return nil
	}
	for _, d := range docs {
		b, _ := json.Marshal(d)
		fmt.Fprintln(a.out, string(b))
	}
	return nil
}

// Upload sends a local file to the project's file storage.
func (a *App) Upload(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(a.out, "Cannot read file:", err)
		return err
	}
	file, err := a.sb.File.Upload(ctx, filepath.Base(path), "", content)
	if err != nil {
		fmt.Fprintln(a.out, "Upload failed:", err)
		return err
	}
	fmt.Fprintln(a.out, "Uploaded:", file["_key"])
	return nil
}

// SignOut revokes the session and clears local state.
func (a *App) SignOut(ctx context.Context) error {
	res := a.sb.Auth.SignOut(ctx)
	if !res.OK {
		fmt.Fprintln(a.out, "Sign-out failed:", res.Err)
		return res.Err
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}
