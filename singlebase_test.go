package singlebase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/singlebase/singlebase-go/config"
	"github.com/singlebase/singlebase-go/internal/common"
)

func makeToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   sub,
		"exp":   exp.Unix(),
		"iat":   time.Now().Unix(),
		"email": sub + "@example.com",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

type call struct {
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload"`
}

// newBackend serves the action envelope protocol with one handler per action.
func newBackend(t *testing.T, handlers map[string]func(call, *http.Request) map[string]any) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var c call
		require.NoError(t, json.NewDecoder(r.Body).Decode(&c))

		h, ok := handlers[c.Action]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{
				"ok":    false,
				"error": map[string]any{"code": "UNKNOWN_ACTION", "message": c.Action},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "data": h(c, r)})
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func testConfig(endpoint string) *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.APIKey = "test-key"
	cfg.Endpoint = endpoint
	cfg.RefreshInterval = time.Hour
	return cfg
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(Options{})
	require.True(t, errors.Is(err, common.ErrorValidation))

	_, err = New(Options{Config: &config.Config{}})
	require.True(t, errors.Is(err, common.ErrorValidation))
}

func TestClient_SignInThenAuthenticatedDispatch(t *testing.T) {
	tok := makeToken(t, "user_1", time.Now().Add(time.Hour))
	srv, _ := newBackend(t, map[string]func(call, *http.Request) map[string]any{
		"auth.signin": func(c call, r *http.Request) map[string]any {
			return map[string]any{
				"id_token":      tok,
				"refresh_token": "rt-1",
				"expires_in":    float64(3600),
				"user":          map[string]any{"_key": "user_1", "email": "a@b.c"},
			}
		},
		"db.fetch": func(c call, r *http.Request) map[string]any {
			// Datastore calls ride on the session established by Auth.
			require.Equal(t, "Bearer "+tok, r.Header.Get("Authorization"))
			require.Equal(t, "tasks", c.Payload["collection"])
			return map[string]any{"docs": []any{map[string]any{"_key": "1"}}}
		},
	})

	sb, err := New(Options{Config: testConfig(srv.URL)})
	require.NoError(t, err)
	defer sb.Close()

	require.False(t, sb.Auth.IsAuthenticated())

	res := sb.Auth.SignInWithPassword(context.Background(), "a@b.c", "pw")
	require.True(t, res.OK)
	require.True(t, sb.Auth.IsAuthenticated())

	tasks, err := sb.Collection("tasks")
	require.NoError(t, err)
	docs, err := tasks.Fetch(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestClient_SessionSurvivesRestartViaCacheDir(t *testing.T) {
	tok := makeToken(t, "user_1", time.Now().Add(time.Hour))
	var signins atomic.Int64
	srv, _ := newBackend(t, map[string]func(call, *http.Request) map[string]any{
		"auth.signin": func(c call, r *http.Request) map[string]any {
			signins.Add(1)
			return map[string]any{
				"id_token":      tok,
				"refresh_token": "rt-1",
				"expires_in":    float64(3600),
			}
		},
	})

	cfg := testConfig(srv.URL)
	cfg.CacheDir = t.TempDir()

	sb, err := New(Options{Config: cfg})
	require.NoError(t, err)
	require.True(t, sb.Auth.SignInWithPassword(context.Background(), "a@b.c", "pw").OK)
	sb.Close()

	// A new client over the same cache dir restores the session without
	// touching the network.
	sb2, err := New(Options{Config: cfg})
	require.NoError(t, err)
	defer sb2.Close()

	require.True(t, sb2.Auth.IsAuthenticated())
	require.Equal(t, tok, sb2.Auth.IDToken())
	require.Equal(t, int64(1), signins.Load())
}

func TestClient_UnknownActionSurfacesAPIError(t *testing.T) {
	srv, _ := newBackend(t, nil)

	sb, err := New(Options{Config: testConfig(srv.URL)})
	require.NoError(t, err)
	defer sb.Close()

	resp, err := sb.Dispatcher().Dispatch(context.Background(), "db.nope", nil)
	require.NoError(t, err)
	require.False(t, resp.OK)
	require.Equal(t, "UNKNOWN_ACTION", resp.Error.Code)
}
