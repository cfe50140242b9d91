package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/pagetrail/pagetrail-server/internal/auth"
	"github.com/pagetrail/pagetrail-server/internal/media/covers"
	"github.com/pagetrail/pagetrail-server/internal/media/images"
	"github.com/pagetrail/pagetrail-server/internal/progress"
	"github.com/pagetrail/pagetrail-server/internal/projection"
	"github.com/pagetrail/pagetrail-server/internal/service"
	"github.com/pagetrail/pagetrail-server/internal/sse"
	"github.com/pagetrail/pagetrail-server/internal/store/badgerdb"
	"github.com/pagetrail/pagetrail-server/internal/telemetry"
	"github.com/pagetrail/pagetrail-server/internal/validation"
)

const testPublicURL = "http://localhost:8080"

// testServer wraps the API server with a humatest client.
type testServer struct {
	*Server
	api humatest.TestAPI
}

// testEnvelope is the decoded success envelope.
type testEnvelope[T any] struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

// testErrorEnvelope is the decoded coded error envelope.
type testErrorEnvelope struct {
	Version int            `json:"v"`
	Success bool           `json:"success"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	return setupTestServerWithOptions(t, Options{LoginRateLimit: 100, MaxCoverBytes: 1 << 20})
}

// setupTestServerWithOptions builds the full stack over a temporary Badger store.
func setupTestServerWithOptions(t *testing.T, opts Options) *testServer {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)

	sseManager := sse.NewManager(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go sseManager.Start(ctx)

	st, err := badgerdb.New(filepath.Join(dir, "db"), logger, sseManager)
	require.NoError(t, err)

	if opts.MaxCoverBytes <= 0 {
		opts.MaxCoverBytes = 1 << 20
	}
	storage, err := images.NewStorage(filepath.Join(dir, "covers"), testPublicURL, opts.MaxCoverBytes)
	require.NoError(t, err)
	policy := covers.NewPolicy(images.NewProcessor(storage, logger), covers.NewPlaceholder(""), logger)

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	tokens, err := auth.NewTokenService(key, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	hasher := auth.NewPasswordHasher(auth.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})

	v := validation.New()
	services := &Services{
		Auth: service.NewAuthService(st, tokens, hasher, v, logger),
		Book: service.NewBookService(st, policy, v, logger),
		Session: service.NewSessionService(st, progress.NewCoordinator(st, logger), v,
			telemetry.Noop(), 3, logger),
	}

	feed := projection.NewFeed(st, sseManager, logger)
	s := NewServer(st, services, storage, feed, sseManager, opts, logger)

	t.Cleanup(func() {
		s.Close()
		cancel()
		_ = sseManager.Shutdown(context.Background())
		_ = st.Close()
	})

	return &testServer{Server: s, api: humatest.Wrap(t, s.api)}
}

// registerUser signs up a user and returns its access token and ID.
func (ts *testServer) registerUser(t *testing.T, email string) (token, userID string) {
	t.Helper()

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"email":        email,
		"password":     "correct horse battery",
		"display_name": "Reader",
	})
	require.Equal(t, 201, resp.Code, resp.Body.String())

	env := decodeEnvelope[AuthResponse](t, resp)
	return env.Data.AccessToken, env.Data.User.ID
}

// createBook adds a book through the API.
func (ts *testServer) createBook(t *testing.T, token string, body map[string]any) BookResponse {
	t.Helper()

	resp := ts.api.Post("/api/v1/books", bearer(token), body)
	require.Equal(t, 201, resp.Code, resp.Body.String())
	return decodeEnvelope[BookResponse](t, resp).Data
}

func bearer(token string) string {
	return "Authorization: Bearer " + token
}

func decodeEnvelope[T any](t *testing.T, resp *httptest.ResponseRecorder) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	return env
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) testErrorEnvelope {
	t.Helper()
	var env testErrorEnvelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	return env
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 12, 18))
	for x := range 12 {
		for y := range 18 {
			img.Set(x, y, color.RGBA{R: uint8(x * 20), G: 90, B: uint8(y * 12), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
