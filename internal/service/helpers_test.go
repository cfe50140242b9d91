package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pagetrail/pagetrail-server/internal/auth"
	"github.com/pagetrail/pagetrail-server/internal/domain"
	"github.com/pagetrail/pagetrail-server/internal/media/covers"
	"github.com/pagetrail/pagetrail-server/internal/media/images"
	"github.com/pagetrail/pagetrail-server/internal/progress"
	"github.com/pagetrail/pagetrail-server/internal/store"
	"github.com/pagetrail/pagetrail-server/internal/store/badgerdb"
	"github.com/pagetrail/pagetrail-server/internal/telemetry"
	"github.com/pagetrail/pagetrail-server/internal/validation"
)

// testEnv wires every service against a temporary Badger store.
type testEnv struct {
	store    store.Store
	storage  *images.Storage
	spans    *tracetest.SpanRecorder
	auth     *AuthService
	books    *BookService
	sessions *SessionService
}

func setupServices(t *testing.T) *testEnv {
	t.Helper()
	return setupServicesWithStore(t, nil)
}

// setupServicesWithStore lets a test wrap the store, e.g. to inject races.
func setupServicesWithStore(t *testing.T, wrap func(store.Store) store.Store) *testEnv {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)

	db, err := badgerdb.New(filepath.Join(dir, "db"), logger, store.NewNoopEmitter())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var s store.Store = db
	if wrap != nil {
		s = wrap(db)
	}

	storage, err := images.NewStorage(filepath.Join(dir, "covers"), "http://localhost:8080", 1<<20)
	require.NoError(t, err)
	policy := covers.NewPolicy(images.NewProcessor(storage, logger), covers.NewPlaceholder(""), logger)

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	tokens, err := auth.NewTokenService(key, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	// Cheap parameters keep the suite fast.
	hasher := auth.NewPasswordHasher(auth.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})

	spans := tracetest.NewSpanRecorder()
	tel := telemetry.FromTracerProvider(trace.NewTracerProvider(trace.WithSpanProcessor(spans)))

	v := validation.New()
	return &testEnv{
		store:    s,
		storage:  storage,
		spans:    spans,
		auth:     NewAuthService(s, tokens, hasher, v, logger),
		books:    NewBookService(s, policy, v, logger),
		sessions: NewSessionService(s, progress.NewCoordinator(s, logger), v, tel, 3, logger),
	}
}

func (e *testEnv) createBook(t *testing.T, ownerID, title string, total *int) *domain.Book {
	t.Helper()
	book, err := e.books.CreateBook(context.Background(), ownerID, CreateBookRequest{
		Title:      title,
		Author:     "Author",
		Category:   "Fiction",
		TotalPages: total,
	})
	require.NoError(t, err)
	return book
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 24))
	for x := range 16 {
		for y := range 24 {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 10), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func intPtr(v int) *int {
	return &v
}

func strPtr(v string) *string {
	return &v
}
