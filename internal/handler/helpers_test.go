package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"notevault-server/internal/domain"
	"notevault-server/internal/metrics"
	"notevault-server/internal/middleware"
	"notevault-server/internal/ratelimit"
	"notevault-server/internal/repository"
	"notevault-server/internal/service"
	"notevault-server/internal/session"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testVersion = "1.0.0"
	testCookie  = "notevault_sid"
)

type fixture struct {
	router  http.Handler
	store   *repository.MemoryStore
	metrics *metrics.Metrics
}

// newFixture wires the real router over in-memory storage. noteRepo replaces
// the memory note repository when set.
func newFixture(t *testing.T, noteRepo repository.NoteRepository) *fixture {
	t.Helper()

	store := repository.NewMemoryStore()
	if noteRepo == nil {
		noteRepo = store.Notes()
	}

	logger := zap.NewNop().Sugar()
	m := metrics.New()
	notes := service.NewNoteService(noteRepo, nil, logger, 3)
	users := service.NewUserService(store.Users(), notes, logger)
	auth := service.NewAuthService(users, session.NewMemoryStore(), "test-secret", time.Hour, logger)

	router, err := NewRouter(Dependencies{
		Notes:      notes,
		Users:      users,
		Auth:       auth,
		Policy:     ratelimit.DefaultPolicy(),
		Limiter:    ratelimit.NewMemoryLimiter(),
		Metrics:    m,
		APIVersion: testVersion,
		Cookie:     CookieOptions{Name: testCookie},
		Logger:     logger,
	})
	require.NoError(t, err)

	return &fixture{router: router, store: store, metrics: m}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(middleware.VersionHeader, testVersion)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

// signup creates an account and logs it in, returning the session cookie.
func (f *fixture) signup(t *testing.T, username string) *http.Cookie {
	t.Helper()

	rr := f.do(t, http.MethodPost, "/users/create", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = f.do(t, http.MethodPost, "/users/login", map[string]string{
		"email":    username + "@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	for _, c := range rr.Result().Cookies() {
		if c.Name == testCookie {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) envelope {
	t.Helper()
	env := decode(t, rr)
	require.NoError(t, json.Unmarshal(env.Data, v), string(env.Data))
	return env
}

// MockNoteRepository records calls so tests can assert the store was not touched.
type MockNoteRepository struct {
	mock.Mock
}

func (m *MockNoteRepository) Create(ctx context.Context, note *domain.Note) error {
	return m.Called(ctx, note).Error(0)
}

func (m *MockNoteRepository) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Note), args.Error(1)
}

func (m *MockNoteRepository) ListByOwner(ctx context.Context, ownerID string, status domain.NoteStatus) ([]*domain.Note, error) {
	args := m.Called(ctx, ownerID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Note), args.Error(1)
}

func (m *MockNoteRepository) Search(ctx context.Context, ownerID, query string) ([]*domain.Note, error) {
	args := m.Called(ctx, ownerID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Note), args.Error(1)
}

func (m *MockNoteRepository) Update(ctx context.Context, note *domain.Note) error {
	return m.Called(ctx, note).Error(0)
}
