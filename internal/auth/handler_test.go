package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-crm/meridian/internal/auth"
	"github.com/meridian-crm/meridian/internal/shared"
	_ "github.com/meridian-crm/meridian/testing"
)

type stubRepo struct {
	cred     *auth.Credential
	sessions map[string]uuid.UUID
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.Credential, error) {
	if s.cred == nil || s.cred.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.cred, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]uuid.UUID)
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingInvalidator struct {
	invalidated []uuid.UUID
}

func (r *recordingInvalidator) Invalidate(userID uuid.UUID) {
	r.invalidated = append(r.invalidated, userID)
}

type commitWriter struct {
	http.ResponseWriter
	sess          *shared.Session
	manager       *shared.SessionManager
	ctx           context.Context
	req           *http.Request
	headerWritten bool
}

func (w *commitWriter) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		_ = w.manager.Commit(w.ctx, w.ResponseWriter, w.req, w.sess)
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *commitWriter) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

// sessionServer wraps the auth routes with the load/commit cycle the app
// middleware normally provides.
func sessionServer(t *testing.T, repo auth.Repository, inv auth.SnapshotInvalidator) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")

	handler := auth.NewHandler(testLogger(), auth.NewService(repo), sessionManager, csrfManager, inv)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessionManager.Load(req.Context(), req)
			require.NoError(t, err)
			ctx := shared.ContextWithSession(req.Context(), sess)
			req = req.WithContext(ctx)
			next.ServeHTTP(&commitWriter{ResponseWriter: w, sess: sess, manager: sessionManager, ctx: ctx, req: req}, req)
		})
	})
	handler.MountRoutes(r)
	return r, sessionManager
}

func seedCredential(t *testing.T, password string, active bool) *auth.Credential {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return &auth.Credential{
		UserID:       uuid.New(),
		Email:        "rep@test.local",
		PasswordHash: string(hashed),
		IsActive:     active,
	}
}

func TestSignInSuccess(t *testing.T) {
	cred := seedCredential(t, "correct-horse", true)
	repo := &stubRepo{cred: cred}
	srv, _ := sessionServer(t, repo, nil)

	req := httptest.NewRequest(http.MethodPost, "/sign-in",
		strings.NewReader(`{"email":"rep@test.local","password":"correct-horse"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	srv.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var body struct {
		UserID    uuid.UUID `json:"user_id"`
		CSRFToken string    `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, cred.UserID, body.UserID)
	assert.NotEmpty(t, body.CSRFToken)

	cookies := res.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "test_session", cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
}

func TestSignInInvalidCredentials(t *testing.T) {
	cred := seedCredential(t, "correct-horse", true)
	srv, _ := sessionServer(t, &stubRepo{cred: cred}, nil)

	cases := []struct {
		name string
		body string
	}{
		{"wrong password", `{"email":"rep@test.local","password":"wrong-password"}`},
		{"unknown email", `{"email":"ghost@test.local","password":"correct-horse"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/sign-in", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			res := httptest.NewRecorder()
			srv.ServeHTTP(res, req)
			assert.Equal(t, http.StatusUnauthorized, res.Code)
		})
	}
}

func TestSignInInactiveAccount(t *testing.T) {
	cred := seedCredential(t, "correct-horse", false)
	srv, _ := sessionServer(t, &stubRepo{cred: cred}, nil)

	req := httptest.NewRequest(http.MethodPost, "/sign-in",
		strings.NewReader(`{"email":"rep@test.local","password":"correct-horse"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	srv.ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestSignOutDestroysSession(t *testing.T) {
	cred := seedCredential(t, "correct-horse", true)
	repo := &stubRepo{cred: cred}
	inv := &recordingInvalidator{}
	srv, sessionManager := sessionServer(t, repo, inv)

	signIn := httptest.NewRequest(http.MethodPost, "/sign-in",
		strings.NewReader(`{"email":"rep@test.local","password":"correct-horse"}`))
	signIn.Header.Set("Content-Type", "application/json")
	signInRes := httptest.NewRecorder()
	srv.ServeHTTP(signInRes, signIn)
	require.Equal(t, http.StatusOK, signInRes.Code)

	cookies := signInRes.Result().Cookies()
	require.NotEmpty(t, cookies)

	signOut := httptest.NewRequest(http.MethodPost, "/sign-out", nil)
	signOut.AddCookie(cookies[0])
	signOutRes := httptest.NewRecorder()
	srv.ServeHTTP(signOutRes, signOut)
	require.Equal(t, http.StatusNoContent, signOutRes.Code)

	assert.Equal(t, []uuid.UUID{cred.UserID}, inv.invalidated)

	// The cookie no longer maps to a signed-in session.
	check := httptest.NewRequest(http.MethodGet, "/session", nil)
	check.AddCookie(cookies[0])
	sess, err := sessionManager.Load(check.Context(), check)
	require.NoError(t, err)
	assert.Empty(t, sess.User())
}

func TestSessionAnonymous(t *testing.T) {
	srv, _ := sessionServer(t, &stubRepo{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	res := httptest.NewRecorder()
	srv.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Authenticated bool `json:"authenticated"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.False(t, body.Authenticated)
}
