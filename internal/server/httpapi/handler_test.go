package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviemate/authkeeper/internal/common"
	"github.com/moviemate/authkeeper/internal/logging"
	"github.com/moviemate/authkeeper/internal/server/auth"
	"github.com/moviemate/authkeeper/internal/server/models"
	"github.com/moviemate/authkeeper/internal/server/ratelimit"
	"github.com/moviemate/authkeeper/internal/server/services"
)

type nopLogger struct{}

func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

type fakeService struct {
	registerOut *models.User
	registerErr error

	loginOut *services.TokenPair
	loginErr error

	refreshOut *services.TokenPair
	refreshErr error
	lastMeta   services.Meta

	logoutErr    error
	logoutTokens []string

	userOut *models.User
	userErr error
}

func (f *fakeService) Register(ctx context.Context, email, password, displayName, locale string) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.registerOut, nil
}
func (f *fakeService) Login(ctx context.Context, email, password string, meta services.Meta) (*services.TokenPair, error) {
	f.lastMeta = meta
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.loginOut, nil
}
func (f *fakeService) Refresh(ctx context.Context, refreshToken string, meta services.Meta) (*services.TokenPair, error) {
	f.lastMeta = meta
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshOut, nil
}
func (f *fakeService) Logout(ctx context.Context, refreshToken string) error {
	f.logoutTokens = append(f.logoutTokens, refreshToken)
	return f.logoutErr
}
func (f *fakeService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.userOut, nil
}

var testSecret = []byte("test-access-secret")

func newTestRouter(t *testing.T, svc AuthService, limiter ratelimit.Limiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if limiter == nil {
		limiter = ratelimit.NewMemoryLimiter(1000, time.Minute)
	}
	h := NewAuthHandler(svc, nil, nopLogger{})
	return NewRouter(h, testSecret, limiter, nopLogger{})
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, path, buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["error"]
}

func TestRegister_Created(t *testing.T) {
	svc := &fakeService{registerOut: &models.User{ID: "u1", Email: "a@example.com", CreatedAt: time.Now()}}
	r := newTestRouter(t, svc, nil)

	w := doJSON(t, r, http.MethodPost, "/auth/register",
		`{"email":"a@example.com","password":"longenough"}`, nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp userResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "u1", resp.ID)
	assert.Equal(t, "a@example.com", resp.Email)
}

func TestRegister_Validation(t *testing.T) {
	r := newTestRouter(t, &fakeService{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"missing email", `{"password":"longenough"}`},
		{"bad email", `{"email":"nope","password":"longenough"}`},
		{"short password", `{"email":"a@example.com","password":"short"}`},
		{"not json", `{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/auth/register", tt.body, nil)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Equal(t, CodeValidationFailed, errorCode(t, w))
		})
	}
}

func TestRegister_Conflict(t *testing.T) {
	svc := &fakeService{registerErr: common.ErrorConflict}
	r := newTestRouter(t, svc, nil)

	w := doJSON(t, r, http.MethodPost, "/auth/register",
		`{"email":"dup@example.com","password":"longenough"}`, nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeConflict, errorCode(t, w))
}

func TestLogin_OK(t *testing.T) {
	svc := &fakeService{loginOut: &services.TokenPair{AccessToken: "at", RefreshToken: "rt"}}
	r := newTestRouter(t, svc, nil)

	w := doJSON(t, r, http.MethodPost, "/auth/login",
		`{"email":"a@example.com","password":"pw"}`,
		map[string]string{"User-Agent": "test-ua", "X-Forwarded-For": "9.9.9.9, 10.0.0.1"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp tokenPairResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "at", resp.AccessToken)
	assert.Equal(t, "rt", resp.RefreshToken)

	// Forwarded client address, not the proxy hop, ends up in the meta.
	assert.Equal(t, "9.9.9.9", svc.lastMeta.IP)
	assert.Equal(t, "test-ua", svc.lastMeta.UserAgent)
}

func TestLogin_BadCredentials(t *testing.T) {
	svc := &fakeService{loginErr: common.ErrInvalidCredentials}
	r := newTestRouter(t, svc, nil)

	w := doJSON(t, r, http.MethodPost, "/auth/login",
		`{"email":"a@example.com","password":"wrong"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeInvalidCredentials, errorCode(t, w))
}

func TestRefresh_OK(t *testing.T) {
	svc := &fakeService{refreshOut: &services.TokenPair{AccessToken: "at2", RefreshToken: "rt2"}}
	r := newTestRouter(t, svc, nil)

	w := doJSON(t, r, http.MethodPost, "/auth/refresh", `{"refresh_token":"rt1"}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp tokenPairResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "rt2", resp.RefreshToken)
}

func TestRefresh_Revoked(t *testing.T) {
	svc := &fakeService{refreshErr: common.ErrRefreshRevoked}
	r := newTestRouter(t, svc, nil)

	w := doJSON(t, r, http.MethodPost, "/auth/refresh", `{"refresh_token":"stolen"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeRefreshRevoked, errorCode(t, w))
}

func TestRefresh_MalformedTokenSameCode(t *testing.T) {
	svc := &fakeService{refreshErr: common.ErrInvalidToken}
	r := newTestRouter(t, svc, nil)

	w := doJSON(t, r, http.MethodPost, "/auth/refresh", `{"refresh_token":"garbage"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeRefreshRevoked, errorCode(t, w))
}

func TestRefresh_Internal(t *testing.T) {
	svc := &fakeService{refreshErr: common.ErrorInternal}
	r := newTestRouter(t, svc, nil)

	w := doJSON(t, r, http.MethodPost, "/auth/refresh", `{"refresh_token":"rt"}`, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, CodeInternal, errorCode(t, w))
}

func TestLogout(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(t, svc, nil)

	w := doJSON(t, r, http.MethodPost, "/auth/logout", `{"refresh_token":"rt1"}`, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"rt1"}, svc.logoutTokens)
}

func TestLogout_TokenOptional(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(t, svc, nil)

	// A client that already lost its refresh token still logs out cleanly.
	w := doJSON(t, r, http.MethodPost, "/auth/logout", `{}`, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	assert.Empty(t, svc.logoutTokens)
}

func TestMe(t *testing.T) {
	svc := &fakeService{userOut: &models.User{ID: "u1", Email: "a@example.com"}}
	r := newTestRouter(t, svc, nil)

	token, err := auth.GenerateAccessToken("u1", "a@example.com", testSecret, time.Hour)
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodGet, "/auth/me", "", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)
	var resp userResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "u1", resp.ID)
}

func TestMe_Unauthorized(t *testing.T) {
	r := newTestRouter(t, &fakeService{}, nil)

	w := doJSON(t, r, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeUnauthorized, errorCode(t, w))

	w = doJSON(t, r, http.MethodGet, "/auth/me", "", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Token signed with another secret is rejected.
	token, err := auth.GenerateAccessToken("u1", "a@example.com", []byte("other"), time.Hour)
	require.NoError(t, err)
	w = doJSON(t, r, http.MethodGet, "/auth/me", "", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimit(t *testing.T) {
	svc := &fakeService{loginErr: common.ErrInvalidCredentials}
	r := newTestRouter(t, svc, ratelimit.NewMemoryLimiter(2, time.Minute))

	body := `{"email":"a@example.com","password":"pw"}`
	hdr := map[string]string{"X-Forwarded-For": "1.2.3.4"}

	for i := 0; i < 2; i++ {
		w := doJSON(t, r, http.MethodPost, "/auth/login", body, hdr)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i+1)
	}
	w := doJSON(t, r, http.MethodPost, "/auth/login", body, hdr)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, CodeRateLimited, errorCode(t, w))

	// Another client address still has budget.
	w = doJSON(t, r, http.MethodPost, "/auth/login", body, map[string]string{"X-Forwarded-For": "5.6.7.8"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewAuthHandler(&fakeService{}, fakePinger{}, nopLogger{})
	r := NewRouter(h, testSecret, ratelimit.NewMemoryLimiter(1000, time.Minute), nopLogger{})
	w := doJSON(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewAuthHandler(&fakeService{}, fakePinger{err: context.DeadlineExceeded}, nopLogger{})
	r = NewRouter(h, testSecret, ratelimit.NewMemoryLimiter(1000, time.Minute), nopLogger{})
	w = doJSON(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
