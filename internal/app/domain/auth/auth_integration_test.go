package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/medical-record/internal/app/domain/auth"
	"github.com/FACorreiaa/medical-record/internal/app/middleware"
	"github.com/FACorreiaa/medical-record/internal/app/models"
	"github.com/FACorreiaa/medical-record/internal/pkg/ratelimit"
)

// memoryAuthRepo enforces username and email uniqueness under one lock,
// the way the table constraints do.
type memoryAuthRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMemoryAuthRepo() *memoryAuthRepo {
	return &memoryAuthRepo{users: make(map[uuid.UUID]*models.User)}
}

func (r *memoryAuthRepo) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", models.ErrNotFound)
}

func (r *memoryAuthRepo) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *memoryAuthRepo) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username })
}

func (r *memoryAuthRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *memoryAuthRepo) FindByUsernameOrEmail(_ context.Context, username, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username || u.Email == email })
}

func (r *memoryAuthRepo) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return models.NewConflictError("username")
		}
		if u.Email == user.Email {
			return models.NewConflictError("email")
		}
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memoryAuthRepo) Delete(id uuid.UUID) {
	r.mu.Lock()
	delete(r.users, id)
	r.mu.Unlock()
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testApp struct {
	router *gin.Engine
	repo   *memoryAuthRepo
	clock  *testClock
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newMemoryAuthRepo()
	clock := &testClock{now: time.Now()}
	issuer := auth.NewTokenIssuer("integration-secret-0123456789", 7*24*time.Hour).WithClock(clock.Now)
	service := auth.NewAuthService(repo, issuer, bcrypt.MinCost, zap.NewNop())
	carrier := auth.NewSessionCarrier(false, issuer.TTL())
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(time.Minute), "login", 20, 15*time.Minute)

	r := gin.New()
	r.Use(middleware.ErrorHandler(zap.NewNop()))
	handlers := auth.NewAuthHandlers(service, carrier, zap.NewNop())
	handlers.RegisterRoutes(r.Group("/api/auth"),
		auth.Middleware(service, carrier),
		middleware.RateLimit(limiter, zap.NewNop()))

	return &testApp{router: r, repo: repo, clock: clock}
}

type request struct {
	method string
	path   string
	body   any
	cookie *http.Cookie
	bearer string
}

func (a *testApp) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if req.body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(req.body))
	}
	httpReq := httptest.NewRequest(req.method, req.path, &buf)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.cookie != nil {
		httpReq.AddCookie(req.cookie)
	}
	if req.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.bearer)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, httpReq)
	return w
}

func (a *testApp) register(t *testing.T, username, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, request{
		method: http.MethodPost,
		path:   "/api/auth/register",
		body:   map[string]string{"username": username, "email": email, "password": password},
	})
}

func (a *testApp) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, request{
		method: http.MethodPost,
		path:   "/api/auth/login",
		body:   map[string]string{"username": username, "password": password},
	})
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	return nil
}

func loginToken(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token, ok := decode(t, w)["token"].(string)
	require.True(t, ok)
	return token
}

func TestRegisterFlow(t *testing.T) {
	app := newTestApp(t)

	w := app.register(t, "Alice", "Alice@Example.com", "password123")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "passwordHash")
	assert.NotContains(t, user, "PasswordHash")
	assert.NotContains(t, w.Body.String(), "$2a$")
	assert.NotContains(t, body, "token")

	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	me := app.do(t, request{method: http.MethodGet, path: "/api/auth/me", cookie: cookie})
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "alice", decode(t, me)["user"].(map[string]any)["username"])
}

func TestRegisterValidation(t *testing.T) {
	app := newTestApp(t)

	w := app.register(t, "x", "nope", "short")
	require.Equal(t, http.StatusBadRequest, w.Code)

	fields, ok := decode(t, w)["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestRegisterDuplicateIsCaseInsensitive(t *testing.T) {
	app := newTestApp(t)

	require.Equal(t, http.StatusCreated, app.register(t, "bob", "bob@example.com", "password123").Code)

	w := app.register(t, "BOB", "other@example.com", "password123")
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Username already in use", body["error"])
	assert.Equal(t, "username", body["field"])

	w = app.register(t, "robert", "BOB@example.com", "password123")
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Email already in use", decode(t, w)["error"])
}

func TestConcurrentRegistrationSingleWinner(t *testing.T) {
	app := newTestApp(t)
	const attempts = 8

	var mu sync.Mutex
	codes := map[int]int{}
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			username := "carol"
			if i%2 == 1 {
				username = "CAROL"
			}
			w := app.register(t, username, fmt.Sprintf("carol%d@example.com", i), "password123")
			mu.Lock()
			codes[w.Code]++
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, codes[http.StatusCreated])
	assert.Equal(t, attempts-1, codes[http.StatusConflict])
}

func TestLoginFlow(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusCreated, app.register(t, "dave", "dave@example.com", "password123").Code)

	t.Run("RightPassword", func(t *testing.T) {
		w := app.login(t, "DAVE", "password123")
		token := loginToken(t, w)
		assert.NotEmpty(t, token)
		assert.NotNil(t, sessionCookie(w))
		assert.NotContains(t, decode(t, w)["user"], "passwordHash")
	})

	t.Run("ByEmail", func(t *testing.T) {
		w := app.do(t, request{
			method: http.MethodPost,
			path:   "/api/auth/login",
			body:   map[string]string{"email": "dave@example.com", "password": "password123"},
		})
		loginToken(t, w)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		w := app.login(t, "dave", "password124")
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid credentials", decode(t, w)["error"])
	})

	t.Run("UnknownUser", func(t *testing.T) {
		w := app.login(t, "nobody", "password123")
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid credentials", decode(t, w)["error"])
	})

	t.Run("NoIdentifier", func(t *testing.T) {
		w := app.do(t, request{
			method: http.MethodPost,
			path:   "/api/auth/login",
			body:   map[string]string{"password": "password123"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMeRequiresToken(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, request{method: http.MethodGet, path: "/api/auth/me"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Not authenticated", decode(t, w)["error"])

	w = app.do(t, request{method: http.MethodGet, path: "/api/auth/me", bearer: "garbage"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid or expired token", decode(t, w)["error"])
}

func TestProfileAliasesMe(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusCreated, app.register(t, "erin", "erin@example.com", "password123").Code)
	token := loginToken(t, app.login(t, "erin", "password123"))

	w := app.do(t, request{method: http.MethodGet, path: "/api/auth/profile", bearer: token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "erin", decode(t, w)["user"].(map[string]any)["username"])
}

func TestExpiredToken(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusCreated, app.register(t, "frank", "frank@example.com", "password123").Code)
	token := loginToken(t, app.login(t, "frank", "password123"))

	require.Equal(t, http.StatusOK, app.do(t, request{method: http.MethodGet, path: "/api/auth/me", bearer: token}).Code)

	app.clock.Advance(7*24*time.Hour + time.Second)

	w := app.do(t, request{method: http.MethodGet, path: "/api/auth/me", bearer: token})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid or expired token", decode(t, w)["error"])
}

func TestDeletedUserToken(t *testing.T) {
	app := newTestApp(t)
	w := app.register(t, "grace", "grace@example.com", "password123")
	require.Equal(t, http.StatusCreated, w.Code)
	id, err := uuid.Parse(decode(t, w)["user"].(map[string]any)["id"].(string))
	require.NoError(t, err)
	token := loginToken(t, app.login(t, "grace", "password123"))

	app.repo.Delete(id)

	w = app.do(t, request{method: http.MethodGet, path: "/api/auth/me", bearer: token})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "User not found", decode(t, w)["error"])
}

func TestLogoutKeepsBearerValid(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusCreated, app.register(t, "heidi", "heidi@example.com", "password123").Code)
	loginResp := app.login(t, "heidi", "password123")
	token := loginToken(t, loginResp)
	cookie := sessionCookie(loginResp)
	require.NotNil(t, cookie)

	w := app.do(t, request{method: http.MethodPost, path: "/api/auth/logout", cookie: cookie})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["ok"])

	cleared := sessionCookie(w)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)

	// the browser has dropped the cookie; no credentials remain
	w = app.do(t, request{method: http.MethodGet, path: "/api/auth/me"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// a copied bearer token is not revoked
	w = app.do(t, request{method: http.MethodGet, path: "/api/auth/me", bearer: token})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginRateLimit(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusCreated, app.register(t, "ivan", "ivan@example.com", "password123").Code)

	for i := 1; i <= 20; i++ {
		password := "password123"
		if i%2 == 0 {
			password = "wrong-password"
		}
		w := app.login(t, "ivan", password)
		assert.NotEqual(t, http.StatusTooManyRequests, w.Code, "attempt %d", i)
		assert.Equal(t, "20", w.Header().Get("RateLimit-Limit"))
	}

	w := app.login(t, "ivan", "password123")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.NotEmpty(t, decode(t, w)["error"])

	// registration is not limited
	assert.Equal(t, http.StatusCreated, app.register(t, "judy", "judy@example.com", "password123").Code)
}
