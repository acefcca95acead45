package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tasklit/tasklit/internal/api"
	iauth "github.com/tasklit/tasklit/internal/auth"
	dbtest "github.com/tasklit/tasklit/internal/database/testutil"
	"github.com/tasklit/tasklit/internal/middleware"
	"github.com/tasklit/tasklit/internal/services"
	"github.com/tasklit/tasklit/pkg/mail"
)

var codePattern = regexp.MustCompile(`\d{6}`)

// CapturingMailer records outbound messages instead of delivering them.
type CapturingMailer struct {
	mu       sync.Mutex
	Messages []mail.Message
}

func (m *CapturingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, msg)
	return nil
}

// LastCode extracts the 6-digit code from the most recent message.
func (m *CapturingMailer) LastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.Messages, "no email was sent")
	code := codePattern.FindString(m.Messages[len(m.Messages)-1].Body)
	require.NotEmpty(t, code, "email carries no code")
	return code
}

// Env bundles a fully wired router with its collaborators for handler tests.
type Env struct {
	Router *gin.Engine
	DB     *gorm.DB
	Mailer *CapturingMailer
	JWT    *iauth.JWTService

	// Now is the mutable time source behind every clock in the stack.
	Now time.Time
	mu  sync.Mutex
}

// Option customises the test environment.
type Option func(*options)

type options struct {
	rateMax    int
	rateWindow time.Duration
}

// WithRateLimit enables the code-endpoint rate limiter in tests.
func WithRateLimit(max int, window time.Duration) Option {
	return func(o *options) {
		o.rateMax = max
		o.rateWindow = window
	}
}

// NewEnv builds an isolated environment: private in-memory database,
// capturing mailer, deterministic clock.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	env := &Env{
		DB:     dbtest.MustOpenTestDB(t),
		Mailer: &CapturingMailer{},
		Now:    time.Now(),
	}
	clock := func() time.Time {
		env.mu.Lock()
		defer env.mu.Unlock()
		return env.Now
	}

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Clock: clock})
	require.NoError(t, err)
	env.JWT = jwtSvc

	authSvc, err := services.NewAuthService(env.DB, env.Mailer, services.WithClock(clock))
	require.NoError(t, err)
	todoSvc, err := services.NewTodoService(env.DB)
	require.NoError(t, err)

	var store middleware.RateStore
	if o.rateMax > 0 {
		store = middleware.NewMemoryRateStore()
	}

	env.Router = api.NewRouter(api.RouterConfig{
		DB:             env.DB,
		JWT:            jwtSvc,
		Cookies:        iauth.NewCookieManager(iauth.CookieManagerConfig{}),
		AuthService:    authSvc,
		TodoService:    todoSvc,
		RateStore:      store,
		RateLimitMax:   o.rateMax,
		RateLimitEvery: o.rateWindow,
	})

	return env
}

// Advance moves the shared clock forward.
func (e *Env) Advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Now = e.Now.Add(d)
}

// Client issues requests against the router while carrying cookies between
// calls, standing in for a browser.
type Client struct {
	env     *Env
	t       *testing.T
	cookies map[string]*http.Cookie
}

// NewClient starts a fresh cookie-carrying client.
func (e *Env) NewClient(t *testing.T) *Client {
	return &Client{env: e, t: t, cookies: make(map[string]*http.Cookie)}
}

// Do sends one request, applying and recording cookies.
func (c *Client) Do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	c.env.Router.ServeHTTP(w, req)

	for _, cookie := range w.Result().Cookies() {
		if cookie.MaxAge < 0 {
			delete(c.cookies, cookie.Name)
			continue
		}
		c.cookies[cookie.Name] = cookie
	}

	return w
}

// Cookie returns the stored cookie with the given name, if present.
func (c *Client) Cookie(name string) (*http.Cookie, bool) {
	cookie, ok := c.cookies[name]
	return cookie, ok
}

// DropCookie removes a cookie from the jar, simulating expiry.
func (c *Client) DropCookie(name string) {
	delete(c.cookies, name)
}
