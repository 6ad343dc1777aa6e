package http

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

	"github.com/go-email-verify/internal/config"
	"github.com/go-email-verify/internal/infrastructure/memory"
	"github.com/go-email-verify/internal/infrastructure/metrics"
	"github.com/go-email-verify/internal/infrastructure/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inbox records the last email body per recipient.
type inbox struct {
	mu   sync.Mutex
	last map[string]string
}

func (b *inbox) SendEmail(_ context.Context, to, _, body string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last[to] = body
	return nil
}

var codeRe = regexp.MustCompile(`>(\d{6})<`)

func (b *inbox) code(t *testing.T, to string) string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	m := codeRe.FindStringSubmatch(b.last[to])
	require.Len(t, m, 2, "no code in email to %s", to)
	return m[1]
}

type envelope struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	UserData *struct {
		Email    string `json:"email"`
		Nickname string `json:"nickname"`
	} `json:"userData"`
}

func newTestRouter(t *testing.T, cfg *config.Config) (http.Handler, *inbox) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	box := &inbox{last: map[string]string{}}
	h := NewRouter(ctx, cfg, &Deps{
		Store:    memory.NewStore(4, 10*time.Minute),
		Mailer:   box,
		Renderer: templates.Default(),
		Metrics:  metrics.New(),
	})
	return h, box
}

func post(t *testing.T, h http.Handler, path string, body interface{}) (int, envelope) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return rr.Code, env
}

func TestRouter_SendAndVerifyFlow(t *testing.T) {
	h, box := newTestRouter(t, &config.Config{AllowedOrigins: []string{"*"}})

	status, env := post(t, h, "/send-code", map[string]string{"email": "a@x.com", "nickname": "al", "password": "pw"})
	require.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	code := box.code(t, "a@x.com")

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	status, env = post(t, h, "/verify-code", map[string]string{"email": "a@x.com", "code": wrong})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)

	status, env = post(t, h, "/verify-code", map[string]string{"email": "a@x.com", "code": code})
	require.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	require.NotNil(t, env.UserData)
	assert.Equal(t, "a@x.com", env.UserData.Email)
	assert.Equal(t, "al", env.UserData.Nickname)

	status, env = post(t, h, "/verify-code", map[string]string{"email": "a@x.com", "code": code})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
}

func TestRouter_SendCodeRequiresEmail(t *testing.T) {
	h, _ := newTestRouter(t, &config.Config{AllowedOrigins: []string{"*"}})

	status, env := post(t, h, "/send-code", map[string]string{"email": "", "nickname": "al", "password": "pw"})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
}

func TestRouter_RateLimitedSendCode(t *testing.T) {
	h, _ := newTestRouter(t, &config.Config{AllowedOrigins: []string{"*"}, RateLimitRPS: 0.001, RateLimitBurst: 1})
	body := map[string]string{"email": "a@x.com", "nickname": "al", "password": "pw"}

	status, _ := post(t, h, "/send-code", body)
	assert.Equal(t, http.StatusOK, status)
	status, env := post(t, h, "/send-code", body)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.False(t, env.Success)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	h, _ := newTestRouter(t, &config.Config{AllowedOrigins: []string{"*"}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health-check/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
