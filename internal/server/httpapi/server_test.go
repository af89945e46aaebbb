package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/dmitrijs2005/taskcamp/internal/logging"
	"github.com/dmitrijs2005/taskcamp/internal/server/access"
	"github.com/dmitrijs2005/taskcamp/internal/server/auth"
	"github.com/dmitrijs2005/taskcamp/internal/server/clock"
	"github.com/dmitrijs2005/taskcamp/internal/server/credentials"
	"github.com/dmitrijs2005/taskcamp/internal/server/metrics"
	"github.com/dmitrijs2005/taskcamp/internal/server/notify"
	"github.com/dmitrijs2005/taskcamp/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskcamp/internal/server/services"
	"github.com/dmitrijs2005/taskcamp/internal/server/sessions"
	"github.com/dmitrijs2005/taskcamp/internal/server/singleuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type outbox struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (o *outbox) Notify(_ context.Context, m notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, m)
	return nil
}

func (o *outbox) lastToken(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.msgs)
	link := o.msgs[len(o.msgs)-1].Link
	return link[strings.LastIndex(link, "/")+1:]
}

type harness struct {
	t       *testing.T
	ts      *httptest.Server
	mock    sqlmock.Sqlmock
	outbox  *outbox
	metrics *metrics.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	l := logging.Discard()
	c := clock.System{}
	rm := repomanager.NewMemoryRepositoryManager()
	m := metrics.New()
	ob := &outbox{}

	store, err := credentials.NewStore(bcrypt.MinCost)
	require.NoError(t, err)
	issuer := auth.NewTokenIssuer("access-secret", "refresh-secret", 15*time.Minute, 240*time.Hour, c)

	users := services.NewUserService(db, rm, services.UserDeps{
		Credentials: store,
		Sessions:    sessions.NewRotator(issuer, l, m),
		Tokens:      singleuse.NewManager(singleuse.NewGenerator(20*time.Minute, c), c, l, m),
		Notifier:    ob,
		Links:       notify.Links{BaseURL: "http://localhost/api/v1/users"},
		Logger:      l,
		Recorder:    m,
	})

	srv := NewServer(":0", Deps{
		Users:          users,
		Projects:       services.NewProjectService(db, rm, l),
		Issuer:         issuer,
		Gate:           access.NewGate(l, m),
		Memberships:    rm.Memberships(db),
		Metrics:        m,
		Logger:         l,
		Cookies:        CookieConfig{Secure: true, AccessTTL: 15 * time.Minute, RefreshTTL: 240 * time.Hour},
		RequestTimeout: 5 * time.Second,
	})

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return &harness{t: t, ts: ts, mock: mock, outbox: ob, metrics: m}
}

type response struct {
	status  int
	cookies []*http.Cookie
	body    struct {
		StatusCode int               `json:"statusCode"`
		Data       json.RawMessage   `json:"data"`
		Message    string            `json:"message"`
		Success    bool              `json:"success"`
		Errors     []json.RawMessage `json:"errors"`
	}
}

func (h *harness) do(method, path string, body any, opts ...func(*http.Request)) *response {
	h.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.ts.URL+path, rd)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, o := range opts {
		o(req)
	}

	resp, err := h.ts.Client().Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	out := &response{status: resp.StatusCode, cookies: resp.Cookies()}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(raw, &out.body), string(raw))
	}
	return out
}

func bearerAuth(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(name, value string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: name, Value: value}) }
}

func (h *harness) expectTx() {
	h.mock.ExpectBegin()
	h.mock.ExpectCommit()
}

func (h *harness) register(username, email string) string {
	h.t.Helper()
	h.expectTx()
	r := h.do(http.MethodPost, "/api/v1/users/register", map[string]string{
		"username": username, "email": email, "password": "pw",
	})
	require.Equal(h.t, http.StatusCreated, r.status)
	var data struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(h.t, json.Unmarshal(r.body.Data, &data))
	return data.User.ID
}

func (h *harness) login(identifier string) authResponse {
	h.t.Helper()
	r := h.do(http.MethodPost, "/api/v1/users/login", map[string]string{"email": identifier, "password": "pw"})
	require.Equal(h.t, http.StatusOK, r.status)
	var a authResponse
	require.NoError(h.t, json.Unmarshal(r.body.Data, &a))
	return a
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "a@x.com")

	r := h.do(http.MethodPost, "/api/v1/users/register", map[string]string{
		"username": "alice", "email": "a@x.com", "password": "pw",
	})
	assert.Equal(t, http.StatusConflict, r.status)
	assert.False(t, r.body.Success)
	assert.Equal(t, http.StatusConflict, r.body.StatusCode)
}

func TestRegister_Validation(t *testing.T) {
	h := newHarness(t)

	r := h.do(http.MethodPost, "/api/v1/users/register", map[string]string{
		"username": "Al", "email": "not-an-email",
	})
	require.Equal(t, http.StatusUnprocessableEntity, r.status)
	assert.False(t, r.body.Success)
	require.Len(t, r.body.Errors, 3)
	assert.Contains(t, string(r.body.Errors[0]), "email")
	assert.Contains(t, string(r.body.Errors[1]), "password")
	assert.Contains(t, string(r.body.Errors[2]), "username")

	r = h.do(http.MethodPost, "/api/v1/users/register", nil, func(req *http.Request) {
		req.Body = io.NopCloser(strings.NewReader("{not json"))
	})
	assert.Equal(t, http.StatusUnprocessableEntity, r.status)
}

func TestLogin_SetsCookiesAndBody(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "a@x.com")

	r := h.do(http.MethodPost, "/api/v1/users/login", map[string]string{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusOK, r.status)
	assert.True(t, r.body.Success)

	var a authResponse
	require.NoError(t, json.Unmarshal(r.body.Data, &a))
	assert.NotEmpty(t, a.AccessToken)
	assert.NotEmpty(t, a.RefreshToken)
	assert.NotContains(t, string(r.body.Data), "passwordHash")

	byName := map[string]*http.Cookie{}
	for _, c := range r.cookies {
		byName[c.Name] = c
	}
	require.Contains(t, byName, common.AccessTokenCookieName)
	require.Contains(t, byName, common.RefreshTokenCookieName)
	assert.True(t, byName[common.AccessTokenCookieName].HttpOnly)
	assert.True(t, byName[common.AccessTokenCookieName].Secure)
	assert.Equal(t, a.RefreshToken, byName[common.RefreshTokenCookieName].Value)
}

func TestLogin_WrongPasswordAndUnknownUserMatch(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "a@x.com")

	wrong := h.do(http.MethodPost, "/api/v1/users/login", map[string]string{"email": "a@x.com", "password": "nope"})
	unknown := h.do(http.MethodPost, "/api/v1/users/login", map[string]string{"email": "b@x.com", "password": "pw"})

	assert.Equal(t, http.StatusUnauthorized, wrong.status)
	assert.Equal(t, wrong.status, unknown.status)
	assert.Equal(t, wrong.body.Message, unknown.body.Message)
}

func TestCurrentUser_TokenSources(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "a@x.com")
	a := h.login("a@x.com")

	r := h.do(http.MethodGet, "/api/v1/users/current-user", nil, bearerAuth(a.AccessToken))
	assert.Equal(t, http.StatusOK, r.status)

	r = h.do(http.MethodGet, "/api/v1/users/current-user", nil, withCookie(common.AccessTokenCookieName, a.AccessToken))
	assert.Equal(t, http.StatusOK, r.status)

	r = h.do(http.MethodGet, "/api/v1/users/current-user", nil)
	assert.Equal(t, http.StatusUnauthorized, r.status)
	assert.Equal(t, "unauthorized request", r.body.Message)

	r = h.do(http.MethodGet, "/api/v1/users/current-user", nil, bearerAuth(a.RefreshToken))
	assert.Equal(t, http.StatusUnauthorized, r.status)
	assert.Equal(t, "invalid or expired token", r.body.Message)
}

func TestRefreshToken_RotationOverHTTP(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "a@x.com")
	a := h.login("a@x.com")

	r := h.do(http.MethodPost, "/api/v1/users/refresh-token", map[string]string{"refreshToken": a.RefreshToken})
	require.Equal(t, http.StatusOK, r.status)
	var next authResponse
	require.NoError(t, json.Unmarshal(r.body.Data, &next))

	r = h.do(http.MethodPost, "/api/v1/users/refresh-token", map[string]string{"refreshToken": a.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, r.status)

	// cookie wins over body
	r = h.do(http.MethodPost, "/api/v1/users/refresh-token", map[string]string{"refreshToken": "garbage"},
		withCookie(common.RefreshTokenCookieName, next.RefreshToken))
	assert.Equal(t, http.StatusOK, r.status)

	r = h.do(http.MethodPost, "/api/v1/users/refresh-token", nil)
	assert.Equal(t, http.StatusUnauthorized, r.status)
}

func TestLogout_ClearsCookiesAndSession(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "a@x.com")
	a := h.login("a@x.com")

	r := h.do(http.MethodPost, "/api/v1/users/logout", nil, bearerAuth(a.AccessToken))
	require.Equal(t, http.StatusOK, r.status)
	for _, c := range r.cookies {
		assert.Empty(t, c.Value)
		assert.Less(t, c.MaxAge, 0)
	}

	r = h.do(http.MethodPost, "/api/v1/users/refresh-token", map[string]string{"refreshToken": a.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, r.status)
}

func TestVerifyEmail_OverHTTP(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "a@x.com")
	tok := h.outbox.lastToken(t)

	r := h.do(http.MethodGet, "/api/v1/users/verify-email/"+tok, nil)
	assert.Equal(t, http.StatusOK, r.status)

	r = h.do(http.MethodGet, "/api/v1/users/verify-email/"+tok, nil)
	assert.Equal(t, http.StatusBadRequest, r.status)
	assert.Equal(t, common.ErrTokenInvalidOrExpired.Error(), r.body.Message)

	a := h.login("a@x.com")
	r = h.do(http.MethodPost, "/api/v1/users/resend-email-verification", nil, bearerAuth(a.AccessToken))
	assert.Equal(t, http.StatusConflict, r.status)
}

func TestPasswordFlows_OverHTTP(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "a@x.com")

	known := h.do(http.MethodPost, "/api/v1/users/forgot-password", map[string]string{"email": "a@x.com"})
	unknown := h.do(http.MethodPost, "/api/v1/users/forgot-password", map[string]string{"email": "z@x.com"})
	assert.Equal(t, http.StatusOK, known.status)
	assert.Equal(t, known.status, unknown.status)
	assert.Equal(t, known.body.Message, unknown.body.Message)

	tok := h.outbox.lastToken(t)
	r := h.do(http.MethodPost, "/api/v1/users/reset-password/"+tok, map[string]string{"newPassword": "pw2"})
	require.Equal(t, http.StatusOK, r.status)

	r = h.do(http.MethodPost, "/api/v1/users/login", map[string]string{"email": "a@x.com", "password": "pw2"})
	require.Equal(t, http.StatusOK, r.status)
	var a authResponse
	require.NoError(t, json.Unmarshal(r.body.Data, &a))

	r = h.do(http.MethodPost, "/api/v1/users/change-password",
		map[string]string{"oldPassword": "wrong", "newPassword": "pw"}, bearerAuth(a.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, r.status)

	r = h.do(http.MethodPost, "/api/v1/users/change-password",
		map[string]string{"oldPassword": "pw2", "newPassword": "pw"}, bearerAuth(a.AccessToken))
	assert.Equal(t, http.StatusOK, r.status)
}

func TestProjects_RoleGating(t *testing.T) {
	h := newHarness(t)
	h.register("alice", "a@x.com")
	bobID := h.register("bob", "b@x.com")
	alice := bearerAuth(h.login("a@x.com").AccessToken)
	bob := bearerAuth(h.login("b@x.com").AccessToken)

	h.expectTx()
	r := h.do(http.MethodPost, "/api/v1/projects", map[string]string{"name": "Apollo"}, alice)
	require.Equal(t, http.StatusCreated, r.status)
	var p struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(r.body.Data, &p))
	base := "/api/v1/projects/" + p.ID

	r = h.do(http.MethodGet, base, nil, bob)
	assert.Equal(t, http.StatusForbidden, r.status)
	assert.Equal(t, common.ErrNotAMember.Error(), r.body.Message)

	r = h.do(http.MethodPost, base+"/members", map[string]string{"email": "b@x.com", "role": "superuser"}, alice)
	assert.Equal(t, http.StatusUnprocessableEntity, r.status)

	r = h.do(http.MethodPost, base+"/members", map[string]string{"email": "b@x.com", "role": "member"}, alice)
	require.Equal(t, http.StatusCreated, r.status)

	r = h.do(http.MethodGet, base, nil, bob)
	assert.Equal(t, http.StatusOK, r.status)

	r = h.do(http.MethodGet, base+"/members", nil, bob)
	assert.Equal(t, http.StatusOK, r.status)

	r = h.do(http.MethodDelete, base, nil, bob)
	assert.Equal(t, http.StatusForbidden, r.status)
	assert.Equal(t, common.ErrInsufficientPermission.Error(), r.body.Message)

	r = h.do(http.MethodPut, base, map[string]string{"name": "Hijacked"}, bob)
	assert.Equal(t, http.StatusForbidden, r.status)

	r = h.do(http.MethodPut, base, map[string]string{"name": ""}, alice)
	assert.Equal(t, http.StatusUnprocessableEntity, r.status)

	r = h.do(http.MethodPut, base, map[string]string{"name": "Artemis", "description": "crewed"}, alice)
	require.Equal(t, http.StatusOK, r.status)
	assert.Contains(t, string(r.body.Data), `"name":"Artemis"`)

	r = h.do(http.MethodGet, "/api/v1/projects/not-a-uuid", nil, alice)
	assert.Equal(t, http.StatusForbidden, r.status)

	r = h.do(http.MethodPut, base+"/members/"+bobID, map[string]string{"role": "project_admin"}, alice)
	assert.Equal(t, http.StatusOK, r.status)

	r = h.do(http.MethodGet, "/api/v1/projects", nil, bob)
	require.Equal(t, http.StatusOK, r.status)
	assert.Contains(t, string(r.body.Data), `"role":"project_admin"`)

	r = h.do(http.MethodDelete, base+"/members/"+bobID, nil, alice)
	assert.Equal(t, http.StatusOK, r.status)

	r = h.do(http.MethodDelete, base, nil, alice)
	assert.Equal(t, http.StatusOK, r.status)

	r = h.do(http.MethodGet, "/api/v1/projects", nil)
	assert.Equal(t, http.StatusUnauthorized, r.status)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	r := h.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, r.status)

	resp, err := h.ts.Client().Get(h.ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), "taskcamp_http_requests_total")
}
