package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAccessToken(t *testing.T) {
	tests := []struct {
		name    string
		cookies map[string]string
		auth    string
		want    string
	}{
		{"cookie wins", map[string]string{common.AccessTokenCookieName: "c"}, "Bearer h", "c"},
		{"bearer header", nil, "Bearer h", "h"},
		{"case insensitive scheme", nil, "bearer  h ", "h"},
		{"other scheme", nil, "Basic abc", ""},
		{"nothing", nil, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &Request{Headers: http.Header{}, Cookies: tt.cookies}
			if tt.auth != "" {
				req.Headers.Set("Authorization", tt.auth)
			}
			if req.Cookies == nil {
				req.Cookies = map[string]string{}
			}
			assert.Equal(t, tt.want, ExtractAccessToken(req))
		})
	}
}

func TestExtractRefreshToken(t *testing.T) {
	req := &Request{
		Cookies: map[string]string{common.RefreshTokenCookieName: "cookie"},
		Body:    []byte(`{"refreshToken":"body"}`),
	}
	assert.Equal(t, "cookie", ExtractRefreshToken(req))

	req.Cookies = map[string]string{}
	assert.Equal(t, "body", ExtractRefreshToken(req))

	req.Body = []byte(`not json`)
	assert.Equal(t, "", ExtractRefreshToken(req))
}

func TestNewRequest_KeepsBodyReadable(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"a":1}`))
	r.AddCookie(&http.Cookie{Name: "k", Value: "v"})

	req, err := NewRequest(r)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(req.Body))
	assert.Equal(t, "v", req.Cookies["k"])

	again, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(again))
}

func TestProblem(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{common.ErrTokenMissing, http.StatusUnauthorized},
		{fmt.Errorf("%w: bad sig", common.ErrTokenInvalid), http.StatusUnauthorized},
		{common.ErrTokenExpired, http.StatusUnauthorized},
		{common.ErrRefreshTokenStale, http.StatusUnauthorized},
		{common.ErrInvalidCredentials, http.StatusUnauthorized},
		{common.ErrNotAMember, http.StatusForbidden},
		{common.ErrInsufficientPermission, http.StatusForbidden},
		{common.ErrTokenInvalidOrExpired, http.StatusBadRequest},
		{common.ErrNotFound, http.StatusNotFound},
		{common.ErrDuplicateUser, http.StatusConflict},
		{common.ErrAlreadyVerified, http.StatusConflict},
		{fmt.Errorf("%w: invalid role", common.ErrValidation), http.StatusUnprocessableEntity},
		{common.ErrInternal, http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := Problem(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}

	_, invalid := Problem(common.ErrTokenInvalid)
	_, expired := Problem(common.ErrTokenExpired)
	assert.Equal(t, invalid, expired)

	_, msg := Problem(errors.New("pq: connection refused"))
	assert.NotContains(t, msg, "pq")
}
