package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// Request is the transport-neutral view of an inbound request that token
// extraction and handlers work on.
type Request struct {
	Headers http.Header
	Cookies map[string]string
	Body    []byte
	Params  map[string]string
}

// NewRequest snapshots r. The body is read once and put back so later
// readers still see it.
func NewRequest(r *http.Request) (*Request, error) {
	req := &Request{
		Headers: r.Header,
		Cookies: make(map[string]string),
		Params:  make(map[string]string),
	}

	for _, c := range r.Cookies() {
		req.Cookies[c.Name] = c.Value
	}

	if rc := chi.RouteContext(r.Context()); rc != nil {
		for i, k := range rc.URLParams.Keys {
			req.Params[k] = rc.URLParams.Values[i]
		}
	}

	if r.Body != nil {
		b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(b))
		req.Body = b
	}
	return req, nil
}

// ExtractAccessToken returns the access token from the accessToken cookie
// or, failing that, from an "Authorization: Bearer" header.
func ExtractAccessToken(req *Request) string {
	if v := req.Cookies[common.AccessTokenCookieName]; v != "" {
		return v
	}
	return bearer(req.Headers.Get("Authorization"))
}

// ExtractRefreshToken returns the refresh token from the refreshToken
// cookie or, failing that, from the refreshToken field of a JSON body.
func ExtractRefreshToken(req *Request) string {
	if v := req.Cookies[common.RefreshTokenCookieName]; v != "" {
		return v
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if len(req.Body) > 0 && json.Unmarshal(req.Body, &body) == nil {
		return strings.TrimSpace(body.RefreshToken)
	}
	return ""
}

func bearer(h string) string {
	parts := strings.SplitN(strings.TrimSpace(h), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Decode unmarshals the body into v. An empty body decodes as {}.
func (r *Request) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: malformed request body", common.ErrValidation)
	}
	return nil
}
