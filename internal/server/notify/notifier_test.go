package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/dmitrijs2005/taskcamp/internal/logging"
	"github.com/stretchr/testify/assert"
)

func TestLinks(t *testing.T) {
	l := Links{BaseURL: "https://tc.example/api/v1/users/"}

	assert.Equal(t, "https://tc.example/api/v1/users/verify-email/abc123", l.VerifyEmail("abc123"))
	assert.Equal(t, "https://tc.example/api/v1/users/reset-password/abc123", l.ResetPassword("abc123"))
	assert.Equal(t, "https://tc.example/api/v1/users/verify-email/a%2Fb", l.VerifyEmail("a/b"), "token stays one segment")
}

func newBufferLogger() (logging.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil))), &buf
}

func TestLogNotifier_RedactsToken(t *testing.T) {
	l, buf := newBufferLogger()
	n := NewLogNotifier(l)

	err := n.Notify(context.Background(), Message{Kind: KindPasswordReset, To: "a@x.com", Link: "https://tc.example/reset-password/secret-token"})
	assert.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "secret-token")
	assert.Contains(t, out, "https://tc.example/reset-password/[redacted]")
	assert.Contains(t, out, "kind=password_reset")
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, Message) error { return errors.New("smtp down") }

func TestDeliver_SwallowsErrors(t *testing.T) {
	l, buf := newBufferLogger()

	Deliver(context.Background(), failingNotifier{}, l, Message{Kind: KindEmailVerification, To: "a@x.com"})
	Deliver(context.Background(), nil, l, Message{})

	assert.True(t, strings.Contains(buf.String(), "notification delivery failed"))
	assert.Contains(t, buf.String(), "smtp down")
}
