// Package notify delivers out-of-band messages such as verification and
// password reset links.
package notify

import (
	"context"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/taskcamp/internal/logging"
)

// Kind names a message template.
type Kind string

const (
	KindEmailVerification Kind = "email_verification"
	KindPasswordReset     Kind = "password_reset"
)

// Message is one outbound notification. Link carries a plain single-use
// token and must not be logged verbatim.
type Message struct {
	Kind     Kind   `json:"kind"`
	To       string `json:"to"`
	Username string `json:"username"`
	Link     string `json:"link"`
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Links builds the single-use links sent to users.
type Links struct {
	BaseURL string
}

func (l Links) VerifyEmail(token string) string {
	return l.join("verify-email", token)
}

func (l Links) ResetPassword(token string) string {
	return l.join("reset-password", token)
}

func (l Links) join(action, token string) string {
	return strings.TrimRight(l.BaseURL, "/") + "/" + action + "/" + url.PathEscape(token)
}

// LogNotifier writes notifications to the log with the token redacted.
// It is the default when no outbox is configured.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(l logging.Logger) *LogNotifier {
	return &LogNotifier{logger: l.With("module", "notify")}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.logger.Info(ctx, "notification", "kind", msg.Kind, "to", msg.To, "link", redact(msg.Link))
	return nil
}

// redact drops the last path segment, which is the token.
func redact(link string) string {
	i := strings.LastIndex(link, "/")
	if i < 0 {
		return "[redacted]"
	}
	return link[:i+1] + "[redacted]"
}

// Deliver sends msg and logs a failure instead of returning it. The token
// behind the message is already persisted, so the user can ask for a resend.
func Deliver(ctx context.Context, n Notifier, l logging.Logger, msg Message) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, msg); err != nil {
		l.Warn(ctx, "notification delivery failed", "kind", msg.Kind, "to", msg.To, "error", err)
	}
}
