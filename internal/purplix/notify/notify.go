// Package notify delivers user notifications by email, ntfy push and
// webhook. Every delivery is asynchronous and best effort: failures are
// logged and never reach the caller.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/pkg/slogx"
)

const deliveryTimeout = time.Minute

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Pusher interface {
	Push(ctx context.Context, topic string, p Push) error
}

type Poster interface {
	PostJSON(ctx context.Context, target string, payload any) error
}

// Message is rendered per channel. Payload is the webhook body.
type Message struct {
	Subject  string
	Body     string
	Tags     string
	Priority string
	Payload  any
}

// Notifier fans a Message out to the channels a user enabled. Any channel
// may be nil, in which case it is skipped.
type Notifier struct {
	Mailer Mailer
	Pusher Pusher
	Poster Poster

	wg sync.WaitGroup
}

// Notify delivers msg to u for kind according to u's preferences.
func (n *Notifier) Notify(ctx context.Context, u domain.User, kind domain.NotificationKind, msg Message) {
	if n == nil {
		return
	}
	prefs := u.Notifications

	if prefs.WantsEmail(kind) {
		n.Email(ctx, u.Email, msg.Subject, msg.Body)
	}
	if topic, ok := prefs.Push[kind]; ok && topic != "" && n.Pusher != nil {
		n.goDeliver(ctx, "push", func(ctx context.Context) error {
			return n.Pusher.Push(ctx, topic, Push{
				Title:    msg.Subject,
				Message:  msg.Body,
				Tags:     msg.Tags,
				Priority: msg.Priority,
			})
		})
	}
	if n.Poster != nil {
		payload := msg.Payload
		if payload == nil {
			payload = map[string]string{"subject": msg.Subject, "body": msg.Body}
		}
		for _, hook := range prefs.Webhooks[kind] {
			n.goDeliver(ctx, "webhook", func(ctx context.Context) error {
				return n.Poster.PostJSON(ctx, hook, payload)
			})
		}
	}
}

// Email sends a single mail regardless of preferences. Used for account
// mail such as address verification.
func (n *Notifier) Email(ctx context.Context, to, subject, body string) {
	if n == nil || n.Mailer == nil || to == "" {
		return
	}
	n.goDeliver(ctx, "email", func(ctx context.Context) error {
		return n.Mailer.Send(ctx, to, subject, body)
	})
}

// Wait blocks until in-flight deliveries finish.
func (n *Notifier) Wait() {
	if n != nil {
		n.wg.Wait()
	}
}

func (n *Notifier) goDeliver(ctx context.Context, channel string, fn func(context.Context) error) {
	// Detached from the request so delivery survives the response.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer cancel()
		if err := fn(ctx); err != nil {
			slogx.FromContext(ctx).Warn("notification delivery failed",
				slog.String("channel", channel), slog.Any("err", err))
		}
	}()
}
