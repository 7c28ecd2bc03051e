package service

import (
	"context"
	"io"
	"time"

	"github.com/purplix/backend/internal/purplix/doh"
	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/internal/purplix/geoip"
	"github.com/purplix/backend/internal/purplix/notify"
	"github.com/purplix/backend/pkg/jwtx"
)

// Collaborators the services call out to. Production wiring uses the
// concrete clients in the sibling packages; tests pass fakes.

type CaptchaVerifier interface {
	Verify(ctx context.Context, token string) bool
}

type GeoLocator interface {
	Lookup(ctx context.Context, ip string) (geoip.Location, error)
}

type TXTResolver interface {
	QueryTXT(ctx context.Context, name string) (doh.Response, error)
}

type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	URL(key string) string
}

type Notifier interface {
	Notify(ctx context.Context, u domain.User, kind domain.NotificationKind, msg notify.Message)
	Email(ctx context.Context, to, subject, body string)
}

// URLValidator vets webhook targets before they are saved.
type URLValidator interface {
	ValidateURL(ctx context.Context, raw string) error
}

// TokenIssuer signs and verifies session tokens. *jwtx.KeyManager
// implements it.
type TokenIssuer interface {
	Issue(userID, sessionID string, issuedAt, expiresAt time.Time) (string, error)
	Verify(token string) (*jwtx.Claims, error)
}

type allowAllCaptcha struct{}

func (allowAllCaptcha) Verify(context.Context, string) bool { return true }

func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now().UTC()
}
