// Package events publishes auth lifecycle events for other services.
// Publishing is best effort: callers log failures and carry on.
package events

import (
	"context"
	"time"
)

// Event types. The NATS subject is "auth." followed by the type.
const (
	TypeUserRegistered    = "user.registered"
	TypeUserLoggedIn      = "user.logged_in"
	TypeUserLoggedOut     = "user.logged_out"
	TypeRefreshTokenReuse = "refresh_token.reused"
)

// Event never carries passwords, hashes or token values.
type Event struct {
	Type   string            `json:"type"`
	UserID string            `json:"user_id"`
	At     time.Time         `json:"at"`
	Attrs  map[string]string `json:"attrs,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
