package session

import "context"

// Session is the authenticated credential pair handed back by the identity
// service, plus the principal it belongs to.
//
// ExpiresAt is deliberately loosely typed: the hosted identity service has
// returned unix seconds, epoch milliseconds, numeric strings, and date
// strings across API revisions. Normalization happens in the validity
// package, never here.
type Session struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	ExpiresAt    any
}

// Provider is the external identity/session service. Both calls are opaque
// network operations; a (nil, nil) return means "no session" and is not an
// error.
type Provider interface {
	GetSession(ctx context.Context) (*Session, error)
	RefreshSession(ctx context.Context) (*Session, error)
}
