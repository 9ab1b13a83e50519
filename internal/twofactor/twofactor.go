// Package twofactor implements the TwoFactorProviders component (spec
// section 4.6): a closed set of six second-factor providers behind one
// uniform Provider contract, dispatched by TwoFactorKind rather than
// open dynamic dispatch (§9's guidance on the provider set being closed).
package twofactor

import (
	"context"
	"encoding/json"

	"github.com/vaultkeep/server/internal/model"
)

// VerifyError wraps a verification failure with the audit EventType the
// caller should log, mirroring the source provider's "error carrying an
// ErrorEvent" contract.
type VerifyError struct {
	Err   error
	Event model.EventType
}

func (e *VerifyError) Error() string { return e.Err.Error() }
func (e *VerifyError) Unwrap() error { return e.Err }

// Provider is the uniform contract every 2FA provider implements: Present
// produces whatever challenge material the client needs (a secret, a
// WebAuthn credential request, a Duo signed request, ...), Verify checks
// a client-submitted token against the provider's persisted state.
type Provider interface {
	Kind() model.TwoFactorKind
	// Present returns a client-facing challenge payload. tf is nil when
	// the provider has not yet been enabled for the user (e.g. the
	// get-authenticator setup flow).
	Present(ctx context.Context, user *model.User, tf *model.TwoFactor) (json.RawMessage, error)
	// Verify checks token against tf's persisted state for user, updating
	// and persisting tf as needed (e.g. TOTP's last_used watermark).
	Verify(ctx context.Context, user *model.User, tf *model.TwoFactor, token string, clientIP string) error
}

// Registry dispatches a TwoFactorKind to its Provider. The provider set
// is closed — looking up an unregistered kind is a caller bug, not a
// runtime extension point.
type Registry struct {
	providers map[model.TwoFactorKind]Provider
}

// NewRegistry builds a Registry from the given providers, indexed by
// their own Kind().
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[model.TwoFactorKind]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Kind()] = p
	}
	return r
}

// Provider looks up the provider for kind, ok is false if unregistered.
func (r *Registry) Provider(kind model.TwoFactorKind) (Provider, bool) {
	p, ok := r.providers[kind]
	return p, ok
}
