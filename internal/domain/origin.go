package domain

import (
	"context"
)

// OriginKind describes who dispatched a call
type OriginKind string

const (
	// OriginSigned is an ordinary account
	OriginSigned OriginKind = "SIGNED"
	// OriginRoot is a configured superuser
	OriginRoot OriginKind = "ROOT"
	// OriginCommittee is an approved committee proposal being executed
	OriginCommittee OriginKind = "COMMITTEE"
)

// Origin is the authenticated caller of an operation
type Origin struct {
	Caller AccountID
	Kind   OriginKind
}

// Signed returns a signed origin for the account
func Signed(account AccountID) Origin {
	return Origin{Caller: account, Kind: OriginSigned}
}

// Root returns a root origin for the account
func Root(account AccountID) Origin {
	return Origin{Caller: account, Kind: OriginRoot}
}

// Committee returns the origin used when executing an approved proposal on
// behalf of its proposer
func Committee(proposer AccountID) Origin {
	return Origin{Caller: proposer, Kind: OriginCommittee}
}

// EnsureSigned returns the caller of any authenticated origin
func (o Origin) EnsureSigned() (AccountID, error) {
	if o.Caller == "" {
		return "", ErrBadOrigin
	}
	return o.Caller, nil
}

// EnsureRoot fails unless the origin is root
func (o Origin) EnsureRoot() error {
	if o.Kind != OriginRoot {
		return ErrBadOrigin
	}
	return nil
}

// EnsureAdmin fails unless the origin is root or the committee
func (o Origin) EnsureAdmin() error {
	if o.Kind != OriginRoot && o.Kind != OriginCommittee {
		return ErrBadOrigin
	}
	return nil
}

type originKey struct{}

// WithOrigin stores the origin in the context
func WithOrigin(ctx context.Context, o Origin) context.Context {
	return context.WithValue(ctx, originKey{}, o)
}

// OriginFromContext returns the origin stored by WithOrigin
func OriginFromContext(ctx context.Context) (Origin, bool) {
	o, ok := ctx.Value(originKey{}).(Origin)
	return o, ok
}
