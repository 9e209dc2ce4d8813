package core

import (
	"context"

	"meteoalert/internal/types"
)

// Authenticator resolves a bearer token into the acting user. Implementations
// return auth_token_expired for expired tokens and auth_token_invalid for
// anything else they cannot verify.
type Authenticator interface {
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}

// HealthProbe checks one dependency for GET /health.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// ProbeFunc adapts a ping function into a HealthProbe.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) error
}

func (p ProbeFunc) Name() string                    { return p.ProbeName }
func (p ProbeFunc) Check(ctx context.Context) error { return p.Fn(ctx) }
