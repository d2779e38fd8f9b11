package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// Authenticator resolves bearer tokens to caller origins
type Authenticator struct {
	accounts map[string]domain.AccountID
	roots    map[domain.AccountID]bool
}

// NewAuthenticator creates an Authenticator from a token -> account table.
// Accounts listed in roots authenticate with a root origin.
func NewAuthenticator(tokens map[string]domain.AccountID, roots []domain.AccountID) *Authenticator {
	a := &Authenticator{
		accounts: make(map[string]domain.AccountID, len(tokens)),
		roots:    make(map[domain.AccountID]bool, len(roots)),
	}
	for token, account := range tokens {
		a.accounts[token] = account
	}
	for _, r := range roots {
		a.roots[r] = true
	}
	return a
}

// Origin returns the origin of the token's account
func (a *Authenticator) Origin(token string) (domain.Origin, bool) {
	account, ok := a.accounts[strings.TrimPrefix(token, "Bearer ")]
	if !ok {
		return domain.Origin{}, false
	}
	if a.roots[account] {
		return domain.Root(account), true
	}
	return domain.Signed(account), true
}

// AuthInterceptor returns a gRPC unary server interceptor that validates
// the authorization token from request metadata.
// If the token is missing or unknown, it returns status.Unauthenticated.
// If valid, it calls the handler with the caller's origin in the context.
func AuthInterceptor(auth *Authenticator) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}

		origin, ok := auth.Origin(authHeaders[0])
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		return handler(domain.WithOrigin(ctx, origin), req)
	}
}
