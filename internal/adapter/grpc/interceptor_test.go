package grpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

func testAuthenticator() *Authenticator {
	return NewAuthenticator(
		map[string]domain.AccountID{"alice-token": "alice", "sudo-token": "sudo"},
		[]domain.AccountID{"sudo"},
	)
}

func TestAuthenticator_Origin(t *testing.T) {
	auth := testAuthenticator()

	o, ok := auth.Origin("alice-token")
	require.True(t, ok)
	assert.Equal(t, domain.Signed("alice"), o)

	o, ok = auth.Origin("Bearer sudo-token")
	require.True(t, ok)
	assert.Equal(t, domain.Root("sudo"), o)
	assert.NoError(t, o.EnsureRoot())

	_, ok = auth.Origin("Bearer ")
	assert.False(t, ok)
}

func TestAuthInterceptor(t *testing.T) {
	interceptor := AuthInterceptor(testAuthenticator())
	withAuth := func(pairs ...string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs(pairs...))
	}

	tests := []struct {
		name    string
		ctx     context.Context
		origin  *domain.Origin
		wantMsg string
	}{
		{"signed caller", withAuth("authorization", "alice-token"), &domain.Origin{Caller: "alice", Kind: domain.OriginSigned}, ""},
		{"root caller", withAuth("authorization", "Bearer sudo-token"), &domain.Origin{Caller: "sudo", Kind: domain.OriginRoot}, ""},
		{"unknown token", withAuth("authorization", "wrong-token"), nil, "invalid token"},
		{"no metadata", context.Background(), nil, "missing metadata"},
		{"no authorization header", withAuth("other-header", "value"), nil, "missing authorization header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *domain.Origin
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				o, ok := domain.OriginFromContext(ctx)
				require.True(t, ok, "handler must see the caller")
				seen = &o
				return req, nil
			}
			info := &grpc.UnaryServerInfo{FullMethod: "/" + ServiceName + "/GetOverview"}

			resp, err := interceptor(tt.ctx, "req", info, handler)

			if tt.origin != nil {
				require.NoError(t, err)
				assert.Equal(t, "req", resp)
				assert.Equal(t, tt.origin, seen)
				return
			}
			assert.Nil(t, seen, "handler must not run")
			st, ok := status.FromError(err)
			require.True(t, ok, "error should be a gRPC status")
			assert.Equal(t, codes.Unauthenticated, st.Code())
			assert.Contains(t, st.Message(), tt.wantMsg)
		})
	}
}
