package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"messaging-service/internal/apperr"
)

const validateTokenMethod = "/auth.AuthService/ValidateToken"

var errInvalidToken = errors.New("invalid token")

// AuthClient validates bearer tokens against auth-service.
type AuthClient struct {
	conn grpc.ClientConnInterface
}

// NewAuthClient constructs the wrapper.
func NewAuthClient(conn grpc.ClientConnInterface) *AuthClient {
	return &AuthClient{conn: conn}
}

// ValidateToken verifies the token and returns the authenticated user id.
func (a *AuthClient) ValidateToken(ctx context.Context, token string) (int64, error) {
	resp := new(wrapperspb.Int64Value)
	if err := a.conn.Invoke(ctx, validateTokenMethod, wrapperspb.String(token), resp); err != nil {
		switch status.Code(err) {
		case codes.Unauthenticated, codes.InvalidArgument, codes.NotFound, codes.PermissionDenied:
			return 0, errInvalidToken
		}
		return 0, apperr.Unavailable("auth service unavailable", err)
	}
	if resp.GetValue() <= 0 {
		return 0, errInvalidToken
	}
	return resp.GetValue(), nil
}
