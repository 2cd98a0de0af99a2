package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/booking"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	authorizationHeader = "authorization"
	bearerPrefix        = "bearer "
	healthServicePrefix = "/grpc.health.v1.Health/"
	defaultAdminRole    = "admin"

	errorUnauthenticated = "unauthenticated"
)

var (
	ErrInvalidAuthConfig = errors.New("invalid grpc auth config")
	errMissingToken      = errors.New("missing bearer token")
	errInvalidToken      = errors.New("invalid session token")
)

// AuthConfig carries the session token settings shared with the HTTP surface.
type AuthConfig struct {
	SigningKey []byte
	Issuer     string
	AdminRole  string
}

// Authenticator derives the caller of every booking call from a signed
// session token sent as "authorization: Bearer <token>" metadata.
type Authenticator struct {
	signingKey []byte
	issuer     string
	adminRole  string
}

// NewAuthenticator validates config and returns an Authenticator.
func NewAuthenticator(config AuthConfig) (*Authenticator, error) {
	if len(config.SigningKey) == 0 {
		return nil, fmt.Errorf("%w: signing key is empty", ErrInvalidAuthConfig)
	}
	if strings.TrimSpace(config.Issuer) == "" {
		return nil, fmt.Errorf("%w: issuer is empty", ErrInvalidAuthConfig)
	}
	adminRole := strings.TrimSpace(config.AdminRole)
	if adminRole == "" {
		adminRole = defaultAdminRole
	}
	return &Authenticator{signingKey: config.SigningKey, issuer: config.Issuer, adminRole: adminRole}, nil
}

// UnaryInterceptor rejects calls without a valid token and stores the
// authenticated requestor in the handler context. Health checks pass through.
func (authenticator *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, request any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, request)
		}
		requestor, err := authenticator.authenticate(ctx)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, errorUnauthenticated)
		}
		return handler(contextWithRequestor(ctx, requestor), request)
	}
}

func (authenticator *Authenticator) authenticate(ctx context.Context) (booking.Requestor, error) {
	incoming, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return booking.Requestor{}, errMissingToken
	}
	values := incoming.Get(authorizationHeader)
	if len(values) == 0 {
		return booking.Requestor{}, errMissingToken
	}
	header := strings.TrimSpace(values[0])
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return booking.Requestor{}, errMissingToken
	}
	claims, err := authenticator.parse(strings.TrimSpace(header[len(bearerPrefix):]))
	if err != nil {
		return booking.Requestor{}, err
	}
	userID, err := booking.NewUserID(claims.GetUserID())
	if err != nil {
		return booking.Requestor{}, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	requestor := booking.Requestor{UserID: userID}
	for _, role := range claims.GetUserRoles() {
		if role == authenticator.adminRole {
			requestor.Admin = true
			break
		}
	}
	return requestor, nil
}

func (authenticator *Authenticator) parse(raw string) (*sessionvalidator.Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &sessionvalidator.Claims{}, func(token *jwt.Token) (any, error) {
		return authenticator.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(authenticator.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	claims, ok := token.Claims.(*sessionvalidator.Claims)
	if !ok || !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

type requestorContextKey struct{}

func contextWithRequestor(ctx context.Context, requestor booking.Requestor) context.Context {
	return context.WithValue(ctx, requestorContextKey{}, requestor)
}

// requestorFromContext returns the caller stored by the interceptor.
func requestorFromContext(ctx context.Context) (booking.Requestor, error) {
	requestor, ok := ctx.Value(requestorContextKey{}).(booking.Requestor)
	if !ok {
		return booking.Requestor{}, status.Error(codes.Unauthenticated, errorUnauthenticated)
	}
	return requestor, nil
}
