package auth

import (
	"crypto/subtle"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/taskfolio/realtime/internal/ierr"
)

type Claims struct {
	jwt.RegisteredClaims
	AuthorizedProjects []string `json:"authorizedProjects,omitempty"`
}

type Authentication struct {
	Subject            string
	AuthorizedProjects []string
	IsService          bool
}

func (a *Authentication) IsAuthorized(projectId string) bool {
	if a.Subject == "" {
		return false
	}

	if a.IsService {
		return true
	}

	return slices.Contains(a.AuthorizedProjects, projectId)
}

type Authenticator struct {
	secret    []byte
	apiKeys   []string
	jwtParser *jwt.Parser
}

func NewAuthenticator(secret string, apiKeys []string) *Authenticator {
	jwtParser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30*time.Second),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithAudience("realtime"),
	)

	return &Authenticator{
		secret:    []byte(secret),
		apiKeys:   apiKeys,
		jwtParser: jwtParser,
	}
}

func (a *Authenticator) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("unexpected signing method"))
	}

	return a.secret, nil
}

// AuthenticateJWT validates a client token. The subject claim is the user id
// every presence operation trusts; it is never taken from a client payload.
func (a *Authenticator) AuthenticateJWT(tokenString string) (*Authentication, error) {
	claims := Claims{}

	_, err := a.jwtParser.ParseWithClaims(tokenString, &claims, a.keyFunc)
	if err != nil {
		return nil, ierr.New(ierr.ErrorCodeUnauthenticated, err)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid subject claim"))
	}

	if len(claims.AuthorizedProjects) == 0 {
		return nil, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("authorized projects cannot be empty"))
	}

	return &Authentication{
		Subject:            subject,
		AuthorizedProjects: claims.AuthorizedProjects,
		IsService:          false,
	}, nil
}

// AuthenticateAPIKey validates a server-to-server key used by the event
// producers (the CRUD backend and internal services).
func (a *Authenticator) AuthenticateAPIKey(apiKey string) (*Authentication, error) {
	for _, key := range a.apiKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
			return &Authentication{
				Subject:   "service",
				IsService: true,
			}, nil
		}
	}

	return nil, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("invalid api key"))
}
