package session

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/example/phoneauth/internal/apperror"
	"github.com/example/phoneauth/internal/models"
	"github.com/example/phoneauth/internal/repository"
)

// State is where a request ends up in validation.
type State int

const (
	NoToken State = iota
	TokenInvalid
	SessionMalformed
	IdentityNotFound
	IdentityInactive
	IdentityRestricted
	Authenticated
)

var stateNames = [...]string{
	NoToken:            "no_token",
	TokenInvalid:       "token_invalid",
	SessionMalformed:   "session_malformed",
	IdentityNotFound:   "identity_not_found",
	IdentityInactive:   "identity_inactive",
	IdentityRestricted: "identity_restricted",
	Authenticated:      "authenticated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// User-facing rejection messages. Token failures share one message; the two
// account-status failures stay distinct.
const (
	MsgUnauthorized     = "Unauthorized access"
	MsgInvalidToken     = "Invalid or expired token"
	MsgMalformedSession = "Invalid session format"
	MsgUserNotFound     = "User not found"
	MsgDeactivated      = "Your account has been deactivated. Please contact admin for assistance."
	MsgRestricted       = "Your account access has been restricted. Please contact admin for assistance."
)

// Principal is the authenticated caller.
type Principal struct {
	IdentityID uuid.UUID           `json:"authId"`
	UserID     uuid.UUID           `json:"userId"`
	Type       models.IdentityType `json:"type"`
}

// IsAdmin reports whether the caller holds a back-office identity.
func (p *Principal) IsAdmin() bool {
	return p.Type == models.TypeAdmin
}

// IdentityFinder resolves the identity named by a session triple.
type IdentityFinder interface {
	FindSession(ctx context.Context, identityID, userID string, contact models.Contact) (*models.Identity, error)
}

// Option configures a Validator.
type Option func(*Validator)

// WithRecorder registers a callback receiving the outcome of every
// validation: a State name, or "store_error".
func WithRecorder(record func(outcome string)) Option {
	return func(v *Validator) { v.record = record }
}

// Validator authenticates bearer tokens against the identity store. It keeps
// no state between requests.
type Validator struct {
	identities IdentityFinder
	secret     []byte
	record     func(string)
}

// NewValidator constructs a Validator.
func NewValidator(identities IdentityFinder, secret []byte, opts ...Option) *Validator {
	v := &Validator{identities: identities, secret: secret, record: func(string) {}}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// BearerToken extracts the credential from an Authorization header value.
// It returns "" when the header is missing or not a Bearer credential.
func BearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Validate authenticates an Authorization header value.
func (v *Validator) Validate(ctx context.Context, authorization string) (*Principal, error) {
	return v.ValidateToken(ctx, BearerToken(authorization))
}

// ValidateToken authenticates a raw bearer token. Every failure is an
// Unauthorized apperror except store failures, which surface as Server errors.
func (v *Validator) ValidateToken(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, v.reject(NoToken, MsgUnauthorized, nil)
	}

	id, err := Decode(v.secret, token)
	switch {
	case errors.Is(err, ErrMalformed):
		return nil, v.reject(SessionMalformed, MsgMalformedSession, err)
	case err != nil:
		return nil, v.reject(TokenInvalid, MsgInvalidToken, err)
	}

	identity, err := v.identities.FindSession(ctx, id.IdentityID, id.UserID, id.Contact)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, v.reject(IdentityNotFound, MsgUserNotFound, err)
		}
		v.record("store_error")
		log.Printf("[session] identity lookup failed: %v", err)
		return nil, apperror.Server("Database Error", err)
	}

	switch {
	case identity.Status == models.StatusInactive:
		return nil, v.reject(IdentityInactive, MsgDeactivated, errors.New("status inactive"))
	case identity.Status != "" && identity.Status != models.StatusActive:
		return nil, v.reject(IdentityRestricted, MsgRestricted, errors.New("status "+identity.Status))
	}

	v.record(Authenticated.String())
	return &Principal{
		IdentityID: identity.ID,
		UserID:     identity.UserID,
		Type:       identity.Type,
	}, nil
}

func (v *Validator) reject(state State, msg string, cause error) error {
	v.record(state.String())
	if cause != nil {
		log.Printf("[session] rejected state=%s cause=%v", state, cause)
	} else {
		log.Printf("[session] rejected state=%s", state)
	}
	return &Rejection{State: state, Err: apperror.Unauthorized(msg, cause)}
}

// Rejection is returned for every unauthenticated outcome. It unwraps to an
// Unauthorized apperror carrying the user-facing message.
type Rejection struct {
	State State
	Err   *apperror.Error
}

func (r *Rejection) Error() string { return r.Err.Error() }
func (r *Rejection) Unwrap() error { return r.Err }

// StateOf reports the rejection state carried by err, if any.
func StateOf(err error) (State, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r.State, true
	}
	return 0, false
}
