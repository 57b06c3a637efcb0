// Package session carries the composite session identifier and the
// per-request validator that turns a bearer token back into an identity.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/example/phoneauth/internal/models"
	"github.com/example/phoneauth/internal/utils"
)

const separator = ":"

// ErrMalformed is returned by ParseID when the id is not exactly three parts.
var ErrMalformed = errors.New("session id must have exactly three parts")

// ID is the identityId:userId:emailOrPhone triple embedded in a token.
type ID struct {
	IdentityID string
	UserID     string
	Contact    models.Contact
}

// NewID builds the session id for an identity.
func NewID(identity *models.Identity) ID {
	return ID{
		IdentityID: identity.ID.String(),
		UserID:     identity.UserID.String(),
		Contact:    identity.Contact(),
	}
}

func (id ID) String() string {
	return id.IdentityID + separator + id.UserID + separator + id.Contact.String()
}

// ParseID splits s on ':' and disambiguates the contact field.
func ParseID(s string) (ID, error) {
	parts := strings.Split(s, separator)
	if len(parts) != 3 {
		return ID{}, ErrMalformed
	}
	return ID{
		IdentityID: parts[0],
		UserID:     parts[1],
		Contact:    models.ParseContact(parts[2]),
	}, nil
}

// Issue signs a token carrying id.
func Issue(secret []byte, id ID, ttl time.Duration) (string, error) {
	return utils.GenerateToken(secret, id.String(), ttl)
}

// Decode verifies token and parses the session id it carries. It returns
// utils.ErrInvalidToken for any token failure and ErrMalformed when the
// claim is not a triple.
func Decode(secret []byte, token string) (ID, error) {
	raw, err := utils.ParseToken(secret, token)
	if err != nil {
		return ID{}, err
	}
	return ParseID(raw)
}
