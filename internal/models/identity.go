package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Provider names the credential source of an identity.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
	ProviderApple  Provider = "apple"
	ProviderEmail  Provider = "email"
)

// IdentityType separates customer identities from back-office ones.
type IdentityType string

const (
	TypeUser  IdentityType = "user"
	TypeAdmin IdentityType = "admin"
)

// Account status values. Any value other than StatusActive blocks sessions;
// StatusInactive is reported separately from the rest.
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)

var (
	ErrPhoneRequired    = errors.New("phone number is required for local identities")
	ErrEmailRequired    = errors.New("email is required for this provider")
	ErrPasswordRequired = errors.New("password is required when provider is email")
	ErrMixedContact     = errors.New("identity must carry exactly one of email or phone number")
	ErrUnknownProvider  = errors.New("unknown provider")
)

// Identity is one authentication credential pointing at an external user profile.
type Identity struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID    `gorm:"type:uuid;not null;index" json:"user_id"`
	Email        *string      `gorm:"size:255;uniqueIndex" json:"email"`
	PhoneNumber  *string      `gorm:"size:32;uniqueIndex" json:"phone_number"`
	Provider     Provider     `gorm:"size:16;not null;default:local" json:"provider"`
	Type         IdentityType `gorm:"size:16;not null;default:user" json:"type"`
	PasswordHash *string      `json:"-"`
	OTPCode      *string      `gorm:"column:otp_code;size:16" json:"-"`
	OTPExpiresAt *time.Time   `gorm:"column:otp_expires_at" json:"-"`
	LastLoginAt  *time.Time   `json:"last_login_at"`
	Onboarded    bool         `gorm:"not null;default:false" json:"onboarded"`
	Status       string       `gorm:"size:32;not null;default:active;index" json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// BeforeCreate assigns an id and rejects records that break the
// provider/contact pairing.
func (i *Identity) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.Status == "" {
		i.Status = StatusActive
	}
	if i.Type == "" {
		i.Type = TypeUser
	}
	return i.Validate()
}

// Validate checks that the populated contact matches the provider.
func (i *Identity) Validate() error {
	hasEmail := i.Email != nil && *i.Email != ""
	hasPhone := i.PhoneNumber != nil && *i.PhoneNumber != ""

	switch i.Provider {
	case ProviderLocal:
		if !hasPhone {
			return ErrPhoneRequired
		}
		if hasEmail {
			return ErrMixedContact
		}
	case ProviderGoogle, ProviderApple, ProviderEmail:
		if !hasEmail {
			return ErrEmailRequired
		}
		if hasPhone {
			return ErrMixedContact
		}
		if i.Provider == ProviderEmail && (i.PasswordHash == nil || *i.PasswordHash == "") {
			return ErrPasswordRequired
		}
	default:
		return ErrUnknownProvider
	}
	return nil
}

// Contact returns the credential the identity authenticates with.
func (i *Identity) Contact() Contact {
	if i.Email != nil && *i.Email != "" {
		return EmailContact(*i.Email)
	}
	if i.PhoneNumber != nil {
		return PhoneContact(*i.PhoneNumber)
	}
	return Contact{}
}

// UserStatus is "new" until the profile has been onboarded.
func (i *Identity) UserStatus() string {
	if i.Onboarded {
		return "existing"
	}
	return "new"
}

// Contact is either an email address or a phone number.
type Contact struct {
	kind  contactKind
	value string
}

type contactKind uint8

const (
	contactNone contactKind = iota
	contactEmail
	contactPhone
)

// EmailContact wraps an email address.
func EmailContact(email string) Contact { return Contact{kind: contactEmail, value: email} }

// PhoneContact wraps a phone number.
func PhoneContact(phone string) Contact { return Contact{kind: contactPhone, value: phone} }

// ParseContact treats anything containing '@' as an email and everything else
// as a phone number.
func ParseContact(s string) Contact {
	if strings.Contains(s, "@") {
		return EmailContact(s)
	}
	return PhoneContact(s)
}

func (c Contact) IsEmail() bool { return c.kind == contactEmail }
func (c Contact) IsPhone() bool { return c.kind == contactPhone }
func (c Contact) String() string { return c.value }
