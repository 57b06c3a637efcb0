package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/phoneauth/internal/apperror"
	"github.com/example/phoneauth/internal/config"
	"github.com/example/phoneauth/internal/metrics"
	"github.com/example/phoneauth/internal/models"
	"github.com/example/phoneauth/internal/repository"
	"github.com/example/phoneauth/internal/session"
	"github.com/example/phoneauth/internal/utils"
)

// User event names shared with the other services on the bus.
const (
	EventUserSignup = "user_signup"
	EventUserLogin  = "user_login"
)

const (
	msgOTPSent        = "otp sent successfully"
	msgInvalidOTP     = "Invalid or expired OTP"
	msgInvalidLogin   = "Invalid credentials"
	msgDatabaseError  = "Database Error"
	msgIdentityAbsent = "identity not found"
)

// EventPublisher emits user lifecycle events. Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event string, data map[string]interface{}) error
}

// AuthDeps are the collaborators of AuthService. Events and Metrics may be nil.
type AuthDeps struct {
	Identities repository.IdentityRepository
	Sender     OTPSender
	Events     EventPublisher
	Metrics    *metrics.Auth
}

// AuthService issues and verifies OTP codes and mints session tokens.
type AuthService struct {
	identities repository.IdentityRepository
	sender     OTPSender
	senderName string
	events     EventPublisher
	metrics    *metrics.Auth

	secret          []byte
	tokenTTL        time.Duration
	otpTTL          time.Duration
	enforceExpiry   bool
	fixedOTP        bool
	dispatchTimeout time.Duration

	now         func() time.Time
	generateOTP func() (string, error)

	background sync.WaitGroup
}

// NewAuthService constructs an AuthService from configuration.
func NewAuthService(cfg *config.Config, deps AuthDeps) *AuthService {
	dispatchTimeout := cfg.OTPDispatchTimeout
	if dispatchTimeout <= 0 {
		dispatchTimeout = 15 * time.Second
	}
	return &AuthService{
		identities:      deps.Identities,
		sender:          deps.Sender,
		senderName:      cfg.OTPDispatch,
		events:          deps.Events,
		metrics:         deps.Metrics,
		secret:          cfg.JWTSecret,
		tokenTTL:        cfg.TokenExpires,
		otpTTL:          cfg.OTPTTL,
		enforceExpiry:   cfg.OTPEnforceExpiry,
		fixedOTP:        cfg.IsNonProduction(),
		dispatchTimeout: dispatchTimeout,
		now:             func() time.Time { return time.Now().UTC() },
		generateOTP:     utils.GenerateOTP,
	}
}

// OTPRequestResult is returned by RequestOTP.
type OTPRequestResult struct {
	UserID  uuid.UUID `json:"userId"`
	Message string    `json:"-"`
}

// RequestOTP upserts the identity for phone and stores a fresh code,
// replacing any outstanding one.
func (s *AuthService) RequestOTP(ctx context.Context, phone string) (*OTPRequestResult, error) {
	code, err := s.newCode()
	if err != nil {
		s.metrics.OTPRequested("error")
		return nil, apperror.Server("failed to generate otp", err)
	}
	expiresAt := s.now().Add(s.otpTTL)

	var userID uuid.UUID
	existing, err := s.identities.FindByPhone(ctx, phone)
	switch {
	case err == nil:
		if err := s.identities.SetOTP(ctx, phone, code, expiresAt); err != nil {
			return nil, s.otpRequestFailed(err)
		}
		userID = existing.UserID
		s.metrics.OTPRequested("existing")
	case errors.Is(err, repository.ErrNotFound):
		identity, created, err := s.createPhoneIdentity(ctx, phone, code, expiresAt)
		if err != nil {
			return nil, s.otpRequestFailed(err)
		}
		userID = identity.UserID
		if created {
			s.metrics.OTPRequested("new")
			s.publish(EventUserSignup, map[string]interface{}{
				"userId":      identity.UserID.String(),
				"authId":      identity.ID.String(),
				"phoneNumber": phone,
			})
		} else {
			s.metrics.OTPRequested("existing")
		}
	default:
		return nil, s.otpRequestFailed(err)
	}

	s.dispatch(phone, code)

	return &OTPRequestResult{UserID: userID, Message: msgOTPSent}, nil
}

// createPhoneIdentity inserts a local identity carrying the code. When a
// concurrent request created the same phone first, the code is written onto
// that record instead and created is false.
func (s *AuthService) createPhoneIdentity(ctx context.Context, phone, code string, expiresAt time.Time) (*models.Identity, bool, error) {
	identity := &models.Identity{
		UserID:       uuid.New(),
		PhoneNumber:  &phone,
		Provider:     models.ProviderLocal,
		Type:         models.TypeUser,
		Status:       models.StatusActive,
		Onboarded:    false,
		OTPCode:      &code,
		OTPExpiresAt: &expiresAt,
	}

	err := s.identities.Create(ctx, identity)
	if err == nil {
		log.Printf("[otp] created identity %s for %s", identity.ID, MaskPhone(phone))
		return identity, true, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, false, err
	}

	if err := s.identities.SetOTP(ctx, phone, code, expiresAt); err != nil {
		return nil, false, err
	}
	existing, err := s.identities.FindByPhone(ctx, phone)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *AuthService) otpRequestFailed(err error) error {
	s.metrics.OTPRequested("error")
	log.Printf("[otp] request failed: %v", err)
	return apperror.Server(msgDatabaseError, err)
}

func (s *AuthService) newCode() (string, error) {
	if s.fixedOTP {
		return utils.FixedOTP, nil
	}
	return s.generateOTP()
}

// VerifyOTPResult is returned by VerifyOTP.
type VerifyOTPResult struct {
	UserID     uuid.UUID `json:"userId"`
	IdentityID uuid.UUID `json:"authId"`
	Status     string    `json:"userStatus"`
	Onboarded  bool      `json:"onboarded"`
	Token      string    `json:"token"`
}

// VerifyOTP consumes the code for phone and returns a session token.
// A code validates at most once.
func (s *AuthService) VerifyOTP(ctx context.Context, phone, code string) (*VerifyOTPResult, error) {
	identity, err := s.identities.ConsumeOTP(ctx, phone, code, s.now(), s.enforceExpiry)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.OTPVerified("invalid")
			log.Printf("[otp] verification rejected for %s", MaskPhone(phone))
			return nil, apperror.InvalidCredential(msgInvalidOTP)
		}
		s.metrics.OTPVerified("error")
		log.Printf("[otp] verification failed: %v", err)
		return nil, apperror.Server(msgDatabaseError, err)
	}
	s.metrics.OTPVerified("success")

	token, err := s.issueToken(identity, "otp")
	if err != nil {
		return nil, err
	}

	s.publish(EventUserLogin, map[string]interface{}{
		"userId":      identity.UserID.String(),
		"authId":      identity.ID.String(),
		"phoneNumber": phone,
	})

	return &VerifyOTPResult{
		UserID:     identity.UserID,
		IdentityID: identity.ID,
		Status:     identity.UserStatus(),
		Onboarded:  identity.Onboarded,
		Token:      token,
	}, nil
}

// LoginResult is returned by Login.
type LoginResult struct {
	Token    string           `json:"token"`
	Identity *models.Identity `json:"user"`
}

// Login authenticates an email-provider identity with its password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	identity, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.InvalidCredential(msgInvalidLogin).WithStatus(http.StatusUnauthorized)
		}
		return nil, apperror.Server(msgDatabaseError, err)
	}

	if identity.Provider != models.ProviderEmail || !utils.CheckPassword(identity.PasswordHash, password) {
		return nil, apperror.InvalidCredential(msgInvalidLogin).WithStatus(http.StatusUnauthorized)
	}

	switch {
	case identity.Status == models.StatusInactive:
		return nil, apperror.Unauthorized(session.MsgDeactivated, nil)
	case identity.Status != "" && identity.Status != models.StatusActive:
		return nil, apperror.Unauthorized(session.MsgRestricted, nil)
	}

	token, err := s.issueToken(identity, "password")
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, Identity: identity}, nil
}

func (s *AuthService) issueToken(identity *models.Identity, method string) (string, error) {
	token, err := session.Issue(s.secret, session.NewID(identity), s.tokenTTL)
	if err != nil {
		log.Printf("[session] token signing failed: %v", err)
		return "", apperror.Server("failed to generate token", err)
	}
	s.metrics.TokenIssued(method)
	return token, nil
}

// UserStatus returns the account status of the identity owned by userID.
func (s *AuthService) UserStatus(ctx context.Context, userID uuid.UUID) (string, error) {
	identity, err := s.identities.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperror.Validation(msgIdentityAbsent).WithStatus(http.StatusNotFound)
		}
		return "", apperror.Server(msgDatabaseError, err)
	}
	return identity.Status, nil
}

// MarkOnboarded flips the onboarding flag of an identity. Repeating it is a no-op.
func (s *AuthService) MarkOnboarded(ctx context.Context, userID, identityID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return apperror.Validation("invalid userId")
	}
	iid, err := uuid.Parse(identityID)
	if err != nil {
		return apperror.Validation("invalid authId")
	}

	changed, err := s.identities.MarkOnboarded(ctx, iid, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Validation(msgIdentityAbsent).WithStatus(http.StatusNotFound)
		}
		return apperror.Server(msgDatabaseError, err)
	}
	if changed {
		log.Printf("[onboarding] identity %s of user %s onboarded", iid, uid)
	}
	return nil
}

// SetStatus changes the account status of an identity.
func (s *AuthService) SetStatus(ctx context.Context, identityID uuid.UUID, status string) error {
	switch status {
	case models.StatusActive, models.StatusInactive, models.StatusSuspended:
	default:
		return apperror.Validation(fmt.Sprintf("status must be one of %s, %s, %s",
			models.StatusActive, models.StatusInactive, models.StatusSuspended))
	}

	if err := s.identities.UpdateStatus(ctx, identityID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Validation(msgIdentityAbsent).WithStatus(http.StatusNotFound)
		}
		return apperror.Server(msgDatabaseError, err)
	}
	log.Printf("[identity] %s status set to %s", identityID, status)
	return nil
}

// EnsureAdmin creates the back-office identity for email unless it already
// exists. An existing record is returned untouched.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (*models.Identity, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, false, apperror.Validation("admin email and password are required")
	}

	existing, err := s.identities.FindByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, apperror.Server(msgDatabaseError, err)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, false, apperror.Server("failed to hash password", err)
	}

	admin := &models.Identity{
		UserID:       uuid.New(),
		Email:        &email,
		Provider:     models.ProviderEmail,
		Type:         models.TypeAdmin,
		PasswordHash: &hash,
		Onboarded:    true,
		Status:       models.StatusActive,
	}
	if err := s.identities.Create(ctx, admin); err != nil {
		return nil, false, apperror.Server(msgDatabaseError, err)
	}
	log.Printf("[identity] admin %s created", admin.ID)
	return admin, true, nil
}

// dispatch hands the code to the sender without blocking the caller. The
// delivery outlives the request.
func (s *AuthService) dispatch(phone, code string) {
	if s.sender == nil {
		return
	}
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.dispatchTimeout)
		defer cancel()

		err := s.sender.SendOTP(ctx, phone, code)
		s.metrics.OTPDispatched(s.senderName, err)
		if err != nil {
			log.Printf("[otp] dispatch to %s via %s failed: %v", MaskPhone(phone), s.senderName, err)
		}
	}()
}

func (s *AuthService) publish(event string, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.dispatchTimeout)
		defer cancel()

		if err := s.events.Publish(ctx, event, data); err != nil {
			log.Printf("[events] publish %s failed: %v", event, err)
		}
	}()
}

// Wait blocks until background deliveries have finished.
func (s *AuthService) Wait() {
	s.background.Wait()
}
