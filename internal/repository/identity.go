package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/phoneauth/internal/models"
)

var (
	// ErrNotFound is returned when no identity matches the query.
	ErrNotFound = errors.New("identity not found")
	// ErrDuplicate is returned when an insert collides with a unique phone or email.
	ErrDuplicate = errors.New("identity already exists")
)

// IdentityRepository is the persistence contract of the auth core.
// All lookups are typed; there is no open-ended filter.
type IdentityRepository interface {
	FindByPhone(ctx context.Context, phone string) (*models.Identity, error)
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Identity, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Identity, error)
	// FindSession resolves the identity named by a session triple.
	FindSession(ctx context.Context, identityID, userID string, contact models.Contact) (*models.Identity, error)
	Create(ctx context.Context, identity *models.Identity) error
	// SetOTP overwrites the code for phone in one statement.
	SetOTP(ctx context.Context, phone, code string, expiresAt time.Time) error
	// ConsumeOTP clears a matching code and stamps the login time in one
	// conditional statement, returning the updated row.
	ConsumeOTP(ctx context.Context, phone, code string, now time.Time, enforceExpiry bool) (*models.Identity, error)
	// MarkOnboarded flips onboarded once; changed is false when it was already set.
	MarkOnboarded(ctx context.Context, identityID, userID uuid.UUID) (changed bool, err error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// GormIdentityRepository implements IdentityRepository on gorm.
type GormIdentityRepository struct {
	db *gorm.DB
}

// NewIdentityRepository constructs a GormIdentityRepository.
func NewIdentityRepository(db *gorm.DB) *GormIdentityRepository {
	return &GormIdentityRepository{db: db}
}

func (r *GormIdentityRepository) FindByPhone(ctx context.Context, phone string) (*models.Identity, error) {
	return r.first(ctx, "phone_number = ?", phone)
}

func (r *GormIdentityRepository) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *GormIdentityRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *GormIdentityRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Identity, error) {
	var identity models.Identity
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at asc").First(&identity).Error
	if err != nil {
		return nil, translate(err)
	}
	return &identity, nil
}

func (r *GormIdentityRepository) FindSession(ctx context.Context, identityID, userID string, contact models.Contact) (*models.Identity, error) {
	id, err := uuid.Parse(identityID)
	if err != nil {
		return nil, ErrNotFound
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrNotFound
	}

	query := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, uid)
	switch {
	case contact.IsEmail():
		query = query.Where("email = ?", contact.String())
	case contact.IsPhone():
		query = query.Where("phone_number = ?", contact.String())
	default:
		return nil, ErrNotFound
	}

	var identity models.Identity
	if err := query.First(&identity).Error; err != nil {
		return nil, translate(err)
	}
	return &identity, nil
}

func (r *GormIdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	if err := r.db.WithContext(ctx).Create(identity).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (r *GormIdentityRepository) SetOTP(ctx context.Context, phone, code string, expiresAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Identity{}).
		Where("phone_number = ?", phone).
		Updates(map[string]interface{}{
			"otp_code":       code,
			"otp_expires_at": expiresAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormIdentityRepository) ConsumeOTP(ctx context.Context, phone, code string, now time.Time, enforceExpiry bool) (*models.Identity, error) {
	if code == "" {
		return nil, ErrNotFound
	}

	var identity models.Identity
	tx := r.db.WithContext(ctx).Model(&identity).
		Clauses(clause.Returning{}).
		Where("phone_number = ? AND otp_code = ?", phone, code)
	if enforceExpiry {
		tx = tx.Where("otp_expires_at IS NULL OR otp_expires_at > ?", now)
	}

	res := tx.Updates(map[string]interface{}{
		"otp_code":       nil,
		"otp_expires_at": nil,
		"last_login_at":  now,
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	// Dialects without RETURNING leave identity empty.
	if identity.ID == uuid.Nil {
		return r.FindByPhone(ctx, phone)
	}
	return &identity, nil
}

func (r *GormIdentityRepository) MarkOnboarded(ctx context.Context, identityID, userID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Identity{}).
		Where("id = ? AND user_id = ? AND onboarded = ?", identityID, userID, false).
		Update("onboarded", true)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Identity{}).
		Where("id = ? AND user_id = ?", identityID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

func (r *GormIdentityRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	res := r.db.WithContext(ctx).Model(&models.Identity{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormIdentityRepository) first(ctx context.Context, query string, args ...interface{}) (*models.Identity, error) {
	var identity models.Identity
	if err := r.db.WithContext(ctx).Where(query, args...).First(&identity).Error; err != nil {
		return nil, translate(err)
	}
	return &identity, nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return ErrDuplicate
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
