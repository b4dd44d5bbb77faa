// Package identity owns club member accounts: creating them, checking passwords, resolving
// Google sign-ins onto existing accounts, and the profile and admin updates that follow.
//
// Linking rules for Google sign-in, in order:
//  1. an account already carrying the Google subject id is that member
//  2. otherwise an account with the same email gets the Google id linked onto it
//  3. otherwise a new account is created
//
// Admin status is decided once, at account creation, from the configured allow-list. After
// that only another admin can change it (see AdminUpdate).
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/trentd187/beach-club/internal/apperr"
	"github.com/trentd187/beach-club/internal/models"
	"github.com/trentd187/beach-club/internal/sanitize"
)

// Sentinel errors for account operations. Each carries the status code the API returns.
var (
	ErrDuplicateEmail     = apperr.Conflict("email already registered")
	ErrInvalidCredentials = apperr.Auth("invalid email or password")
	ErrAccountDeactivated = apperr.Forbidden("account is deactivated")
	ErrInvalidToken       = apperr.Auth("invalid Google token")
	ErrGoogleMismatch     = apperr.Conflict("email is linked to a different Google account")
	ErrUserNotFound       = apperr.NotFound("user not found")
	ErrSelfDemotion       = apperr.Forbidden("admins cannot revoke their own admin access")
)

// Store is the identity service. It is safe for concurrent use.
type Store struct {
	db          *gorm.DB            // shared connection pool
	verifier    FederatedVerifier   // checks Google ID tokens; nil disables Google sign-in
	adminEmails map[string]struct{} // lower-cased allow-list, consulted only at account creation
	log         *zap.Logger         // named "identity"
	now         func() time.Time    // swapped in tests to pin last_login
}

// NewStore wires the identity service. adminEmails are expected lower-cased
// (config.ParseEmailList does this).
func NewStore(db *gorm.DB, verifier FederatedVerifier, adminEmails []string, log *zap.Logger) *Store {
	// A set makes the admin check a map lookup.
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(e)] = struct{}{}
	}
	return &Store{
		db:          db,
		verifier:    verifier,
		adminEmails: admins,
		log:         log.Named("identity"),
		now:         time.Now,
	}
}

// Registration is the input to RegisterLocal.
type Registration struct {
	Email       string // required; trimmed and lower-cased before storage
	Password    string // plaintext, 8 to 72 bytes; only the bcrypt hash is stored
	FirstName   *string
	LastName    *string
	DisplayName *string
	MemberSince *time.Time // the date the member joined the beach club
}

// RegisterLocal creates a password account. The plaintext password is never stored.
func (s *Store) RegisterLocal(ctx context.Context, reg Registration) (*models.User, error) {
	// --- Validate the input ---
	email, err := normalizeEmail(reg.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(reg.Password); err != nil {
		return nil, err
	}
	// bcrypt salts each hash, so two members with the same password get different hashes.
	hash, err := hashPassword(reg.Password)
	if err != nil {
		return nil, err
	}

	// --- Build the account ---
	// Registering signs the member in, so last_login starts at now.
	now := s.now()
	user := newMember(email)
	user.PasswordHash = &hash
	user.FirstName = sanitize.Optional(reg.FirstName)
	user.LastName = sanitize.Optional(reg.LastName)
	user.DisplayName = sanitize.Optional(reg.DisplayName)
	user.MemberSince = reg.MemberSince
	// Admin status comes from the configured allow-list, and only at creation.
	user.IsAdmin = s.isAdminEmail(email)
	user.LastLogin = &now

	// Check for the address first so the common duplicate case gets a clean 409. The
	// unique index still catches a concurrent registration that slips past the check.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateEmail
		}
		return tx.Create(user).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost a race with a concurrent registration for the same address.
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, storageErr("register user", err)
	}

	s.log.Info("member registered", zap.String("user_id", user.ID.String()), zap.Bool("admin", user.IsAdmin))
	return user, nil
}

// AuthenticateLocal checks an email/password pair. An unknown email and a wrong password
// produce the same ErrInvalidCredentials. A deactivated account is only reported once the
// password has been proven.
func (s *Store) AuthenticateLocal(ctx context.Context, email, password string) (*models.User, error) {
	// Emails are stored lower-cased, so the lookup must be too.
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	// Unknown email: spend the same bcrypt time as a real check, then give the same
	// error as a wrong password so the response reveals nothing about which emails exist.
	if errors.Is(err, gorm.ErrRecordNotFound) {
		burnPasswordCheck(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, storageErr("load user", err)
	}

	// A Google-only account has no password to check.
	if user.PasswordHash == nil {
		burnPasswordCheck(password)
		return nil, ErrInvalidCredentials
	}
	if !checkPassword(*user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	// Deactivation is only revealed to someone who knows the password.
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	if err := s.touchLogin(s.db.WithContext(ctx), &user); err != nil {
		return nil, storageErr("record login", err)
	}
	return &user, nil
}

// ChangePassword replaces a member's password after re-checking the current one.
func (s *Store) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	if current == "" || next == "" {
		return apperr.Validation("current_password and new_password are required")
	}
	if err := validatePassword(next); err != nil {
		return err
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	// The current password must be proven before it can be replaced. Accounts created
	// through Google have none and cannot use this route.
	if user.PasswordHash == nil || !checkPassword(*user.PasswordHash, current) {
		return ErrInvalidCredentials
	}

	hash, err := hashPassword(next)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error; err != nil {
		return storageErr("update password", err)
	}
	return nil
}

// Get loads a member by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, storageErr("load user", err)
	}
	return &user, nil
}

// isAdminEmail reports whether email is on the admin allow-list.
func (s *Store) isAdminEmail(email string) bool {
	_, ok := s.adminEmails[email]
	return ok
}

// touchLogin stamps last_login without bumping updated_at.
func (s *Store) touchLogin(tx *gorm.DB, user *models.User) error {
	now := s.now()
	// UpdateColumn skips hooks and the updated_at timestamp: a login is not a profile edit.
	if err := tx.Model(user).UpdateColumn("last_login", now).Error; err != nil {
		return err
	}
	user.LastLogin = &now
	return nil
}

// newMember returns an active account with the default notification preferences. The
// booleans are set explicitly because GORM skips zero values that have a column default.
func newMember(email string) *models.User {
	return &models.User{
		Email:           email,
		IsActive:        true,
		NotifyEvents:    true,
		NotifyBagsGames: true,
		NotifyMessages:  true,
	}
}

// normalizeEmail trims and lower-cases an address and checks it parses as a bare address.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperr.Validation("email is required")
	}
	// ParseAddress also accepts "Name <addr>"; requiring the parsed address to equal the
	// input rejects that form.
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("email is not a valid address")
	}
	return email, nil
}

// storageErr passes classified errors through and wraps everything else for the log.
func storageErr(op string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
