// This file handles sign-in with an identity provider (Google). The provider has
// already authenticated the person; our job is to map their verified identity onto a
// member account.
//
// The lookup order is in the package doc: subject id, then email, then a new account.
//
// Linking by email is why the email must be verified by the provider: otherwise anyone could
// claim a member's address at Google and take over their account.

package identity

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/trentd187/beach-club/internal/apperr"
	"github.com/trentd187/beach-club/internal/models"
	"github.com/trentd187/beach-club/internal/sanitize"
)

// FederatedClaim is the provider-neutral result of verifying a sign-in token.
type FederatedClaim struct {
	Subject       string // stable account id at the provider
	Email         string // as asserted by the provider
	EmailVerified bool   // whether the provider has verified Email
	GivenName     string // first name on the Google profile
	FamilyName    string // last name on the Google profile
	Picture       string // avatar URL, may be empty
}

// FederatedVerifier checks a provider token's signature and audience.
// GoogleVerifier is the production implementation; tests supply a fake.
type FederatedVerifier interface {
	Verify(ctx context.Context, token string) (*FederatedClaim, error)
}

// AuthenticateFederated resolves a Google ID token to a member account, linking or creating
// one as needed. The cached avatar and last_login are refreshed on every success.
func (s *Store) AuthenticateFederated(ctx context.Context, token string) (*models.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperr.Validation("token is required")
	}
	// No verifier means Google sign-in is switched off; every token is refused.
	if s.verifier == nil {
		return nil, apperr.Wrap(ErrInvalidToken, errors.New("no federated verifier configured"))
	}

	// Signature, expiry and audience are all checked by the verifier.
	claim, err := s.verifier.Verify(ctx, token)
	if err != nil {
		s.log.Warn("federated token rejected", zap.Error(err))
		return nil, apperr.Wrap(ErrInvalidToken, err)
	}
	// An unverified email could be used to take over someone else's account by
	// linking, so it is refused outright.
	if claim.Subject == "" || !claim.EmailVerified {
		return nil, ErrInvalidToken
	}
	// Google addresses go through the same normalisation as local ones so both paths
	// find the same row.
	email, err := normalizeEmail(claim.Email)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.resolveFederated(ctx, claim, email)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent first sign-in for the same account created the row first.
		// Resolving again finds it by Google id or email.
		user, err = s.resolveFederated(ctx, claim, email)
	}
	// Still a duplicate on the retry: the email belongs to an account that the retry
	// could not link, which the client sees as a conflict.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		// storageErr passes classified errors such as ErrAccountDeactivated through untouched.
		return nil, storageErr("resolve federated user", err)
	}
	return user, nil
}

// resolveFederated finds or creates the member for a verified claim and records the login.
func (s *Store) resolveFederated(ctx context.Context, claim *FederatedClaim, email string) (*models.User, error) {
	// The lookup, any link or create, and the login stamp commit together.
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Step 1: an account that already carries this Google subject id.
		err := tx.Where("google_id = ?", claim.Subject).First(&user).Error
		switch {
		case err == nil:
			// Already linked.
		// Steps 2 and 3: link by email, or create.
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := s.linkOrCreate(tx, &user, claim, email); err != nil {
				return err
			}
		default:
			return err
		}

		// Checked inside the transaction so a deactivated member's link is rolled back too.
		if !user.IsActive {
			return ErrAccountDeactivated
		}

		// Refresh last_login and the cached Google picture on every successful sign-in.
		now := s.now()
		updates := map[string]any{"last_login": now}
		if claim.Picture != "" {
			updates["google_picture_url"] = claim.Picture
		}
		// UpdateColumns skips hooks and updated_at, as in touchLogin.
		if err := tx.Model(&user).UpdateColumns(updates).Error; err != nil {
			return err
		}
		// Mirror the columns onto the returned struct so callers see the stored values.
		user.LastLogin = &now
		if claim.Picture != "" {
			pic := claim.Picture
			user.GooglePictureURL = &pic
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// linkOrCreate handles a Google subject seen for the first time.
func (s *Store) linkOrCreate(tx *gorm.DB, user *models.User, claim *FederatedClaim, email string) error {
	subject := claim.Subject

	err := tx.Where("email = ?", email).First(user).Error
	switch {
	// An account with this email exists. Link the Google id onto it unless it is
	// already linked to a different Google account.
	case err == nil:
		if user.GoogleID != nil && *user.GoogleID != subject {
			return ErrGoogleMismatch
		}
		// The unique index on google_id guards against two accounts claiming one subject.
		if err := tx.Model(user).Update("google_id", subject).Error; err != nil {
			return err
		}
		user.GoogleID = &subject
		s.log.Info("linked google account", zap.String("user_id", user.ID.String()))
		return nil

	// No account at all: create one with the names from the Google profile.
	case errors.Is(err, gorm.ErrRecordNotFound):
		// newMember sets the same defaults as a password registration.
		*user = *newMember(email)
		user.GoogleID = &subject
		user.FirstName = sanitize.Optional(&claim.GivenName)
		user.LastName = sanitize.Optional(&claim.FamilyName)
		user.IsAdmin = s.isAdminEmail(email)
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		s.log.Info("member created from google sign-in",
			zap.String("user_id", user.ID.String()), zap.Bool("admin", user.IsAdmin))
		return nil

	default:
		return err
	}
}
