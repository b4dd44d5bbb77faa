package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/trentd187/beach-club/internal/apperr"
	"github.com/trentd187/beach-club/internal/database/dbtest"
	"github.com/trentd187/beach-club/internal/models"
)

// fakeVerifier accepts the tokens it was seeded with and rejects everything else.
type fakeVerifier map[string]*FederatedClaim

func (f fakeVerifier) Verify(_ context.Context, token string) (*FederatedClaim, error) {
	claim, ok := f[token]
	if !ok {
		return nil, errors.New("bad signature")
	}
	return claim, nil
}

func newTestStore(t *testing.T, verifier FederatedVerifier, admins ...string) (*Store, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	return NewStore(db, verifier, admins, zap.NewNop()), db
}

func register(t *testing.T, s *Store, email, password string) *models.User {
	t.Helper()
	u, err := s.RegisterLocal(context.Background(), Registration{Email: email, Password: password})
	require.NoError(t, err)
	return u
}

func TestRegisterThenAuthenticate(t *testing.T) {
	s, _ := newTestStore(t, nil)
	ctx := context.Background()

	cases := []struct{ email, password string }{
		{"sandy@example.com", "correct horse"},
		{"Dune.Buggy@Example.com", "p@ssw0rd!!"},
		{"x@y.io", "12345678"},
	}
	for _, tc := range cases {
		created := register(t, s, tc.email, tc.password)
		require.NotNil(t, created.PasswordHash)
		assert.NotEqual(t, tc.password, *created.PasswordHash, "plaintext must never be stored")

		got, err := s.AuthenticateLocal(ctx, tc.email, tc.password)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.NotNil(t, got.LastLogin)

		_, err = s.AuthenticateLocal(ctx, tc.email, tc.password+"x")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
}

func TestAuthenticateUnknownEmailLooksLikeWrongPassword(t *testing.T) {
	s, _ := newTestStore(t, nil)
	register(t, s, "known@example.com", "right-password")

	_, errUnknown := s.AuthenticateLocal(context.Background(), "nobody@example.com", "right-password")
	_, errWrong := s.AuthenticateLocal(context.Background(), "known@example.com", "wrong-password")

	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s, db := newTestStore(t, nil)
	ctx := context.Background()

	first, err := s.RegisterLocal(ctx, Registration{
		Email: "dup@example.com", Password: "first-password", FirstName: ptr("First"),
	})
	require.NoError(t, err)

	_, err = s.RegisterLocal(ctx, Registration{
		Email: "DUP@example.com", Password: "second-password", FirstName: ptr("Second"),
	})
	require.ErrorIs(t, err, ErrDuplicateEmail)
	assert.Equal(t, 409, apperr.Status(err))

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", first.ID).Error)
	assert.Equal(t, "First", *stored.FirstName)
	assert.True(t, checkPassword(*stored.PasswordHash, "first-password"))

	var count int64
	db.Model(&models.User{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newTestStore(t, nil)
	ctx := context.Background()

	for _, reg := range []Registration{
		{Email: "", Password: "long-enough"},
		{Email: "not-an-email", Password: "long-enough"},
		{Email: "Name <a@b.com>", Password: "long-enough"},
		{Email: "ok@example.com", Password: "short"},
	} {
		_, err := s.RegisterLocal(ctx, reg)
		assert.Equal(t, 400, apperr.Status(err), "%+v", reg)
	}
}

func TestRegisterGrantsAdminFromAllowList(t *testing.T) {
	s, _ := newTestStore(t, nil, "boss@example.com")
	assert.True(t, register(t, s, "Boss@Example.com", "password123").IsAdmin)
	assert.False(t, register(t, s, "crew@example.com", "password123").IsAdmin)
}

func TestDeactivatedAccount(t *testing.T) {
	s, db := newTestStore(t, nil)
	u := register(t, s, "gone@example.com", "password123")
	require.NoError(t, db.Model(u).Update("is_active", false).Error)

	_, err := s.AuthenticateLocal(context.Background(), "gone@example.com", "password123")
	require.ErrorIs(t, err, ErrAccountDeactivated)
	assert.Equal(t, 403, apperr.Status(err))

	_, err = s.AuthenticateLocal(context.Background(), "gone@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "deactivation is only revealed after the password checks out")
}

func TestChangePassword(t *testing.T) {
	s, _ := newTestStore(t, nil)
	ctx := context.Background()
	u := register(t, s, "change@example.com", "old-password")

	err := s.ChangePassword(ctx, u.ID, "not-the-password", "new-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, s.ChangePassword(ctx, u.ID, "old-password", "new-password"))

	_, err = s.AuthenticateLocal(ctx, "change@example.com", "old-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.AuthenticateLocal(ctx, "change@example.com", "new-password")
	assert.NoError(t, err)

	err = s.ChangePassword(ctx, u.ID, "new-password", "tiny")
	assert.Equal(t, 400, apperr.Status(err))
}

func TestFederatedLinksExistingAccount(t *testing.T) {
	verifier := fakeVerifier{
		"google-token": {
			Subject: "google-sub-1", Email: "Sandy@Example.com", EmailVerified: true,
			GivenName: "Sandy", Picture: "https://img.example/sandy.png",
		},
	}
	s, db := newTestStore(t, verifier)
	ctx := context.Background()
	local := register(t, s, "sandy@example.com", "password123")

	linked, err := s.AuthenticateFederated(ctx, "google-token")
	require.NoError(t, err)
	assert.Equal(t, local.ID, linked.ID)
	require.NotNil(t, linked.GoogleID)
	assert.Equal(t, "google-sub-1", *linked.GoogleID)
	assert.Equal(t, "https://img.example/sandy.png", *linked.GooglePictureURL)

	again, err := s.AuthenticateFederated(ctx, "google-token")
	require.NoError(t, err)
	assert.Equal(t, local.ID, again.ID)

	var count int64
	db.Model(&models.User{}).Count(&count)
	assert.EqualValues(t, 1, count)

	// The password still works after linking.
	_, err = s.AuthenticateLocal(ctx, "sandy@example.com", "password123")
	assert.NoError(t, err)
}

func TestFederatedCreatesNewAccount(t *testing.T) {
	verifier := fakeVerifier{
		"admin-token": {Subject: "sub-a", Email: "boss@example.com", EmailVerified: true, GivenName: "Big", FamilyName: "Boss"},
		"crew-token":  {Subject: "sub-b", Email: "crew@example.com", EmailVerified: true},
	}
	s, _ := newTestStore(t, verifier, "boss@example.com")
	ctx := context.Background()

	boss, err := s.AuthenticateFederated(ctx, "admin-token")
	require.NoError(t, err)
	assert.True(t, boss.IsAdmin)
	assert.True(t, boss.IsActive)
	assert.Nil(t, boss.PasswordHash)
	assert.Equal(t, "Big Boss", boss.Name())
	assert.NotNil(t, boss.LastLogin)

	crew, err := s.AuthenticateFederated(ctx, "crew-token")
	require.NoError(t, err)
	assert.False(t, crew.IsAdmin)
	assert.NotEqual(t, boss.ID, crew.ID)

	// A Google-only account has no password to log in with.
	_, err = s.AuthenticateLocal(ctx, "crew@example.com", "anything-at-all")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestFederatedRejections(t *testing.T) {
	verifier := fakeVerifier{
		"unverified": {Subject: "sub-u", Email: "u@example.com", EmailVerified: false},
		"no-subject": {Email: "n@example.com", EmailVerified: true},
		"other-sub":  {Subject: "sub-other", Email: "taken@example.com", EmailVerified: true},
	}
	s, db := newTestStore(t, verifier)
	ctx := context.Background()

	for _, tok := range []string{"forged", "unverified", "no-subject"} {
		_, err := s.AuthenticateFederated(ctx, tok)
		assert.ErrorIs(t, err, ErrInvalidToken, tok)
		assert.Equal(t, 401, apperr.Status(err), tok)
	}

	_, err := s.AuthenticateFederated(ctx, "")
	assert.Equal(t, 400, apperr.Status(err))

	taken := register(t, s, "taken@example.com", "password123")
	require.NoError(t, db.Model(taken).Update("google_id", "sub-original").Error)
	_, err = s.AuthenticateFederated(ctx, "other-sub")
	assert.ErrorIs(t, err, ErrGoogleMismatch)
}

func TestFederatedDeactivated(t *testing.T) {
	verifier := fakeVerifier{"tok": {Subject: "sub", Email: "off@example.com", EmailVerified: true}}
	s, db := newTestStore(t, verifier)
	u, err := s.AuthenticateFederated(context.Background(), "tok")
	require.NoError(t, err)
	require.NoError(t, db.Model(u).Update("is_active", false).Error)

	_, err = s.AuthenticateFederated(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrAccountDeactivated)
}

func TestUpdateProfileAllowList(t *testing.T) {
	s, _ := newTestStore(t, nil)
	ctx := context.Background()
	u := register(t, s, "profile@example.com", "password123")

	off := false
	got, err := s.UpdateProfile(ctx, u.ID, ProfileUpdate{
		DisplayName:  ptr("<b>Sandman</b>"),
		Bio:          ptr("Sunsets & bags"),
		MemberSince:  ptr("2019-06-01"),
		NotifyEvents: &off,
	})
	require.NoError(t, err)
	assert.Equal(t, "Sandman", *got.DisplayName)
	assert.Equal(t, "Sunsets & bags", *got.Bio)
	assert.Equal(t, "2019-06-01", got.MemberSince.Format("2006-01-02"))
	assert.False(t, got.NotifyEvents)
	assert.True(t, got.NotifyBagsGames)
	assert.False(t, got.IsAdmin)

	got, err = s.UpdateProfile(ctx, u.ID, ProfileUpdate{Bio: ptr(""), MemberSince: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, got.Bio)
	assert.Nil(t, got.MemberSince)
	assert.Equal(t, "Sandman", *got.DisplayName)

	_, err = s.UpdateProfile(ctx, u.ID, ProfileUpdate{MemberSince: ptr("June 2019")})
	assert.Equal(t, 400, apperr.Status(err))

	_, err = s.UpdateProfile(ctx, uuid.New(), ProfileUpdate{Bio: ptr("x")})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAdminUpdate(t *testing.T) {
	s, _ := newTestStore(t, nil, "admin@example.com")
	ctx := context.Background()
	admin := register(t, s, "admin@example.com", "password123")
	member := register(t, s, "member@example.com", "password123")
	yes, no := true, false

	_, err := s.AdminUpdate(ctx, admin.ID, admin.ID, AdminChanges{IsAdmin: &no})
	require.ErrorIs(t, err, ErrSelfDemotion)
	stillAdmin, err := s.Get(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, stillAdmin.IsAdmin)

	promoted, err := s.AdminUpdate(ctx, admin.ID, member.ID, AdminChanges{IsAdmin: &yes, IsActive: &no})
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin)
	assert.False(t, promoted.IsActive)

	_, err = s.AdminUpdate(ctx, admin.ID, uuid.New(), AdminChanges{IsActive: &yes})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStats(t *testing.T) {
	s, db := newTestStore(t, nil)
	ctx := context.Background()
	now := time.Date(2025, 7, 4, 15, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	a := register(t, s, "a@example.com", "password123")
	b := register(t, s, "b@example.com", "password123")
	register(t, s, "c@example.com", "password123")
	require.NoError(t, db.Model(b).Update("is_active", false).Error)
	require.NoError(t, db.Model(a).UpdateColumn("last_login", now.Add(-48*time.Hour)).Error)
	require.NoError(t, db.Create(&models.Event{Title: "Luau", EventType: "party", CreatedBy: a.ID, Date: now}).Error)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, st.TotalUsers)
	assert.EqualValues(t, 2, st.ActiveUsers)
	assert.EqualValues(t, 1, st.TotalEvents)
	assert.EqualValues(t, 2, st.UsersLoggedInToday)

	users, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func ptr(s string) *string { return &s }
