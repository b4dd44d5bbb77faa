// This file holds the operations behind the admin pages: listing members, toggling
// their active and admin flags, and the dashboard counts.

package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trentd187/beach-club/internal/models"
)

// AdminChanges lists the fields an admin may change on another member.
type AdminChanges struct {
	IsActive *bool // nil leaves the flag alone
	IsAdmin  *bool // nil leaves the flag alone
}

// AdminUpdate applies an admin's changes to target. An admin may not revoke their own
// admin flag, so the club can never lock itself out of the admin pages by accident.
func (s *Store) AdminUpdate(ctx context.Context, actorID, targetID uuid.UUID, changes AdminChanges) (*models.User, error) {
	// Self-demotion is checked before anything is read or written.
	if changes.IsAdmin != nil && !*changes.IsAdmin && actorID == targetID {
		return nil, ErrSelfDemotion
	}

	// Only the two admin-managed flags can be set here.
	updates := map[string]any{}
	if changes.IsActive != nil {
		updates["is_active"] = *changes.IsActive
	}
	if changes.IsAdmin != nil {
		updates["is_admin"] = *changes.IsAdmin
	}

	// applyUpdates returns ErrUserNotFound for an unknown target.
	user, err := s.applyUpdates(ctx, targetID, updates)
	if err != nil {
		return nil, err
	}
	// Admin changes are always logged with who made them.
	if len(updates) > 0 {
		s.log.Info("admin updated member",
			zap.String("actor_id", actorID.String()),
			zap.String("user_id", targetID.String()),
			zap.Any("changes", updates))
	}
	return user, nil
}

// List returns every member, newest first.
func (s *Store) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	// No paging: the club is small enough to list in one response.
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, storageErr("list users", err)
	}
	return users, nil
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalUsers         int64 `json:"total_users"`  // every account, active or not
	ActiveUsers        int64 `json:"active_users"` // accounts that can sign in
	TotalEvents        int64 `json:"total_events"`
	TotalBagsGames     int64 `json:"total_bags_games"`
	TotalTournaments   int64 `json:"total_tournaments"`
	UsersLoggedInToday int64 `json:"users_logged_in_today"` // last_login since midnight UTC
}

// Stats counts members and club activity. "Today" starts at midnight UTC.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	// Truncate works on absolute time, so in UTC it lands exactly on midnight.
	startOfDay := s.now().UTC().Truncate(24 * time.Hour)

	var st Stats
	// Each entry is one COUNT query: destination field, table and optional condition.
	counts := []struct {
		dst   *int64
		model any
		where []any
	}{
		{&st.TotalUsers, &models.User{}, nil},
		{&st.ActiveUsers, &models.User{}, []any{"is_active = ?", true}},
		{&st.TotalEvents, &models.Event{}, nil},
		{&st.TotalBagsGames, &models.BagsGame{}, nil},
		{&st.TotalTournaments, &models.BagsTournament{}, nil},
		{&st.UsersLoggedInToday, &models.User{}, []any{"last_login >= ?", startOfDay}},
	}
	for _, c := range counts {
		// Start from a fresh query each time so conditions never carry over between counts.
		q := db.Model(c.model)
		if c.where != nil {
			q = q.Where(c.where[0], c.where[1:]...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, storageErr("count", err)
		}
	}
	return &st, nil
}
