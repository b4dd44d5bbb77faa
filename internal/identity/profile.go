// This file handles a member editing their own profile. Only the fields listed in
// ProfileUpdate are reachable: role, status and the bags counters cannot be changed
// from here whatever the request body contains.

package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trentd187/beach-club/internal/apperr"
	"github.com/trentd187/beach-club/internal/models"
	"github.com/trentd187/beach-club/internal/sanitize"
)

// ProfileUpdate lists every field a member may change about themselves. Nil means
// "leave as is". An empty string clears a text field.
type ProfileUpdate struct {
	FirstName       *string
	LastName        *string
	DisplayName     *string
	Bio             *string
	FavoriteBand    *string
	MemberSince     *string // YYYY-MM-DD
	NotifyEvents    *bool   // email me about new events
	NotifyBagsGames *bool   // email me when a game I played is recorded
	NotifyMessages  *bool   // email me about direct messages
}

// UpdateProfile applies upd to the member's own record and returns the stored result.
func (s *Store) UpdateProfile(ctx context.Context, userID uuid.UUID, upd ProfileUpdate) (*models.User, error) {
	// Only fields listed here can change; is_admin, is_active and the counters are not
	// reachable from this path whatever the request body contains.
	updates := map[string]any{}

	// Free-text fields are sanitised; a blank value is stored as NULL.
	text := map[string]*string{
		"first_name":    upd.FirstName,
		"last_name":     upd.LastName,
		"display_name":  upd.DisplayName, // shown instead of first and last name
		"bio":           upd.Bio,         // free text on the profile page
		"favorite_band": upd.FavoriteBand,
	}
	// A nil pointer means the field was absent from the request, so it is skipped.
	for col, v := range text {
		if v != nil {
			updates[col] = sanitize.Optional(v)
		}
	}

	// An empty date clears it, anything else must be YYYY-MM-DD.
	if upd.MemberSince != nil {
		raw := strings.TrimSpace(*upd.MemberSince)
		if raw == "" {
			updates["member_since"] = nil // NULL in the database
		} else {
			d, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return nil, apperr.Validation("beach_member_since must be a YYYY-MM-DD date")
			}
			updates["member_since"] = d
		}
	}

	// Notification switches are plain booleans, so false is a real value here.
	flags := map[string]*bool{
		"notify_events":     upd.NotifyEvents,
		"notify_bags_games": upd.NotifyBagsGames,
		"notify_messages":   upd.NotifyMessages,
	}
	for col, v := range flags {
		if v != nil {
			updates[col] = *v
		}
	}

	return s.applyUpdates(ctx, userID, updates)
}

// applyUpdates writes updates to the member and returns the stored record. It is shared by
// the profile and admin paths, which differ only in which columns they allow.
func (s *Store) applyUpdates(ctx context.Context, userID uuid.UUID, updates map[string]any) (*models.User, error) {
	// Load first so an unknown id is a 404 rather than a silent no-op UPDATE.
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	// Nothing to write: return the member unchanged.
	if len(updates) == 0 {
		return user, nil
	}
	// Updates with a map writes false and nil values too, unlike Updates with a struct.
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, storageErr("update user", err)
	}
	// Re-read so the caller sees updated_at and any values the database normalised.
	return s.Get(ctx, userID)
}
