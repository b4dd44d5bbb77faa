// This file runs tournaments: creating them, editing them during setup, and moving
// them through their lifecycle.
//
//	setup --start--> in_progress --update_bracket--> in_progress --complete--> completed
//
// Only setup allows name and roster edits. Completed is terminal. The bracket itself
// is a JSON document the client owns; the server checks that it is valid JSON and
// stores it untouched, which lets the front end change its bracket layout without a
// server release.
//
// Completing a tournament credits the champion's bags_tournament_wins in the same
// transaction as the status change, and only if the champion is a registered member.

package bags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/trentd187/beach-club/internal/apperr"
	"github.com/trentd187/beach-club/internal/models"
	"github.com/trentd187/beach-club/internal/sanitize"
)

// Tournament actions accepted by UpdateTournament.
const (
	ActionStart         = "start"          // setup -> in_progress
	ActionUpdateBracket = "update_bracket" // in_progress -> in_progress
	ActionComplete      = "complete"       // in_progress -> completed
)

// TournamentDraft is the input for creating a tournament.
type TournamentDraft struct {
	Name    string               // required, sanitised
	Size    int                  // 4 or 8 players
	Players []models.PlayerEntry // may be partial; must be full before start
}

// CreateTournament opens a tournament in setup. The roster may still be incomplete.
func (t *Tracker) CreateTournament(ctx context.Context, creatorID uuid.UUID, d TournamentDraft) (*models.BagsTournament, error) {
	name := sanitize.Text(d.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	// Only 4- and 8-player single-elimination brackets are supported.
	if d.Size != 4 && d.Size != 8 {
		return nil, apperr.Validation("tournament_type must be 4 or 8")
	}
	// The roster is optional at creation: players can be added while in setup.
	players, err := cleanRoster("players", d.Players, false)
	if err != nil {
		return nil, err
	}
	if len(players) > d.Size {
		return nil, apperr.Validation("a %d-player tournament cannot list %d players", d.Size, len(players))
	}
	// Rosters are stored as a JSON array column.
	raw, err := models.EncodeRoster(players)
	if err != nil {
		return nil, fmt.Errorf("encode roster: %w", err)
	}

	// New tournaments always start in setup with no bracket.
	tour := &models.BagsTournament{
		Name:      name,
		Size:      d.Size,
		Players:   raw,
		Status:    models.TournamentSetup,
		CreatorID: &creatorID,
	}
	// BeforeCreate fills in the id; the database fills created_at.
	if err := t.db.WithContext(ctx).Create(tour).Error; err != nil {
		return nil, storageErr("create tournament", err)
	}
	t.log.Info("tournament created", zap.String("tournament_id", tour.ID.String()), zap.Int("size", tour.Size))
	return tour, nil
}

// ListTournaments returns tournaments newest first, optionally only those in status.
func (t *Tracker) ListTournaments(ctx context.Context, status models.TournamentStatus) ([]models.BagsTournament, error) {
	q := t.db.WithContext(ctx).Order("created_at DESC")
	switch status {
	// An empty status means "all tournaments".
	case "":
	case models.TournamentSetup, models.TournamentInProgress, models.TournamentCompleted:
		q = q.Where("status = ?", status)
	default:
		return nil, apperr.Validation("status must be setup, in_progress or completed")
	}
	var list []models.BagsTournament
	if err := q.Find(&list).Error; err != nil {
		return nil, storageErr("list tournaments", err)
	}
	return list, nil
}

// GetTournament loads one tournament.
func (t *Tracker) GetTournament(ctx context.Context, id uuid.UUID) (*models.BagsTournament, error) {
	return loadTournament(t.db.WithContext(ctx), id)
}

// TournamentUpdate is an action-discriminated change. Action may be empty for a plain
// name/roster edit during setup. Nil fields are absent from the request.
type TournamentUpdate struct {
	Action       string                // "", start, update_bracket or complete
	Name         *string               // setup only
	Players      *[]models.PlayerEntry // setup only; replaces the whole roster
	Bracket      datatypes.JSON        // opaque client structure, stored verbatim
	CurrentRound *int                  // optional round counter
	ChampionID   *string               // roster id of the winner (complete only)
	ChampionName *string               // winner's name; taken from the roster when omitted
}

// UpdateTournament applies one change and moves the tournament through
// setup → in_progress → completed. Out-of-order actions fail with ErrInvalidTransition and
// nothing leaves completed.
//
// The row is written with "WHERE status = <status read>", so of two concurrent transitions
// from the same state only one can succeed.
func (t *Tracker) UpdateTournament(ctx context.Context, actorID uuid.UUID, isAdmin bool, id uuid.UUID, upd TournamentUpdate) (*models.BagsTournament, error) {
	// tour and kind are set inside the transaction and used after it commits.
	var (
		tour *models.BagsTournament
		kind string
	)
	// Everything below runs in one transaction, so the status change and the champion's
	// counter are written together or not at all.
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		// The read happens inside the transaction so the status check below sees a
		// consistent row.
		tour, err = loadTournament(tx, id)
		if err != nil {
			return err
		}
		// Only the creator or an admin may change a tournament. A tournament whose creator
		// account was deleted can only be changed by an admin.
		if !isAdmin && (tour.CreatorID == nil || *tour.CreatorID != actorID) {
			return ErrNotOrganizer
		}

		// The roster is needed both for the start check and to look up the champion.
		roster, err := models.DecodeRoster(tour.Players)
		if err != nil {
			return fmt.Errorf("decode roster: %w", err)
		}

		// updates collects the columns to write. It is filled by the edit step and the action
		// below, then written with a single UPDATE.
		updates := map[string]any{}
		// Name and roster are frozen once the tournament starts.
		if upd.Name != nil || upd.Players != nil {
			if tour.Status != models.TournamentSetup {
				return ErrRosterLocked
			}
			if roster, err = t.applySetupEdits(tour, roster, upd, updates); err != nil {
				return err
			}
		}

		now := t.now().UTC()
		// championRef is the member to credit with a tournament win, if the champion is one.
		var championRef *uuid.UUID
		switch upd.Action {
		// No action: a plain edit, which must actually change something.
		case "":
			if len(updates) == 0 {
				return apperr.Validation("nothing to update")
			}
			kind = UpdateEdited

		// --- start: setup -> in_progress ---
		case ActionStart:
			if tour.Status != models.TournamentSetup {
				return ErrInvalidTransition
			}
			// A bracket can only be seeded with a full roster.
			if len(roster) != tour.Size {
				return apperr.Validation("a %d-player tournament needs exactly %d players to start, has %d",
					tour.Size, tour.Size, len(roster))
			}
			// The bracket is stored verbatim; only its JSON syntax is checked.
			bracket, err := bracketOrEmpty(upd.Bracket)
			if err != nil {
				return err
			}
			updates["status"] = models.TournamentInProgress
			updates["started_at"] = now
			updates["bracket"] = bracket
			if upd.CurrentRound != nil {
				updates["current_round"] = *upd.CurrentRound
			}
			kind = UpdateStarted

		// --- update_bracket: progress is recorded while the tournament is played ---
		case ActionUpdateBracket:
			if tour.Status != models.TournamentInProgress {
				return ErrInvalidTransition
			}
			// Progress updates must send the bracket; there is nothing else to change.
			if len(upd.Bracket) == 0 {
				return apperr.Validation("bracket is required")
			}
			if err := checkBracket(upd.Bracket); err != nil {
				return err
			}
			updates["bracket"] = upd.Bracket
			if upd.CurrentRound != nil {
				if *upd.CurrentRound < 0 {
					return apperr.Validation("current_round cannot be negative")
				}
				updates["current_round"] = *upd.CurrentRound
			}
			kind = UpdateBracketChanged

		// --- complete: in_progress -> completed ---
		case ActionComplete:
			if tour.Status != models.TournamentInProgress {
				return ErrInvalidTransition
			}
			champID, champName, ref, err := resolveChampion(roster, upd.ChampionID, upd.ChampionName)
			if err != nil {
				return err
			}
			championRef = ref
			updates["status"] = models.TournamentCompleted
			updates["completed_at"] = now
			updates["champion_id"] = champID
			updates["champion_name"] = champName
			// The final bracket may be sent along with the result.
			if len(upd.Bracket) > 0 {
				if err := checkBracket(upd.Bracket); err != nil {
					return err
				}
				updates["bracket"] = upd.Bracket
			}
			kind = UpdateCompleted

		// Anything else is a client bug; say which action was not understood.
		default:
			return apperr.Validation("unknown action %q", upd.Action)
		}

		// The WHERE clause repeats the status we read. If another request moved the
		// tournament in the meantime no row matches and this request loses with a 409.
		res := tx.Model(&models.BagsTournament{}).
			Where("id = ? AND status = ?", id, tour.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		// Credit the champion atomically, in the same transaction as the status change.
		if championRef != nil {
			if err := increment(tx, "bags_tournament_wins", []uuid.UUID{*championRef}); err != nil {
				return err
			}
		}

		// Re-read so the caller (and live viewers) see exactly what was stored.
		tour, err = loadTournament(tx, id)
		return err
	})
	// Classified errors pass through; anything else is wrapped as a storage failure.
	if err != nil {
		return nil, storageErr("update tournament", err)
	}

	t.log.Info("tournament updated",
		zap.String("tournament_id", id.String()),
		zap.String("change", kind),
		zap.String("status", string(tour.Status)))
	// Publish after the commit so viewers never see a change that was rolled back.
	t.publish(id, Update{Kind: kind, Tournament: tour})
	return tour, nil
}

// applySetupEdits validates name and roster edits and records them in updates. It returns
// the roster the rest of the update should see.
func (t *Tracker) applySetupEdits(tour *models.BagsTournament, roster []models.PlayerEntry, upd TournamentUpdate, updates map[string]any) ([]models.PlayerEntry, error) {
	if upd.Name != nil {
		name := sanitize.Text(*upd.Name)
		if name == "" {
			return nil, apperr.Validation("name cannot be blank")
		}
		updates["name"] = name
	}
	// The new roster replaces the old one entirely and cannot exceed the tournament size.
	if upd.Players != nil {
		// Incomplete rosters are fine during setup; the start action checks the count.
		players, err := cleanRoster("players", *upd.Players, false)
		if err != nil {
			return nil, err
		}
		if len(players) > tour.Size {
			return nil, apperr.Validation("a %d-player tournament cannot list %d players", tour.Size, len(players))
		}
		raw, err := models.EncodeRoster(players)
		if err != nil {
			return nil, fmt.Errorf("encode roster: %w", err)
		}
		updates["players"] = raw
		roster = players
	}
	return roster, nil
}

// resolveChampion works out who won. A champion id must be on the roster; a missing name is
// taken from the matching roster entry. ref is set when the champion is a registered member.
func resolveChampion(roster []models.PlayerEntry, id, name *string) (champID, champName *string, ref *uuid.UUID, err error) {
	// An explicit name wins over the roster entry's name.
	if name != nil {
		if clean := sanitize.Text(*name); clean != "" {
			champName = &clean
		}
	}
	if id != nil && *id != "" {
		var entry *models.PlayerEntry
		// Find the roster entry with this id. A champion from outside the roster is rejected.
		for i := range roster {
			if roster[i].ID != nil && *roster[i].ID == *id {
				entry = &roster[i]
				break
			}
		}
		if entry == nil {
			return nil, nil, nil, apperr.Validation("champion_id is not on the tournament roster")
		}
		champID = entry.ID
		if champName == nil {
			champName = &entry.Name
		}
		// Guests can win too; they just have no counter to credit.
		if userID, ok := entry.UserRef(); ok {
			ref = &userID
		}
	}
	// Without either an id or a name there is nobody to record as champion.
	if champName == nil {
		return nil, nil, nil, apperr.Validation("champion_name or champion_id is required")
	}
	return champID, champName, ref, nil
}

// checkBracket only confirms the bracket is JSON. Its shape belongs to the client.
func checkBracket(raw datatypes.JSON) error {
	if !json.Valid(raw) {
		return apperr.Validation("bracket must be valid JSON")
	}
	return nil
}

// bracketOrEmpty returns raw after checking it, or an empty JSON array when no bracket was sent.
func bracketOrEmpty(raw datatypes.JSON) (datatypes.JSON, error) {
	if len(raw) == 0 {
		return datatypes.JSON("[]"), nil
	}
	return raw, checkBracket(raw)
}

// loadTournament reads one tournament, mapping "no rows" to ErrTournamentNotFound. It works on
// either the base connection or a transaction.
func loadTournament(db *gorm.DB, id uuid.UUID) (*models.BagsTournament, error) {
	var tour models.BagsTournament
	err := db.First(&tour, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTournamentNotFound
	}
	if err != nil {
		return nil, storageErr("load tournament", err)
	}
	return &tour, nil
}
