// Package bags tracks cornhole ("bags") games and tournaments and derives the member
// statistics shown on the leaderboard.
//
// Win and loss counters live on the users table and are only changed with column-level
// increments inside the same transaction that stores the game, so concurrent submissions
// for the same player never lose an update.
package bags

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/trentd187/beach-club/internal/apperr"
	"github.com/trentd187/beach-club/internal/models"
	"github.com/trentd187/beach-club/internal/sanitize"
)

// Sentinel errors returned by the tracker. Each one carries its HTTP meaning (see apperr),
// so handlers can return them unchanged.
var (
	ErrGameNotFound       = apperr.NotFound("game not found")
	ErrTournamentNotFound = apperr.NotFound("tournament not found")
	ErrPlayerNotFound     = apperr.NotFound("player not found")
	ErrTieGame            = apperr.Validation("games cannot end in a tie")
	ErrInvalidTransition  = apperr.Conflict("tournament is not in a state that allows this action")
	ErrRosterLocked       = apperr.Conflict("name and roster can only change while the tournament is in setup")
	ErrNotOrganizer       = apperr.Forbidden("only the tournament creator or an admin can change this tournament")
)

// Page sizes for ListGames: the default when the client asks for none, and the ceiling.
const (
	defaultPageSize = 50  // used when limit is missing or <= 0
	maxPageSize     = 100 // larger requests are clamped to this
)

// Update kinds sent to the Publisher.
const (
	UpdateGameRecorded   = "game_recorded"   // a game was stored against an in-progress tournament
	UpdateEdited         = "updated"         // name or roster changed during setup
	UpdateStarted        = "started"         // setup -> in_progress
	UpdateBracketChanged = "bracket_updated" // bracket or round counter replaced mid-tournament
	UpdateCompleted      = "completed"       // in_progress -> completed, champion recorded
)

// Update describes one change to a tournament. Game is set only for UpdateGameRecorded.
type Update struct {
	Kind       string                 // one of the Update* constants
	Tournament *models.BagsTournament // state after the change; nil for game updates
	Game       *models.BagsGame       // the stored game; nil for tournament changes
}

// Publisher receives every committed tournament change so live viewers can follow along.
type Publisher interface {
	Publish(tournamentID uuid.UUID, u Update)
}

// Tracker is the bags service. It is safe for concurrent use.
type Tracker struct {
	db  *gorm.DB         // shared connection pool
	pub Publisher        // optional live-update sink
	log *zap.Logger      // named "bags"
	now func() time.Time // swapped in tests to pin timestamps
}

// NewTracker wires the service. pub may be nil when nothing listens for live updates.
func NewTracker(db *gorm.DB, pub Publisher, log *zap.Logger) *Tracker {
	return &Tracker{db: db, pub: pub, log: log.Named("bags"), now: time.Now}
}

// GameResult is a finished game as submitted by a member.
type GameResult struct {
	Team1           []models.PlayerEntry // members and guests on team 1
	Team2           []models.PlayerEntry // members and guests on team 2
	Team1Score      int                  // final points for team 1
	Team2Score      int                  // final points for team 2
	GameType        models.GameType      // empty means casual, or tournament when TournamentID is set
	TournamentID    *uuid.UUID           // set when the game is part of a tournament
	TournamentRound *int                 // round number within the tournament, if the client tracks it
	Location        string               // free text; blank falls back to DefaultGameLocation
	StartedAt       *time.Time           // defaults to the time of recording
}

// RecordGame stores a finished game and credits a win or a loss to every registered member
// on either roster. Guests are stored by name and affect no statistics.
func (t *Tracker) RecordGame(ctx context.Context, recorderID uuid.UUID, in GameResult) (*models.BagsGame, error) {
	// --- Validate the input before touching the database ---
	// Both rosters need at least one named player. Names are sanitised here so the
	// stored JSON is already clean.
	team1, err := cleanRoster("team1_players", in.Team1, true)
	if err != nil {
		return nil, err
	}
	team2, err := cleanRoster("team2_players", in.Team2, true)
	if err != nil {
		return nil, err
	}
	if in.Team1Score < 0 || in.Team2Score < 0 {
		return nil, apperr.Validation("scores cannot be negative")
	}

	// The winner is the team with the strictly greater score. Equal scores are rejected,
	// so a stored game always has a winner.
	var winningTeam int
	switch {
	case in.Team1Score > in.Team2Score:
		winningTeam = 1
	case in.Team2Score > in.Team1Score:
		winningTeam = 2
	default:
		return nil, ErrTieGame
	}

	// The type must agree with whether a tournament id was sent.
	gameType, err := resolveGameType(in.GameType, in.TournamentID)
	if err != nil {
		return nil, err
	}
	if in.TournamentRound != nil && *in.TournamentRound < 0 {
		return nil, apperr.Validation("tournament_round cannot be negative")
	}

	// Collect the registered members on each side. The same member on both teams would
	// be credited with a win and a loss for one game, so that is rejected.
	team1Users, team2Users := rosterUsers(team1), rosterUsers(team2)
	for id := range team1Users {
		if _, both := team2Users[id]; both {
			return nil, apperr.Validation("a player cannot be on both teams")
		}
	}

	// A game is recorded when it ends, so "now" is the end time. The client may send the
	// start time; without it the game is treated as instant (zero minutes).
	ended := t.now().UTC()
	started := ended
	if in.StartedAt != nil {
		started = in.StartedAt.UTC()
	}
	if started.After(ended) {
		return nil, apperr.Validation("started_at cannot be in the future")
	}

	// Location is free text like any other user input, so it is sanitised too.
	location := sanitize.Text(in.Location)
	if location == "" {
		location = models.DefaultGameLocation
	}

	// Rosters are stored as JSON exactly as entered so guest names survive.
	rawTeam1, err := models.EncodeRoster(team1)
	if err != nil {
		return nil, fmt.Errorf("encode roster: %w", err)
	}
	rawTeam2, err := models.EncodeRoster(team2)
	if err != nil {
		return nil, fmt.Errorf("encode roster: %w", err)
	}

	// The row to insert. ID is left zero for BeforeCreate.
	game := &models.BagsGame{
		Team1Players:    rawTeam1,
		Team2Players:    rawTeam2,
		Team1Score:      in.Team1Score,
		Team2Score:      in.Team2Score,
		WinningTeam:     winningTeam,
		GameType:        gameType,
		TournamentID:    in.TournamentID,
		TournamentRound: in.TournamentRound,
		StartedAt:       started,
		EndedAt:         ended,
		DurationMinutes: int(ended.Sub(started) / time.Minute), // whole minutes, truncated
		Location:        location,
		RecordedBy:      &recorderID,
	}

	// Flip the sets when team 2 won so the credit step only deals with winners and losers.
	winners, losers := team1Users, team2Users
	if winningTeam == 2 {
		winners, losers = team2Users, team1Users
	}

	// --- Write the game and the counters in one transaction ---
	// If any step fails GORM rolls everything back: no game without its counters, and
	// no counters without their game.
	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Tournament games are only accepted while the bracket is being played.
		if in.TournamentID != nil {
			// Reading inside the transaction means an unknown tournament id is a 404 rather
			// than a foreign key failure.
			tour, err := loadTournament(tx, *in.TournamentID)
			if err != nil {
				return err
			}
			if tour.Status != models.TournamentInProgress {
				return apperr.Conflict("games can only be recorded for a tournament in progress")
			}
		}
		// BeforeCreate assigns the game's UUID.
		if err := tx.Create(game).Error; err != nil {
			return err
		}
		return creditPlayers(tx, game, winners, losers)
	})
	// storageErr keeps the 404 and 409 above intact.
	if err != nil {
		return nil, storageErr("record game", err)
	}

	t.log.Info("game recorded",
		zap.String("game_id", game.ID.String()),
		zap.Int("team1_score", game.Team1Score),
		zap.Int("team2_score", game.Team2Score),
		zap.String("type", string(game.GameType)))
	// Publish only after the commit, so live viewers never see a game that was rolled back.
	if game.TournamentID != nil {
		t.publish(*game.TournamentID, Update{Kind: UpdateGameRecorded, Game: game})
	}
	return game, nil
}

// creditPlayers indexes the registered members of a game and bumps their counters. Roster
// references to accounts that do not exist are treated as guests.
func creditPlayers(tx *gorm.DB, game *models.BagsGame, winners, losers map[uuid.UUID]struct{}) error {
	// A roster can reference an account that has since been deleted (or never existed).
	// Only ids that match a real user get a participant row and a counter bump.
	known, err := existingUsers(tx, winners, losers)
	if err != nil {
		return err
	}

	// Split the known members into winners and losers and build their participant rows.
	var participants []models.BagsGameParticipant
	var wonIDs, lostIDs []uuid.UUID
	// Teams are numbered 1 and 2, so the losing team is 3 minus the winner.
	loserTeam := 3 - game.WinningTeam
	for id := range winners {
		if _, ok := known[id]; ok {
			wonIDs = append(wonIDs, id)
			participants = append(participants, models.BagsGameParticipant{GameID: game.ID, UserID: id, Team: game.WinningTeam, Won: true})
		}
	}
	for id := range losers {
		if _, ok := known[id]; ok {
			lostIDs = append(lostIDs, id)
			participants = append(participants, models.BagsGameParticipant{GameID: game.ID, UserID: id, Team: loserTeam, Won: false})
		}
	}

	// The participants table is what "games for player X" queries join against.
	if len(participants) > 0 {
		if err := tx.Create(&participants).Error; err != nil {
			return err
		}
	}
	// One UPDATE for all winners and one for all losers.
	if err := increment(tx, "bags_wins", wonIDs); err != nil {
		return err
	}
	return increment(tx, "bags_losses", lostIDs)
}

// increment adds one to column for every listed user in a single UPDATE.
func increment(tx *gorm.DB, column string, ids []uuid.UUID) error {
	// Nothing to do, and "IN ()" is not valid SQL on every driver.
	if len(ids) == 0 {
		return nil
	}
	// SET col = col + 1 runs in the database, so two games finishing at once for the same
	// player both count. Reading the value and writing it back would lose one of them.
	return tx.Model(&models.User{}).
		Where("id IN ?", ids).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error
}

// existingUsers returns the subset of the given user ids that exist in the users table.
func existingUsers(tx *gorm.DB, sets ...map[uuid.UUID]struct{}) (map[uuid.UUID]struct{}, error) {
	// Flatten every set into one id list for a single IN query.
	var ids []uuid.UUID
	for _, set := range sets {
		for id := range set {
			ids = append(ids, id)
		}
	}
	found := map[uuid.UUID]struct{}{}
	if len(ids) == 0 {
		return found, nil
	}
	var rows []uuid.UUID
	// Pluck reads a single column into a slice.
	if err := tx.Model(&models.User{}).Where("id IN ?", ids).Pluck("id", &rows).Error; err != nil {
		return nil, err
	}
	for _, id := range rows {
		found[id] = struct{}{}
	}
	return found, nil
}

// GameFilter narrows ListGames. Zero values mean "no filter".
type GameFilter struct {
	Limit        int             // page size; see PageLimit
	Offset       int             // rows to skip
	GameType     models.GameType // casual or tournament
	PlayerID     *uuid.UUID      // games this member played in
	TournamentID *uuid.UUID      // games recorded against this tournament
}

// PageLimit is the page size ListGames uses for a requested limit.
func PageLimit(n int) int {
	switch {
	case n <= 0:
		return defaultPageSize
	case n > maxPageSize:
		return maxPageSize
	}
	return n
}

// ListGames returns one page of games, newest first, and the total matching the filter.
func (t *Tracker) ListGames(ctx context.Context, f GameFilter) ([]models.BagsGame, int64, error) {
	// --- Validate the filter ---
	f.Limit = PageLimit(f.Limit)
	if f.Offset < 0 {
		return nil, 0, apperr.Validation("offset cannot be negative")
	}
	if f.GameType != "" && f.GameType != models.GameTypeCasual && f.GameType != models.GameTypeTournament {
		return nil, 0, apperr.Validation("type must be casual or tournament")
	}

	// filtered builds a fresh query with the filters applied. It is called twice (count,
	// then page) because a GORM chain is consumed by the first finisher method.
	db := t.db.WithContext(ctx)
	filtered := func() *gorm.DB {
		// Each filter adds one WHERE clause; GORM joins them with AND.
		q := db.Model(&models.BagsGame{})
		if f.GameType != "" {
			q = q.Where("game_type = ?", f.GameType)
		}
		if f.TournamentID != nil {
			q = q.Where("tournament_id = ?", *f.TournamentID)
		}
		// A player's games are found through the participants table as a subquery.
		if f.PlayerID != nil {
			q = q.Where("id IN (?)", db.Model(&models.BagsGameParticipant{}).Select("game_id").Where("user_id = ?", *f.PlayerID))
		}
		return q
	}

	// Total ignores limit/offset so the client can render pagination.
	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, storageErr("count games", err)
	}
	// Newest first, so the first page is the latest results.
	var games []models.BagsGame
	err := filtered().Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&games).Error
	if err != nil {
		return nil, 0, storageErr("list games", err)
	}
	return games, total, nil
}

// GetGame loads one game.
func (t *Tracker) GetGame(ctx context.Context, id uuid.UUID) (*models.BagsGame, error) {
	var game models.BagsGame
	err := t.db.WithContext(ctx).First(&game, "id = ?", id).Error
	// Map GORM's "no rows" onto the API's 404.
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, storageErr("load game", err)
	}
	return &game, nil
}

// resolveGameType picks the stored game type. An empty type is inferred from whether the
// game belongs to a tournament; an explicit "casual" cannot be combined with a tournament id.
func resolveGameType(gt models.GameType, tournamentID *uuid.UUID) (models.GameType, error) {
	switch gt {
	// No type given: infer it from the tournament id.
	case "":
		if tournamentID != nil {
			return models.GameTypeTournament, nil
		}
		return models.GameTypeCasual, nil
	case models.GameTypeCasual:
		if tournamentID != nil {
			return "", apperr.Validation("casual games cannot belong to a tournament")
		}
		return gt, nil
	// A tournament game without an id is allowed: brackets played off the app.
	case models.GameTypeTournament:
		return gt, nil
	}
	return "", apperr.Validation("game_type must be casual or tournament")
}

// cleanRoster sanitises names and rejects blank entries. required rosters must be non-empty.
func cleanRoster(field string, entries []models.PlayerEntry, required bool) ([]models.PlayerEntry, error) {
	if required && len(entries) == 0 {
		return nil, apperr.Validation("%s must list at least one player", field)
	}
	out := make([]models.PlayerEntry, 0, len(entries))
	// seen catches the same member listed twice on one roster.
	seen := map[uuid.UUID]struct{}{}
	for _, e := range entries {
		name := sanitize.Text(e.Name)
		if name == "" {
			return nil, apperr.Validation("every player in %s needs a name", field)
		}
		// Guests may share a name; only member references must be unique.
		if id, ok := e.UserRef(); ok {
			if _, dup := seen[id]; dup {
				return nil, apperr.Validation("%s lists the same player twice", field)
			}
			seen[id] = struct{}{}
		}
		// Only the id and the cleaned name are kept.
		out = append(out, models.PlayerEntry{ID: e.ID, Name: name})
	}
	return out, nil
}

// rosterUsers returns the set of registered members referenced by a roster. Guests are skipped.
func rosterUsers(entries []models.PlayerEntry) map[uuid.UUID]struct{} {
	set := map[uuid.UUID]struct{}{}
	for _, e := range entries {
		if id, ok := e.UserRef(); ok {
			set[id] = struct{}{}
		}
	}
	return set
}

// publish forwards an update to the Publisher, if one is configured.
func (t *Tracker) publish(tournamentID uuid.UUID, u Update) {
	if t.pub == nil {
		return
	}
	t.pub.Publish(tournamentID, u)
}

// storageErr passes classified errors through untouched and wraps anything else with the
// operation name. Unclassified errors become a logged 500 in the handler layer.
func storageErr(op string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
