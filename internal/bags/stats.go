// This file derives statistics from the counters RecordGame maintains: the
// leaderboard and the per-player detail view with its achievement badges.
//
// Nothing here writes. The counters on the users table are the source of truth, so
// a leaderboard is one indexed query rather than an aggregate over every game.

package bags

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trentd187/beach-club/internal/models"
)

// LeaderboardSize is how many players the leaderboard shows.
const LeaderboardSize = 50

// recentGamesLimit is how many games the player detail view lists.
const recentGamesLimit = 10

// PlayerSummary is one member's bags record.
type PlayerSummary struct {
	UserID         uuid.UUID // the member's account id
	Name           string    // display name with the usual fallbacks (see models.User.Name)
	AvatarURL      *string   // uploaded avatar, else the cached Google picture
	Wins           int       // games won
	Losses         int       // games lost
	GamesPlayed    int       // wins + losses
	WinRate        float64   // percent, one decimal place
	TournamentWins int       // completed tournaments this member won

	ratio float64 // unrounded, for the achievements below
}

// summarize converts a user row into its leaderboard summary.
func summarize(u *models.User) PlayerSummary {
	return PlayerSummary{
		UserID:         u.ID,
		Name:           u.Name(),
		AvatarURL:      u.Avatar(),
		Wins:           u.BagsWins,
		Losses:         u.BagsLosses,
		GamesPlayed:    u.GamesPlayed(),
		WinRate:        u.WinRate(),
		TournamentWins: u.BagsTournamentWins,
		ratio:          u.WinRatio(),
	}
}

// winRatioSQL is models.User.WinRatio as a column expression. The leaderboard query only
// selects members with at least one game, so the denominator is never zero; NULLIF keeps
// the expression safe regardless. "* 1.0" forces non-integer division on every driver.
const winRatioSQL = "bags_wins * 1.0 / NULLIF(bags_wins + bags_losses, 0)"

// Leaderboard ranks every member with at least one recorded game: most wins first, ties
// broken by the higher win rate, then by email so the order is stable between requests.
// At most limit rows are returned; limit is capped at LeaderboardSize.
func (t *Tracker) Leaderboard(ctx context.Context, limit int) ([]PlayerSummary, error) {
	// 0 (or anything out of range) means "the full board".
	if limit <= 0 || limit > LeaderboardSize {
		limit = LeaderboardSize
	}

	// Ranking and truncation both happen in the database, so only the rows that will be
	// shown are ever loaded.
	var users []models.User
	err := t.db.WithContext(ctx).
		Where("bags_wins > 0 OR bags_losses > 0").
		Order("bags_wins DESC").
		Order(winRatioSQL + " DESC").
		Order("email ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, storageErr("load leaderboard", err)
	}

	// Convert each row to its public summary (display name, rounded win rate, ...).
	board := make([]PlayerSummary, len(users))
	for i := range users {
		board[i] = summarize(&users[i])
	}
	return board, nil
}

// PlayerStats is the detail view for one member.
type PlayerStats struct {
	Player       PlayerSummary     // same shape as a leaderboard row
	RecentGames  []models.BagsGame // newest first, at most recentGamesLimit
	Achievements []string          // badge keys, in the order earned below
}

// PlayerStats loads a member's record, their most recent games and the achievements it earns.
func (t *Tracker) PlayerStats(ctx context.Context, userID uuid.UUID) (*PlayerStats, error) {
	db := t.db.WithContext(ctx)

	// The member must exist; an unknown id is a 404, not an empty record.
	var user models.User
	err := db.First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, storageErr("load player", err)
	}

	// Recent games come from the participants index, so guests' names never match by accident.
	var recent []models.BagsGame
	err = db.Joins("JOIN bags_game_participants p ON p.game_id = bags_games.id").
		Where("p.user_id = ?", userID).
		Order("bags_games.created_at DESC").
		Limit(recentGamesLimit).
		Find(&recent).Error
	if err != nil {
		return nil, storageErr("load recent games", err)
	}

	summary := summarize(&user)
	return &PlayerStats{
		Player:       summary,
		RecentGames:  recent,
		Achievements: achievements(summary),
	}, nil
}

// achievements derives badges from a player's record.
func achievements(p PlayerSummary) []string {
	// Start from an empty (not nil) slice so the JSON is [] for a player with no badges.
	out := []string{}
	// Thresholds are inclusive. Each badge is independent of the others.
	if p.Wins >= 1 {
		out = append(out, "first_win")
	}
	if p.Wins >= 10 {
		out = append(out, "ten_wins")
	}
	if p.GamesPlayed >= 50 {
		out = append(out, "beach_regular")
	}
	// A high win ratio only counts once there is a meaningful number of games.
	if p.GamesPlayed >= 10 && p.ratio >= 0.75 {
		out = append(out, "sharpshooter")
	}
	if p.TournamentWins >= 1 {
		out = append(out, "champion")
	}
	return out
}
