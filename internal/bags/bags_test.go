package bags

import (
	"context"
	"sync"
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

// recorder is a Publisher that keeps everything it is sent.
type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) Publish(_ uuid.UUID, u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.updates))
	for i, u := range r.updates {
		out[i] = u.Kind
	}
	return out
}

func setup(t *testing.T) (*Tracker, *gorm.DB, *recorder) {
	t.Helper()
	db := dbtest.Open(t)
	rec := &recorder{}
	return NewTracker(db, rec, zap.NewNop()), db, rec
}

func seedUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	u := models.User{Email: email, IsActive: true}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func member(u models.User) models.PlayerEntry {
	ref := models.UserRefString(u.ID)
	return models.PlayerEntry{ID: &ref, Name: u.Email}
}

func guest(name string) models.PlayerEntry {
	return models.PlayerEntry{Name: name}
}

func reload(t *testing.T, db *gorm.DB, id uuid.UUID) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, "id = ?", id).Error)
	return u
}

func TestRecordGameWinningTeamAndCounters(t *testing.T) {
	tr, db, _ := setup(t)
	ctx := context.Background()
	a := seedUser(t, db, "a@example.com")
	b := seedUser(t, db, "b@example.com")
	c := seedUser(t, db, "c@example.com")

	game, err := tr.RecordGame(ctx, a.ID, GameResult{
		Team1:      []models.PlayerEntry{member(a), guest("Uncle Rick")},
		Team2:      []models.PlayerEntry{member(b), member(c)},
		Team1Score: 21,
		Team2Score: 15,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, game.WinningTeam)
	assert.Equal(t, models.GameTypeCasual, game.GameType)
	assert.Equal(t, models.DefaultGameLocation, game.Location)

	assert.Equal(t, 1, reload(t, db, a.ID).BagsWins)
	assert.Equal(t, 0, reload(t, db, a.ID).BagsLosses)
	assert.Equal(t, 1, reload(t, db, b.ID).BagsLosses)
	assert.Equal(t, 1, reload(t, db, c.ID).BagsLosses)

	game, err = tr.RecordGame(ctx, a.ID, GameResult{
		Team1:      []models.PlayerEntry{member(a)},
		Team2:      []models.PlayerEntry{member(b)},
		Team1Score: 10,
		Team2Score: 21,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, game.WinningTeam)

	ra, rb, rc := reload(t, db, a.ID), reload(t, db, b.ID), reload(t, db, c.ID)
	assert.Equal(t, [2]int{1, 1}, [2]int{ra.BagsWins, ra.BagsLosses})
	assert.Equal(t, [2]int{1, 1}, [2]int{rb.BagsWins, rb.BagsLosses})
	assert.Equal(t, [2]int{0, 1}, [2]int{rc.BagsWins, rc.BagsLosses}, "c sat out the second game")
}

func TestRecordGameGuestsAndUnknownReferencesTouchNothing(t *testing.T) {
	tr, db, _ := setup(t)
	a := seedUser(t, db, "a@example.com")
	ghost := models.UserRefString(uuid.New())

	_, err := tr.RecordGame(context.Background(), a.ID, GameResult{
		Team1:      []models.PlayerEntry{guest("Walk-in Wally")},
		Team2:      []models.PlayerEntry{{ID: &ghost, Name: "Deleted Dan"}},
		Team1Score: 21,
		Team2Score: 3,
	})
	require.NoError(t, err)

	var touched int64
	db.Model(&models.User{}).Where("bags_wins > 0 OR bags_losses > 0").Count(&touched)
	assert.Zero(t, touched)

	var participants int64
	db.Model(&models.BagsGameParticipant{}).Count(&participants)
	assert.Zero(t, participants)
}

func TestRecordGameValidation(t *testing.T) {
	tr, db, _ := setup(t)
	a := seedUser(t, db, "a@example.com")
	future := time.Now().Add(time.Hour)

	cases := map[string]GameResult{
		"tie":            {Team1: []models.PlayerEntry{guest("x")}, Team2: []models.PlayerEntry{guest("y")}, Team1Score: 21, Team2Score: 21},
		"empty roster":   {Team1: nil, Team2: []models.PlayerEntry{guest("y")}, Team1Score: 21},
		"nameless":       {Team1: []models.PlayerEntry{{}}, Team2: []models.PlayerEntry{guest("y")}, Team1Score: 21},
		"negative score": {Team1: []models.PlayerEntry{guest("x")}, Team2: []models.PlayerEntry{guest("y")}, Team1Score: 21, Team2Score: -1},
		"both teams":     {Team1: []models.PlayerEntry{member(a)}, Team2: []models.PlayerEntry{member(a)}, Team1Score: 21},
		"future start":   {Team1: []models.PlayerEntry{guest("x")}, Team2: []models.PlayerEntry{guest("y")}, Team1Score: 21, StartedAt: &future},
		"bad type":       {Team1: []models.PlayerEntry{guest("x")}, Team2: []models.PlayerEntry{guest("y")}, Team1Score: 21, GameType: "league"},
	}
	for name, in := range cases {
		_, err := tr.RecordGame(context.Background(), a.ID, in)
		assert.Equal(t, 400, apperr.Status(err), name)
	}

	_, err := tr.RecordGame(context.Background(), a.ID, cases["tie"])
	assert.ErrorIs(t, err, ErrTieGame)

	var games int64
	db.Model(&models.BagsGame{}).Count(&games)
	assert.Zero(t, games)
	assert.Equal(t, 0, reload(t, db, a.ID).BagsWins)
}

func TestRecordGameDurationTruncatesToMinutes(t *testing.T) {
	tr, db, _ := setup(t)
	a := seedUser(t, db, "a@example.com")
	end := time.Date(2025, 8, 1, 18, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return end }
	start := end.Add(-(12*time.Minute + 59*time.Second))

	game, err := tr.RecordGame(context.Background(), a.ID, GameResult{
		Team1: []models.PlayerEntry{guest("x")}, Team2: []models.PlayerEntry{guest("y")},
		Team1Score: 21, Team2Score: 19, StartedAt: &start, Location: "Pier 4",
	})
	require.NoError(t, err)
	assert.Equal(t, 12, game.DurationMinutes)
	assert.Equal(t, "Pier 4", game.Location)
	assert.True(t, game.EndedAt.Equal(end))
}

func TestConcurrentGamesDoNotLoseIncrements(t *testing.T) {
	tr, db, _ := setup(t)
	a := seedUser(t, db, "a@example.com")

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.RecordGame(context.Background(), a.ID, GameResult{
				Team1: []models.PlayerEntry{member(a)}, Team2: []models.PlayerEntry{guest("rando")},
				Team1Score: 21, Team2Score: 7,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, n, reload(t, db, a.ID).BagsWins)
}

func TestListAndGetGames(t *testing.T) {
	tr, db, rec := setup(t)
	ctx := context.Background()
	a := seedUser(t, db, "a@example.com")
	b := seedUser(t, db, "b@example.com")

	for i := 0; i < 3; i++ {
		_, err := tr.RecordGame(ctx, a.ID, GameResult{
			Team1: []models.PlayerEntry{member(a)}, Team2: []models.PlayerEntry{guest("g")},
			Team1Score: 21, Team2Score: i,
		})
		require.NoError(t, err)
	}
	only, err := tr.RecordGame(ctx, b.ID, GameResult{
		Team1: []models.PlayerEntry{member(b)}, Team2: []models.PlayerEntry{guest("g")},
		Team1Score: 21, Team2Score: 20,
	})
	require.NoError(t, err)

	page, total, err := tr.ListGames(ctx, GameFilter{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, page, 2)

	mine, total, err := tr.ListGames(ctx, GameFilter{PlayerID: &b.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, mine, 1)
	assert.Equal(t, only.ID, mine[0].ID)

	_, total, err = tr.ListGames(ctx, GameFilter{GameType: models.GameTypeTournament})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, _, err = tr.ListGames(ctx, GameFilter{GameType: "league"})
	assert.Equal(t, 400, apperr.Status(err))

	got, err := tr.GetGame(ctx, only.ID)
	require.NoError(t, err)
	team1, err := models.DecodeRoster(got.Team1Players)
	require.NoError(t, err)
	require.Len(t, team1, 1)
	assert.Equal(t, models.UserRefString(b.ID), *team1[0].ID)

	_, err = tr.GetGame(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrGameNotFound)

	assert.Empty(t, rec.kinds(), "casual games are not published")
}

func TestLeaderboardOrdering(t *testing.T) {
	tr, db, _ := setup(t)
	mk := func(email string, wins, losses int) models.User {
		u := seedUser(t, db, email)
		require.NoError(t, db.Model(&u).UpdateColumns(map[string]any{"bags_wins": wins, "bags_losses": losses}).Error)
		return u
	}
	a := mk("a@example.com", 5, 0)
	b := mk("b@example.com", 3, 1)
	c := mk("c@example.com", 3, 3)
	d := mk("d@example.com", 0, 2)
	mk("idle@example.com", 0, 0)

	board, err := tr.Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, board, 4, "members without games are left out")

	order := []uuid.UUID{board[0].UserID, board[1].UserID, board[2].UserID, board[3].UserID}
	assert.Equal(t, []uuid.UUID{a.ID, b.ID, c.ID, d.ID}, order)
	assert.Equal(t, 100.0, board[0].WinRate)
	assert.Equal(t, 75.0, board[1].WinRate)
	assert.Equal(t, 50.0, board[2].WinRate)
	assert.Equal(t, 4, board[1].GamesPlayed)

	top, err := tr.Leaderboard(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestLeaderboardBreaksFullTiesByEmail(t *testing.T) {
	tr, db, _ := setup(t)
	for _, email := range []string{"zed@example.com", "amy@example.com", "max@example.com"} {
		u := models.User{Email: email, IsActive: true, BagsWins: 4, BagsLosses: 2}
		require.NoError(t, db.Create(&u).Error)
	}
	// Same wins, lower rate: ranks after the three above despite sorting first by email.
	worse := models.User{Email: "aaa@example.com", IsActive: true, BagsWins: 4, BagsLosses: 4}
	require.NoError(t, db.Create(&worse).Error)

	board, err := tr.Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, board, 4)
	names := []string{board[0].Name, board[1].Name, board[2].Name, board[3].Name}
	assert.Equal(t, []string{"amy", "max", "zed", "aaa"}, names)
}

func TestLeaderboardCapsAtFifty(t *testing.T) {
	tr, db, _ := setup(t)
	for i := 0; i < LeaderboardSize+5; i++ {
		u := models.User{Email: uuid.NewString() + "@example.com", IsActive: true, BagsWins: i + 1}
		require.NoError(t, db.Create(&u).Error)
	}
	board, err := tr.Leaderboard(context.Background(), 500)
	require.NoError(t, err)
	assert.Len(t, board, LeaderboardSize)
	assert.Equal(t, LeaderboardSize+5, board[0].Wins)
}

func TestPlayerStats(t *testing.T) {
	tr, db, _ := setup(t)
	ctx := context.Background()
	a := seedUser(t, db, "a@example.com")
	b := seedUser(t, db, "b@example.com")

	for i := 0; i < 12; i++ {
		_, err := tr.RecordGame(ctx, a.ID, GameResult{
			Team1: []models.PlayerEntry{member(a)}, Team2: []models.PlayerEntry{member(b)},
			Team1Score: 21, Team2Score: i,
		})
		require.NoError(t, err)
	}

	st, err := tr.PlayerStats(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, st.Player.Wins)
	assert.Len(t, st.RecentGames, recentGamesLimit)
	assert.Equal(t, 11, st.RecentGames[0].Team2Score, "most recent first")
	assert.Contains(t, st.Achievements, "first_win")
	assert.Contains(t, st.Achievements, "ten_wins")
	assert.Contains(t, st.Achievements, "sharpshooter")
	assert.NotContains(t, st.Achievements, "champion")

	loser, err := tr.PlayerStats(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, loser.Player.Losses)
	assert.Empty(t, loser.Achievements)

	_, err = tr.PlayerStats(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}
