package database_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/trentd187/beach-club/internal/database"
	"github.com/trentd187/beach-club/internal/database/dbtest"
	"github.com/trentd187/beach-club/internal/models"
)

func TestAutoMigrateCreatesEveryTable(t *testing.T) {
	db := dbtest.Open(t)
	for _, table := range []string{"users", "events", "rsvps", "bags_games", "bags_game_participants", "bags_tournaments"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex(&models.RSVP{}, "idx_rsvps_user_event"))
}

func TestUniqueConstraintsTranslate(t *testing.T) {
	db := dbtest.Open(t)

	u := models.User{Email: "dup@example.com", IsActive: true}
	require.NoError(t, db.Create(&u).Error)

	err := db.Create(&models.User{Email: "dup@example.com", IsActive: true}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestDeletingUserCascadesEventsAndRSVPs(t *testing.T) {
	db := dbtest.Open(t)

	owner := models.User{Email: "owner@example.com", IsActive: true}
	guest := models.User{Email: "guest@example.com", IsActive: true}
	require.NoError(t, db.Create(&owner).Error)
	require.NoError(t, db.Create(&guest).Error)

	event := models.Event{Title: "Bonfire", EventType: models.DefaultEventType, CreatedBy: owner.ID}
	require.NoError(t, db.Create(&event).Error)
	require.NoError(t, db.Create(&models.RSVP{UserID: guest.ID, EventID: event.ID, Status: models.RSVPGoing}).Error)

	require.NoError(t, db.Delete(&models.User{}, "id = ?", owner.ID).Error)

	var events, rsvps int64
	db.Model(&models.Event{}).Count(&events)
	db.Model(&models.RSVP{}).Count(&rsvps)
	assert.Zero(t, events)
	assert.Zero(t, rsvps)
}

func TestDeletingUserKeepsBagsHistory(t *testing.T) {
	db := dbtest.Open(t)

	host := models.User{Email: "host@example.com", IsActive: true}
	require.NoError(t, db.Create(&host).Error)

	tour := models.BagsTournament{
		Name: "Summer Slam", Size: 4, Players: datatypes.JSON(`[]`),
		Status: models.TournamentInProgress, CreatorID: &host.ID,
	}
	require.NoError(t, db.Create(&tour).Error)
	game := models.BagsGame{
		Team1Players: datatypes.JSON(`[]`), Team2Players: datatypes.JSON(`[]`),
		Team1Score: 21, Team2Score: 9, WinningTeam: 1, GameType: models.GameTypeTournament,
		TournamentID: &tour.ID, StartedAt: time.Now(), EndedAt: time.Now(),
		Location: "Main Beach", RecordedBy: &host.ID,
	}
	require.NoError(t, db.Create(&game).Error)

	require.NoError(t, db.Delete(&models.User{}, "id = ?", host.ID).Error)

	var gotTour models.BagsTournament
	require.NoError(t, db.First(&gotTour, "id = ?", tour.ID).Error)
	assert.Nil(t, gotTour.CreatorID)

	var gotGame models.BagsGame
	require.NoError(t, db.First(&gotGame, "id = ?", game.ID).Error)
	assert.Nil(t, gotGame.RecordedBy)
	require.NotNil(t, gotGame.TournamentID, "the tournament itself still exists")

	// Removing the tournament unlinks its games rather than deleting them.
	require.NoError(t, db.Delete(&models.BagsTournament{}, "id = ?", tour.ID).Error)
	var unlinked models.BagsGame
	require.NoError(t, db.First(&unlinked, "id = ?", game.ID).Error)
	assert.Nil(t, unlinked.TournamentID)
}

func TestBeforeCreateAssignsIDs(t *testing.T) {
	db := dbtest.Open(t)
	u := models.User{Email: "id@example.com", IsActive: true}
	require.NoError(t, db.Create(&u).Error)
	assert.NotEqual(t, uuid.Nil, u.ID)
}

func TestConfigTranslatesErrors(t *testing.T) {
	cfg := database.Config(zap.NewNop())
	assert.True(t, cfg.TranslateError)
	assert.NotNil(t, cfg.Logger)
}
