package events

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

func setup(t *testing.T) (*Ledger, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	return NewLedger(db, zap.NewNop()), db
}

func seedUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	u := models.User{Email: email, IsActive: true}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func seedEvent(t *testing.T, l *Ledger, creator uuid.UUID, title string, date time.Time) *models.Event {
	t.Helper()
	e, err := l.CreateEvent(context.Background(), creator, EventDetails{Title: title, Date: date})
	require.NoError(t, err)
	return e
}

func TestCreateEventCountsForCreator(t *testing.T) {
	l, db := setup(t)
	owner := seedUser(t, db, "owner@example.com")

	e := seedEvent(t, l, owner.ID, "<i>Full Moon</i> Bonfire", time.Now().Add(48*time.Hour))
	assert.Equal(t, "Full Moon Bonfire", e.Title)
	assert.Equal(t, models.DefaultEventType, e.EventType)
	seedEvent(t, l, owner.ID, "Sunrise Yoga", time.Now().Add(72*time.Hour))

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", owner.ID).Error)
	assert.Equal(t, 2, reloaded.EventsCreated)
}

func TestCreateEventValidation(t *testing.T) {
	l, db := setup(t)
	owner := seedUser(t, db, "owner@example.com")
	ctx := context.Background()

	_, err := l.CreateEvent(ctx, owner.ID, EventDetails{Title: "  ", Date: time.Now()})
	assert.Equal(t, 400, apperr.Status(err))

	_, err = l.CreateEvent(ctx, owner.ID, EventDetails{Title: "No date"})
	assert.Equal(t, 400, apperr.Status(err))

	_, err = l.CreateEvent(ctx, uuid.New(), EventDetails{Title: "Ghost host", Date: time.Now()})
	assert.Error(t, err)

	var count int64
	db.Model(&models.Event{}).Count(&count)
	assert.Zero(t, count, "failed creates leave nothing behind")
}

func TestUpsertRSVPKeepsOneRowWithLatestStatus(t *testing.T) {
	l, db := setup(t)
	ctx := context.Background()
	owner := seedUser(t, db, "owner@example.com")
	member := seedUser(t, db, "member@example.com")
	event := seedEvent(t, l, owner.ID, "Luau", time.Now())

	first, created, err := l.UpsertRSVP(ctx, member.ID, event.ID, models.RSVPInterested)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.RSVPInterested, first.Status)

	second, created, err := l.UpsertRSVP(ctx, member.ID, event.ID, models.RSVPGoing)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID, "the existing row is updated in place")
	assert.Equal(t, models.RSVPGoing, second.Status)

	var rows []models.RSVP
	require.NoError(t, db.Where("user_id = ? AND event_id = ?", member.ID, event.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, models.RSVPGoing, rows[0].Status)
}

func TestUpsertRSVPRejectsBeforeWriting(t *testing.T) {
	l, db := setup(t)
	ctx := context.Background()
	owner := seedUser(t, db, "owner@example.com")
	event := seedEvent(t, l, owner.ID, "Luau", time.Now())

	_, _, err := l.UpsertRSVP(ctx, owner.ID, event.ID, models.RSVPStatus("maybe"))
	require.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, 400, apperr.Status(err))

	_, _, err = l.UpsertRSVP(ctx, owner.ID, uuid.New(), models.RSVPGoing)
	require.ErrorIs(t, err, ErrEventNotFound)
	assert.Equal(t, 404, apperr.Status(err))

	var count int64
	db.Model(&models.RSVP{}).Count(&count)
	assert.Zero(t, count)
}

func TestGoingCounts(t *testing.T) {
	l, db := setup(t)
	ctx := context.Background()
	owner := seedUser(t, db, "owner@example.com")
	a := seedUser(t, db, "a@example.com")
	b := seedUser(t, db, "b@example.com")
	early := seedEvent(t, l, owner.ID, "Early", time.Now().Add(time.Hour))
	late := seedEvent(t, l, owner.ID, "Late", time.Now().Add(24*time.Hour))

	for _, step := range []struct {
		user   uuid.UUID
		event  uuid.UUID
		status models.RSVPStatus
	}{
		{a.ID, early.ID, models.RSVPGoing},
		{b.ID, early.ID, models.RSVPGoing},
		{owner.ID, early.ID, models.RSVPNotGoing},
		{a.ID, late.ID, models.RSVPInterested},
	} {
		_, _, err := l.UpsertRSVP(ctx, step.user, step.event, step.status)
		require.NoError(t, err)
	}

	list, err := l.ListEvents(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Late", list[0].Title, "newest date first")
	assert.Zero(t, list[0].GoingCount)
	assert.EqualValues(t, 2, list[1].GoingCount)
	assert.Equal(t, owner.ID, list[1].Creator.ID)

	one, err := l.GetEvent(ctx, early.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, one.GoingCount)

	rsvps, err := l.ListRSVPsForEvent(ctx, early.ID)
	require.NoError(t, err)
	assert.Len(t, rsvps, 3)

	mine, err := l.ListRSVPsForUser(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "Early", mine[0].Event.Title)

	_, err = l.ListRSVPsForEvent(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestListEventsFiltersByType(t *testing.T) {
	l, db := setup(t)
	ctx := context.Background()
	owner := seedUser(t, db, "owner@example.com")
	_, err := l.CreateEvent(ctx, owner.ID, EventDetails{Title: "Cleanup", Date: time.Now(), EventType: "volunteer"})
	require.NoError(t, err)
	seedEvent(t, l, owner.ID, "Party", time.Now())

	list, err := l.ListEvents(ctx, "volunteer")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Cleanup", list[0].Title)
}

func TestUpdateEventPermissions(t *testing.T) {
	l, db := setup(t)
	ctx := context.Background()
	owner := seedUser(t, db, "owner@example.com")
	stranger := seedUser(t, db, "stranger@example.com")
	event := seedEvent(t, l, owner.ID, "Luau", time.Now())
	title := "Grand Luau"

	_, err := l.UpdateEvent(ctx, stranger.ID, false, event.ID, EventChanges{Title: &title})
	require.ErrorIs(t, err, ErrNotOrganizer)

	updated, err := l.UpdateEvent(ctx, owner.ID, false, event.ID, EventChanges{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Grand Luau", updated.Title)

	loc := "North dune"
	updated, err = l.UpdateEvent(ctx, stranger.ID, true, event.ID, EventChanges{Location: &loc})
	require.NoError(t, err)
	assert.Equal(t, "North dune", *updated.Location)

	_, err = l.UpdateEvent(ctx, owner.ID, false, uuid.New(), EventChanges{Title: &title})
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestConcurrentRSVPsLeaveOneRow(t *testing.T) {
	l, db := setup(t)
	owner := seedUser(t, db, "owner@example.com")
	guest := seedUser(t, db, "guest@example.com")
	e := seedEvent(t, l, owner.ID, "Luau", time.Now().Add(24*time.Hour))

	const n = 16
	statuses := []models.RSVPStatus{models.RSVPGoing, models.RSVPNotGoing, models.RSVPInterested}

	var wg sync.WaitGroup
	type result struct {
		created bool
		err     error
	}
	results := make(chan result, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(status models.RSVPStatus) {
			defer wg.Done()
			_, created, err := l.UpsertRSVP(context.Background(), guest.ID, e.ID, status)
			results <- result{created: created, err: err}
		}(statuses[i%len(statuses)])
	}
	wg.Wait()
	close(results)

	creates := 0
	for r := range results {
		require.NoError(t, r.err)
		if r.created {
			creates++
		}
	}
	assert.Equal(t, 1, creates, "exactly one writer inserts the row")

	var rows int64
	require.NoError(t, db.Model(&models.RSVP{}).
		Where("user_id = ? AND event_id = ?", guest.ID, e.ID).
		Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}
