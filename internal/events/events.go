// Package events is the club calendar: events, and each member's RSVP to them.
//
// A member has at most one RSVP per event. Answering again changes the existing RSVP in
// place. The write is a single INSERT ... ON CONFLICT (user_id, event_id) DO UPDATE, so two
// concurrent answers for the same pair can never produce a duplicate-key failure or a
// second row; whichever statement runs last decides the stored status.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/trentd187/beach-club/internal/apperr"
	"github.com/trentd187/beach-club/internal/models"
	"github.com/trentd187/beach-club/internal/sanitize"
)

// Sentinel errors for the calendar. Handlers return them unchanged; apperr maps each
// to its status code.
var (
	ErrEventNotFound = apperr.NotFound("event not found")
	ErrInvalidStatus = apperr.Validation("status must be one of going, not_going, interested")
	ErrNotOrganizer  = apperr.Forbidden("only the event creator or an admin can change this event")
)

// Ledger is the events service. It is safe for concurrent use.
type Ledger struct {
	db  *gorm.DB         // shared connection pool
	log *zap.Logger      // named "events"
	now func() time.Time // swapped in tests to pin timestamps
}

// NewLedger wires the calendar service to a database connection.
func NewLedger(db *gorm.DB, log *zap.Logger) *Ledger {
	return &Ledger{db: db, log: log.Named("events"), now: time.Now}
}

// EventDetails is the input for creating an event.
type EventDetails struct {
	Title       string    // required; markup is stripped
	Description *string   // optional
	Date        time.Time // required; stored in UTC
	Location    *string   // optional
	EventType   string    // free-form category; blank means models.DefaultEventType
}

// EventSummary is an event plus the number of members going.
type EventSummary struct {
	// Embedded, so callers read summary.Title directly.
	models.Event
	GoingCount int64 // RSVPs with status "going"
}

// CreateEvent stores a new event and bumps the creator's events_created counter in the
// same transaction.
func (l *Ledger) CreateEvent(ctx context.Context, creatorID uuid.UUID, d EventDetails) (*models.Event, error) {
	// --- Validate and normalise the input ---
	title := sanitize.Text(d.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	if d.Date.IsZero() {
		return nil, apperr.Validation("date is required")
	}
	eventType := strings.TrimSpace(d.EventType)
	if eventType == "" {
		eventType = models.DefaultEventType
	}

	// Optional text fields become NULL when blank after sanitising.
	event := &models.Event{
		Title:       title,
		Description: sanitize.Optional(d.Description),
		Date:        d.Date.UTC(),
		Location:    sanitize.Optional(d.Location),
		EventType:   eventType,
		CreatedBy:   creatorID,
	}

	// --- Insert the event and count it for its creator in one transaction ---
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		// Atomic increment: SET events_created = events_created + 1.
		res := tx.Model(&models.User{}).Where("id = ?", creatorID).
			UpdateColumn("events_created", gorm.Expr("events_created + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		// No row updated means the creator does not exist. Returning an error rolls the
		// insert back too.
		if res.RowsAffected == 0 {
			return apperr.NotFound("creator not found")
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("create event", err)
	}

	// Logged after the commit, so the line only appears for events that exist.
	l.log.Info("event created", zap.String("event_id", event.ID.String()), zap.String("creator_id", creatorID.String()))
	return event, nil
}

// EventChanges lists the editable fields of an event. Nil leaves a field unchanged.
type EventChanges struct {
	Title       *string    // blank is rejected
	Description *string    // "" clears it
	Date        *time.Time // cannot be cleared
	Location    *string    // "" clears it
	EventType   *string    // "" resets to the default
}

// UpdateEvent edits an event. Only its creator or an admin may do so.
func (l *Ledger) UpdateEvent(ctx context.Context, actorID uuid.UUID, isAdmin bool, eventID uuid.UUID, ch EventChanges) (*models.Event, error) {
	// --- Build the column updates from the fields that were sent ---
	// Validation happens before any read, so a bad request never touches the database.
	updates := map[string]any{}
	if ch.Title != nil {
		title := sanitize.Text(*ch.Title)
		if title == "" {
			return nil, apperr.Validation("title cannot be blank")
		}
		updates["title"] = title
	}
	// Sending an empty description or location clears it.
	if ch.Description != nil {
		updates["description"] = sanitize.Optional(ch.Description)
	}
	if ch.Location != nil {
		updates["location"] = sanitize.Optional(ch.Location)
	}
	if ch.Date != nil {
		if ch.Date.IsZero() {
			return nil, apperr.Validation("date cannot be blank")
		}
		updates["date"] = ch.Date.UTC()
	}
	if ch.EventType != nil {
		t := strings.TrimSpace(*ch.EventType)
		if t == "" {
			t = models.DefaultEventType
		}
		updates["event_type"] = t
	}

	// --- Load and authorise ---
	db := l.db.WithContext(ctx)
	event, err := l.loadEvent(db, eventID)
	if err != nil {
		return nil, err
	}
	if event.CreatedBy != actorID && !isAdmin {
		return nil, ErrNotOrganizer
	}
	// Nothing to change: return the event as it is.
	if len(updates) == 0 {
		return event, nil
	}
	// A map update writes NULLs for cleared fields; a struct update would skip them.
	if err := db.Model(event).Updates(updates).Error; err != nil {
		return nil, storageErr("update event", err)
	}
	// Re-read so timestamps and sanitised values come back exactly as stored.
	return l.loadEvent(db, eventID)
}

// ListEvents returns events ordered by date, newest first, optionally filtered by type.
func (l *Ledger) ListEvents(ctx context.Context, eventType string) ([]EventSummary, error) {
	db := l.db.WithContext(ctx)
	// Preload the creator so the response can show their name without one query per event.
	q := db.Preload("Creator").Order("date DESC")
	// The type filter is an exact match on the stored category.
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	var list []models.Event
	if err := q.Find(&list).Error; err != nil {
		return nil, storageErr("list events", err)
	}

	// Going counts for every listed event come from one grouped query.
	ids := make([]uuid.UUID, len(list))
	for i, e := range list {
		ids[i] = e.ID
	}
	counts, err := l.goingCounts(db, ids)
	if err != nil {
		return nil, err
	}

	// Events with no "going" RSVPs are absent from counts and read as zero.
	out := make([]EventSummary, len(list))
	for i, e := range list {
		out[i] = EventSummary{Event: e, GoingCount: counts[e.ID]}
	}
	return out, nil
}

// GetEvent returns one event with its going count.
func (l *Ledger) GetEvent(ctx context.Context, id uuid.UUID) (*EventSummary, error) {
	db := l.db.WithContext(ctx)
	event, err := l.loadEvent(db.Preload("Creator"), id)
	if err != nil {
		return nil, err
	}
	counts, err := l.goingCounts(db, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	return &EventSummary{Event: *event, GoingCount: counts[id]}, nil
}

// goingCounts counts "going" RSVPs for each event in one grouped query.
func (l *Ledger) goingCounts(db *gorm.DB, eventIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(eventIDs))
	// "IN ()" is a syntax error on some databases, so an empty list never reaches SQL.
	if len(eventIDs) == 0 {
		return counts, nil
	}
	// One row per event that has at least one "going" RSVP.
	var rows []struct {
		EventID uuid.UUID
		N       int64
	}
	err := db.Model(&models.RSVP{}).
		Select("event_id, COUNT(*) AS n").
		Where("event_id IN ? AND status = ?", eventIDs, models.RSVPGoing).
		Group("event_id").
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("count rsvps", err)
	}
	for _, r := range rows {
		counts[r.EventID] = r.N
	}
	return counts, nil
}

// loadEvent reads one event, mapping "no rows" to ErrEventNotFound.
func (l *Ledger) loadEvent(db *gorm.DB, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	// First adds ORDER BY id LIMIT 1 and reports ErrRecordNotFound on no rows.
	err := db.First(&event, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, storageErr("load event", err)
	}
	return &event, nil
}

// storageErr passes classified errors through and wraps the rest with the operation name.
func storageErr(op string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
