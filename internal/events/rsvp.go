// This file holds the RSVP side of the ledger.
//
// The upsert relies on the unique index over (user_id, event_id):
//
//	INSERT INTO rsvps (...) VALUES (...)
//	ON CONFLICT (user_id, event_id) DO UPDATE SET status = ..., updated_at = ...
//
// The database decides between insert and update atomically, so two requests from
// the same member racing each other both succeed and leave exactly one row.

package events

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/trentd187/beach-club/internal/models"
)

// UpsertRSVP records userID's answer for eventID, inserting or updating in one statement.
// created reports whether this call inserted the row.
func (l *Ledger) UpsertRSVP(ctx context.Context, userID, eventID uuid.UUID, status models.RSVPStatus) (rsvp *models.RSVP, created bool, err error) {
	// Reject unknown statuses before any database work.
	if !status.Valid() {
		return nil, false, ErrInvalidStatus
	}
	// The event must exist; answering for an unknown event is a 404.
	db := l.db.WithContext(ctx)
	if _, err := l.loadEvent(db, eventID); err != nil {
		return nil, false, err
	}

	// candidate is the row to insert if the pair has no RSVP yet. Its id is generated here
	// (not in BeforeCreate) so it can be compared with the stored row afterwards.
	now := l.now()
	candidate := models.RSVP{
		ID:        uuid.New(), // compared after the write to tell insert from update
		UserID:    userID,
		EventID:   eventID,
		Status:    status,
		CreatedAt: now, // kept from the first answer on update
		UpdatedAt: now,
	}
	// INSERT ... ON CONFLICT (user_id, event_id) DO UPDATE SET status, updated_at.
	// The unique index on the pair decides between insert and update inside the database,
	// so two concurrent calls for the same pair cannot both insert.
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "event_id"}},
		DoUpdates: clause.Assignments(map[string]any{"status": status, "updated_at": now}),
	}).Create(&candidate).Error
	// A missing user fails the foreign key here and surfaces as a storage error.
	if err != nil {
		return nil, false, storageErr("upsert rsvp", err)
	}

	// Read back whichever row now holds the pair. If it carries the id generated above,
	// the insert branch ran.
	var stored models.RSVP
	if err := db.Where("user_id = ? AND event_id = ?", userID, eventID).First(&stored).Error; err != nil {
		return nil, false, storageErr("reload rsvp", err)
	}
	return &stored, stored.ID == candidate.ID, nil
}

// ListRSVPsForEvent returns every RSVP for an event with the responding member loaded.
func (l *Ledger) ListRSVPsForEvent(ctx context.Context, eventID uuid.UUID) ([]models.RSVP, error) {
	db := l.db.WithContext(ctx)
	// An unknown event is a 404, not an empty list.
	if _, err := l.loadEvent(db, eventID); err != nil {
		return nil, err
	}
	// Oldest answer first, with each member preloaded for their display name.
	var list []models.RSVP
	err := db.Preload("User").Where("event_id = ?", eventID).Order("created_at").Find(&list).Error
	if err != nil {
		return nil, storageErr("list rsvps", err)
	}
	return list, nil
}

// ListRSVPsForUser returns a member's RSVPs with their events, soonest event first.
func (l *Ledger) ListRSVPsForUser(ctx context.Context, userID uuid.UUID) ([]models.RSVP, error) {
	var list []models.RSVP
	// The join is only for ordering by the event's date; Preload fills the Event fields.
	err := l.db.WithContext(ctx).
		Preload("Event.Creator").
		Joins("JOIN events ON events.id = rsvps.event_id").
		// Columns are table-qualified since both tables have id and timestamp columns.
		Where("rsvps.user_id = ?", userID).
		Order("events.date").
		Find(&list).Error
	if err != nil {
		return nil, storageErr("list user rsvps", err)
	}
	return list, nil
}
