// Package models defines the data structures (models) that map to database tables.
// GORM uses these structs to generate SQL queries and map database rows back to Go values.
// The struct field tags tell GORM how to handle each field: column type, constraints,
// default values and relationships.
//
// The data model represents a beach club where:
//   - Users sign up with a password or with Google, and carry their bags statistics
//   - Users create Events and RSVP to them (at most one RSVP per user per event)
//   - BagsGames record a single cornhole match between two teams
//   - BagsTournaments group games into a 4- or 8-player bracket
//
// The SQL in migrations/ is the production schema. AutoMigrate (used by tests and by the
// CLI's --auto flag) must produce an equivalent shape, so keep the tags and the SQL in sync.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- Enums ---
// Named string types plus constants. They read naturally in the database and stop a
// GameType from being passed where an RSVPStatus is expected.

// RSVPStatus is a member's answer to an event invitation.
type RSVPStatus string

const (
	RSVPGoing      RSVPStatus = "going"      // counted in an event's going total
	RSVPNotGoing   RSVPStatus = "not_going"  // declined, but kept so the answer is on record
	RSVPInterested RSVPStatus = "interested" // undecided
)

// Valid reports whether s is one of the three accepted answers.
func (s RSVPStatus) Valid() bool {
	switch s {
	case RSVPGoing, RSVPNotGoing, RSVPInterested:
		return true
	}
	return false
}

// GameType separates pickup games from games played inside a tournament bracket.
type GameType string

const (
	GameTypeCasual     GameType = "casual"     // pickup game, no bracket
	GameTypeTournament GameType = "tournament" // played as part of a bracket
)

// TournamentStatus is the tournament lifecycle: setup → in_progress → completed.
type TournamentStatus string

const (
	TournamentSetup      TournamentStatus = "setup"       // roster and name can still change
	TournamentInProgress TournamentStatus = "in_progress" // bracket is being played
	TournamentCompleted  TournamentStatus = "completed"   // champion recorded; terminal
)

// DefaultEventType is used when an event is created without a category.
const DefaultEventType = "general"

// DefaultGameLocation is where games are assumed to be played unless told otherwise.
const DefaultGameLocation = "Beach Club"

// --- Models ---

// User is a club member. Email is the identity for local login; GoogleID is set once the
// account has signed in with Google (either at creation or by linking on first Google login).
//
// The bags counters are only ever changed with column-level increments (bags_wins = bags_wins + 1),
// never by writing back a value read earlier in the request.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"` // generated in BeforeCreate
	Email        string    `gorm:"uniqueIndex;not null"` // stored lower-cased
	PasswordHash *string                                 // nil for accounts that have only ever used Google

	// Profile fields. Pointers so "never set" (NULL) differs from an empty string.
	FirstName    *string
	LastName     *string
	DisplayName  *string
	Bio          *string
	FavoriteBand *string
	MemberSince  *time.Time `gorm:"type:date"` // the date they joined the club, not the account
	AvatarURL    *string                       // uploaded by the member; wins over the Google picture

	// Google account link. The picture is refreshed on every Google sign-in.
	GoogleID         *string `gorm:"uniqueIndex"` // NULLs do not collide, so many users may have none
	GooglePictureURL *string

	// IsAdmin is granted from the admin email list or by another admin.
	// IsActive false blocks sign-in without deleting anything.
	IsAdmin  bool `gorm:"not null;default:false"`
	IsActive bool `gorm:"not null;default:true"`

	// Counters, maintained by the bags tracker and the events ledger.
	BagsWins           int `gorm:"not null;default:0"`
	BagsLosses         int `gorm:"not null;default:0"`
	BagsTournamentWins int `gorm:"not null;default:0"`
	EventsCreated      int `gorm:"not null;default:0"`
	SasquatchSightings int `gorm:"not null;default:0"`

	// Notification preferences, all on for new members.
	NotifyEvents    bool `gorm:"not null;default:true"`
	NotifyBagsGames bool `gorm:"not null;default:true"`
	NotifyMessages  bool `gorm:"not null;default:true"`

	// GORM fills CreatedAt and UpdatedAt automatically by field name.
	CreatedAt time.Time
	UpdatedAt time.Time
	LastLogin *time.Time // nil until the first sign-in
}

// Event is something happening at the club. Deleting the creator deletes the event.
type Event struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title       string    `gorm:"not null"`
	Description *string                           // optional free text, sanitised
	Date        time.Time `gorm:"not null;index"` // when it happens; indexed for date-ordered listings
	Location    *string
	EventType   string    `gorm:"not null;default:general"`                         // free-form category
	CreatedBy   uuid.UUID `gorm:"type:uuid;not null;index"`                         // foreign key to users.id
	Creator     User      `gorm:"foreignKey:CreatedBy;constraint:OnDelete:CASCADE"` // filled only by Preload
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RSVP is one member's answer for one event. The composite unique index is what makes
// the ledger's insert-or-update safe under concurrent requests.
type RSVP struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_rsvps_user_event"`
	EventID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_rsvps_user_event;index"` // own index too, for per-event listings
	Status    RSVPStatus `gorm:"not null"`
	User      User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Event     Event      `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps the table name stable regardless of GORM's pluralisation rules.
func (RSVP) TableName() string { return "rsvps" }

// --- UUID primary keys ---
// IDs are generated in Go rather than by a database default so the same models work on
// PostgreSQL and on the SQLite database the tests use.

// BeforeCreate is a GORM hook that runs just before the INSERT. Keeping an ID the
// caller already set lets tests and the RSVP upsert choose their own.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (r *RSVP) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// All lists every model in dependency order, for AutoMigrate.
func All() []any {
	// Parents come before the tables whose foreign keys point at them.
	return []any{
		&User{},
		&Event{},
		&RSVP{},
		&BagsGame{},
		&BagsGameParticipant{},
		&BagsTournament{},
	}
}
