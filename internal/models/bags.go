// This file holds the bags models and the roster JSON they share.
//
// A roster is a JSON array of {"id", "name"} entries. Registered members carry an id
// of the form "user_<uuid>"; guests carry no id (or any id that is not a member
// reference) and exist only as a name on the scoreboard:
//
//	[{"id": "user_3f2c...", "name": "Sam"}, {"id": null, "name": "Uncle Rick"}]
//
// Rosters are stored verbatim on the game so guest names survive. The
// bags_game_participants table indexes just the members, for "games played by X".

package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// userRefPrefix marks a roster entry that points at a registered member ("user_<uuid>").
const userRefPrefix = "user_"

// PlayerEntry is one name on a team roster or tournament roster. Guests have no ID (or an
// ID that is not a member reference) and never affect anyone's statistics.
type PlayerEntry struct {
	ID   *string `json:"id"`   // "user_<uuid>" for members; nil or free-form for guests
	Name string  `json:"name"` // as shown on the scoreboard
}

// UserRef returns the member this entry refers to, accepting both "user_<uuid>" and a bare
// UUID. ok is false for guests.
func (p PlayerEntry) UserRef() (id uuid.UUID, ok bool) {
	if p.ID == nil {
		return uuid.Nil, false
	}
	return ParseUserRef(*p.ID)
}

// ParseUserRef is UserRef for a raw reference string, e.g. a tournament champion id.
func ParseUserRef(ref string) (uuid.UUID, bool) {
	// Both forms are accepted. uuid.Nil is never a real member.
	ref = strings.TrimPrefix(strings.TrimSpace(ref), userRefPrefix)
	id, err := uuid.Parse(ref)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// UserRefString formats a member reference the way clients store it in rosters.
func UserRefString(id uuid.UUID) string {
	return userRefPrefix + id.String()
}

// EncodeRoster serialises a roster for a JSON column. A nil roster is stored as [].
func EncodeRoster(entries []PlayerEntry) (datatypes.JSON, error) {
	// Storing [] rather than null keeps the column NOT NULL and the JSON uniform.
	if entries == nil {
		entries = []PlayerEntry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// DecodeRoster is the inverse of EncodeRoster. Empty column values decode to an empty roster.
func DecodeRoster(raw datatypes.JSON) ([]PlayerEntry, error) {
	entries := []PlayerEntry{}
	if len(raw) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// BagsGame is one finished cornhole match. Rosters are kept as JSON exactly as entered so
// guest names survive; the participants table indexes the registered members.
type BagsGame struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Team1Players    datatypes.JSON `gorm:"not null"` // []PlayerEntry as JSON
	Team2Players    datatypes.JSON `gorm:"not null"`
	Team1Score      int            `gorm:"not null"`
	Team2Score      int            `gorm:"not null"`
	WinningTeam     int            `gorm:"not null"`                      // 1 or 2; ties are never stored
	GameType        GameType       `gorm:"not null;default:casual;index"` // casual or tournament
	TournamentID    *uuid.UUID     `gorm:"type:uuid;index"`               // nil for casual games
	TournamentRound *int                                                  // round within the bracket, if the client says
	StartedAt       time.Time  `gorm:"not null"`
	EndedAt         time.Time  `gorm:"not null"`
	DurationMinutes int        `gorm:"not null"` // whole minutes from StartedAt to EndedAt
	Location        string     `gorm:"not null"`
	RecordedBy      *uuid.UUID `gorm:"type:uuid;index"` // nil once the recording member is deleted
	CreatedAt       time.Time  `gorm:"index"`

	// Games are shared history: deleting the member who entered one, or the tournament it
	// belonged to, unlinks the game instead of removing it.
	Recorder   *User           `gorm:"foreignKey:RecordedBy;constraint:OnDelete:SET NULL"`
	Tournament *BagsTournament `gorm:"foreignKey:TournamentID;constraint:OnDelete:SET NULL"`
}

// BagsGameParticipant links a registered member to a game they played in.
type BagsGameParticipant struct {
	GameID uuid.UUID `gorm:"type:uuid;primaryKey"` // composite key with UserID
	UserID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	Team   int       `gorm:"not null"` // 1 or 2
	Won    bool      `gorm:"not null"` // copied from the game so stats need no join
	Game   BagsGame  `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
	User   User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// BagsTournament is a single-elimination bracket for 4 or 8 players. Bracket is whatever
// structure the client sends; the server stores it verbatim and never interprets it.
type BagsTournament struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Name         string           `gorm:"not null"`
	Size         int              `gorm:"not null"` // 4 or 8 players
	Players      datatypes.JSON   `gorm:"not null"` // []PlayerEntry, at most Size entries
	Bracket      datatypes.JSON                     // nil until the tournament starts
	Status       TournamentStatus `gorm:"not null;default:setup;index"`
	CurrentRound int              `gorm:"not null;default:0"` // 0 during setup
	ChampionID   *string                                      // a roster id, so guests can win too
	ChampionName *string
	CreatorID    *uuid.UUID `gorm:"type:uuid;index"`                                   // nil once the creator's account is deleted
	Creator      *User      `gorm:"foreignKey:CreatorID;constraint:OnDelete:SET NULL"` // a deleted creator leaves the tournament in place
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// BeforeCreate assigns the primary key, as for the core models.
func (g *BagsGame) BeforeCreate(*gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

func (t *BagsTournament) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
