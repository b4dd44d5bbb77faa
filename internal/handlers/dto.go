// This file holds the JSON response types and the functions that build them from
// the GORM models.

package handlers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/trentd187/beach-club/internal/bags"
	"github.com/trentd187/beach-club/internal/events"
	"github.com/trentd187/beach-club/internal/models"
)

// Response shapes. The GORM models are never serialised directly, so adding a column can
// never leak it (a password hash, say) into an API response.

// --- Members ---

// UserResponse is the public view of a member. The UserStats counters are only
// shown to the member and to admins.
type UserResponse struct {
	ID               string  `json:"id"` // UUID
	Email            string  `json:"email"`
	FirstName        *string `json:"first_name"`
	LastName         *string `json:"last_name"`
	DisplayName      string  `json:"display_name"` // falls back through display name, full name, email
	IsAdmin          bool    `json:"is_admin"`     // stored flag, not the token claim
	IsActive         bool    `json:"is_active"`    // false once deactivated by an admin
	AvatarURL        *string `json:"avatar_url"`   // uploaded avatar, else the Google picture
	Bio              *string `json:"bio"`
	FavoriteBand     *string `json:"favorite_band"`
	BeachMemberSince *string `json:"beach_member_since"` // YYYY-MM-DD
	CreatedAt        string  `json:"created_at"`         // RFC 3339, UTC
	LastLogin        *string `json:"last_login"`         // null until the first sign-in

	// Embedded pointer: when nil, encoding/json leaves all of its fields out.
	*UserStats
}

// UserStats is included for the member themselves and for admins.
type UserStats struct {
	BagsWins           int     `json:"bags_wins"` // games won, as a member of the winning team
	BagsLosses         int     `json:"bags_losses"`
	BagsWinRate        float64 `json:"bags_win_rate"`        // percent, one decimal place
	BagsTournamentWins int     `json:"bags_tournament_wins"` // tournaments finished as champion
	EventsCreated      int     `json:"events_created"`       // events this member has hosted
	SasquatchSightings int     `json:"sasquatch_sightings"`  // club lore, kept for the profile page
	NotifyEvents       bool    `json:"notify_events"`
	NotifyBagsGames    bool    `json:"notify_bags_games"`
	NotifyMessages     bool    `json:"notify_messages"`
}

// newUserResponse maps a member onto the response shape. withStats adds the private counters.
func newUserResponse(u *models.User, withStats bool) UserResponse {
	resp := UserResponse{
		ID:               u.ID.String(),
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		DisplayName:      u.Name(), // never empty
		IsAdmin:          u.IsAdmin,
		IsActive:         u.IsActive,
		AvatarURL:        u.Avatar(), // uploaded avatar or Google picture
		Bio:              u.Bio,
		FavoriteBand:     u.FavoriteBand,
		BeachMemberSince: formatDate(u.MemberSince), // date only, no time zone
		CreatedAt:        formatTime(u.CreatedAt),
		LastLogin:        formatOptionalTime(u.LastLogin), // null until first sign-in
	}
	if withStats {
		resp.UserStats = &UserStats{
			BagsWins:           u.BagsWins,
			BagsLosses:         u.BagsLosses,
			BagsWinRate:        u.WinRate(), // computed, not stored
			BagsTournamentWins: u.BagsTournamentWins,
			EventsCreated:      u.EventsCreated,
			SasquatchSightings: u.SasquatchSightings,
			NotifyEvents:       u.NotifyEvents,
			NotifyBagsGames:    u.NotifyBagsGames,
			NotifyMessages:     u.NotifyMessages,
		}
	}
	return resp
}

// --- Events ---

// EventResponse is an event as the API shows it.
type EventResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Date        string  `json:"date"`     // RFC 3339, UTC
	Location    *string `json:"location"` // null when not given
	EventType   string  `json:"event_type"`
	CreatedByID string  `json:"created_by_id"`          // UUID of the member who created it
	CreatorName string  `json:"creator_name,omitempty"` // only when the creator was preloaded
	RSVPCount   int64   `json:"rsvp_count"`             // members going
	CreatedAt   string  `json:"created_at"`
}

// newEventResponse maps an event and its "going" count onto the response shape.
func newEventResponse(e *models.Event, going int64) EventResponse {
	resp := EventResponse{
		ID:          e.ID.String(),
		Title:       e.Title,
		Description: e.Description,
		Date:        formatTime(e.Date),
		Location:    e.Location,
		EventType:   e.EventType,
		CreatedByID: e.CreatedBy.String(),
		RSVPCount:   going, // supplied by the caller; the model has no count
		CreatedAt:   formatTime(e.CreatedAt),
	}
	// An unloaded association is the zero User, whose ID never matches.
	if e.Creator.ID == e.CreatedBy {
		resp.CreatorName = e.Creator.Name()
	}
	return resp
}

func newEventSummaryResponse(s *events.EventSummary) EventResponse {
	return newEventResponse(&s.Event, s.GoingCount)
}

// RSVPResponse is one member's answer to one event.
type RSVPResponse struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	EventID   string         `json:"event_id"`
	Status    string         `json:"status"`              // going, not_going or interested
	UserName  string         `json:"user_name,omitempty"` // set on per-event listings
	Event     *EventResponse `json:"event,omitempty"`     // set on "my RSVPs" listings
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

func newRSVPResponse(r *models.RSVP) RSVPResponse {
	resp := RSVPResponse{
		ID:        r.ID.String(),
		UserID:    r.UserID.String(),
		EventID:   r.EventID.String(),
		Status:    string(r.Status), // typed string back to plain string for JSON
		CreatedAt: formatTime(r.CreatedAt),
		UpdatedAt: formatTime(r.UpdatedAt),
	}
	// Same preload check as newEventResponse, once for each association.
	if r.User.ID == r.UserID {
		resp.UserName = r.User.Name()
	}
	// The embedded event has no going count here; callers do not need it per RSVP.
	if r.Event.ID == r.EventID {
		ev := newEventResponse(&r.Event, 0)
		resp.Event = &ev
	}
	return resp
}

// --- Bags ---

// GameResponse is a recorded bags game.
type GameResponse struct {
	ID              string          `json:"id"`
	Team1Players    json.RawMessage `json:"team1_players"` // stored JSON, passed through untouched
	Team2Players    json.RawMessage `json:"team2_players"`
	Team1Score      int             `json:"team1_score"` // final points, team 1
	Team2Score      int             `json:"team2_score"`
	WinningTeam     int             `json:"winning_team"` // 1 or 2
	GameType        string          `json:"game_type"`    // casual or tournament
	TournamentID    *string         `json:"tournament_id"`
	TournamentRound *int            `json:"tournament_round"`
	StartedAt       string          `json:"started_at"` // RFC 3339, UTC
	EndedAt         string          `json:"ended_at"`
	DurationMinutes int             `json:"duration_minutes"` // derived when recorded
	Location        string          `json:"location"`
	RecordedBy      *string         `json:"recorded_by"` // null once the recorder's account is deleted
}

// newGameResponse maps a stored game onto the response shape.
func newGameResponse(g *models.BagsGame) GameResponse {
	resp := GameResponse{
		ID:              g.ID.String(),
		Team1Players:    rawJSON(g.Team1Players, "[]"), // rosters pass through as stored
		Team2Players:    rawJSON(g.Team2Players, "[]"),
		Team1Score:      g.Team1Score,
		Team2Score:      g.Team2Score,
		WinningTeam:     g.WinningTeam,
		GameType:        string(g.GameType),
		TournamentRound: g.TournamentRound,
		StartedAt:       formatTime(g.StartedAt),
		EndedAt:         formatTime(g.EndedAt),
		DurationMinutes: g.DurationMinutes,
		Location:        g.Location,
	}
	// Both references are nullable: guests' games can be unlinked from a deleted
	// tournament or a deleted recorder.
	resp.TournamentID = optionalID(g.TournamentID)
	resp.RecordedBy = optionalID(g.RecordedBy)
	return resp
}

// newGameList maps a page of games. Indexing avoids copying each game just to take its address.
func newGameList(games []models.BagsGame) []GameResponse {
	out := make([]GameResponse, len(games))
	for i := range games {
		out[i] = newGameResponse(&games[i])
	}
	return out
}

// TournamentResponse is a tournament with its roster and bracket.
type TournamentResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	TournamentType int             `json:"tournament_type"` // bracket size: 4 or 8
	Players        json.RawMessage `json:"players"`         // roster as stored
	Bracket        json.RawMessage `json:"bracket"`         // owned by the client; null until started
	ChampionID     *string         `json:"champion_id"`     // set once completed
	ChampionName   *string         `json:"champion_name"`
	Status         string          `json:"status"`        // setup, in_progress or completed
	CurrentRound   int             `json:"current_round"` // 0 during setup
	CreatorID      *string         `json:"creator_id"`
	CreatedAt      string          `json:"created_at"`
	StartedAt      *string         `json:"started_at"`   // null during setup
	CompletedAt    *string         `json:"completed_at"` // null until completed
}

// newTournamentResponse maps a stored tournament onto the response shape.
func newTournamentResponse(t *models.BagsTournament) TournamentResponse {
	return TournamentResponse{
		ID:             t.ID.String(),
		Name:           t.Name,
		TournamentType: t.Size, // the API calls the bracket size "tournament_type"
		Players:        rawJSON(t.Players, "[]"),
		Bracket:        rawJSON(t.Bracket, "null"), // null during setup
		ChampionID:     t.ChampionID,
		ChampionName:   t.ChampionName,
		Status:         string(t.Status),
		CurrentRound:   t.CurrentRound,
		CreatorID:      optionalID(t.CreatorID),
		CreatedAt:      formatTime(t.CreatedAt),
		StartedAt:      formatOptionalTime(t.StartedAt),
		CompletedAt:    formatOptionalTime(t.CompletedAt),
	}
}

// PlayerSummaryResponse is one row of the leaderboard or the head of a player's stats page.
type PlayerSummaryResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"` // display name, falling back as for UserResponse
	AvatarURL      *string `json:"avatar_url"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	GamesPlayed    int     `json:"games_played"` // wins plus losses
	WinRate        float64 `json:"win_rate"`     // percent, one decimal place
	TournamentWins int     `json:"tournament_wins"`
}

func newPlayerSummaryResponse(p bags.PlayerSummary) PlayerSummaryResponse {
	return PlayerSummaryResponse{
		ID:             p.UserID.String(),
		Name:           p.Name,
		AvatarURL:      p.AvatarURL,
		Wins:           p.Wins,
		Losses:         p.Losses,
		GamesPlayed:    p.GamesPlayed,
		WinRate:        p.WinRate,
		TournamentWins: p.TournamentWins,
	}
}

// --- Formatting helpers ---

// rawJSON passes a stored JSON column through, substituting empty when it was never set.
func rawJSON(b []byte, empty string) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage(empty)
	}
	return json.RawMessage(b)
}

// formatTime renders t as RFC 3339 in UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// formatOptionalTime renders a nullable timestamp, keeping nil as JSON null.
func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// formatDate renders a calendar date as YYYY-MM-DD.
func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	// Dates are stored without a zone, so no UTC conversion here.
	s := t.Format(time.DateOnly)
	return &s
}

// optionalID renders a nullable reference as a JSON string or null.
func optionalID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
