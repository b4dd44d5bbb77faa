// This file handles the /api/bags routes: recording and listing games, running
// tournaments, and reading the leaderboard and per-player statistics.
//
// All of these routes sit behind Auth. The handlers only translate between JSON and
// the tracker's input types; every rule about what a valid game or tournament
// change looks like lives in the bags package, which returns apperr errors that
// ErrorHandler turns into 400, 403, 404 or 409 responses.
//
// Tournament lifecycle as seen from the API:
//
//	POST /bags/tournaments                      -> setup
//	PUT  /bags/tournaments/:id {}               -> edit name or roster (setup only)
//	PUT  /bags/tournaments/:id {"action":"start"}          setup -> in_progress
//	PUT  /bags/tournaments/:id {"action":"update_bracket"} in_progress -> in_progress
//	PUT  /bags/tournaments/:id {"action":"complete"}       in_progress -> completed

package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/trentd187/beach-club/internal/apperr"
	"github.com/trentd187/beach-club/internal/bags"
	"github.com/trentd187/beach-club/internal/metrics"
	"github.com/trentd187/beach-club/internal/middleware"
	"github.com/trentd187/beach-club/internal/models"
)

// GameRequest is the body of POST /api/bags/games.
type GameRequest struct {
	Team1Players    []models.PlayerEntry `json:"team1_players"`    // at least one named player; members as "user_<uuid>"
	Team2Players    []models.PlayerEntry `json:"team2_players"`    // same shape as team 1
	Team1Score      *int                 `json:"team1_score"`      // pointer so a missing score is not read as 0
	Team2Score      *int                 `json:"team2_score"`      // non-negative, and not equal to team1_score
	GameType        string               `json:"game_type"`        // casual (default) or tournament
	TournamentID    *string              `json:"tournament_id"`    // set for bracket games
	TournamentRound *int                 `json:"tournament_round"` // bracket round, optional
	Location        string               `json:"location"`         // defaults to "Beach Club"
	StartedAt       *string              `json:"started_at"`       // RFC 3339; defaults to the end time
}

// ListGames handles GET /api/bags/games?limit=&offset=&type=&player_id=&tournament_id=.
//
// Query parameters, all optional:
//   - limit, offset: paging; limit defaults to 50 and is capped at 100
//   - type: casual or tournament
//   - player_id: only games this member played in (a UUID or "user_<uuid>")
//   - tournament_id: only games recorded against this tournament
func ListGames(tracker *bags.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Every query parameter is optional. Bad values come back from the tracker as 400s.
		f := bags.GameFilter{
			GameType: models.GameType(c.Query("type")),
		}
		// One shared err keeps the run of optional parameter parses short.
		var err error
		if f.Limit, err = queryInt(c, "limit"); err != nil {
			return err
		}
		if f.Offset, err = queryInt(c, "offset"); err != nil {
			return err
		}
		// player_id accepts the roster form as well as a bare UUID.
		if f.PlayerID, err = queryUUID(c, "player_id"); err != nil {
			return err
		}
		if f.TournamentID, err = queryUUID(c, "tournament_id"); err != nil {
			return err
		}

		// total is the unpaged count so the client can draw page controls.
		games, total, err := tracker.ListGames(c.UserContext(), f)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"games":  newGameList(games),
			"total":  total,
			// Echo the limit actually applied, after clamping.
			"limit":  bags.PageLimit(f.Limit),
			"offset": f.Offset,
		})
	}
}

// RecordGame handles POST /api/bags/games. The signed-in member is stored as the
// recorder; they do not have to be one of the players. Every registered member on
// either team gets a win or a loss in the same transaction as the game itself.
func RecordGame(tracker *bags.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req GameRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		// Scores are checked for presence here; the tracker checks their values.
		if req.Team1Score == nil || req.Team2Score == nil {
			return apperr.Validation("team1_score and team2_score are required")
		}
		// Copy the request into the tracker's input type. Scores are known to be present now.
		in := bags.GameResult{
			Team1:           req.Team1Players,
			Team2:           req.Team2Players,
			Team1Score:      *req.Team1Score,
			Team2Score:      *req.Team2Score,
			GameType:        models.GameType(req.GameType),
			TournamentRound: req.TournamentRound,
			Location:        req.Location,
		}
		// Optional fields arrive as strings and are parsed into their Go types.
		if req.TournamentID != nil && *req.TournamentID != "" {
			id, err := uuid.Parse(*req.TournamentID)
			if err != nil {
				return apperr.Validation("tournament_id must be a UUID")
			}
			in.TournamentID = &id
		}
		if req.StartedAt != nil && *req.StartedAt != "" {
			started, err := parseTime("started_at", *req.StartedAt)
			if err != nil {
				return err
			}
			in.StartedAt = &started
		}

		// The recorder is whoever is signed in.
		game, err := tracker.RecordGame(c.UserContext(), middleware.UserID(c), in)
		if err != nil {
			return err
		}
		// Only successful recordings are counted.
		metrics.GamesRecorded.WithLabelValues(string(game.GameType)).Inc()
		// 201 Created, with the stored game in its API shape.
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message": "Game recorded successfully",
			"game":    newGameResponse(game),
		})
	}
}

// GetGame handles GET /api/bags/games/:id.
func GetGame(tracker *bags.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// A malformed id gets the same 404 as an unknown one.
		id, err := paramID(c, "id", bags.ErrGameNotFound)
		if err != nil {
			return err
		}
		game, err := tracker.GetGame(c.UserContext(), id)
		if err != nil {
			return err
		}
		// A single game is returned bare, without a wrapper object.
		return c.JSON(newGameResponse(game))
	}
}

// TournamentRequest is the body of POST /api/bags/tournaments.
type TournamentRequest struct {
	Name           string               `json:"name"`            // required, sanitised
	TournamentType int                  `json:"tournament_type"` // bracket size
	Players        []models.PlayerEntry `json:"players"`         // initial roster; may be completed during setup
}

// ListTournaments handles GET /api/bags/tournaments?status=.
func ListTournaments(tracker *bags.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// An empty status lists every tournament, newest first.
		list, err := tracker.ListTournaments(c.UserContext(), models.TournamentStatus(c.Query("status")))
		if err != nil {
			return err
		}
		out := make([]TournamentResponse, len(list))
		for i := range list {
			out[i] = newTournamentResponse(&list[i])
		}
		return c.JSON(fiber.Map{"tournaments": out})
	}
}

// CreateTournament handles POST /api/bags/tournaments.
func CreateTournament(tracker *bags.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req TournamentRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		// The signed-in member becomes the tournament's creator.
		tour, err := tracker.CreateTournament(c.UserContext(), middleware.UserID(c), bags.TournamentDraft{
			Name:    req.Name,
			Size:    req.TournamentType,
			Players: req.Players,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message":    "Tournament created successfully",
			"tournament": newTournamentResponse(tour),
		})
	}
}

// GetTournament handles GET /api/bags/tournaments/:id and includes the tournament's games.
func GetTournament(tracker *bags.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id", bags.ErrTournamentNotFound)
		if err != nil {
			return err
		}
		tour, err := tracker.GetTournament(c.UserContext(), id)
		if err != nil {
			return err
		}
		// An 8-player bracket has seven games, so one page of 100 leaves room for replays.
		games, _, err := tracker.ListGames(c.UserContext(), bags.GameFilter{TournamentID: &id, Limit: 100})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"tournament": newTournamentResponse(tour),
			"games":      newGameList(games),
		})
	}
}

// TournamentUpdateRequest is the body of PUT /api/bags/tournaments/:id. Action is one of
// start, update_bracket or complete, or empty for a name/roster edit during setup.
type TournamentUpdateRequest struct {
	Action       string                `json:"action"`        // start, update_bracket, complete or ""
	Name         *string               `json:"name"`          // setup only
	Players      *[]models.PlayerEntry `json:"players"`       // setup only; pointer so [] differs from absent
	Bracket      json.RawMessage       `json:"bracket"`       // raw so it is stored exactly as sent
	CurrentRound *int                  `json:"current_round"` // with update_bracket
	ChampionID   *string               `json:"champion_id"`   // roster id of the winner, with complete
	ChampionName *string               `json:"champion_name"` // overrides the roster name
}

// UpdateTournament handles PUT /api/bags/tournaments/:id.
func UpdateTournament(tracker *bags.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id", bags.ErrTournamentNotFound)
		if err != nil {
			return err
		}
		var req TournamentUpdateRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		upd := bags.TournamentUpdate{
			Action:       req.Action,
			Name:         req.Name,
			Players:      req.Players,
			CurrentRound: req.CurrentRound,
			ChampionID:   req.ChampionID,
			ChampionName: req.ChampionName,
		}
		// A JSON null bracket means "no change", the same as leaving it out.
		if len(req.Bracket) > 0 && string(req.Bracket) != "null" {
			upd.Bracket = datatypes.JSON(req.Bracket)
		}

		// Admins may update any tournament; everyone else only their own.
		tour, err := tracker.UpdateTournament(c.UserContext(), middleware.UserID(c), middleware.IsAdmin(c), id, upd)
		if err != nil {
			return err
		}
		// The metric label "edit" covers plain name and roster changes.
		action := req.Action
		if action == "" {
			action = "edit"
		}
		metrics.TournamentTransitions.WithLabelValues(action).Inc()
		return c.JSON(fiber.Map{
			"message":    "Tournament updated successfully",
			"tournament": newTournamentResponse(tour),
		})
	}
}

// Leaderboard handles GET /api/bags/stats/leaderboard?limit=. Members who have never
// played are left off. Ranking is most wins, then win rate, then email.
func Leaderboard(tracker *bags.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := queryInt(c, "limit")
		if err != nil {
			return err
		}
		// The tracker clamps limit, so zero means the default.
		board, err := tracker.Leaderboard(c.UserContext(), limit)
		if err != nil {
			return err
		}
		out := make([]PlayerSummaryResponse, len(board))
		for i, p := range board {
			out[i] = newPlayerSummaryResponse(p)
		}
		return c.JSON(fiber.Map{"leaderboard": out})
	}
}

// PlayerStats handles GET /api/bags/stats/player/:id: one member's record, their
// latest games and the badges they have earned.
func PlayerStats(tracker *bags.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Guests have no stats page, so only member ids are meaningful here.
		id, err := paramID(c, "id", bags.ErrPlayerNotFound)
		if err != nil {
			return err
		}
		// Stats reads the member's counters plus their ten most recent games.
		stats, err := tracker.PlayerStats(c.UserContext(), id)
		if err != nil {
			return err
		}
		p := stats.Player
		return c.JSON(fiber.Map{
			// The response nests identity, numbers and history separately.
			"player": fiber.Map{
				"id":         p.UserID.String(),
				"name":       p.Name,
				"avatar_url": p.AvatarURL,
			},
			"stats": fiber.Map{
				"wins":            p.Wins,
				"losses":          p.Losses,
				"games_played":    p.GamesPlayed,
				"win_rate":        p.WinRate,
				"tournament_wins": p.TournamentWins,
			},
			"recent_games": newGameList(stats.RecentGames),
			"achievements": stats.Achievements,
		})
	}
}

// queryInt reads an optional integer query parameter, 0 when absent.
func queryInt(c *fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	// Range checks belong to the caller; this only insists on a number.
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", key)
	}
	return n, nil
}

// queryUUID reads an optional id. Player ids may use the roster form user_<uuid>.
func queryUUID(c *fiber.Ctx, key string) (*uuid.UUID, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	if id, ok := models.ParseUserRef(raw); ok {
		return &id, nil
	}
	return nil, apperr.Validation("%s must be a UUID", key)
}

