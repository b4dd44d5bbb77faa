// This file streams tournament updates to browsers with server-sent events (SSE).
//
// How an update reaches a viewer:
//
//	bags.Tracker commits a change
//	  -> LiveFeed.Publish converts it to the REST response shape
//	  -> live.Hub queues it for every subscriber of "tournament:<id>"
//	  -> TournamentStream writes it as "event: <kind>\ndata: <json>\n\n"
//
// SSE is one-way and runs over plain HTTP, which is all a scoreboard needs. The
// browser's EventSource reconnects on its own if the connection drops, and the
// snapshot sent on every (re)connect means nothing is missed.

package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trentd187/beach-club/internal/bags"
	"github.com/trentd187/beach-club/internal/live"
	"github.com/trentd187/beach-club/internal/metrics"
)

// keepAlive is how often an idle stream gets a comment line, which is also how a
// disconnected viewer is noticed.
const keepAlive = 15 * time.Second

// TournamentTopic is the hub topic for one tournament.
func TournamentTopic(id uuid.UUID) string {
	return "tournament:" + id.String()
}

// LiveUpdate is the data of every event on a tournament stream.
type LiveUpdate struct {
	Kind       string              `json:"kind"`                 // snapshot, started, game_recorded, ...
	Tournament *TournamentResponse `json:"tournament,omitempty"` // state after the change
	Game       *GameResponse       `json:"game,omitempty"`       // the game just recorded, if any
}

// LiveFeed publishes tracker updates to the hub in their API shape. It implements
// bags.Publisher.
type LiveFeed struct {
	hub *live.Hub
	log *zap.Logger
}

// NewLiveFeed returns a feed that publishes onto hub.
func NewLiveFeed(hub *live.Hub, log *zap.Logger) *LiveFeed {
	return &LiveFeed{hub: hub, log: log}
}

// Publish converts u to its API shape and hands it to the hub. Publishing never
// blocks the tracker; a failure is logged and dropped.
func (f *LiveFeed) Publish(tournamentID uuid.UUID, u bags.Update) {
	// Models are converted here so stream clients get exactly the REST response shape.
	msg := LiveUpdate{Kind: u.Kind}
	if u.Tournament != nil {
		t := newTournamentResponse(u.Tournament)
		msg.Tournament = &t
	}
	if u.Game != nil {
		g := newGameResponse(u.Game)
		msg.Game = &g
	}
	if err := f.hub.Publish(TournamentTopic(tournamentID), u.Kind, msg); err != nil {
		f.log.Error("publish tournament update", zap.String("tournament_id", tournamentID.String()), zap.Error(err))
	}
}

// TournamentStream handles GET /api/bags/tournaments/:id/live as a server-sent event
// stream. The first event is a "snapshot" of the tournament; every later event is named
// after the change (started, game_recorded, ...) and carries a LiveUpdate.
func TournamentStream(tracker *bags.Tracker, hub *live.Hub, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// --- Before streaming ---
		// Anything that can fail with a normal JSON error happens before the headers go out.
		id, err := paramID(c, "id", bags.ErrTournamentNotFound)
		if err != nil {
			return err
		}
		tour, err := tracker.GetTournament(c.UserContext(), id)
		if err != nil {
			return err
		}
		// Subscribe before sending the snapshot so no update published in between is lost.
		// Subscribe returns nil once the hub has shut down.
		client := hub.Subscribe(TournamentTopic(id))
		if client == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "live updates are unavailable")
		}
		metrics.LiveSubscribers.Inc()
		snapshot := LiveUpdate{Kind: "snapshot", Tournament: ptrTo(newTournamentResponse(tour))}

		// --- SSE headers ---
		// X-Accel-Buffering stops nginx from holding events back in its buffer.
		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		// --- Streaming ---
		// fasthttp calls this writer after the handler has returned and keeps the
		// connection open until it returns.
		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			// Always release the subscription, whichever way the loop ends.
			defer func() {
				hub.Unsubscribe(client)
				metrics.LiveSubscribers.Dec()
			}()

			// The first event is the full current state.
			data, err := json.Marshal(snapshot)
			if err != nil {
				log.Error("encode tournament snapshot", zap.Error(err))
				return
			}
			if err := writeEvent(w, "snapshot", data); err != nil {
				return
			}

			ticker := time.NewTicker(keepAlive)
			defer ticker.Stop()
			for {
				select {
				// A closed channel means the hub dropped this client (slow reader or shutdown).
				case msg, ok := <-client.Send:
					if !ok {
						return
					}
					if err := writeEvent(w, msg.Event, msg.Data); err != nil {
						return
					}
				// Lines starting with ":" are SSE comments; browsers ignore them. A failed
				// flush means the viewer has gone.
				case <-ticker.C:
					if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
						return
					}
					if err := w.Flush(); err != nil {
						return
					}
				}
			}
		})
		return nil
	}
}

// writeEvent writes one named SSE event and flushes it to the client.
func writeEvent(w *bufio.Writer, event string, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}

// ptrTo returns a pointer to a copy of v.
func ptrTo[T any](v T) *T { return &v }
