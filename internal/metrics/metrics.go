// Package metrics holds the Prometheus collectors the API reports.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Every metric name is prefixed with namespace, e.g. beachclub_auth_attempts_total.
const namespace = "beachclub"

// promauto registers each collector with the default registry as it is created, so
// declaring it here is enough for /metrics to expose it.
var (
	// AuthAttempts counts sign-in attempts by method (password, google, register) and
	// outcome (success, failure).
	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Authentication attempts by method and outcome.",
	}, []string{"method", "outcome"})

	// GamesRecorded counts bags games by type (casual, tournament).
	GamesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "games_recorded_total",
		Help:      "Bags games recorded by game type.",
	}, []string{"game_type"})

	// RSVPWrites counts RSVP upserts; result is created or updated.
	RSVPWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rsvp_writes_total",
		Help:      "RSVP writes by result.",
	}, []string{"result"})

	// TournamentTransitions counts tournament updates by action (start, update_bracket,
	// complete, edit).
	TournamentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tournament_transitions_total",
		Help:      "Tournament updates by action.",
	}, []string{"action"})

	// LiveSubscribers tracks open SSE streams. A gauge, since it goes down as well as up.
	LiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_subscribers",
		Help:      "Open live tournament streams.",
	})
)

// Outcome maps an error to the outcome label.
func Outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// Handler serves the default registry in the Prometheus text format.
func Handler() fiber.Handler {
	// promhttp speaks net/http; adaptor bridges it onto fasthttp.
	return adaptor.HTTPHandler(promhttp.Handler())
}
