package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "blindtest"

// Results of an inbound chat message.
const (
	MessageIgnored = "ignored"
	MessageMissed  = "missed"
	MessageMatched = "matched"
)

var (
	messagesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_handled_total",
		Help:      "Inbound chat messages by outcome.",
	}, []string{"result"})

	pointsCredited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "points_credited_total",
		Help:      "Sum of the points credited to players.",
	})

	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_sent_total",
		Help:      "Notifications delivered to a channel, by kind and outcome.",
	}, []string{"kind", "outcome"})

	games = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "games",
		Help:      "Games held in memory, by state.",
	}, []string{"state"})

	eventHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "event",
		Name:      "handler_errors_total",
		Help:      "Event handlers that returned an error or panicked.",
	}, []string{"event"})
)

func ObserveMessage(result string) {
	messagesHandled.WithLabelValues(result).Inc()
}

func ObservePoints(points float64) {
	pointsCredited.Add(points)
}

func ObserveNotification(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	notificationsSent.WithLabelValues(kind, outcome).Inc()
}

// ObserveGameState moves one game from one state gauge to another. An empty
// from or to means the game was created or deleted.
func ObserveGameState(from, to string) {
	if from != "" {
		games.WithLabelValues(from).Dec()
	}
	if to != "" {
		games.WithLabelValues(to).Inc()
	}
}

func ObserveEventHandlerError(event string) {
	eventHandlerErrors.WithLabelValues(event).Inc()
}
