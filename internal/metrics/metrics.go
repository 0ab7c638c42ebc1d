package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters exposed on the ops router's /metrics endpoint.
var (
	// Transitions counts dispatched voice-presence transitions by kind
	// (join | leave).
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "channellink",
		Name:      "transitions_total",
		Help:      "Voice presence transitions dispatched, by kind.",
	}, []string{"kind"})

	// ProvisionedRooms counts paired text rooms created on cold resolves.
	ProvisionedRooms = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "channellink",
		Name:      "provisioned_rooms_total",
		Help:      "Paired text rooms provisioned.",
	})

	// TransitionErrors counts per-leg transition failures by error class
	// (store_unavailable | room_creation | persist | permission_write | other).
	TransitionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "channellink",
		Name:      "transition_errors_total",
		Help:      "Failed transition legs, by error class.",
	}, []string{"class"})

	// DroppedEvents counts presence events dropped because a participant's
	// queue was full or the service was shutting down.
	DroppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "channellink",
		Name:      "dropped_events_total",
		Help:      "Presence events dropped before dispatch.",
	})
)
