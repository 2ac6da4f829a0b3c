package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// счетчики транспорта; cmd/app отдает их на METRICS_ADDR
var (
	eventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tictacthrow_ws_events_received_total",
		Help: "Inbound events delivered to the session loop, by event name.",
	}, []string{"event"})

	decodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tictacthrow_ws_decode_failures_total",
		Help: "Inbound frames dropped because the envelope did not parse.",
	})

	emitsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tictacthrow_ws_emits_total",
		Help: "Outbound operations queued for send, by event name.",
	}, []string{"event"})

	reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tictacthrow_ws_reconnects_total",
		Help: "Successful re-dials after a dropped connection.",
	})
)
