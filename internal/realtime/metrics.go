package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var realtimeState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "clubsync",
		Name:      "realtime_state",
		Help:      "Bridge state: 0 idle, 1 subscribing, 2 active, 3 error, 4 closed.",
	},
	[]string{"collection"},
)
