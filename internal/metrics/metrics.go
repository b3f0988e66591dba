// Package metrics exposes Prometheus counters for account and purchase
// activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

var (
	Signups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tiketi",
			Name:      "signups_total",
			Help:      "Signup attempts by result and error kind",
		},
		[]string{"result", "kind"},
	)

	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tiketi",
			Name:      "logins_total",
			Help:      "Login attempts by result",
		},
		[]string{"result"},
	)

	Purchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tiketi",
			Name:      "purchases_total",
			Help:      "Ticket purchase attempts by result and error kind",
		},
		[]string{"result", "kind"},
	)

	TicketsSold = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tiketi",
			Name:      "tickets_sold_total",
			Help:      "Tickets recorded in successful purchases",
		},
	)

	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tiketi",
			Name:      "auth_failures_total",
			Help:      "Rejected bearer tokens by reason",
		},
		[]string{"reason"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
