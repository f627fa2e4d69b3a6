// Package metrics holds the service's Prometheus collectors, exposed at
// /metrics by the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoginFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_login_failures_total",
		Help: "Failed login attempts.",
	})

	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_placed_total",
		Help: "Successfully placed orders.",
	})

	OrdersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_rejected_total",
		Help: "Order placements rejected before persistence.",
	}, []string{"reason"})

	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_emails_sent_total",
		Help: "Transactional emails delivered, by template.",
	}, []string{"template"})

	EmailFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_email_failures_total",
		Help: "Transactional email delivery failures, by template.",
	}, []string{"template"})
)
