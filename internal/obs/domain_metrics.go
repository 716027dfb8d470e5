package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// WebhookTotal counts inbound payment webhook processing outcomes.
	WebhookTotal *prometheus.CounterVec
	// IntentTotal counts payment intent creation attempts.
	IntentTotal *prometheus.CounterVec
	// DedupSkipTotal counts commits suppressed by the dedup gate.
	DedupSkipTotal *prometheus.CounterVec
	// NotificationTotal counts notification dispatch outcomes by channel.
	NotificationTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		WebhookTotal = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "donation_webhook_total",
			Help:      "Count of processed donation webhooks by provider and outcome.",
		}, []string{"provider", "result"}))
		IntentTotal = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_intent_total",
			Help:      "Count of payment intent creation outcomes.",
		}, []string{"result"}))
		DedupSkipTotal = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_skip_total",
			Help:      "Count of duplicate deliveries suppressed by the dedup gate.",
		}, []string{"provider"}))
		NotificationTotal = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_send_total",
			Help:      "Count of notification dispatch outcomes by channel.",
		}, []string{"channel", "result"}))
	})
}
