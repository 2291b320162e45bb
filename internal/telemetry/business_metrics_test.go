package telemetry

import (
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBusinessMetricsWith(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBusinessMetricsWith(reg, "")

	m.WorkflowOutcomes.WithLabelValues("sent").Inc()
	m.WorkflowOutcomes.WithLabelValues("sent").Inc()
	m.WebhookProcessed.WithLabelValues("ignored").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.WorkflowOutcomes.WithLabelValues("sent")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WebhookProcessed.WithLabelValues("ignored")))

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "invoicer_business_invoice_workflow_outcomes_total")
	assert.Contains(t, names, "invoicer_business_webhooks_processed_total")
}

func TestCaptureError_DisabledIsNoop(t *testing.T) {
	sentryInstance = nil
	assert.False(t, IsEnabled())

	assert.NotPanics(t, func() {
		CaptureError(assert.AnError, map[string]interface{}{"k": "v"})
		CaptureErrorWithEvent(assert.AnError, "evt_1", nil)
		AddBreadcrumb("billing", "created", nil)
		CaptureMessage("sent invoice is not open", sentry.LevelWarning, map[string]interface{}{"status": "draft"})
	})
}
