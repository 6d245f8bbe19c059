package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestRecordTurn(t *testing.T) {
	RecordTurn("web", "ok", 150*time.Millisecond)
	assert.Greater(t, testutil.ToFloat64(turnsTotal.WithLabelValues("web", "ok")), 0.0)
}

func TestRecordCounters(t *testing.T) {
	tests := []struct {
		name   string
		record func()
		read   func() float64
	}{
		{"transition", func() { RecordTransition("GREETING", "LEAD_TYPE_SELECTION") },
			func() float64 {
				return testutil.ToFloat64(transitionsTotal.WithLabelValues("GREETING", "LEAD_TYPE_SELECTION"))
			}},
		{"lead", func() { RecordLead("whatsapp", "created") },
			func() float64 { return testutil.ToFloat64(leadsTotal.WithLabelValues("whatsapp", "created")) }},
		{"otp", func() { RecordOTP("email", "send", "ok") },
			func() float64 { return testutil.ToFloat64(otpTotal.WithLabelValues("email", "send", "ok")) }},
		{"llm", func() { RecordLLMRequest("GenerateJSON", "ok") },
			func() float64 { return testutil.ToFloat64(llmRequestsTotal.WithLabelValues("GenerateJSON", "ok")) }},
		{"backend", func() { RecordBackendRequest("create_lead", "error") },
			func() float64 {
				return testutil.ToFloat64(backendRequestsTotal.WithLabelValues("create_lead", "error"))
			}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.read()
			tt.record()
			assert.Equal(t, before+1, tt.read())
		})
	}
}

func TestSetActiveSessions(t *testing.T) {
	SetActiveSessions(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(activeSessions))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordLead("web", "created")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "leadpipe_leads_total"))
}

func TestStartSpanWithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test", attribute.String("channel", "web"))
	defer span.End()
	assert.NotNil(t, ctx)
}
