package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/slack/events", "POST", 200, 10*time.Millisecond)
	m.RecordRequest("/slack/events", "POST", 200, 5*time.Millisecond)
	m.RecordError("/admin/tickets/:id", "GET", "NOT_FOUND")
	m.RecordOperation("ticket.create", OutcomeOK)
	m.RecordOperation("ticket.create", OutcomeOK)
	m.RecordOperation("ticket.reassign", OutcomeNotFound)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/slack/events|POST|200"])
	assert.Equal(t, "15ms", snap.RequestLatency["/slack/events|POST|200"])
	assert.Equal(t, int64(1), snap.Errors["/admin/tickets/:id|GET|NOT_FOUND"])
	assert.Equal(t, int64(2), snap.Operations["ticket.create|ok"])
	assert.Equal(t, int64(1), snap.Operations["ticket.reassign|not_found"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Second)
	m.RecordError("/", "GET", "X")
	m.RecordOperation("op", OutcomeOK)
	assert.Empty(t, m.Snapshot().Operations)
}

func TestRequestLoggerRecordsRoutePattern(t *testing.T) {
	metrics := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), metrics))
	app.Get("/admin/tickets/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/admin/tickets/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	assert.Equal(t, int64(1), metrics.Snapshot().Requests["/admin/tickets/:id|GET|204"])
}
