package pagerduty

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentOnCallEmail(t *testing.T) {
	var since string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/schedules/SCHED1":
			since = r.URL.Query().Get("since")
			_, _ = w.Write([]byte(`{"schedule":{"id":"SCHED1","final_schedule":{"rendered_schedule_entries":[
				{"start":"2024-04-05T00:00:00Z","end":"2024-04-06T00:00:00Z","user":{"id":"PU1","type":"user_reference"}}]}}}`))
		case "/schedules/EMPTY":
			_, _ = w.Write([]byte(`{"schedule":{"id":"EMPTY","final_schedule":{"rendered_schedule_entries":[]}}}`))
		case "/users/PU1":
			_, _ = w.Write([]byte(`{"user":{"id":"PU1","email":"a@x.com"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"message":"Not Found","code":2100}}`))
		}
	}))
	defer srv.Close()

	c := New("token", srv.URL)
	c.now = func() time.Time { return time.Date(2024, 4, 5, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	email, err := c.CurrentOnCallEmail(ctx, "SCHED1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", email)
	assert.Equal(t, "2024-04-05T12:00:00Z", since)

	email, err = c.CurrentOnCallEmail(ctx, "EMPTY")
	require.NoError(t, err)
	assert.Empty(t, email)

	_, err = c.CurrentOnCallEmail(ctx, "MISSING")
	assert.Error(t, err)
}
