package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()

	m.CommandReceived("open")
	m.CommandReceived("open")
	m.CommandReceived("stop")
	m.UpdateFinished("set_state", nil)
	m.UpdateFinished("set_state", errors.New("unknown state"))
	m.Connected()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"commands open", testutil.ToFloat64(m.commands.WithLabelValues("open")), 2},
		{"commands stop", testutil.ToFloat64(m.commands.WithLabelValues("stop")), 1},
		{"updates ok", testutil.ToFloat64(m.updates.WithLabelValues("set_state", ResultOK)), 1},
		{"updates rejected", testutil.ToFloat64(m.updates.WithLabelValues("set_state", ResultRejected)), 1},
		{"connects", testutil.ToFloat64(m.connects), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestSetState(t *testing.T) {
	m := New()
	all := []string{"closed", "open"}

	m.SetState("main", "open", all)
	m.SetState("main", "closed", all)

	if got := testutil.ToFloat64(m.state.WithLabelValues("main", "closed")); got != 1 {
		t.Errorf("state closed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.state.WithLabelValues("main", "open")); got != 0 {
		t.Errorf("state open = %v, want 0", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetPosition(42)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "graylogic_valve_position 42") {
		t.Errorf("metrics output missing position gauge:\n%s", body)
	}
}
