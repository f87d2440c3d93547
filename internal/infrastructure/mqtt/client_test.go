package mqtt

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration. Nothing in this file
// connects to it; see integration_test.go for broker-backed tests.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "valve-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "valve"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "valve-test" {
		t.Errorf("ClientID = %q, want valve-test", opts.ClientID)
	}
	if opts.Username != "valve" || opts.Password != "secret" {
		t.Errorf("credentials = (%q, %q)", opts.Username, opts.Password)
	}
	if opts.Order {
		t.Error("Order = true, want unordered delivery")
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Errorf("AutoReconnect = %v, CleanSession = %v; want both true", opts.AutoReconnect, opts.CleanSession)
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig set without TLS enabled")
	}
}

func TestBuildClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers[0] = %s, want ssl://127.0.0.1:8883", opts.Servers[0])
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLSConfig missing or below minimum version")
	}
}

func TestWithLastWill(t *testing.T) {
	c := New(testConfig(), WithLastWill("graylogic/garden/avty_t", "offline"))

	if !c.options.WillEnabled {
		t.Fatal("WillEnabled = false")
	}
	if c.options.WillTopic != "graylogic/garden/avty_t" || string(c.options.WillPayload) != "offline" {
		t.Errorf("will = (%q, %q)", c.options.WillTopic, c.options.WillPayload)
	}
	if !c.options.WillRetained {
		t.Error("WillRetained = false, want true")
	}
}

func TestNewWithoutLastWill(t *testing.T) {
	c := New(testConfig())
	if c.options.WillEnabled {
		t.Error("WillEnabled = true without WithLastWill")
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestNewIsNotConnected(t *testing.T) {
	c := New(testConfig())

	if c.IsConnected() {
		t.Error("IsConnected() = true before Connect()")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	c := New(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestCloseNeverConnected(t *testing.T) {
	c := New(testConfig(), WithLastWill("graylogic/garden/avty_t", "offline"))
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestPublishValidation(t *testing.T) {
	c := New(testConfig())

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "a/b", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "a/b", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "a/b", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := New(testConfig())
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"invalid qos", "a/b", 3, handler, ErrInvalidQoS},
		{"nil handler", "a/b", 1, nil, ErrSubscribeFailed},
		{"not connected", "a/b", 1, handler, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if len(c.subscriptions) != 0 {
		t.Errorf("tracked subscriptions = %d after failed subscribes, want 0", len(c.subscriptions))
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

func TestDispatchRecoversPanic(t *testing.T) {
	logger := &recordingLogger{}
	c := New(testConfig(), WithLogger(logger))

	c.dispatch(func(string, []byte) error { panic("boom") }, "a/b", nil)

	if len(logger.errors) != 1 {
		t.Errorf("errors logged = %v, want one panic entry", logger.errors)
	}
}

func TestDispatchLogsHandlerError(t *testing.T) {
	logger := &recordingLogger{}
	c := New(testConfig())
	c.SetLogger(logger)

	c.dispatch(func(string, []byte) error { return fmt.Errorf("bad payload") }, "a/b", nil)

	if len(logger.warns) != 1 {
		t.Errorf("warnings logged = %v, want one", logger.warns)
	}
}

func TestDispatchWithoutLogger(t *testing.T) {
	c := New(testConfig())

	var got string
	c.dispatch(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return nil
	}, "a/b", []byte("open"))
	c.dispatch(func(string, []byte) error { panic("ignored") }, "a/b", nil)

	if got != "a/b=open" {
		t.Errorf("handler saw %q, want a/b=open", got)
	}
}

func TestHandleConnectRunsCallback(t *testing.T) {
	c := New(testConfig())

	called := 0
	c.SetOnConnect(func() { called++ })
	c.handleConnect()

	if called != 1 {
		t.Errorf("onConnect called %d times, want 1", called)
	}
}

func TestHandleDisconnectRunsCallback(t *testing.T) {
	c := New(testConfig())
	c.connected = true

	lost := errors.New("network down")
	var got error
	c.SetOnDisconnect(func(err error) { got = err })
	c.handleDisconnect(lost)

	if !errors.Is(got, lost) {
		t.Errorf("onDisconnect error = %v, want %v", got, lost)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}
}

// doneToken is an already completed paho token.
type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }

func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// callRecorder stands in for the paho client and records broker traffic in
// order. Methods not overridden panic through the nil embedded interface.
type callRecorder struct {
	pahomqtt.Client

	mu    sync.Mutex
	calls []string
}

func (r *callRecorder) IsConnected() bool { return true }

func (r *callRecorder) Publish(topic string, _ byte, _ bool, _ interface{}) pahomqtt.Token {
	r.record("publish " + topic)
	return doneToken{}
}

func (r *callRecorder) Subscribe(topic string, _ byte, _ pahomqtt.MessageHandler) pahomqtt.Token {
	r.record("subscribe " + topic)
	return doneToken{}
}

func (r *callRecorder) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *callRecorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := r.calls
	r.calls = nil
	return calls
}

// newRecordedClient returns a connected client over a callRecorder, with
// cmd_t already subscribed and tracked.
func newRecordedClient(t *testing.T) (*Client, *callRecorder) {
	t.Helper()
	rec := &callRecorder{}
	c := New(testConfig())
	c.client = rec
	c.connected = true

	noop := func(string, []byte) error { return nil }
	if err := c.Subscribe("graylogic/dev/v1/cmd_t", 1, noop); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	rec.take()
	return c, rec
}

func TestHandleConnectCallbackOwnsOrder(t *testing.T) {
	c, rec := newRecordedClient(t)
	noop := func(string, []byte) error { return nil }

	c.SetOnConnect(func() {
		for _, topic := range []string{
			"homeassistant/valve/dev/v1/config",
			"graylogic/dev/avty_t",
			"graylogic/dev/v1/stat_t",
		} {
			if err := c.Publish(topic, []byte("x"), 1, true); err != nil {
				t.Errorf("Publish(%s) error = %v", topic, err)
			}
		}
		if err := c.Subscribe("graylogic/dev/v1/cmd_t", 1, noop); err != nil {
			t.Errorf("Subscribe() error = %v", err)
		}
	})

	c.handleConnect()

	want := []string{
		"publish homeassistant/valve/dev/v1/config",
		"publish graylogic/dev/avty_t",
		"publish graylogic/dev/v1/stat_t",
		"subscribe graylogic/dev/v1/cmd_t",
	}
	if got := rec.take(); !reflect.DeepEqual(got, want) {
		t.Errorf("reconnect calls = %v, want %v", got, want)
	}
}

func TestHandleConnectRestoresWithoutCallback(t *testing.T) {
	c, rec := newRecordedClient(t)

	c.handleConnect()

	want := []string{"subscribe graylogic/dev/v1/cmd_t"}
	if got := rec.take(); !reflect.DeepEqual(got, want) {
		t.Errorf("reconnect calls = %v, want %v", got, want)
	}
}
