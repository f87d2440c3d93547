//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/config"
)

// Integration tests against a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -count=1 -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	return cfg
}

func connect(cfg config.MQTTConfig, opts ...Option) (*Client, error) {
	c := New(cfg, opts...)
	if err := c.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func TestIntegration_ConnectAndClose(t *testing.T) {
	client, err := connect(integrationConfig("valve-int-connect"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}

func TestIntegration_OnConnectFires(t *testing.T) {
	client := New(integrationConfig("valve-int-onconnect"))

	fired := make(chan struct{}, 1)
	client.SetOnConnect(func() { fired <- struct{}{} })

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Error("OnConnect callback not invoked")
	}
}

func TestIntegration_MessageRoundtrip(t *testing.T) {
	pubClient, err := connect(integrationConfig("valve-int-pub"))
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	subClient, err := connect(integrationConfig("valve-int-sub"))
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	topic := "valve-int/garden/main/cmd_t"
	received := make(chan string, 1)
	var once sync.Once

	err = subClient.Subscribe(topic, 1, func(_ string, p []byte) error {
		once.Do(func() { received <- string(p) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := pubClient.Publish(topic, []byte("open"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg != "open" {
			t.Errorf("Received = %q, want open", msg)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for message")
	}
}

func TestIntegration_CloseLeavesRetainedWill(t *testing.T) {
	willTopic := "valve-int/garden/avty_t"

	client, err := connect(integrationConfig("valve-int-will"), WithLastWill(willTopic, "offline"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Publish(willTopic, []byte("online"), 1, true); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	client.Close()

	observer, err := connect(integrationConfig("valve-int-will-observer"))
	if err != nil {
		t.Fatalf("Connect() observer error = %v", err)
	}
	defer observer.Close()

	received := make(chan string, 1)
	var once sync.Once
	err = observer.Subscribe(willTopic, 1, func(_ string, p []byte) error {
		once.Do(func() { received <- string(p) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg != "offline" {
			t.Errorf("retained availability = %q, want offline", msg)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for retained availability")
	}
}
