package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-valve/internal/auth"
	"github.com/nerrad567/gray-logic-valve/internal/hass"
	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/database"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("VALVE_CONFIG", configPath)
	return configPath
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("VALVE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_MissingDatabasePath(t *testing.T) {
	writeTestConfig(t, `
device:
  id: "garden"
database:
  path: ""
api:
  enabled: false
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with empty database path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want config error", err)
	}
}

// TestRun_UnreachableBroker stops at the MQTT connection after the database
// and controller are set up.
func TestRun_UnreachableBroker(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "valve.db")
	writeTestConfig(t, `
device:
  id: "garden"
mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "test-unreachable"
database:
  path: "`+dbPath+`"
  wal_mode: true
  busy_timeout: 5
api:
  enabled: false
`)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without a broker")
	}
	if !strings.Contains(err.Error(), "connecting to MQTT") {
		t.Errorf("run() error = %v, want MQTT connection error", err)
	}
	if _, statErr := os.Stat(dbPath); statErr != nil {
		t.Errorf("database not created before MQTT connect: %v", statErr)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("VALVE_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("VALVE_CONFIG", "/custom/path/config.yaml")
	if got := getConfigPath(); got != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath() = %q, want override", got)
	}
}

func TestDeviceInfo(t *testing.T) {
	got := deviceInfo(config.DeviceConfig{
		ID:           "garden",
		Name:         "Garden",
		Manufacturer: "Gray Logic",
		SWVersion:    "1.2.0",
	})
	want := hass.DeviceInfo{
		Identifiers:     "garden",
		Name:            "Garden",
		Manufacturer:    "Gray Logic",
		SoftwareVersion: "1.2.0",
	}
	if got != want {
		t.Errorf("deviceInfo() = %+v, want %+v", got, want)
	}
}

func TestNewValve(t *testing.T) {
	node := hass.NewNode(nil, hass.NodeConfig{
		Namespace: hass.Namespace{DiscoveryPrefix: "homeassistant", DataPrefix: "gl", DeviceID: "garden"},
	})

	v := newValve(node, config.ValveConfig{
		UniqueID:          "main",
		Name:              "Main",
		Icon:              "mdi:valve",
		Retain:            true,
		PositionReporting: true,
		PositionOpen:      90,
		PositionClosed:    5,
	})

	if v.UniqueID() != "main" || v.Name() != "Main" || v.Icon() != "mdi:valve" || !v.Retain() {
		t.Errorf("valve attributes not applied: %q %q %q %v", v.UniqueID(), v.Name(), v.Icon(), v.Retain())
	}
	if !v.Features().PositionReporting || v.Features().StopSupport {
		t.Errorf("Features() = %+v", v.Features())
	}
	if v.PositionOpen() != 90 || v.PositionClosed() != 5 {
		t.Errorf("thresholds = (%d, %d), want (90, 5)", v.PositionOpen(), v.PositionClosed())
	}
}

func TestRunToken(t *testing.T) {
	writeTestConfig(t, `
device:
  id: "garden"
api:
  jwt_secret: "`+testSecret+`"
`)

	var out bytes.Buffer
	if err := runToken(&out, []string{"dashboard", string(auth.ScopeRead)}); err != nil {
		t.Fatalf("runToken() error = %v", err)
	}

	claims, err := auth.ParseToken(strings.TrimSpace(out.String()), testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "dashboard" || claims.Scope != auth.ScopeRead {
		t.Errorf("claims = %+v", claims)
	}
}

func TestRunToken_Errors(t *testing.T) {
	writeTestConfig(t, "device:\n  id: \"garden\"\n")

	tests := []struct {
		name string
		args []string
	}{
		{"no args", nil},
		{"unknown scope", []string{"x", "valve:admin"}},
		{"no secret", []string{"x", string(auth.ScopeControl)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := runToken(&bytes.Buffer{}, tt.args); err == nil {
				t.Error("runToken() expected error")
			}
		})
	}
}

func TestRunMigrate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "valve.db")
	writeTestConfig(t, `
device:
  id: "garden"
database:
  path: "`+dbPath+`"
`)
	ctx := context.Background()

	var out bytes.Buffer
	if err := runMigrate(ctx, &out, []string{"status"}); err != nil {
		t.Fatalf("runMigrate(status) error = %v", err)
	}
	if !strings.Contains(out.String(), "pending  20260301_090000") {
		t.Errorf("status on a fresh database = %q, want pending 20260301_090000", out.String())
	}

	db, err := database.Open(database.Config{Path: dbPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	db.Close()

	out.Reset()
	if err := runMigrate(ctx, &out, []string{"status"}); err != nil {
		t.Fatalf("runMigrate(status) error = %v", err)
	}
	if !strings.Contains(out.String(), "applied  20260301_090000") {
		t.Errorf("status after Migrate = %q, want applied 20260301_090000", out.String())
	}

	out.Reset()
	if err := runMigrate(ctx, &out, []string{"down"}); err != nil {
		t.Fatalf("runMigrate(down) error = %v", err)
	}
	if !strings.Contains(out.String(), "pending  20260301_090000") {
		t.Errorf("status after down = %q, want pending 20260301_090000", out.String())
	}
}

func TestRunMigrate_Usage(t *testing.T) {
	for _, args := range [][]string{nil, {"up"}, {"status", "extra"}} {
		if err := runMigrate(context.Background(), &bytes.Buffer{}, args); err == nil {
			t.Errorf("runMigrate(%q) expected usage error", args)
		}
	}
}
