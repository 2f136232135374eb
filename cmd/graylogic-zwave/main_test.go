package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/gray-logic-zwave/internal/automation"
	"github.com/nerrad567/gray-logic-zwave/internal/device"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/logging"
)

const testSecret = "test-secret-for-development-only-32chars"

const validModule = `{
  "name": "Outdoor Light Switch",
  "registeredActuators": [{"nodeId": 5}, {"nodeId": "6"}],
  "userAppConfigurationParameters": [
    {"name": "Start time 1", "value": "7:00pm"},
    {"name": "Stop time 1", "value": "11:30pm"},
    {"name": "Start time 2", "value": "00:00"},
    {"name": "Stop time 2", "value": "00:00"},
    {"name": "Normal State", "value": "off"}
  ]
}`

const invalidModule = `{
  "name": "Broken",
  "registeredActuators": [{"nodeId": 5}],
  "userAppConfigurationParameters": [
    {"name": "Start time 1", "value": "19:00"},
    {"name": "Normal State", "value": "off"}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// writeConfig writes a minimal valid config that lists modulePath.
func writeConfig(t *testing.T, dir, modulePath string) string {
	t.Helper()
	content := `
site:
  id: test-site
  timezone: UTC
database:
  path: ` + filepath.Join(dir, "test.db") + `
security:
  jwt:
    secret: "` + testSecret + `"
    access_token_ttl: 15
scheduler:
  modules:
    - name: OutdoorLightSwitch
      file: ` + modulePath + `
`
	return writeFile(t, dir, "config.yaml", content)
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("GRAYLOGIC_CONFIG", "")
	opts := &rootOptions{}
	if got := opts.resolveConfigPath(); got != defaultConfigPath {
		t.Errorf("default = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("GRAYLOGIC_CONFIG", "/etc/graylogic/zwave.yaml")
	if got := opts.resolveConfigPath(); got != "/etc/graylogic/zwave.yaml" {
		t.Errorf("env = %q", got)
	}

	opts.configPath = "./local.yaml"
	if got := opts.resolveConfigPath(); got != "./local.yaml" {
		t.Errorf("flag = %q, flag should win over env", got)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "graylogic-zwave "+version) {
		t.Errorf("output = %q", out)
	}
}

func TestCheckModule_Files(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", validModule)
	bad := writeFile(t, dir, "bad.json", invalidModule)

	out, err := execute(t, "check-module", good)
	if err != nil {
		t.Fatalf("check-module valid: %v\n%s", err, out)
	}
	for _, want := range []string{"OK", "2 actuators", "Start time 1", "7:00pm", "unset"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "check-module", good, bad)
	if !errors.Is(err, errInvalidModules) {
		t.Fatalf("err = %v, want errInvalidModules", err)
	}
	if !strings.Contains(out, "FAIL "+bad) {
		t.Errorf("output should report the bad file:\n%s", out)
	}
}

func TestCheckModule_FromConfig(t *testing.T) {
	dir := t.TempDir()
	module := writeFile(t, dir, "OutdoorLightSwitch.json", validModule)
	cfgPath := writeConfig(t, dir, module)

	out, err := execute(t, "--config", cfgPath, "check-module")
	if err != nil {
		t.Fatalf("check-module: %v\n%s", err, out)
	}
	if !strings.Contains(out, "OK   "+module) {
		t.Errorf("output = %q", out)
	}
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("GRAYLOGIC_JWT_SECRET", "")
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, writeFile(t, dir, "m.json", validModule))

	out, err := execute(t, "--config", cfgPath, "token", "--subject", "ops", "--ttl", "5m")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), claims, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Subject != "ops" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if life := claims.ExpiresAt.Sub(claims.IssuedAt.Time); life != 5*time.Minute {
		t.Errorf("lifetime = %s, want 5m", life)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestServe_InvalidConfig(t *testing.T) {
	_, err := execute(t, "--config", "/nonexistent/path/config.yaml", "serve")
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Errorf("serve err = %v", err)
	}
}

func TestAddModules(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", validModule)
	bad := writeFile(t, dir, "bad.json", invalidModule)
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	newRouter := func() *automation.Router {
		registry := device.NewRegistry(nil)
		return automation.NewRouter(registry, nil, automation.NewDispatcher(context.Background(), registry, nil, nil), 0)
	}
	disabled := false

	router := newRouter()
	err := addModules(router, []config.ModuleConfig{
		{Name: "OutdoorLightSwitch", File: good},
		{Name: "Broken", File: bad, Enabled: &disabled},
	}, nil, log)
	if err != nil {
		t.Fatalf("addModules: %v", err)
	}
	modules := router.Modules()
	if len(modules) != 1 || modules[0].Name != "OutdoorLightSwitch" || modules[0].State != device.StateOff {
		t.Errorf("modules = %+v", modules)
	}

	err = addModules(newRouter(), []config.ModuleConfig{{Name: "Broken", File: bad}}, nil, log)
	if err == nil || !strings.Contains(err.Error(), "loading module Broken") {
		t.Errorf("invalid module err = %v", err)
	}
}

type countingHub struct{ channels []string }

func (h *countingHub) Broadcast(channel string, _ any) { h.channels = append(h.channels, channel) }

func TestValueHandlers(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	ctx := context.Background()

	if h := valueHandlers(config.ModuleConfig{Name: "plain"}, nil, log); h != nil {
		t.Errorf("valueHandlers without motion or alarm = %v, want nil", h)
	}

	raised := 8
	hub := &countingHub{}
	h := valueHandlers(config.ModuleConfig{
		Name:   "porch",
		Motion: &config.MotionConfig{Sensors: []int{9}, Hold: 2 * time.Minute},
		Alarm:  &config.AlarmConfig{Sensors: []int{11}, Raised: &raised},
	}, hub, log)
	if h == nil {
		t.Fatal("valueHandlers returned nil")
	}

	actions := h.HandleValue(ctx, "porch", automation.ValueChanged{
		Kind: automation.ValueUpdated, NodeID: 9, Property: automation.DefaultMotionProperty, Value: 8.0,
	})
	if len(actions) != 2 || actions[1].After != 2*time.Minute {
		t.Errorf("motion actions = %+v, want on then off after 2m", actions)
	}
	if got := h.HandleValue(ctx, "porch", automation.ValueChanged{
		Kind: automation.ValueUpdated, NodeID: 4, Property: automation.DefaultMotionProperty, Value: 8.0,
	}); len(got) != 0 {
		t.Errorf("unwatched sensor actions = %+v, want none", got)
	}

	h.HandleValue(ctx, "porch", automation.ValueChanged{
		Kind: automation.ValueUpdated, NodeID: 11, Property: automation.DefaultAlarmProperty, Value: 3.0,
	})
	h.HandleValue(ctx, "porch", automation.ValueChanged{
		Kind: automation.ValueUpdated, NodeID: 11, Property: automation.DefaultAlarmProperty, Value: 8.0,
	})
	if len(hub.channels) != 1 || hub.channels[0] != automation.ChannelAlarm {
		t.Errorf("broadcasts = %v, want one %s", hub.channels, automation.ChannelAlarm)
	}
}
