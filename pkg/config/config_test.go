package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type testConfig struct {
	Name     string        `yaml:"name"`
	Port     int           `yaml:"port"`
	Throttle time.Duration `yaml:"throttle"`
}

func (c *testConfig) Validate() error {
	if c.Port == 0 {
		return errors.New("port is required")
	}
	return nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_YAMLWithEnv(t *testing.T) {
	t.Setenv("MINDMARK_TEST_NAME", "maps")
	p := writeFile(t, "config.yaml", "name: ${MINDMARK_TEST_NAME}\nport: 9090\nthrottle: 1500ms\n")

	var cfg testConfig
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "maps" || cfg.Port != 9090 || cfg.Throttle != 1500*time.Millisecond {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_JSONC(t *testing.T) {
	p := writeFile(t, "config.jsonc", `{
		// comments are allowed
		"name": "maps",
		"port": 8081,
		"throttle": "2s",
	}`)

	var cfg testConfig
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "maps" || cfg.Port != 8081 || cfg.Throttle != 2*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_InvalidJSONC(t *testing.T) {
	p := writeFile(t, "config.json", `{"port": `)
	var cfg testConfig
	err := Load(p, &cfg)
	if err == nil || !strings.Contains(err.Error(), "invalid JSONC") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_ValidationFails(t *testing.T) {
	p := writeFile(t, "config.yaml", "name: x\n")
	var cfg testConfig
	err := Load(p, &cfg)
	if err == nil || !strings.Contains(err.Error(), "config validation failed") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	def := writeFile(t, "default.yaml", "port: 7000\n")
	var cfg testConfig
	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"), def, &cfg); err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.Port != 7000 {
		t.Errorf("port = %d", cfg.Port)
	}

	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"), "", &cfg); err == nil {
		t.Error("expected error without default file")
	}
}

func TestMustLoad_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustLoad did not panic")
		}
	}()
	var cfg testConfig
	MustLoad(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
}
