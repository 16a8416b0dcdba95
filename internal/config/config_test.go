package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

// memBackend is an in-memory Backend for tests.
type memBackend struct {
	data map[string]any
}

func (b *memBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	return fmt.Sprintf("%v", v), true, nil
}

func (b *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	i, ok := v.(int)
	if !ok {
		return 0, true, fmt.Errorf("invalid type for %s", key)
	}
	return i, true, nil
}

func (b *memBackend) SetString(key, val string) error { b.data[key] = val; return nil }
func (b *memBackend) SetInt(key string, val int) error { b.data[key] = val; return nil }
func (b *memBackend) Delete(key string) error          { delete(b.data, key); return nil }

func TestDefaults(t *testing.T) {
	cfg, err := loadWith(&memBackend{data: map[string]any{}})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 8700 {
		t.Errorf("Server.Port = %d, want 8700", cfg.Server.Port)
	}
	if cfg.LLM.Model != "doubao-pro-32k" {
		t.Errorf("LLM.Model = %q, want doubao-pro-32k", cfg.LLM.Model)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.LLM.APIKey != "" {
		t.Errorf("LLM.APIKey = %q, want empty (mock fallback is allowed)", cfg.LLM.APIKey)
	}
}

func TestBackendValuesOverrideDefaults(t *testing.T) {
	cfg, err := loadWith(&memBackend{data: map[string]any{
		"server.port":  9000,
		"llm.base_url": "https://ark.example.com/api/v3",
		"log.level":    "debug",
	}})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.LLM.BaseURL != "https://ark.example.com/api/v3" {
		t.Errorf("LLM.BaseURL = %q", cfg.LLM.BaseURL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	t.Setenv("SEGMENTD_SERVER_PORT", "9100")
	t.Setenv("SEGMENTD_LLM_API_KEY", "env-key")

	cfg, err := loadWith(&memBackend{data: map[string]any{
		"server.port": 9000,
	}})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("LLM.APIKey = %q, want env-key", cfg.LLM.APIKey)
	}
}

func TestInvalidIntEnvKeepsDefault(t *testing.T) {
	t.Setenv("SEGMENTD_SERVER_PORT", "not-a-number")

	cfg, err := loadWith(&memBackend{data: map[string]any{}})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 8700 {
		t.Errorf("Server.Port = %d, want default 8700", cfg.Server.Port)
	}
}

func TestSetKeyRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := SetKey("llm.model", "doubao-lite-4k"); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Model != "doubao-lite-4k" {
		t.Errorf("LLM.Model = %q, want doubao-lite-4k", cfg.LLM.Model)
	}
}

func TestSetKeyRejectsSecret(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := SetKey("llm.api_key", "secret"); err == nil {
		t.Fatal("expected error setting secret key via config file")
	}
}

func TestSetKeyUnknownKey(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	err := SetKey("no.such.key", "x")
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	// The error names the settable keys so the caller can self-correct.
	for _, k := range ValidKeys() {
		if !strings.Contains(err.Error(), k) {
			t.Errorf("error %q does not mention valid key %s", err, k)
		}
	}
	if strings.Contains(err.Error(), "llm.api_key") {
		t.Errorf("error %q lists a secret key", err)
	}
}

func TestConfigFilePathUsesXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	want := filepath.Join(dir, "segmentd", "config.json")
	if got := configFilePath(); got != want {
		t.Errorf("configFilePath() = %q, want %q", got, want)
	}
}
