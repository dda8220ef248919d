// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.BaseURL != "http://127.0.0.1:8000" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Server.TimeoutSecs != 30 {
		t.Errorf("TimeoutSecs = %d", cfg.Server.TimeoutSecs)
	}
	if cfg.Sync.Mode != "auto" || cfg.Sync.IntervalSecs != 60 {
		t.Errorf("Sync = %+v", cfg.Sync)
	}
	if cfg.Chat.DefaultSearchMode != "normal" {
		t.Errorf("DefaultSearchMode = %q", cfg.Chat.DefaultSearchMode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("missing file should load defaults, got %v", err)
	}
	if cfg.Server.BaseURL != Default().Server.BaseURL {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Server.BaseURL = "http://10.0.0.5:9000"
	cfg.User.ID = "alice"
	cfg.Chat.Model = "llama3.2"
	cfg.Chat.SystemPrompt = "be brief"
	cfg.Sync.Mode = "manual"
	cfg.UI.Markdown = false

	if err := SaveToPath(cfg, path); err != nil {
		t.Fatalf("SaveToPath failed: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Server.BaseURL != "http://10.0.0.5:9000" {
		t.Errorf("BaseURL = %q", loaded.Server.BaseURL)
	}
	if loaded.User.ID != "alice" || loaded.Chat.Model != "llama3.2" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Sync.Mode != "manual" || loaded.UI.Markdown {
		t.Errorf("Sync.Mode = %q, Markdown = %v", loaded.Sync.Mode, loaded.UI.Markdown)
	}
}

func TestLoadFromPath_PartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	partial := "[server]\nbase_url = \"http://example.com\"\n"
	if err := os.WriteFile(path, []byte(partial), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Server.BaseURL != "http://example.com" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Server.TimeoutSecs != 30 || cfg.Sync.IntervalSecs != 60 {
		t.Error("missing fields should fall back to defaults")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("HAVEN_SERVER_URL", "http://env-host:8000")
	t.Setenv("HAVEN_USER", "bob")
	t.Setenv("HAVEN_SYNC_MODE", "manual")
	t.Setenv("HAVEN_LOG_LEVEL", "debug")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Server.BaseURL != "http://env-host:8000" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.User.ID != "bob" {
		t.Errorf("User.ID = %q", cfg.User.ID)
	}
	if cfg.Sync.Mode != "manual" || cfg.Log.Level != "debug" {
		t.Errorf("Sync.Mode = %q, Log.Level = %q", cfg.Sync.Mode, cfg.Log.Level)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()
	cfg.Server.BaseURL = "http://from-file:8000"
	if err := SaveToPath(cfg, path); err != nil {
		t.Fatal(err)
	}

	t.Setenv("HAVEN_SERVER_URL", "http://from-env:8000")
	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.BaseURL != "http://from-env:8000" {
		t.Errorf("env should win over file, got %q", loaded.Server.BaseURL)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Sync.Mode = "sometimes"
	if err := cfg.Validate(); err == nil {
		t.Error("bad sync mode should fail validation")
	}

	cfg = Default()
	cfg.Chat.DefaultSearchMode = "psychic"
	if err := cfg.Validate(); err == nil {
		t.Error("bad search mode should fail validation")
	}

	cfg = Default()
	cfg.Chat.Temperature = 5.0
	if err := cfg.Validate(); err != nil {
		t.Errorf("out-of-range temperature should clamp, got %v", err)
	}
	if cfg.Chat.Temperature != 2 {
		t.Errorf("Temperature = %v, want clamped to 2", cfg.Chat.Temperature)
	}
}

func TestWatch_ReloadsOnEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	if err := SaveToPath(cfg, path); err != nil {
		t.Fatal(err)
	}

	w, err := Watch(path)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	cfg.Chat.Model = "mistral"
	if err := SaveToPath(cfg, path); err != nil {
		t.Fatal(err)
	}

	select {
	case reloaded := <-w.Changes():
		if reloaded.Chat.Model != "mistral" {
			t.Errorf("reloaded Model = %q", reloaded.Chat.Model)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := SaveToPath(Default(), path); err != nil {
		t.Fatal(err)
	}

	w, err := Watch(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.Changes():
		t.Error("edit to an unrelated file should not trigger a reload")
	case <-time.After(debounceDelay * 2):
	}
}
