package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Upload.MaxFileSizeMB != 25 {
		t.Fatalf("expected default 25 MB ceiling, got %d", cfg.Upload.MaxFileSizeMB)
	}
	if cfg.Upload.MaxFileSizeBytes() != 25*1024*1024 {
		t.Fatalf("unexpected byte ceiling: %d", cfg.Upload.MaxFileSizeBytes())
	}
	if cfg.ASR.Model != "bofenghuang/whisper-medium-cv11-german" {
		t.Fatalf("unexpected default model: %s", cfg.ASR.Model)
	}
	if len(cfg.Upload.AllowedExtensions) != 2 {
		t.Fatalf("expected .wav and .mp3 allowed, got %v", cfg.Upload.AllowedExtensions)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ECHOLOT_ASR_MODEL", "openai/whisper-small")
	t.Setenv("ECHOLOT_ASR_DEVICE", "cuda:0")
	t.Setenv("ECHOLOT_UPLOAD_MAX_FILE_SIZE_MB", "50")
	t.Setenv("ECHOLOT_UPLOAD_ALLOWED_EXTENSIONS", ".wav, .mp3, .ogg")
	t.Setenv("ECHOLOT_KEYWORDS_PATH", "/etc/echolot/keywords.json")
	t.Setenv("ECHOLOT_JOURNAL_PATH", "./tmp.db")
	t.Setenv("ECHOLOT_JOURNAL_RETENTION_DAYS", "7")
	t.Setenv("ECHOLOT_BUS_ENABLED", "true")
	t.Setenv("ECHOLOT_BUS_SERVERS", "nats://one:4222, nats://two:4222")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ASR.Model != "openai/whisper-small" {
		t.Fatalf("expected model override, got %s", cfg.ASR.Model)
	}
	if cfg.ASR.Device != "cuda:0" {
		t.Fatalf("expected device override, got %s", cfg.ASR.Device)
	}
	if cfg.Upload.MaxFileSizeMB != 50 {
		t.Fatalf("expected size override, got %d", cfg.Upload.MaxFileSizeMB)
	}
	if len(cfg.Upload.AllowedExtensions) != 3 {
		t.Fatalf("expected 3 extensions, got %v", cfg.Upload.AllowedExtensions)
	}
	if cfg.Keywords.Path != "/etc/echolot/keywords.json" {
		t.Fatalf("expected keywords path override")
	}
	if cfg.Journal.Path != "./tmp.db" {
		t.Fatalf("expected journal path override")
	}
	if cfg.Journal.RetentionDays != 7 {
		t.Fatalf("expected retention override, got %d", cfg.Journal.RetentionDays)
	}
	if !cfg.Bus.Enabled {
		t.Fatal("expected bus enabled override")
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
}

func TestValidateRejectsBadMode(t *testing.T) {
	t.Setenv("ECHOLOT_ASR_MODE", "cloud")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown asr.mode")
	}
}

func TestValidateExecNeedsCommand(t *testing.T) {
	t.Setenv("ECHOLOT_ASR_MODE", "exec")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error when mode=exec without command")
	}
}
