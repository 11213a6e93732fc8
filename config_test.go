package dispatchz

import (
	"testing"

	"github.com/spf13/viper"
)

func newTestViper(t *testing.T, settings map[string]any) *viper.Viper {
	t.Helper()
	v := viper.New()
	for k, val := range settings {
		v.Set(k, val)
	}
	return v
}

func TestLoadConfigValidatesProgramFlag(t *testing.T) {
	v := newTestViper(t, map[string]any{
		"node-file":    "nodes",
		"data-file":    "data",
		"out-dir":      "out",
		"program":      "/opt/prog",
		"program-flag": 1,
	})
	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TaskClass() != ClassCBinary {
		t.Errorf("expected ClassCBinary, got %v", cfg.TaskClass())
	}
}

func TestLoadConfigRejectsBadProgramFlag(t *testing.T) {
	v := newTestViper(t, map[string]any{"program-flag": 99})
	if _, err := LoadConfig(v); err == nil {
		t.Fatal("expected error for out-of-range program-flag")
	}
}

func TestConfigSchedulerConfigProjection(t *testing.T) {
	cfg := Config{
		NodeFile:    "nodes",
		DataFile:    "data",
		OutDir:      "out",
		ProgramPath: "/opt/prog",
		ProgramFlag: int(ClassPari),
	}
	sc := cfg.SchedulerConfig()
	if sc.TaskClass != ClassPari {
		t.Errorf("expected ClassPari, got %v", sc.TaskClass)
	}
	if sc.NodeFile != cfg.NodeFile || sc.DataFile != cfg.DataFile {
		t.Errorf("expected file paths to carry over unchanged")
	}
}
