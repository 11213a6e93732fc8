package dispatchz

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config bundles everything a run needs, translated from CLI flags
// (always wins), DISPATCHZ_* environment variables, or a dispatch.yaml
// config file, in that precedence order — the binding work lives in
// cmd/dispatch, this struct is what the rest of dispatchz actually reads.
type Config struct {
	NodeFile        string `mapstructure:"node-file"`
	DataFile        string `mapstructure:"data-file"`
	OutDir          string `mapstructure:"out-dir"`
	ProgramPath     string `mapstructure:"program"`
	ProgramFlag     int    `mapstructure:"program-flag"`
	MaxTaskSizeKB   int    `mapstructure:"max-task-size-kb"`
	MemSafetyMarginKB int  `mapstructure:"mem-safety-margin-kb"`
	CreateSlavefile bool   `mapstructure:"create-slavefile"`
	CreateErrFiles  bool   `mapstructure:"create-errfiles"`
	CreateMemFiles  bool   `mapstructure:"create-memfiles"`
	CustomProgram   bool   `mapstructure:"custom-program"`
	WorkerProgram   string `mapstructure:"worker-program"`
	MetricsAddr     string `mapstructure:"metrics-addr"`
	StorePath       string `mapstructure:"store-path"`
}

// LoadConfig reads bound viper settings (already populated from flags,
// an optional config file, and DISPATCHZ_* env vars by the caller) into a
// Config, validating the one field viper can't express as a simple flag
// type: program-flag must map to a known TaskClass.
func LoadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, NewInputError(ExitArgs, fmt.Errorf("decoding config: %w", err))
	}
	if _, err := ParseTaskClass(cfg.ProgramFlag); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// TaskClass resolves the validated TaskClass for this config's ProgramFlag.
// Callers should only reach this after LoadConfig has already validated it.
func (c Config) TaskClass() TaskClass {
	class, _ := ParseTaskClass(c.ProgramFlag)
	return class
}

// SchedulerConfig projects Config into the subset SchedulerConfig needs.
func (c Config) SchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		NodeFile:        c.NodeFile,
		DataFile:        c.DataFile,
		OutDir:          c.OutDir,
		ProgramPath:     c.ProgramPath,
		TaskClass:       c.TaskClass(),
		MaxTaskSizeKB:   c.MaxTaskSizeKB,
		CreateSlavefile: c.CreateSlavefile,
		CreateErrFiles:  c.CreateErrFiles,
		CreateMemFiles:  c.CreateMemFiles,
		CustomProgram:   c.CustomProgram,
		WorkerProgram:   c.WorkerProgram,
	}
}
