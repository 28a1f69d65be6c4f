// Package config provides configuration management for the orchestration
// core. Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (ORCHESTRATOR_*)
// 3. Project config (.agentcore/config.yaml in cwd)
// 4. Home config (~/.agentcore/config.yaml)
// 5. Defaults
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all orchestration-core configuration.
type Config struct {
	// Output controls the default output format (table, json, yaml).
	Output string `yaml:"output" json:"output"`

	// BaseDir is the orchestrator data directory setting (default: .agentcore).
	// The Paths and Loop.ContractsDir defaults are fixed under .agentcore and
	// do not follow a changed BaseDir.
	BaseDir string `yaml:"base_dir" json:"base_dir"`

	// Verbose enables verbose output.
	Verbose bool `yaml:"verbose" json:"verbose"`

	// Project is the label stamped on the work queue and progress log.
	Project string `yaml:"project" json:"project"`

	// Paths settings for artifact locations (configurable, not hardcoded).
	Paths PathsConfig `yaml:"paths" json:"paths"`

	// Loop settings for the Autonomous Loop.
	Loop LoopConfig `yaml:"loop" json:"loop"`

	// Verify settings: per-project tool table, config-only with no hardcoded defaults.
	Verify VerifyConfig `yaml:"verify" json:"verify"`

	// Serve settings for the health/metrics HTTP surface.
	Serve ServeConfig `yaml:"serve" json:"serve"`
}

// LoopConfig holds Autonomous Loop settings.
type LoopConfig struct {
	// MaxGlobalIterations bounds total tasks processed per run (0 = unbounded).
	MaxGlobalIterations int `yaml:"max_global_iterations" json:"max_global_iterations"`

	// ContractsDir is where per-agent-type contract YAML files live.
	ContractsDir string `yaml:"contracts_dir" json:"contracts_dir"`

	// KillSwitchEnvVar is the environment variable read for the kill-switch mode.
	KillSwitchEnvVar string `yaml:"kill_switch_env_var" json:"kill_switch_env_var"`
}

// VerifyConfig holds the per-project verifier tool table. No defaults are
// shipped for lint/typecheck/test commands — an empty command degrades the
// corresponding tier to BLOCKED/"infrastructure".
type VerifyConfig struct {
	LintCmd       string `yaml:"lint_cmd" json:"lint_cmd"`
	TypecheckCmd  string `yaml:"typecheck_cmd" json:"typecheck_cmd"`
	TestCmd       string `yaml:"test_cmd" json:"test_cmd"`
	AutofixCmd    string `yaml:"autofix_cmd" json:"autofix_cmd"`
}

// ServeConfig holds the observability HTTP surface settings.
type ServeConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// PathsConfig holds configurable paths for artifact locations.
type PathsConfig struct {
	// QueueFile is the work-queue JSON document.
	// Default: .agentcore/queue.json
	QueueFile string `yaml:"queue_file" json:"queue_file"`

	// SessionsDir is where session checkpoint files are written.
	// Default: .agentcore/sessions
	SessionsDir string `yaml:"sessions_dir" json:"sessions_dir"`

	// ProgressFile is the append-only progress log.
	// Default: agentcore-progress.txt
	ProgressFile string `yaml:"progress_file" json:"progress_file"`

	// AuditLogFile is the governance audit trail.
	// Default: .agentcore/audit.jsonl
	AuditLogFile string `yaml:"audit_log_file" json:"audit_log_file"`
}

// Default config values (used in resolution and validation).
const (
	defaultOutput  = "table"
	defaultBaseDir = ".agentcore"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Output:  defaultOutput,
		BaseDir: defaultBaseDir,
		Verbose: false,
		Loop: LoopConfig{
			MaxGlobalIterations: 0,
			ContractsDir:        filepath.Join(defaultBaseDir, "contracts"),
			KillSwitchEnvVar:    "AI_BRAIN_MODE",
		},
		Paths: PathsConfig{
			QueueFile:    filepath.Join(defaultBaseDir, "queue.json"),
			SessionsDir:  filepath.Join(defaultBaseDir, "sessions"),
			ProgressFile: "agentcore-progress.txt",
			AuditLogFile: filepath.Join(defaultBaseDir, "audit.jsonl"),
		},
		Serve: ServeConfig{
			Addr: ":8090",
		},
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > project > home > defaults
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()

	homeConfig, _ := loadFromPath(homeConfigPath())
	if homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}

	projectConfig, _ := loadFromPath(projectConfigPath())
	if projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, nil
}

// homeConfigPath returns the home config path.
func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".agentcore", "config.yaml")
}

// projectConfigPath returns the project config path.
func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("ORCHESTRATOR_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".agentcore", "config.yaml")
}

// loadFromPath loads config from a YAML file.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("ORCHESTRATOR_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("ORCHESTRATOR_BASE_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if v := os.Getenv("ORCHESTRATOR_PROJECT"); v != "" {
		cfg.Project = v
	}
	if os.Getenv("ORCHESTRATOR_VERBOSE") == "true" || os.Getenv("ORCHESTRATOR_VERBOSE") == "1" {
		cfg.Verbose = true
	}
	if v := os.Getenv("ORCHESTRATOR_MAX_GLOBAL_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Loop.MaxGlobalIterations = n
		}
	}
	if v := os.Getenv("ORCHESTRATOR_CONTRACTS_DIR"); v != "" {
		cfg.Loop.ContractsDir = v
	}
	if v := os.Getenv("ORCHESTRATOR_KILL_SWITCH_ENV_VAR"); v != "" {
		cfg.Loop.KillSwitchEnvVar = v
	}
	if v := os.Getenv("ORCHESTRATOR_LINT_CMD"); v != "" {
		cfg.Verify.LintCmd = v
	}
	if v := os.Getenv("ORCHESTRATOR_TYPECHECK_CMD"); v != "" {
		cfg.Verify.TypecheckCmd = v
	}
	if v := os.Getenv("ORCHESTRATOR_TEST_CMD"); v != "" {
		cfg.Verify.TestCmd = v
	}
	if v := os.Getenv("ORCHESTRATOR_AUTOFIX_CMD"); v != "" {
		cfg.Verify.AutofixCmd = v
	}
	if v := os.Getenv("ORCHESTRATOR_SERVE_ADDR"); v != "" {
		cfg.Serve.Addr = v
	}
	return cfg
}

// merge merges src into dst, with src values taking precedence.
func merge(dst, src *Config) *Config {
	if src.Output != "" {
		dst.Output = src.Output
	}
	if src.BaseDir != "" {
		dst.BaseDir = src.BaseDir
	}
	if src.Project != "" {
		dst.Project = src.Project
	}
	if src.Verbose {
		dst.Verbose = true
	}
	if src.Loop.MaxGlobalIterations != 0 {
		dst.Loop.MaxGlobalIterations = src.Loop.MaxGlobalIterations
	}
	if src.Loop.ContractsDir != "" {
		dst.Loop.ContractsDir = src.Loop.ContractsDir
	}
	if src.Loop.KillSwitchEnvVar != "" {
		dst.Loop.KillSwitchEnvVar = src.Loop.KillSwitchEnvVar
	}
	if src.Verify.LintCmd != "" {
		dst.Verify.LintCmd = src.Verify.LintCmd
	}
	if src.Verify.TypecheckCmd != "" {
		dst.Verify.TypecheckCmd = src.Verify.TypecheckCmd
	}
	if src.Verify.TestCmd != "" {
		dst.Verify.TestCmd = src.Verify.TestCmd
	}
	if src.Verify.AutofixCmd != "" {
		dst.Verify.AutofixCmd = src.Verify.AutofixCmd
	}
	if src.Serve.Addr != "" {
		dst.Serve.Addr = src.Serve.Addr
	}
	if src.Paths.QueueFile != "" {
		dst.Paths.QueueFile = src.Paths.QueueFile
	}
	if src.Paths.SessionsDir != "" {
		dst.Paths.SessionsDir = src.Paths.SessionsDir
	}
	if src.Paths.ProgressFile != "" {
		dst.Paths.ProgressFile = src.Paths.ProgressFile
	}
	if src.Paths.AuditLogFile != "" {
		dst.Paths.AuditLogFile = src.Paths.AuditLogFile
	}

	return dst
}

// Source represents where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "~/.agentcore/config.yaml"
	SourceProject Source = ".agentcore/config.yaml"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

// resolved pairs a value with the layer that produced it.
type resolved struct {
	Value  interface{} `json:"value"`
	Source Source      `json:"source"`
}

// resolveStringField resolves a string through the precedence chain.
func resolveStringField(home, project, env, flag, def string) resolved {
	result := resolved{Value: def, Source: SourceDefault}

	if home != "" {
		result = resolved{Value: home, Source: SourceHome}
	}
	if project != "" {
		result = resolved{Value: project, Source: SourceProject}
	}
	if env != "" {
		result = resolved{Value: env, Source: SourceEnv}
	}
	if flag != "" {
		result = resolved{Value: flag, Source: SourceFlag}
	}

	return result
}

// ResolvedConfig shows config values with their sources, for `orchestrator
// status` diagnostics.
type ResolvedConfig struct {
	Output       resolved `json:"output"`
	BaseDir      resolved `json:"base_dir"`
	Project      resolved `json:"project"`
	ContractsDir resolved `json:"contracts_dir"`
}

// Resolve returns configuration with source tracking.
// Uses precedence chain: flags > env > project > home > defaults.
func Resolve(flagOutput, flagBaseDir, flagProject string) *ResolvedConfig {
	homeConfig, _ := loadFromPath(homeConfigPath())
	projectConfig, _ := loadFromPath(projectConfigPath())

	var homeOutput, homeBaseDir, homeProject, homeContractsDir string
	if homeConfig != nil {
		homeOutput = homeConfig.Output
		homeBaseDir = homeConfig.BaseDir
		homeProject = homeConfig.Project
		homeContractsDir = homeConfig.Loop.ContractsDir
	}

	var projectOutput, projectBaseDir, projectProject, projectContractsDir string
	if projectConfig != nil {
		projectOutput = projectConfig.Output
		projectBaseDir = projectConfig.BaseDir
		projectProject = projectConfig.Project
		projectContractsDir = projectConfig.Loop.ContractsDir
	}

	envOutput := os.Getenv("ORCHESTRATOR_OUTPUT")
	envBaseDir := os.Getenv("ORCHESTRATOR_BASE_DIR")
	envProject := os.Getenv("ORCHESTRATOR_PROJECT")
	envContractsDir := os.Getenv("ORCHESTRATOR_CONTRACTS_DIR")

	return &ResolvedConfig{
		Output:       resolveStringField(homeOutput, projectOutput, envOutput, flagOutput, defaultOutput),
		BaseDir:      resolveStringField(homeBaseDir, projectBaseDir, envBaseDir, flagBaseDir, defaultBaseDir),
		Project:      resolveStringField(homeProject, projectProject, envProject, flagProject, ""),
		ContractsDir: resolveStringField(homeContractsDir, projectContractsDir, envContractsDir, "", filepath.Join(defaultBaseDir, "contracts")),
	}
}
