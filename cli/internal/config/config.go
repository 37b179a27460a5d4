// Package config provides triage configuration with a defined load order:
// CLI flags > environment variables > repo config > global config > defaults.
//
// Paths:
//   - Repo: .triage/config.toml, or .triage/config.yaml when no TOML file exists
//   - Global: XDG config dir, e.g. ~/.config/triage/config.toml (see os.UserConfigDir)
//   - Dotenv: .env in the repo root; its values never override the real environment
//
// Environment variables (override config files when set):
//   - TRIAGE_FAIL_ON (never, critical, high, medium, low)
//   - TRIAGE_FAIL_THRESHOLD (integer 0..100; empty string keeps the file value)
//   - TRIAGE_DONT_REPORT (comma-separated analyzer ids)
//   - TRIAGE_BASELINE_FILE, TRIAGE_SUPPRESSION_MARKER
//   - TRIAGE_INLINE_SUPPRESSION (1/true/yes/on = true, 0/false/no/off = false)
//
// ignore_errors is kept as decoded (loosely typed) so that malformed rules
// surface as warnings from package ignore rather than load errors.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"triage/cli/internal/erruser"
	"triage/cli/internal/inline"
	"triage/cli/internal/issues"
	"triage/cli/internal/policy"
)

// Config holds all triage configuration.
type Config struct {
	FailOn policy.Level
	// FailThreshold is the minimum pass score (0..100); nil disables it.
	FailThreshold *int
	DontReport    []string
	// BaselineFile is empty when baseline filtering is off. Relative paths
	// are resolved by BaselinePath.
	BaselineFile      string
	SuppressionMarker string
	InlineSuppression bool
	// IgnoreErrors maps analyzer id to its raw rule list.
	IgnoreErrors map[string]any
	// SarifSeverity maps SARIF levels to issue severities for imported logs.
	SarifSeverity map[string]issues.Severity
	// Files lists the configuration files that were merged, in load order.
	Files []string
}

// Overrides represents optional CLI flag overrides. Non-nil pointer means
// "override with this value".
type Overrides struct {
	FailOn            *string
	FailThreshold     *int
	BaselineFile      *string
	SuppressionMarker *string
	InlineSuppression *bool
}

// LoadOptions configures Load. All fields are optional.
type LoadOptions struct {
	// RepoRoot is the repository root; repo config and .env are read from it.
	RepoRoot string
	// GlobalConfigPath is the global config file path; if empty, XDG path is used.
	GlobalConfigPath string
	// Env is the environment key=value slice; if nil, os.Environ() is used.
	Env []string
	// SkipDotEnv disables reading RepoRoot/.env.
	SkipDotEnv bool
	// Overrides are applied last (highest precedence).
	Overrides *Overrides
}

const (
	_defaultFailOn            = policy.DefaultLevel
	_defaultInlineSuppression = true
	_repoDir                  = ".triage"
)

// errIntOverflow is returned when an int64 value does not fit in int (e.g. on 32-bit or huge TOML/env values).
var errIntOverflow = errors.New("value out of range for int")

// int64ToInt converts n to int. It returns an error if n is outside the range of int (e.g. overflow on 32-bit).
func int64ToInt(n int64) (int, error) {
	if n < int64(math.MinInt) || n > int64(math.MaxInt) {
		return 0, errIntOverflow
	}
	return int(n), nil
}

// DefaultConfig returns the default configuration (no I/O).
func DefaultConfig() Config {
	return Config{
		FailOn:            _defaultFailOn,
		SuppressionMarker: inline.DefaultMarker,
		InlineSuppression: _defaultInlineSuppression,
		IgnoreErrors:      map[string]any{},
		SarifSeverity:     map[string]issues.Severity{},
	}
}

// BaselinePath returns the baseline file to use, or "" when none is set.
// Relative paths are resolved against repoRoot.
func (c Config) BaselinePath(repoRoot string) string {
	if c.BaselineFile == "" {
		return ""
	}
	if filepath.IsAbs(c.BaselineFile) || repoRoot == "" {
		return c.BaselineFile
	}
	return filepath.Join(repoRoot, c.BaselineFile)
}

// RepoConfigPath returns the repo config file that Load would read: the TOML
// file if it exists, else the YAML file if it exists, else the TOML path.
func RepoConfigPath(repoRoot string) string {
	tomlPath := filepath.Join(repoRoot, _repoDir, "config.toml")
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath
	}
	yamlPath := filepath.Join(repoRoot, _repoDir, "config.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	return tomlPath
}

// Load loads configuration with precedence: defaults < global file < repo file < env < overrides.
// Missing config files are ignored. Invalid TOML/YAML or invalid env values return an error.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	cfg := DefaultConfig()

	globalPath := opts.GlobalConfigPath
	if globalPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, erruser.New("Could not determine config directory.", err)
		}
		globalPath = filepath.Join(dir, "triage", "config.toml")
	}
	if err := mergeFile(&cfg, globalPath); err != nil {
		return nil, err
	}

	if opts.RepoRoot != "" {
		if err := mergeFile(&cfg, RepoConfigPath(opts.RepoRoot)); err != nil {
			return nil, err
		}
		if !opts.SkipDotEnv {
			env, err := withDotEnv(opts.Env, filepath.Join(opts.RepoRoot, ".env"))
			if err != nil {
				return nil, err
			}
			opts.Env = env
		}
	}

	if err := applyEnv(&cfg, opts.Env); err != nil {
		return nil, err
	}

	if err := applyOverrides(&cfg, opts.Overrides); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// fileConfig is the on-disk shape shared by the TOML and YAML variants.
// Pointers distinguish "absent" from zero values.
type fileConfig struct {
	FailOn            *string           `toml:"fail_on" yaml:"fail_on"`
	FailThreshold     *int64            `toml:"fail_threshold" yaml:"fail_threshold"`
	DontReport        []string          `toml:"dont_report" yaml:"dont_report"`
	BaselineFile      *string           `toml:"baseline_file" yaml:"baseline_file"`
	SuppressionMarker *string           `toml:"suppression_marker" yaml:"suppression_marker"`
	InlineSuppression *bool             `toml:"inline_suppression" yaml:"inline_suppression"`
	IgnoreErrors      map[string]any    `toml:"ignore_errors" yaml:"ignore_errors"`
	SarifSeverity     map[string]string `toml:"sarif_severity" yaml:"sarif_severity"`
}

// mergeFile reads path and merges into cfg. Only fields present in the file
// are overwritten; ignore_errors and sarif_severity merge per key.
// Missing file is skipped (no error).
func mergeFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return erruser.New("Invalid configuration file.", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return erruser.New("Could not read configuration file.", err)
	}
	var file fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return erruser.Newf(err, "Invalid configuration in %s.", path)
		}
	default:
		if _, err := toml.Decode(string(data), &file); err != nil {
			return erruser.Newf(err, "Invalid configuration in %s.", path)
		}
	}
	cfg.Files = append(cfg.Files, path)

	if file.FailOn != nil && *file.FailOn != "" {
		l, err := policy.ParseLevel(*file.FailOn)
		if err != nil {
			return erruser.New("Invalid fail_on; use never, critical, high, medium, or low.", err)
		}
		cfg.FailOn = l
	}
	if file.FailThreshold != nil {
		v, err := threshold(*file.FailThreshold)
		if err != nil {
			return erruser.New("Configuration fail_threshold must be between 0 and 100.", err)
		}
		cfg.FailThreshold = &v
	}
	if file.DontReport != nil {
		cfg.DontReport = trimList(file.DontReport)
	}
	if file.BaselineFile != nil {
		cfg.BaselineFile = strings.TrimSpace(*file.BaselineFile)
	}
	if file.SuppressionMarker != nil && strings.TrimSpace(*file.SuppressionMarker) != "" {
		cfg.SuppressionMarker = strings.TrimSpace(*file.SuppressionMarker)
	}
	if file.InlineSuppression != nil {
		cfg.InlineSuppression = *file.InlineSuppression
	}
	for id, rules := range file.IgnoreErrors {
		cfg.IgnoreErrors[id] = rules
	}
	for level, sev := range file.SarifSeverity {
		s, err := issues.ParseSeverity(sev)
		if err != nil {
			return erruser.Newf(err, "Configuration sarif_severity.%s is not a severity.", level)
		}
		cfg.SarifSeverity[strings.ToLower(strings.TrimSpace(level))] = s
	}
	return nil
}

func threshold(n int64) (int, error) {
	v, err := int64ToInt(n)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("fail_threshold %d out of range", v)
	}
	return v, nil
}

func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// withDotEnv appends the variables from a .env file that env does not
// already define. A missing file is not an error.
func withDotEnv(env []string, path string) ([]string, error) {
	vals, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return env, nil
		}
		return nil, erruser.New("Invalid .env file.", err)
	}
	present := make(map[string]struct{}, len(env))
	for _, e := range env {
		if idx := strings.Index(e, "="); idx > 0 {
			present[strings.TrimSpace(e[:idx])] = struct{}{}
		}
	}
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := append([]string(nil), env...)
	for _, k := range keys {
		if _, ok := present[k]; ok {
			continue
		}
		out = append(out, k+"="+vals[k])
	}
	return out, nil
}

// env key names for config
const (
	envFailOn            = "TRIAGE_FAIL_ON"
	envFailThreshold     = "TRIAGE_FAIL_THRESHOLD"
	envDontReport        = "TRIAGE_DONT_REPORT"
	envBaselineFile      = "TRIAGE_BASELINE_FILE"
	envSuppressionMarker = "TRIAGE_SUPPRESSION_MARKER"
	envInlineSuppression = "TRIAGE_INLINE_SUPPRESSION"
)

func applyEnv(cfg *Config, env []string) error {
	vals := make(map[string]string)
	for _, e := range env {
		idx := strings.Index(e, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(e[:idx])
		val := strings.TrimSpace(e[idx+1:])
		vals[key] = val
	}
	if v, ok := vals[envFailOn]; ok && v != "" {
		l, err := policy.ParseLevel(v)
		if err != nil {
			return erruser.New("TRIAGE_FAIL_ON must be never, critical, high, medium, or low.", err)
		}
		cfg.FailOn = l
	}
	if v, ok := vals[envFailThreshold]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return erruser.New("TRIAGE_FAIL_THRESHOLD must be a valid number.", err)
		}
		t, err := threshold(n)
		if err != nil {
			return erruser.New("TRIAGE_FAIL_THRESHOLD must be between 0 and 100.", err)
		}
		cfg.FailThreshold = &t
	}
	if v, ok := vals[envDontReport]; ok {
		cfg.DontReport = trimList(strings.Split(v, ","))
	}
	if v, ok := vals[envBaselineFile]; ok {
		cfg.BaselineFile = v
	}
	if v, ok := vals[envSuppressionMarker]; ok && v != "" {
		cfg.SuppressionMarker = v
	}
	if v, ok := vals[envInlineSuppression]; ok && v != "" {
		b, err := parseBool(v)
		if err != nil {
			return erruser.New("TRIAGE_INLINE_SUPPRESSION must be 1/true/yes/on or 0/false/no/off.", err)
		}
		cfg.InlineSuppression = b
	}
	return nil
}

// parseBool parses common boolean env values: 1/true/yes/on = true, 0/false/no/off = false (case-insensitive).
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

func applyOverrides(cfg *Config, o *Overrides) error {
	if o == nil {
		return nil
	}
	if o.FailOn != nil && *o.FailOn != "" {
		l, err := policy.ParseLevel(*o.FailOn)
		if err != nil {
			return erruser.New("Invalid --fail-on; use never, critical, high, medium, or low.", err)
		}
		cfg.FailOn = l
	}
	if o.FailThreshold != nil {
		t, err := threshold(int64(*o.FailThreshold))
		if err != nil {
			return erruser.New("--fail-threshold must be between 0 and 100.", err)
		}
		cfg.FailThreshold = &t
	}
	if o.BaselineFile != nil {
		cfg.BaselineFile = *o.BaselineFile
	}
	if o.SuppressionMarker != nil && *o.SuppressionMarker != "" {
		cfg.SuppressionMarker = *o.SuppressionMarker
	}
	if o.InlineSuppression != nil {
		cfg.InlineSuppression = *o.InlineSuppression
	}
	return nil
}
