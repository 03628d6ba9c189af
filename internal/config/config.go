// Package config loads and persists {base_dir}/config.toml, the single
// source of tunables shared by every store daemon: embedding dimensions,
// batching/threading knobs, IPC timeouts, and the base directory layout
// itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Config mirrors the persisted config.toml schema. Every field has a
// zero-value-safe default applied by Defaults().
type Config struct {
	DenseModel        string `toml:"dense_model"`
	ColbertModel      string `toml:"colbert_model"`
	DenseDim          int    `toml:"dense_dim"`
	ColbertDim        int    `toml:"colbert_dim"`
	QueryPrefix       string `toml:"query_prefix"`
	DenseMaxLength    int    `toml:"dense_max_length"`
	ColbertMaxLength  int    `toml:"colbert_max_length"`
	DefaultBatchSize  int    `toml:"default_batch_size"`
	MaxBatchSize      int    `toml:"max_batch_size"`
	MaxThreads        int    `toml:"max_threads"`
	Port              int    `toml:"port"`
	IdleTimeoutSecs   int    `toml:"idle_timeout_secs"`
	IdleCheckInterval int    `toml:"idle_check_interval_secs"`
	WorkerTimeoutMs   int    `toml:"worker_timeout_ms"`

	OversamplingFactor int     `toml:"oversampling_factor"`
	MinRecall          int     `toml:"min_recall"`
	ColbertBlendAlpha  float64 `toml:"colbert_blend_alpha"`
	PerFileLimit       int     `toml:"per_file_limit"`
}

// EnvPrefix is the environment variable namespace that overrides config.toml
// values (e.g. SMGREP_PORT=5555).
const EnvPrefix = "SMGREP_"

// Defaults returns the built-in configuration values, used both as the
// base that config.toml/env overrides are merged onto and as the content
// written out by EnsureDefaultFile.
func Defaults() Config {
	return Config{
		DenseModel:         "ibm-granite/granite-embedding-small-english-r2",
		ColbertModel:       "answerdotai/answerai-colbert-small-v1",
		DenseDim:           384,
		ColbertDim:         96,
		QueryPrefix:        "",
		DenseMaxLength:     256,
		ColbertMaxLength:   256,
		DefaultBatchSize:   48,
		MaxBatchSize:       96,
		MaxThreads:         32,
		Port:               4444,
		IdleTimeoutSecs:    1800,
		IdleCheckInterval:  60,
		WorkerTimeoutMs:    60000,
		OversamplingFactor: 2,
		MinRecall:          100,
		ColbertBlendAlpha:  0.7,
		PerFileLimit:       1,
	}
}

// BatchSize returns the effective batch size, clamped to MaxBatchSize.
func (c Config) BatchSize() int {
	if c.DefaultBatchSize > c.MaxBatchSize {
		return c.MaxBatchSize
	}
	return c.DefaultBatchSize
}

// WorkerCount returns the worker pool size: cpus-4, clamped to [1, MaxThreads].
func (c Config) WorkerCount() int {
	n := runtime.NumCPU() - 4
	if n < 1 {
		n = 1
	}
	if c.MaxThreads > 0 && n > c.MaxThreads {
		n = c.MaxThreads
	}
	return n
}

// Load reads {base_dir}/config.toml (creating it with defaults if absent)
// and overlays SMGREP_-prefixed environment variables.
func Load(baseDir string) (Config, error) {
	cfg := Defaults()

	path := configFilePathIn(baseDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if werr := writeDefaultFile(path, cfg); werr != nil {
			return cfg, fmt.Errorf("writing default config: %w", werr)
		}
	} else if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config.toml: %w", err)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func writeDefaultFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func applyEnvOverrides(cfg *Config) {
	for _, e := range os.Environ() {
		kv := strings.SplitN(e, "=", 2)
		if len(kv) != 2 || !strings.HasPrefix(kv[0], EnvPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(kv[0], EnvPrefix))
		applyEnvField(cfg, key, kv[1])
	}
}

func applyEnvField(cfg *Config, key, value string) {
	switch key {
	case "dense_model":
		cfg.DenseModel = value
	case "colbert_model":
		cfg.ColbertModel = value
	case "query_prefix":
		cfg.QueryPrefix = value
	case "dense_dim":
		setInt(&cfg.DenseDim, value)
	case "colbert_dim":
		setInt(&cfg.ColbertDim, value)
	case "dense_max_length":
		setInt(&cfg.DenseMaxLength, value)
	case "colbert_max_length":
		setInt(&cfg.ColbertMaxLength, value)
	case "default_batch_size":
		setInt(&cfg.DefaultBatchSize, value)
	case "max_batch_size":
		setInt(&cfg.MaxBatchSize, value)
	case "max_threads":
		setInt(&cfg.MaxThreads, value)
	case "port":
		setInt(&cfg.Port, value)
	case "idle_timeout_secs":
		setInt(&cfg.IdleTimeoutSecs, value)
	case "idle_check_interval_secs":
		setInt(&cfg.IdleCheckInterval, value)
	case "worker_timeout_ms":
		setInt(&cfg.WorkerTimeoutMs, value)
	case "oversampling_factor":
		setInt(&cfg.OversamplingFactor, value)
	case "min_recall":
		setInt(&cfg.MinRecall, value)
	case "per_file_limit":
		setInt(&cfg.PerFileLimit, value)
	case "colbert_blend_alpha":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			cfg.ColbertBlendAlpha = f
		}
	}
}

func setInt(dst *int, value string) {
	if n, err := strconv.Atoi(value); err == nil {
		*dst = n
	}
}

// base directory resolution, mirroring directories::BaseDirs in the
// original Rust config: $SMGREP_HOME, else $HOME/.smgrep, else ./.smgrep.
var baseDirOnce sync.Once
var baseDirValue string

// BaseDir returns the process-wide base directory, memoized for the life of
// the process (matching the "global state" design note).
func BaseDir() string {
	baseDirOnce.Do(func() {
		baseDirValue = resolveBaseDir()
	})
	return baseDirValue
}

func resolveBaseDir() string {
	if v := os.Getenv("SMGREP_HOME"); v != "" {
		return v
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".smgrep")
	}
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, ".smgrep")
}

func configFilePathIn(baseDir string) string {
	return filepath.Join(baseDir, "config.toml")
}

// GetUserConfigPath returns the path to the persisted config.toml under the
// process base directory.
func GetUserConfigPath() string { return configFilePathIn(BaseDir()) }

// GetUserConfigDir returns the base directory containing config.toml.
func GetUserConfigDir() string { return BaseDir() }

// UserConfigExists reports whether config.toml has been created yet.
func UserConfigExists() bool {
	_, err := os.Stat(GetUserConfigPath())
	return err == nil
}

// ModelDir, GrammarDir, DataDir, SocketDir, MetaDir, LogDir mirror the
// original config's define_paths! macro: one subdirectory per concern under
// the base directory.
func ModelDir() string   { return filepath.Join(BaseDir(), "models") }
func GrammarDir() string { return filepath.Join(BaseDir(), "grammars") }
func DataDir() string    { return filepath.Join(BaseDir(), "data") }
func SocketDir() string  { return filepath.Join(BaseDir(), "sockets") }
func MetaDir() string    { return filepath.Join(BaseDir(), "meta") }
func LogDir() string     { return filepath.Join(BaseDir(), "logs") }

// FindProjectRoot walks up from startDir looking for a .git directory or a
// .smgrep.toml marker file, returning the first directory that has one. If
// neither is found before reaching the filesystem root, it returns the
// absolute form of startDir unchanged.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}

	dir := absDir
	for {
		if dirExists(filepath.Join(dir, ".git")) {
			return dir, nil
		}
		if fileExists(filepath.Join(dir, ".smgrep.toml")) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir, nil
		}
		dir = parent
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
