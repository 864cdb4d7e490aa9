// Package config loads the launcher configuration from a YAML file and
// applies environment overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"gtburst/pkg/launch"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	ConfDirEnv       = "GTBURSTCONFDIR"
	ConfigFileEnv    = "GTBURST_LAUNCHER_CONFIG"
	ModeEnv          = "GTBURST_MODE"
	PythonEnv        = "GTBURST_PYTHON"
	ForwardArgsEnv   = "GTBURST_FORWARD_ARGS"
	PropagateExitEnv = "GTBURST_PROPAGATE_EXIT"
	LogLevelEnv      = "GTBURST_LOG_LEVEL"
	ImageEnv         = "GTBURST_IMAGE"
)

// DefaultFileName is the config file looked up in the configuration directory.
const DefaultFileName = "launcher.yaml"

// DefaultImage carries the Fermi Science Tools.
const DefaultImage = "fssc/fermibottle:latest"

var (
	ErrUnknownMode   = errors.New("unknown launch mode")
	ErrUnknownPull   = errors.New("unknown pull policy")
	ErrNoInterpreter = errors.New("python interpreter must not be empty")
)

// Mode selects the executor strategy.
type Mode string

const (
	ModeDirect Mode = "direct"
	ModeShell  Mode = "shell"
	ModeDocker Mode = "docker"
)

func (m Mode) String() string {
	return string(m)
}

// Valid reports whether m names a known executor.
func (m Mode) Valid() bool {
	switch m {
	case ModeDirect, ModeShell, ModeDocker:
		return true
	}
	return false
}

// PullPolicy controls when the container image is pulled.
type PullPolicy string

const (
	PullMissing PullPolicy = "missing"
	PullAlways  PullPolicy = "always"
	PullNever   PullPolicy = "never"
)

// DockerConfig configures the docker mode.
type DockerConfig struct {
	Image string     `yaml:"image"`
	Pull  PullPolicy `yaml:"pull"`
	// Mounts are extra host:container bind specs, e.g. "~/FermiData:/data".
	Mounts []string `yaml:"mounts,omitempty"`
}

// Config is the top-level launcher configuration.
type Config struct {
	InstDir        string       `yaml:"inst_dir,omitempty"`
	Python         string       `yaml:"python"`
	Script         string       `yaml:"script"`
	Mode           Mode         `yaml:"mode"`
	ForwardArgs    bool         `yaml:"forward_args"`
	PropagateExit  bool         `yaml:"propagate_exit"`
	SingleInstance bool         `yaml:"single_instance"`
	HistoryFile    string       `yaml:"history_file"`
	LogLevel       string       `yaml:"log_level"`
	EnvPassthrough []string     `yaml:"env_passthrough,omitempty"`
	Docker         DockerConfig `yaml:"docker"`

	// Path is the file the config was read from, empty when none was found.
	Path string `yaml:"-"`
	// ConfDir is the resolved configuration directory.
	ConfDir string `yaml:"-"`
}

// Default returns the configuration used when no file is present.
func Default(confDir string) *Config {
	return &Config{
		Python:        launch.DefaultInterpreter,
		Script:        launch.DefaultScript,
		Mode:          ModeDirect,
		ForwardArgs:   true,
		PropagateExit: true,
		HistoryFile:   filepath.Join(confDir, "launches.jsonl"),
		LogLevel:      "warn",
		Docker: DockerConfig{
			Image: DefaultImage,
			Pull:  PullMissing,
		},
		ConfDir: confDir,
	}
}

// ConfDir returns the configuration directory: $GTBURSTCONFDIR, or
// ~/.gtburst when unset.
func ConfDir() (string, error) {
	if dir := os.Getenv(ConfDirEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".gtburst"), nil
}

// Load reads the configuration. An explicit path (argument or
// $GTBURST_LAUNCHER_CONFIG) must exist; the default file may be absent.
// Environment overrides are applied after the file.
func Load(path string) (*Config, error) {
	confDir, err := ConfDir()
	if err != nil {
		return nil, err
	}

	cfg := Default(confDir)

	explicit := true
	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path == "" {
		path = filepath.Join(confDir, DefaultFileName)
		explicit = false
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Unmarshal over the defaults so absent keys keep them
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		cfg.Path = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	// Zero values left by an explicit empty key fall back to defaults
	if cfg.Python == "" {
		cfg.Python = launch.DefaultInterpreter
	}
	if cfg.Script == "" {
		cfg.Script = launch.DefaultScript
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeDirect
	}
	if cfg.Docker.Image == "" {
		cfg.Docker.Image = DefaultImage
	}
	if cfg.Docker.Pull == "" {
		cfg.Docker.Pull = PullMissing
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	cfg.HistoryFile = expandHome(cfg.HistoryFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from GTBURST_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(ModeEnv); ok && v != "" {
		c.Mode = Mode(strings.ToLower(v))
	}
	if v, ok := lookup(PythonEnv); ok && v != "" {
		c.Python = v
	}
	if v, ok := lookup(LogLevelEnv); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(ImageEnv); ok && v != "" {
		c.Docker.Image = v
	}

	for env, dst := range map[string]*bool{
		ForwardArgsEnv:   &c.ForwardArgs,
		PropagateExitEnv: &c.PropagateExit,
	} {
		v, ok := lookup(env)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		*dst = b
	}
	return nil
}

// Validate checks the fields that have a closed set of values.
func (c *Config) Validate() error {
	if !c.Mode.Valid() {
		return fmt.Errorf("%w: %q (want direct, shell or docker)", ErrUnknownMode, c.Mode)
	}
	if c.Python == "" {
		return ErrNoInterpreter
	}
	switch c.Docker.Pull {
	case PullMissing, PullAlways, PullNever:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPull, c.Docker.Pull)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// ResolveInstDir returns the installation root: $INST_DIR as reported by
// getenv when set, otherwise the inst_dir key of the config file.
func (c *Config) ResolveInstDir(getenv func(string) string) string {
	if dir := getenv(launch.InstDirEnv); dir != "" {
		return dir
	}
	return expandHome(c.InstDir)
}

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.ConfDir, "launcher.lock")
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
