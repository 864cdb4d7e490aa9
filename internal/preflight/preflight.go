// Package preflight verifies that an installation can run gtburst: the
// installation directory, the script, the interpreter, the likelihood
// templates and the configuration directory.
package preflight

import (
	"context"
	"fmt"
	"gtburst/internal/config"
	"os"
	"os/exec"
	"path/filepath"
)

// Status is the outcome of a single check.
type Status int

const (
	StatusOK Status = iota
	StatusWarn
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Result is the outcome of one named check.
type Result struct {
	Name    string
	Status  Status
	Message string
}

// Pinger reports whether a container daemon is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TemplateEnvs name the likelihood templates required by the analysis.
var TemplateEnvs = []string{"GALACTIC_DIFFUSE_TEMPLATE", "ISOTROPIC_TEMPLATE"}

// Checker runs the checks against a configuration.
type Checker struct {
	cfg      *config.Config
	getenv   func(string) string
	lookPath func(string) (string, error)
	pinger   Pinger
}

// Option customizes a Checker.
type Option func(*Checker)

// WithGetenv replaces os.Getenv.
func WithGetenv(fn func(string) string) Option {
	return func(c *Checker) { c.getenv = fn }
}

// WithLookPath replaces exec.LookPath.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(c *Checker) { c.lookPath = fn }
}

// WithPinger sets the daemon probe used in docker mode.
func WithPinger(p Pinger) Option {
	return func(c *Checker) { c.pinger = p }
}

// NewChecker creates a checker for cfg.
func NewChecker(cfg *config.Config, opts ...Option) *Checker {
	c := &Checker{
		cfg:      cfg,
		getenv:   os.Getenv,
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes every check in order.
func (c *Checker) Run(ctx context.Context) []Result {
	instDir := c.cfg.ResolveInstDir(c.getenv)

	results := []Result{
		c.checkInstDir(instDir),
		c.checkScript(instDir),
		c.checkInterpreter(),
	}
	for _, env := range TemplateEnvs {
		results = append(results, c.checkTemplate(env))
	}
	results = append(results, c.checkConfDir())
	if c.cfg.Mode == config.ModeDocker {
		results = append(results, c.checkDocker(ctx))
	}
	return results
}

// Failed reports whether any result is a failure.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Status == StatusFail {
			return true
		}
	}
	return false
}

func (c *Checker) checkInstDir(dir string) Result {
	r := Result{Name: "installation directory"}
	if dir == "" {
		r.Status = StatusFail
		r.Message = "INST_DIR is not set and no inst_dir is configured"
		return r
	}
	info, err := os.Stat(dir)
	if err != nil {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("%s: %v", dir, err)
		return r
	}
	if !info.IsDir() {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("%s is not a directory", dir)
		return r
	}
	r.Message = dir
	return r
}

func (c *Checker) checkScript(instDir string) Result {
	r := Result{Name: "gtburst script"}
	if instDir == "" && !filepath.IsAbs(c.cfg.Script) {
		r.Status = StatusFail
		r.Message = "cannot locate the script without an installation directory"
		return r
	}

	path := c.cfg.Script
	if !filepath.IsAbs(path) {
		path = filepath.Join(instDir, filepath.FromSlash(path))
	}

	f, err := os.Open(path)
	if err != nil {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("%s is not readable: %v", path, err)
		return r
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("%s is not a regular file", path)
		return r
	}
	r.Message = path
	return r
}

func (c *Checker) checkInterpreter() Result {
	r := Result{Name: "python interpreter"}
	if c.cfg.Mode == config.ModeDocker {
		r.Message = fmt.Sprintf("%s is resolved inside image %s", c.cfg.Python, c.cfg.Docker.Image)
		return r
	}
	path, err := c.lookPath(c.cfg.Python)
	if err != nil {
		r.Status = StatusFail
		r.Message = fmt.Sprintf("%s not found: %v", c.cfg.Python, err)
		return r
	}
	r.Message = path
	return r
}

func (c *Checker) checkTemplate(env string) Result {
	r := Result{Name: env}
	path := c.getenv(env)
	if path == "" {
		r.Status = StatusWarn
		r.Message = "not set; likelihood analysis will not work"
		return r
	}
	f, err := os.Open(path)
	if err != nil {
		r.Status = StatusWarn
		r.Message = fmt.Sprintf("%s is not readable: %v", path, err)
		return r
	}
	f.Close()
	r.Message = path
	return r
}

func (c *Checker) checkConfDir() Result {
	r := Result{Name: "configuration directory"}
	dir := c.cfg.ConfDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		r.Status = StatusWarn
		r.Message = fmt.Sprintf("%s cannot be created: %v", dir, err)
		return r
	}
	f, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		r.Status = StatusWarn
		r.Message = fmt.Sprintf("%s is not writable: %v", dir, err)
		return r
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	r.Message = dir
	return r
}

func (c *Checker) checkDocker(ctx context.Context) Result {
	r := Result{Name: "docker daemon"}
	if c.pinger == nil {
		r.Status = StatusFail
		r.Message = "no docker client available"
		return r
	}
	if err := c.pinger.Ping(ctx); err != nil {
		r.Status = StatusFail
		r.Message = err.Error()
		return r
	}
	r.Message = "reachable"
	return r
}
