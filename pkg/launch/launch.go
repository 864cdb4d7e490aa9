// Package launch defines the shared types that describe a single launch of
// the gtburst script, independent of the executor strategy that runs it.
package launch

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// InstDirEnv is the environment variable naming the installation root.
const InstDirEnv = "INST_DIR"

// RunIDEnv is set on the child process to the run id of the launch.
const RunIDEnv = "GTBURST_RUN_ID"

// DefaultInterpreter is the interpreter looked up on PATH.
const DefaultInterpreter = "python"

// DefaultScript is the script location relative to the installation root.
const DefaultScript = "python/gtburst.py"

// Identity holds the UID/GID of the process that invoked the launcher.
type Identity struct {
	UID int `json:"uid"`
	GID int `json:"gid"`
}

// Invocation is the resolved description of one launch.
type Invocation struct {
	RunID       string   `json:"run_id"`
	Interpreter string   `json:"interpreter"`
	Script      string   `json:"script"`
	Args        []string `json:"args"`
	Cwd         string   `json:"cwd"`
	Env         []string `json:"env,omitempty"`
	Identity    Identity `json:"identity"`

	// Shell is the command line run by the shell executor.
	Shell string `json:"shell,omitempty"`

	// InstDir is the resolved installation root. Empty in shell mode,
	// where resolution is left to the shell.
	InstDir string `json:"inst_dir,omitempty"`
}

// Argv returns the full argument vector: interpreter, script, then args.
func (inv *Invocation) Argv() []string {
	argv := make([]string, 0, len(inv.Args)+2)
	argv = append(argv, inv.Interpreter, inv.Script)
	return append(argv, inv.Args...)
}

// ShellScript returns the script operand of the shell command line. A
// relative script is placed under $INST_DIR, left for the shell to expand;
// an absolute one is used as given, as in direct mode.
func ShellScript(script string) string {
	if script == "" {
		script = DefaultScript
	}
	script = path.Clean(filepath.ToSlash(script))
	if path.IsAbs(script) {
		return script
	}
	return "$" + InstDirEnv + "/" + script
}

// LegacyCommand builds the historical shell command line:
// "<interpreter> $INST_DIR/<script>". The $INST_DIR token is left for the
// shell to expand and the process arguments are never consulted. The
// interpreter and the script are quoted as shell words where needed, so the
// defaults produce the literal line unchanged.
func LegacyCommand(interpreter, script string) (string, error) {
	if interpreter == "" {
		interpreter = DefaultInterpreter
	}
	word, err := syntax.Quote(interpreter, syntax.LangPOSIX)
	if err != nil {
		return "", fmt.Errorf("quote interpreter: %w", err)
	}

	operand := ShellScript(script)
	rel, underInstDir := strings.CutPrefix(operand, "$"+InstDirEnv+"/")
	if !underInstDir {
		rel = operand
	}
	quoted, err := syntax.Quote(rel, syntax.LangPOSIX)
	if err != nil {
		return "", fmt.Errorf("quote script: %w", err)
	}
	if underInstDir {
		quoted = "$" + InstDirEnv + "/" + quoted
	}

	return word + " " + quoted, nil
}
