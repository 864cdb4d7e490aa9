package executor

import (
	"strings"
)

// Environment handed to a container.
// The host environment is filtered so that only what the Science Tools
// and the GUI need crosses into the container.

// envAllowlist contains variables that are passed through to the container.
var envAllowlist = map[string]bool{
	"LANG":                      true,
	"LANGUAGE":                  true,
	"LC_ALL":                    true,
	"TERM":                      true,
	"DISPLAY":                   true,
	"XAUTHORITY":                true,
	"INST_DIR":                  true,
	"PYTHONPATH":                true,
	"GTBURSTCONFDIR":            true,
	"GTBURST_TEMPLATE_PATH":     true,
	"GTBURST_RUN_ID":            true,
	"GALACTIC_DIFFUSE_TEMPLATE": true,
	"ISOTROPIC_TEMPLATE":        true,
	"CALDB":                     true,
	"CALDBCONFIG":               true,
	"CALDBALIAS":                true,
	"PFILES":                    true,
}

// envBlocklist contains variables that are never passed through, even when
// listed in env_passthrough.
var envBlocklist = map[string]bool{
	"LD_PRELOAD":                     true,
	"LD_LIBRARY_PATH":                true,
	"DYLD_INSERT_LIBRARIES":          true,
	"DOCKER_HOST":                    true,
	"DOCKER_CERT_PATH":               true,
	"KUBECONFIG":                     true,
	"SSH_AUTH_SOCK":                  true,
	"AWS_ACCESS_KEY_ID":              true,
	"AWS_SECRET_ACCESS_KEY":          true,
	"AWS_SESSION_TOKEN":              true,
	"GOOGLE_APPLICATION_CREDENTIALS": true,
}

// ScrubEnvironment filters env through the allowlist, extended with extra,
// and the blocklist.
func ScrubEnvironment(env []string, extra []string) []string {
	allowed := make(map[string]bool, len(envAllowlist)+len(extra))
	for k := range envAllowlist {
		allowed[k] = true
	}
	for _, k := range extra {
		allowed[k] = true
	}

	scrubbed := make([]string, 0, len(env))
	for _, entry := range env {
		key := envKey(entry)

		// Blocklist wins over both lists
		if envBlocklist[key] {
			continue
		}
		if allowed[key] {
			scrubbed = append(scrubbed, entry)
		}
	}

	return scrubbed
}

// SetEnv returns env with key set to value, replacing any earlier entries.
func SetEnv(env []string, key, value string) []string {
	out := make([]string, 0, len(env)+1)
	for _, entry := range env {
		if envKey(entry) != key {
			out = append(out, entry)
		}
	}
	return append(out, key+"="+value)
}

// LookupEnv finds key in a KEY=VALUE list. The last entry wins, as with
// os/exec.
func LookupEnv(env []string, key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		if strings.HasPrefix(env[i], key+"=") {
			return env[i][len(key)+1:], true
		}
	}
	return "", false
}

// envKey extracts the key from a "KEY=VALUE" environment entry.
func envKey(entry string) string {
	if idx := strings.IndexByte(entry, '='); idx >= 0 {
		return entry[:idx]
	}
	return entry
}
