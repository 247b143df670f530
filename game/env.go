package game

import (
	"os"
	"strings"
)

// sensitiveEnvSuffixes are case-insensitive suffixes of environment variables
// that are withheld from the game process. Provider API keys live in the
// harness environment and the game has no use for them.
var sensitiveEnvSuffixes = []string{
	"_API_KEY",
	"_SECRET",
	"_TOKEN",
	"_PASSWORD",
	"_CREDENTIAL",
}

// isSensitiveEnvVar checks if a variable name matches a sensitive suffix.
func isSensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	for _, suffix := range sensitiveEnvSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return true
		}
	}
	return false
}

// filterEnvironment returns environ without sensitive variables, followed by
// the given overrides. TERM is forced to a dumb terminal unless overridden so
// games do not emit cursor control sequences into the transcript.
func filterEnvironment(environ []string, overrides map[string]string) []string {
	filtered := make([]string, 0, len(environ)+len(overrides)+1)
	for _, kv := range environ {
		name, _, ok := strings.Cut(kv, "=")
		if !ok || isSensitiveEnvVar(name) || name == "TERM" {
			continue
		}
		if _, overridden := overrides[name]; overridden {
			continue
		}
		filtered = append(filtered, kv)
	}
	if _, ok := overrides["TERM"]; !ok {
		filtered = append(filtered, "TERM=dumb")
	}
	for k, v := range overrides {
		filtered = append(filtered, k+"="+v)
	}
	return filtered
}

// childEnvironment is filterEnvironment applied to the current process.
func childEnvironment(overrides map[string]string) []string {
	return filterEnvironment(os.Environ(), overrides)
}
