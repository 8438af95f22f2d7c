package sandbox

import (
	"os"
	"runtime"
	"strings"

	"golang.org/x/text/cases"
)

// HostEnviron returns the process environment as a map.
func HostEnviron() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		// windows carries per-drive entries like "=C:"
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

// StripTool removes every variable whose name starts with prefix, ignoring
// case, plus the named extra variables. The input is not modified.
func StripTool(env map[string]string, prefix string, extra []string) map[string]string {
	fold := cases.Fold()
	foldedPrefix := fold.String(prefix)

	out := make(map[string]string, len(env))
	for k, v := range env {
		if prefix != "" && strings.HasPrefix(fold.String(k), foldedPrefix) {
			continue
		}
		if containsName(extra, k) {
			continue
		}
		out[k] = v
	}
	return out
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name || (runtime.GOOS == "windows" && strings.EqualFold(n, name)) {
			return true
		}
	}
	return false
}

// prependPath puts dir in front of PATH, keeping the existing key spelling
// on windows where names are case-insensitive.
func prependPath(env map[string]string, dir string) {
	key := "PATH"
	if runtime.GOOS == "windows" {
		for k := range env {
			if strings.EqualFold(k, "PATH") {
				key = k
				break
			}
		}
	}
	if cur := env[key]; cur != "" {
		env[key] = dir + string(os.PathListSeparator) + cur
		return
	}
	env[key] = dir
}
