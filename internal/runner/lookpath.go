package runner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var errNotFound = errors.New("executable file not found in $PATH")

// lookPath resolves file against the PATH of the child environment rather
// than the host's. Names containing a separator are resolved against dir.
func lookPath(file, dir string, env map[string]string) (string, error) {
	exts := executableExts(env)

	if strings.ContainsAny(file, `/\`) {
		path := file
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		return findExecutable(path, exts)
	}

	for _, d := range filepath.SplitList(envValue(env, "PATH")) {
		if d == "" {
			continue
		}
		if !filepath.IsAbs(d) {
			d = filepath.Join(dir, d)
		}
		if path, err := findExecutable(filepath.Join(d, file), exts); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s: %w", file, errNotFound)
}

func findExecutable(path string, exts []string) (string, error) {
	if runtime.GOOS != "windows" {
		if err := checkExecutable(path); err != nil {
			return "", err
		}
		return path, nil
	}
	if filepath.Ext(path) != "" {
		if err := checkExecutable(path); err == nil {
			return path, nil
		}
	}
	for _, ext := range exts {
		if err := checkExecutable(path + ext); err == nil {
			return path + ext, nil
		}
	}
	return "", fmt.Errorf("%s: %w", path, errNotFound)
}

func checkExecutable(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && fi.Mode()&0o111 == 0 {
		return fmt.Errorf("%s: permission denied", path)
	}
	return nil
}

func executableExts(env map[string]string) []string {
	if runtime.GOOS != "windows" {
		return nil
	}
	pathext := envValue(env, "PATHEXT")
	if pathext == "" {
		pathext = ".com;.exe;.bat;.cmd"
	}
	var exts []string
	for _, e := range strings.Split(strings.ToLower(pathext), ";") {
		if e != "" {
			exts = append(exts, e)
		}
	}
	return exts
}

// envValue looks a variable up, ignoring case on windows.
func envValue(env map[string]string, key string) string {
	if v, ok := env[key]; ok {
		return v
	}
	if runtime.GOOS == "windows" {
		for k, v := range env {
			if strings.EqualFold(k, key) {
				return v
			}
		}
	}
	return ""
}
