package sandbox

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// probeScript prints the interpreter's own executable path.
const probeScript = "import sys; print(sys.executable)"

// probe checks that the interpreter found first on PATH is the one in the
// provisioned bin directory.
func (s *Sandbox) probe(ctx context.Context) error {
	res, err := s.Run(ctx, s.profile.Interpreter, "-c", probeScript)
	if err != nil {
		return err
	}
	got := strings.TrimSpace(res.Stdout())
	want := filepath.Join(s.Paths.Bin, s.profile.Interpreter)
	if !sameExecutable(got, want) {
		return &ProbeMismatchError{Got: got, Want: want}
	}
	return nil
}

// sameExecutable compares got, with any extension removed, to want.
// Symlinked parents such as /var -> /private/var are resolved.
func sameExecutable(got, want string) bool {
	got = filepath.Clean(strings.TrimSuffix(got, filepath.Ext(got)))
	want = filepath.Clean(want)
	if got == want {
		return true
	}
	if filepath.Base(got) != filepath.Base(want) {
		return false
	}
	gotDir, err1 := filepath.EvalSymlinks(filepath.Dir(got))
	wantDir, err2 := filepath.EvalSymlinks(filepath.Dir(want))
	return err1 == nil && err2 == nil && gotDir == wantDir
}

// bootstrap installs the profile's pinned baseline package manager. On
// windows the launcher files are copied to a scratch directory and the
// copy is run.
func (s *Sandbox) bootstrap(ctx context.Context) error {
	if len(s.profile.Bootstrap) == 0 {
		return nil
	}
	script := filepath.Join(s.Paths.Bin, s.profile.Bootstrap[0])
	args := s.profile.Bootstrap[1:]

	if runtime.GOOS != "windows" {
		_, err := s.Run(ctx, script, args...)
		return err
	}

	tmp, err := os.MkdirTemp(s.Scratch, "bootstrap-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	matches, err := filepath.Glob(script + "*")
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := copyFile(m, filepath.Join(tmp, filepath.Base(m))); err != nil {
			return err
		}
	}
	_, err = s.RunWith(ctx, RunOptions{Ignore: []string{relSlash(s.Root, tmp) + "/"}},
		filepath.Join(tmp, s.profile.Bootstrap[0]), args...)
	return err
}

// installCandidate removes the tool version shipped with the runtime and
// installs the candidate from a copy of source under the root.
func (s *Sandbox) installCandidate(ctx context.Context, source string) error {
	dst := filepath.Join(s.Root, candidateDir)
	if err := copyTree(source, dst); err != nil {
		return fmt.Errorf("copy source %s: %w", source, err)
	}

	if argv := expandSource(s.profile.Uninstall, dst); len(argv) > 0 {
		if _, err := s.Run(ctx, argv[0], argv[1:]...); err != nil {
			return fmt.Errorf("uninstall shipped %s: %w", s.profile.Name, err)
		}
	}
	if argv := s.profile.Install; len(argv) > 0 {
		if _, err := s.RunWith(ctx, RunOptions{Dir: dst}, argv[0], argv[1:]...); err != nil {
			return fmt.Errorf("install candidate: %w", err)
		}
	}
	return nil
}

// vcsDirs are never copied into a sandbox.
var vcsDirs = map[string]bool{".git": true, ".hg": true, ".svn": true, ".bzr": true}

// copyTree copies the tree at src to dst. Symlinks are recreated with
// their target unchanged; sockets, pipes and devices are skipped.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch mode := d.Type(); {
		case d.IsDir():
			if path != src && vcsDirs[d.Name()] {
				return filepath.SkipDir
			}
			return os.MkdirAll(target, 0o755)
		case mode&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case mode.IsRegular():
			return copyFile(path, target)
		default:
			return nil
		}
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func relSlash(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
