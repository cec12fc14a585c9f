// Package pyenv builds the environment for launched Python processes:
// interpreter resolution, UTF-8 forcing, and PYTHONPATH discovery by
// walking the script's project tree.
package pyenv

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/avolkov/procscope/internal/logging"
)

// Options controls environment construction for a session.
type Options struct {
	// Root is the directory whose tree is scanned for Python packages.
	// Usually the directory containing the target script.
	Root string
	// ExtraPaths are appended to PYTHONPATH after the discovered dirs,
	// so the project root always resolves first.
	ExtraPaths []string
	// ForceUTF8 sets the PYTHON* encoding variables so child output is
	// UTF-8 regardless of locale.
	ForceUTF8 bool
}

// skipDirs are directory names excluded from the PYTHONPATH scan.
var skipDirs = map[string]bool{
	".git":         true,
	"__pycache__":  true,
	"node_modules": true,
	"venv":         true,
	".venv":        true,
	"env":          true,
	".env":         true,
	"dist":         true,
	"build":        true,
}

func skipDir(name string) bool {
	if skipDirs[name] {
		return true
	}
	if strings.HasPrefix(name, ".") {
		return true
	}
	return strings.HasSuffix(name, ".egg-info")
}

// DiscoverPackageDirs walks root and returns every directory that
// directly contains at least one .py file, root first, in walk order.
// An unreadable root yields an empty list rather than an error; the
// launcher proceeds with the inherited PYTHONPATH.
func DiscoverPackageDirs(root string) []string {
	logger := logging.GetLogger("pyenv")

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		logger.Warn("PYTHONPATH scan skipped, root not readable", "root", root, "error", err)
		return nil
	}

	var dirs []string
	seen := make(map[string]bool)

	// Iterative walk so a single unreadable subdirectory does not
	// abort the scan.
	queue := []string{root}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Debug("skipping unreadable directory", "dir", dir, "error", err)
			continue
		}

		hasPy := false
		for _, e := range entries {
			if e.IsDir() {
				if !skipDir(e.Name()) {
					queue = append(queue, filepath.Join(dir, e.Name()))
				}
				continue
			}
			if strings.HasSuffix(e.Name(), ".py") {
				hasPy = true
			}
		}
		if hasPy && !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	logger.Debug("PYTHONPATH scan complete", "root", root, "dirs", len(dirs))
	return dirs
}

// Build returns the full environment for a child process: the current
// process environment with PYTHONPATH extended and, when requested,
// UTF-8 mode forced.
func Build(opts Options) []string {
	env := os.Environ()

	// Discovered dirs first (root leads the walk order), extras after,
	// so an extra path can never shadow the project's own modules.
	var paths []string
	paths = append(paths, DiscoverPackageDirs(opts.Root)...)
	paths = append(paths, opts.ExtraPaths...)
	paths = dedupe(paths)

	if len(paths) > 0 {
		existing := getEnv(env, "PYTHONPATH")
		joined := strings.Join(paths, string(os.PathListSeparator))
		if existing != "" {
			joined = joined + string(os.PathListSeparator) + existing
		}
		env = setEnv(env, "PYTHONPATH", joined)
	}

	if opts.ForceUTF8 {
		env = setEnv(env, "PYTHONUTF8", "1")
		env = setEnv(env, "PYTHONIOENCODING", "utf-8")
		env = setEnv(env, "PYTHONLEGACYWINDOWSSTDIO", "0")
	}

	return env
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func getEnv(env []string, key string) string {
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return kv[len(prefix):]
		}
	}
	return ""
}

func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}
