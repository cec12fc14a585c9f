package pyenv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func mkTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("# test\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDiscoverPackageDirs(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root,
		"main.py",
		"pkg/mod.py",
		"pkg/sub/deep.py",
		"docs/readme.md",
		"__pycache__/cached.py",
		".git/hook.py",
		"venv/lib/site.py",
		"thing.egg-info/meta.py",
	)

	dirs := DiscoverPackageDirs(root)

	want := map[string]bool{
		root:                              true,
		filepath.Join(root, "pkg"):        true,
		filepath.Join(root, "pkg", "sub"): true,
	}
	if len(dirs) != len(want) {
		t.Fatalf("got %d dirs %v, want %d", len(dirs), dirs, len(want))
	}
	for _, d := range dirs {
		if !want[d] {
			t.Errorf("unexpected dir %s", d)
		}
	}
	if dirs[0] != root {
		t.Errorf("root should come first, got %s", dirs[0])
	}
}

func TestDiscoverPackageDirsMissingRoot(t *testing.T) {
	dirs := DiscoverPackageDirs(filepath.Join(t.TempDir(), "nope"))
	if dirs != nil {
		t.Errorf("expected nil for missing root, got %v", dirs)
	}
}

func TestDiscoverSkipsDirsWithoutPyFiles(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, "docs/readme.md", "pkg/mod.py")

	dirs := DiscoverPackageDirs(root)
	for _, d := range dirs {
		if d == filepath.Join(root, "docs") || d == root {
			t.Errorf("dir without .py files included: %s", d)
		}
	}
}

func TestBuildPythonPath(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, "main.py")
	t.Setenv("PYTHONPATH", "/inherited")

	env := Build(Options{Root: root, ExtraPaths: []string{"/extra"}})

	pp := getEnv(env, "PYTHONPATH")
	parts := strings.Split(pp, string(os.PathListSeparator))
	if len(parts) != 3 {
		t.Fatalf("PYTHONPATH = %q, want 3 entries", pp)
	}
	if parts[0] != root || parts[1] != "/extra" || parts[2] != "/inherited" {
		t.Errorf("PYTHONPATH order wrong: %v", parts)
	}
}

func TestBuildExtrasDoNotShadowRoot(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, "a.py")
	extra := t.TempDir()
	t.Setenv("PYTHONPATH", "")

	env := Build(Options{Root: root, ExtraPaths: []string{extra}})

	parts := strings.Split(getEnv(env, "PYTHONPATH"), string(os.PathListSeparator))
	if parts[0] != root {
		t.Errorf("first entry = %q, want project root %q", parts[0], root)
	}
}

func TestBuildForceUTF8(t *testing.T) {
	env := Build(Options{Root: t.TempDir(), ForceUTF8: true})

	checks := map[string]string{
		"PYTHONUTF8":               "1",
		"PYTHONIOENCODING":         "utf-8",
		"PYTHONLEGACYWINDOWSSTDIO": "0",
	}
	for k, v := range checks {
		if got := getEnv(env, k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestBuildWithoutForceUTF8(t *testing.T) {
	os.Unsetenv("PYTHONUTF8")
	env := Build(Options{Root: t.TempDir()})
	if got := getEnv(env, "PYTHONUTF8"); got != "" {
		t.Errorf("PYTHONUTF8 = %q, want unset", got)
	}
}

func TestDedupePreservesOrder(t *testing.T) {
	got := dedupe([]string{"/a", "/b", "/a", "", "/c", "/b"})
	want := []string{"/a", "/b", "/c"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestResolveInterpreterExplicit(t *testing.T) {
	script := filepath.Join(t.TempDir(), "py")
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := ResolveInterpreter(script)
	if err != nil {
		t.Fatal(err)
	}
	if got != script {
		t.Errorf("got %s, want %s", got, script)
	}
}

func TestResolveInterpreterEnvOverride(t *testing.T) {
	script := filepath.Join(t.TempDir(), "py")
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv(InterpreterEnv, script)

	got, err := ResolveInterpreter("")
	if err != nil {
		t.Fatal(err)
	}
	if got != script {
		t.Errorf("got %s, want %s", got, script)
	}
}

func TestResolveInterpreterMissingExplicit(t *testing.T) {
	if _, err := ResolveInterpreter("/does/not/exist"); err == nil {
		t.Error("expected error for missing interpreter")
	}
}
