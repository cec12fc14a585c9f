package pyenv

import (
	"fmt"
	"os"
	"os/exec"
)

// InterpreterEnv overrides interpreter resolution when set to an
// executable path.
const InterpreterEnv = "PROCSCOPE_PYTHON"

// ResolveInterpreter locates the Python interpreter to launch sessions
// with. Order: explicit argument, PROCSCOPE_PYTHON, then python3 and
// python on PATH.
func ResolveInterpreter(explicit string) (string, error) {
	if explicit != "" {
		return checkExecutable(explicit)
	}
	if override := os.Getenv(InterpreterEnv); override != "" {
		return checkExecutable(override)
	}
	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no python interpreter found on PATH (set %s to override)", InterpreterEnv)
}

func checkExecutable(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("interpreter %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("interpreter %s is a directory", path)
	}
	return path, nil
}
