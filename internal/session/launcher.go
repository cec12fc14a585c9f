package session

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/avolkov/procscope/internal/pyenv"
)

// launched holds a started child plus the parent-side read ends of its
// output pipes. The pipes are created here rather than via StdoutPipe
// so that Wait never closes them underneath a reader that has not yet
// drained trailing output.
type launched struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *os.File
}

// launch starts the target program with captured output, no stdin, and
// its own process group so the whole tree can be signalled together.
func launch(spec LaunchSpec, env []string) (*launched, error) {
	interp, err := pyenv.ResolveInterpreter(spec.Python)
	if err != nil {
		return nil, &LaunchError{Reason: "interpreter unusable", Err: err}
	}

	script, err := filepath.Abs(spec.Script)
	if err != nil {
		return nil, &LaunchError{Reason: "entry-point path invalid", Err: err}
	}
	if info, err := os.Stat(script); err != nil {
		return nil, &LaunchError{Reason: "entry-point missing", Err: err}
	} else if info.IsDir() {
		return nil, &LaunchError{Reason: "entry-point is a directory"}
	}

	workdir := spec.WorkDir
	if workdir == "" {
		workdir = filepath.Dir(script)
	}

	// -u disables the interpreter's output buffering so partial
	// progress is visible live.
	args := append([]string{"-u", script}, spec.Args...)
	cmd := exec.Command(interp, args...)
	cmd.Dir = workdir
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, &LaunchError{Reason: "stdout pipe", Err: err}
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, &LaunchError{Reason: "stderr pipe", Err: err}
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		outR.Close()
		outW.Close()
		errR.Close()
		errW.Close()
		return nil, &LaunchError{Reason: "process start", Err: err}
	}

	// Drop the parent's write copies so readers see EOF once every
	// process holding the child side has exited.
	outW.Close()
	errW.Close()

	return &launched{cmd: cmd, stdout: outR, stderr: errR}, nil
}

// exitCodeFromError maps a Wait result to an exit code. Signal deaths
// use the shell convention of 128 plus the signal number, so a forced
// SIGKILL reads as 137.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}
