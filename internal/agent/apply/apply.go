// Package apply runs the external configuration tool against an unpacked
// manifest bundle.
package apply

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/models"
)

// Result is the outcome of one apply run
type Result struct {
	ExitCode int
	Output   string // Combined stdout and stderr
}

// Status classifies the result: 0 is success, -1 interrupted, anything else failure.
func (r Result) Status() models.Status {
	switch r.ExitCode {
	case 0:
		return models.StatusSuccess
	case models.InterruptedExitCode:
		return models.StatusInterrupted
	default:
		return models.StatusFailure
	}
}

// Applier applies a manifest directory. modulePath may be empty.
type Applier interface {
	Apply(ctx context.Context, manifestsDir, modulePath string) Result
}

// DefaultCommand is the apply tool's executable on this platform
func DefaultCommand() string {
	if runtime.GOOS == "windows" {
		return "puppet.bat"
	}
	return "puppet"
}

// PuppetApplier shells out to `puppet apply`
type PuppetApplier struct {
	command string
	logger  *logging.Logger
}

// NewPuppetApplier creates an applier running command (DefaultCommand if empty)
func NewPuppetApplier(command string, logger *logging.Logger) *PuppetApplier {
	if command == "" {
		command = DefaultCommand()
	}
	return &PuppetApplier{command: command, logger: logger}
}

// Args returns the tool arguments for a run
func (p *PuppetApplier) Args(manifestsDir, modulePath string) []string {
	args := []string{"apply", "--color=false"}
	if modulePath != "" {
		args = append(args, "--modulepath="+modulePath)
	}
	return append(args, manifestsDir)
}

// Apply runs the tool to completion. ctx is only checked before the process
// starts; a started run is never killed.
func (p *PuppetApplier) Apply(ctx context.Context, manifestsDir, modulePath string) Result {
	if err := ctx.Err(); err != nil {
		return Result{ExitCode: models.InterruptedExitCode, Output: "apply skipped: " + err.Error()}
	}

	args := p.Args(manifestsDir, modulePath)
	p.logger.Info("Running apply", "command", p.command, "args", args)

	var out bytes.Buffer
	cmd := exec.Command(p.command, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return Result{ExitCode: 0, Output: out.String()}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// ExitCode is -1 when the process was killed by a signal
		code := exitErr.ExitCode()
		if code < 0 {
			code = models.InterruptedExitCode
		}
		return Result{ExitCode: code, Output: out.String()}
	}

	p.logger.Error("Failed to start apply", "command", p.command, "error", err)
	return Result{
		ExitCode: models.InterruptedExitCode,
		Output:   out.String() + fmt.Sprintf("failed to run %s: %v", p.command, err),
	}
}
