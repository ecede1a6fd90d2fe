// Package extproc runs the renderer side process that turns a manifest and
// its containers into the final scene file.
package extproc

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Status int

const (
	Success Status = iota
	Timeout
	// MissingOutput means the process finished without producing the scene
	// file, usually because a source file could not be read.
	MissingOutput
	Failed
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Timeout:
		return "timeout"
	case MissingOutput:
		return "missing output"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Result describes one run of the external process.
type Result struct {
	Status   Status
	ExitCode int
	Stderr   string
	Duration time.Duration
}

func (r Result) Err() error {
	if r.Status == Success {
		return nil
	}
	msg := r.Status.String()
	if r.ExitCode != 0 {
		msg = fmt.Sprintf("%s (exit code %d)", msg, r.ExitCode)
	}
	if s := strings.TrimSpace(r.Stderr); s != "" {
		msg += ": " + s
	}
	return errors.New("external process " + msg)
}

type Runner struct {
	// Command is split like a shell would, so it may carry its own flags.
	Command string
	Timeout time.Duration
	Log     logrus.FieldLogger
}

// Job is what one invocation works on.
type Job struct {
	Script   string
	Manifest string
	Output   string
	// Flags are appended as name=true or name=false.
	Flags map[string]bool
}

// Args returns the full argument list of the job, command first.
func (r *Runner) Args(job Job) ([]string, error) {
	args, err := shellwords.Parse(r.Command)
	if err != nil {
		return nil, errors.Wrap(err, "parse command")
	}
	if len(args) == 0 {
		return nil, errors.Errorf("command %q is empty", r.Command)
	}
	if job.Script != "" {
		args = append(args, job.Script)
	}
	args = append(args, job.Manifest, job.Output)
	keys := make([]string, 0, len(job.Flags))
	for k := range job.Flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, fmt.Sprintf("%s=%t", k, job.Flags[k]))
	}
	return args, nil
}

// Run starts the process and waits for it. Only a malformed command is
// returned as an error, everything else is reported through the result.
func (r *Runner) Run(ctx context.Context, job Job) (Result, error) {
	args, err := r.Args(job)
	if err != nil {
		return Result{Status: Failed}, err
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	// a stale output from an earlier run must not count as success, it is
	// kept aside and put back unless the run replaces it
	var backup string
	if exists(job.Output) {
		backup = job.Output + ".prev"
		if err := os.Rename(job.Output, backup); err != nil {
			return Result{Status: Failed}, errors.Wrap(err, "move existing output aside")
		}
		log.WithField("output", job.Output).WithField("backup", backup).Warn("existing output moved aside")
	}

	stderr := &bytes.Buffer{}
	c := exec.CommandContext(ctx, args[0], args[1:]...)
	c.Env = os.Environ()
	c.Stderr = stderr
	c.WaitDelay = time.Second

	log.WithField("command", strings.Join(args, " ")).Info("running external process")

	start := time.Now()
	err = c.Run()
	res := Result{Duration: time.Since(start), Stderr: stderr.String(), ExitCode: exitStatus(err)}
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		res.Status = Timeout
	case err != nil:
		res.Status = Failed
		if res.ExitCode == 0 {
			res.ExitCode = -1
			res.Stderr += err.Error()
		}
	case !exists(job.Output):
		res.Status = MissingOutput
	default:
		res.Status = Success
	}
	if backup != "" {
		restore(log, res.Status, backup, job.Output)
	}
	return res, nil
}

// restore drops the backup after a successful run and moves it back
// otherwise.
func restore(log logrus.FieldLogger, status Status, backup, output string) {
	var err error
	if status == Success {
		err = os.Remove(backup)
	} else {
		os.Remove(output)
		err = os.Rename(backup, output)
	}
	if err != nil {
		log.WithError(err).WithField("backup", backup).Warn("cannot restore previous output")
	}
}

func exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

type exitStatuser interface {
	ExitStatus() int
}

// exitStatus returns the exit code carried by err, 0 when err is nil or
// carries none.
func exitStatus(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(exitStatuser); ok {
			return ws.ExitStatus()
		}
		return ee.ExitCode()
	}
	return 0
}
