package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ExecRunner runs commands with os/exec on the local host.
type ExecRunner struct {
	logger zerolog.Logger
}

// NewExecRunner creates a runner.
func NewExecRunner(logger zerolog.Logger) *ExecRunner {
	return &ExecRunner{
		logger: logger.With().Str("component", "runner").Logger(),
	}
}

func (r *ExecRunner) RunPipeline(ctx context.Context, producer, consumer Spec, out io.Writer, timeout time.Duration) error {
	prod := exec.CommandContext(ctx, producer.Path, producer.Args...)
	prod.Env = append(os.Environ(), producer.Env...)
	var prodStderr bytes.Buffer
	prod.Stderr = &prodStderr

	cons := exec.CommandContext(ctx, consumer.Path, consumer.Args...)
	cons.Env = append(os.Environ(), consumer.Env...)
	var consStderr bytes.Buffer
	cons.Stderr = &consStderr
	cons.Stdout = out

	// An explicit pipe between the children: each holds its own duplicate
	// after Start, so reaping the producer cannot cut the consumer off
	// mid-stream.
	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create pipe: %w", err)
	}
	prod.Stdout = pw
	cons.Stdin = pr

	r.logger.Debug().Str("producer", producer.Path).Str("consumer", consumer.Path).Msg("starting pipeline")

	if err := prod.Start(); err != nil {
		pw.Close()
		pr.Close()
		return &StageError{Stage: StageProducer, Err: err}
	}
	if err := cons.Start(); err != nil {
		pw.Close()
		pr.Close()
		_ = prod.Process.Kill()
		_ = prod.Wait()
		return &StageError{Stage: StageConsumer, Err: err}
	}

	// The children own duplicates now. Releasing the parent's ends lets the
	// consumer see EOF once the producer exits.
	pw.Close()
	pr.Close()

	prodDone := make(chan error, 1)
	go func() { prodDone <- prod.Wait() }()

	var prodErr error
	timedOut := false

	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case prodErr = <-prodDone:
		case <-timer.C:
			timedOut = true
			_ = prod.Process.Kill()
			_ = cons.Process.Kill()
			prodErr = <-prodDone
		case <-ctx.Done():
			_ = prod.Process.Kill()
			_ = cons.Process.Kill()
			prodErr = <-prodDone
		}
	} else {
		select {
		case prodErr = <-prodDone:
		case <-ctx.Done():
			_ = prod.Process.Kill()
			_ = cons.Process.Kill()
			prodErr = <-prodDone
		}
	}

	consErr := cons.Wait()

	switch {
	case timedOut:
		return ErrTimeout
	case ctx.Err() != nil:
		return ctx.Err()
	case prodErr != nil:
		return &StageError{Stage: StageProducer, Stderr: prodStderr.String(), Err: prodErr}
	case consErr != nil:
		return &StageError{Stage: StageConsumer, Stderr: consStderr.String(), Err: consErr}
	}
	return nil
}

func (r *ExecRunner) Output(ctx context.Context, spec Spec) ([]byte, error) {
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Env = append(os.Environ(), spec.Env...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.logger.Debug().Str("path", spec.Path).Msg("executing command")

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s failed: %s: %w", spec.Path, msg, err)
		}
		return nil, fmt.Errorf("%s failed: %w", spec.Path, err)
	}
	return out, nil
}
