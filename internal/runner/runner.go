// Package runner spawns the external processes that do the actual dump,
// compression and restore work.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Spec describes one external command invocation.
type Spec struct {
	Path string
	Args []string
	// Env entries are appended to the inherited environment, letting
	// credentials reach the child without appearing in argv.
	Env []string
}

// Pipeline stages, used to tell producer failures from consumer failures.
const (
	StageProducer = "producer"
	StageConsumer = "consumer"
)

// ErrTimeout is returned when the producer outlives its deadline and the
// pipeline is torn down.
var ErrTimeout = errors.New("pipeline timed out")

// StageError reports a pipeline command exiting abnormally, carrying whatever
// it wrote to stderr.
type StageError struct {
	Stage  string
	Stderr string
	Err    error
}

func (e *StageError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, msg, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Runner executes external commands. The pipeline form connects producer
// stdout to consumer stdin so the stream is never buffered in this process.
type Runner interface {
	// RunPipeline starts both commands, streams consumer output into out and
	// waits for the producer no longer than timeout (0 means unbounded). On
	// timeout both processes are killed and ErrTimeout is returned.
	RunPipeline(ctx context.Context, producer, consumer Spec, out io.Writer, timeout time.Duration) error

	// Output runs a single command and returns its stdout.
	Output(ctx context.Context, spec Spec) ([]byte, error)
}
