package backup

import (
	"errors"
	"fmt"
)

// Sentinel failures surfaced by the dump and restore pipelines.
var (
	// ErrToolMissing means the dump or client binary is not installed on
	// this host.
	ErrToolMissing = errors.New("backup tool not found")

	// ErrTimeout means the dump producer exceeded the unit timeout.
	ErrTimeout = errors.New("backup timed out")

	// ErrCompressionFailed means the compressor exited abnormally.
	ErrCompressionFailed = errors.New("compression failed")

	// ErrUnknownHost means a restore reference names a host with no
	// matching server entry.
	ErrUnknownHost = errors.New("unknown host")

	// ErrInvalidReference means a restore reference is not of the form
	// host/artifact.
	ErrInvalidReference = errors.New("invalid backup reference")
)

// ProducerError carries the dump tool's stderr when it exits non-zero.
type ProducerError struct {
	Stderr string
}

func (e *ProducerError) Error() string {
	return fmt.Sprintf("dump failed: %s", e.Stderr)
}

// ClientError carries the database client's stderr when a restore fails.
type ClientError struct {
	Stderr string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("restore client failed: %s", e.Stderr)
}
