package backup

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/edvin/mariaback/internal/config"
	"github.com/edvin/mariaback/internal/metrics"
)

// staleWarnBytes is the threshold above which dump files in a host directory
// that no policy governs are called out during pruning.
const staleWarnBytes = 10 * 1024 * 1024

// Retention prunes a database's artifact set down to its policy.
type Retention struct {
	logger zerolog.Logger
}

// NewRetention creates the retention engine.
func NewRetention(logger zerolog.Logger) *Retention {
	return &Retention{
		logger: logger.With().Str("component", "retention").Logger(),
	}
}

// Prune applies policy to one database's artifacts in dir and returns the
// deleted names in deletion order. The count rule runs first; the size rule
// then deletes oldest-first until the remaining total fits under the byte cap.
// A failed delete is logged and skipped, never aborting the pass.
func (r *Retention) Prune(dir, database string, policy config.RetentionPolicy) []string {
	host := filepath.Base(dir)
	log := r.logger.With().Str("host", host).Str("database", database).Logger()

	var deleted []string
	remove := func(a Artifact, rule string) bool {
		if err := os.Remove(a.Path); err != nil {
			log.Warn().Err(err).Str("artifact", a.Name).Msg("delete failed, continuing")
			return false
		}
		log.Info().Str("artifact", a.Name).Str("rule", rule).Msg("deleted old backup")
		metrics.RetentionDeletedTotal.WithLabelValues(host, database).Inc()
		deleted = append(deleted, a.Name)
		return true
	}

	keep := policy.KeepLast
	if keep < 0 {
		keep = 0
	}

	arts := artifactsFor(dir, database)
	for i := keep; i < len(arts); i++ {
		remove(arts[i], "count")
	}

	// The size rule works on a fresh listing so it sees what the count rule
	// actually managed to delete.
	arts = artifactsFor(dir, database)
	var total int64
	for _, a := range arts {
		total += a.Size
	}

	r.warnStale(log, dir, total)

	maxBytes := policy.MaxBytes()
	for total > maxBytes && len(arts) > 0 {
		oldest := arts[len(arts)-1]
		arts = arts[:len(arts)-1]
		if remove(oldest, "size") {
			total -= oldest.Size
		}
	}

	return deleted
}

// warnStale reports dump files in the host directory that this database's
// policy does not govern, so leftovers from renamed databases get noticed
// before they fill the disk.
func (r *Retention) warnStale(log zerolog.Logger, dir string, managedTotal int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var hostTotal int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Suffix) {
			continue
		}
		if info, err := e.Info(); err == nil {
			hostTotal += info.Size()
		}
	}

	if stale := hostTotal - managedTotal; stale > staleWarnBytes {
		log.Warn().Int64("stale_bytes", stale).Str("dir", dir).Msg("unmanaged backup files present")
	}
}
