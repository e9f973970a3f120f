// Package backup implements the dump and restore pipelines plus the
// sequencing and retention rules over the artifact store.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Suffix is the artifact file extension.
const Suffix = ".sql.gz"

// Artifact is one dump file on durable storage.
type Artifact struct {
	Name    string    `json:"name"`
	Path    string    `json:"-"`
	Size    int64     `json:"size_bytes"`
	ModTime time.Time `json:"modified_at"`
}

// DateSegment renders the DD-MM-YYYY filename segment.
func DateSegment(t time.Time) string {
	return t.Format("02-01-2006")
}

// FileName assembles <database>-<DD-MM-YYYY>-<N>.sql.gz.
func FileName(database string, date time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%d%s", database, DateSegment(date), seq, Suffix)
}

// datePattern matches every date-qualified artifact of one database,
// whatever the date or sequence number.
func datePattern(database string) string {
	return database + "-[0-9][0-9]-[0-9][0-9]-[0-9][0-9][0-9][0-9]-*" + Suffix
}

// parseSequence extracts the trailing sequence number from an artifact name
// belonging to the given database and date. ok is false for foreign or
// malformed names.
func parseSequence(name, database string, date time.Time) (int, bool) {
	prefix := database + "-" + DateSegment(date) + "-"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, Suffix) {
		return 0, false
	}

	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), Suffix))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// artifactsFor lists the database's artifacts in dir, newest first by
// modification time.
func artifactsFor(dir, database string) []Artifact {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	pattern := datePattern(database)
	var arts []Artifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(pattern, e.Name()); !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		arts = append(arts, Artifact{
			Name:    e.Name(),
			Path:    filepath.Join(dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(arts, func(i, j int) bool { return arts[i].ModTime.After(arts[j].ModTime) })
	return arts
}

// HostArtifacts groups one host directory's artifacts.
type HostArtifacts struct {
	Host      string     `json:"host"`
	Artifacts []Artifact `json:"artifacts"`
}

// ListAll walks the storage root and returns every artifact grouped per
// host, hosts and names in lexical order.
func ListAll(root string) ([]HostArtifacts, error) {
	hosts, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read storage root: %w", err)
	}

	var groups []HostArtifacts
	for _, h := range hosts {
		if !h.IsDir() {
			continue
		}

		dir := filepath.Join(root, h.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		group := HostArtifacts{Host: h.Name()}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), Suffix) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			group.Artifacts = append(group.Artifacts, Artifact{
				Name:    e.Name(),
				Path:    filepath.Join(dir, e.Name()),
				Size:    info.Size(),
				ModTime: info.ModTime(),
			})
		}
		if len(group.Artifacts) > 0 {
			groups = append(groups, group)
		}
	}
	return groups, nil
}
