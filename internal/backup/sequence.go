package backup

import (
	"os"
	"time"
)

// NextSequence returns one greater than the highest sequence number used by
// the database on the given date, or 1 when none exist. Numbers freed by
// retention are never handed out again, so names stay unique for the day.
func NextSequence(dir, database string, date time.Time) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 1
	}

	highest := 0
	for _, e := range entries {
		if n, ok := parseSequence(e.Name(), database, date); ok && n > highest {
			highest = n
		}
	}
	return highest + 1
}
