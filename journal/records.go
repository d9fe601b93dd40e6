package journal

import (
	"strings"
	"time"

	"github.com/justapithecus/lode/lode"
)

func toRecord(e Entry) map[string]any {
	return map[string]any{
		"day":           DeriveDay(e.Timestamp),
		"submission_id": e.SubmissionID,
		"event_type":    e.Event,
		"entrypoint":    e.Entrypoint,
		"status":        e.Status,
		"working_dir":   e.WorkingDir,
		"dashboard":     e.Dashboard,
		"message":       e.Message,
		"duration_ms":   e.DurationMs,
		"timestamp":     e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func fromRecord(r map[string]any) Entry {
	ts, _ := time.Parse(time.RFC3339Nano, toString(r["timestamp"]))
	return Entry{
		Event:        toString(r["event_type"]),
		SubmissionID: toString(r["submission_id"]),
		Entrypoint:   toString(r["entrypoint"]),
		Status:       toString(r["status"]),
		WorkingDir:   toString(r["working_dir"]),
		Dashboard:    toString(r["dashboard"]),
		Message:      toString(r["message"]),
		DurationMs:   toInt64(r["duration_ms"]),
		Timestamp:    ts,
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 accepts the numeric shapes a JSON round trip can produce.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

// snapshotMatchesFilter reports whether a snapshot holds files in the
// key=value partition. An empty value matches everything.
func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	segment := key + "=" + value
	for _, f := range snap.Manifest.Files {
		for _, part := range strings.Split(f.Path, "/") {
			if part == segment {
				return true
			}
		}
	}
	return false
}
