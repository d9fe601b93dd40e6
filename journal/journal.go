// Package journal keeps a local history of job submissions and their
// terminal outcomes in a Lode dataset.
//
// Records are JSONL, Hive-partitioned by day/submission_id/event_type, and
// every Record call commits one snapshot. History reads snapshots latest
// first.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"

	"github.com/justapithecus/rayjob/blobstore"
	"github.com/justapithecus/rayjob/types"
)

// DatasetID is the Lode dataset holding the journal.
const DatasetID = "rayjob"

// Event types.
const (
	EventSubmitted = "submitted"
	EventTerminal  = "terminal"
)

// Entry is one journal record.
type Entry struct {
	Event        string    `json:"event_type"`
	SubmissionID string    `json:"submission_id"`
	Entrypoint   string    `json:"entrypoint"`
	Status       string    `json:"status,omitempty"`
	WorkingDir   string    `json:"working_dir,omitempty"`
	Dashboard    string    `json:"dashboard"`
	Message      string    `json:"message,omitempty"`
	DurationMs   int64     `json:"duration_ms,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Journal appends and reads journal entries. It holds no open handles;
// every call goes through the lode store, so there is nothing to close.
type Journal struct {
	dataset lode.Dataset
}

// New opens a journal over the given store factory.
// Use lode.NewMemoryFactory() for testing.
func New(factory lode.StoreFactory) (*Journal, error) {
	ds, err := lode.NewDataset(
		lode.DatasetID(DatasetID),
		factory,
		lode.WithHiveLayout("day", "submission_id", "event_type"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, WrapInitError(err, DatasetID)
	}
	return &Journal{dataset: ds}, nil
}

// NewFS opens a journal rooted at a local directory.
func NewFS(root string) (*Journal, error) {
	return New(lode.NewFSFactory(root))
}

// NewS3 opens a journal in an S3 bucket.
// Uses the AWS default credential chain.
func NewS3(ctx context.Context, cfg blobstore.S3Config) (*Journal, error) {
	client, err := blobstore.NewS3Client(ctx, cfg)
	if err != nil {
		return nil, WrapInitError(err, DatasetID)
	}
	return New(func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{
			Bucket: cfg.Bucket,
			Prefix: cfg.Prefix,
		})
	})
}

// DeriveDay computes the partition day: YYYY-MM-DD in UTC.
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Record appends one entry. A zero Timestamp is set to now.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.SubmissionID == "" || e.Event == "" {
		return types.NewError(types.ErrValidation, "journal record", DatasetID,
			fmt.Errorf("entry requires submission_id and event_type"))
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	_, err := j.dataset.Write(ctx, []any{toRecord(e)}, lode.Metadata{})
	return WrapWriteError(err, DatasetID+"/"+e.SubmissionID)
}

// History returns up to limit entries, newest first. limit <= 0 means all.
func (j *Journal) History(ctx context.Context, limit int) ([]Entry, error) {
	return j.query(ctx, "", limit)
}

// ForSubmission returns the entries of one submission, newest first.
func (j *Journal) ForSubmission(ctx context.Context, id string) ([]Entry, error) {
	return j.query(ctx, id, 0)
}

func (j *Journal) query(ctx context.Context, submissionID string, limit int) ([]Entry, error) {
	snapshots, err := j.dataset.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, DatasetID+"/snapshots")
	}

	var out []Entry
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatchesFilter(snap, "submission_id", submissionID) {
			continue
		}

		data, err := j.dataset.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", DatasetID, snap.ID))
		}
		for k := len(data) - 1; k >= 0; k-- {
			record, ok := data[k].(map[string]any)
			if !ok {
				continue
			}
			e := fromRecord(record)
			if submissionID != "" && e.SubmissionID != submissionID {
				continue
			}
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}
