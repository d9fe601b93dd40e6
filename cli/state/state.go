// Package state remembers recent submissions between CLI invocations so
// status, wait and logs can default to the last job.
//
// The file is a single msgpack document, rewritten atomically.
package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/rayjob/iox"
)

// FormatVersion is the on-disk format version.
const FormatVersion = 1

// MaxRecent bounds the number of remembered submissions.
const MaxRecent = 20

// FileName is the state file name inside the rayjob home directory.
const FileName = "state.msgpack"

// Submission is one remembered submission.
type Submission struct {
	ID          string    `msgpack:"id"`
	Dashboard   string    `msgpack:"dashboard"`
	Entrypoint  string    `msgpack:"entrypoint"`
	WorkingDir  string    `msgpack:"working_dir,omitempty"`
	SubmittedAt time.Time `msgpack:"submitted_at"`
}

// State is the decoded state file.
type State struct {
	Version int          `msgpack:"version"`
	Recent  []Submission `msgpack:"recent"` // newest first
}

// Store reads and writes the state file at Path.
type Store struct {
	Path string
}

// DefaultPath returns ~/.rayjob/state.msgpack.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".rayjob", FileName), nil
}

// Load returns the stored state. A missing file is an empty state.
func (s *Store) Load() (*State, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return &State{Version: FormatVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	var st State
	if err := msgpack.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", s.Path, err)
	}
	if st.Version != FormatVersion {
		return nil, fmt.Errorf("state %s: unsupported version %d", s.Path, st.Version)
	}
	return &st, nil
}

// Remember records a submission at the front of the recent list.
func (s *Store) Remember(sub Submission) error {
	st, err := s.Load()
	if err != nil {
		return err
	}

	recent := make([]Submission, 0, min(len(st.Recent)+1, MaxRecent))
	recent = append(recent, sub)
	for _, prev := range st.Recent {
		if len(recent) == MaxRecent {
			break
		}
		if prev.ID == sub.ID && prev.Dashboard == sub.Dashboard {
			continue
		}
		recent = append(recent, prev)
	}
	st.Recent = recent
	return s.save(st)
}

// Last returns the newest submission made against dashboard.
func (s *Store) Last(dashboard string) (Submission, bool, error) {
	st, err := s.Load()
	if err != nil {
		return Submission{}, false, err
	}
	for _, sub := range st.Recent {
		if sub.Dashboard == dashboard {
			return sub, true, nil
		}
	}
	return Submission{}, false, nil
}

func (s *Store) save(st *State) (err error) {
	st.Version = FormatVersion
	data, err := msgpack.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.Path), FileName+".*")
	if err != nil {
		return fmt.Errorf("create state: %w", err)
	}
	defer func() {
		if err != nil {
			_ = iox.RemoveIfExists(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		iox.DiscardClose(tmp)
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
