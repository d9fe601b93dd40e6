package jobs

import (
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/rayjob/types"
)

var errNoUploader = errors.New("local working_dir requires a package uploader")

// TimeoutError reports a wait that ran out of time before the job reached a
// terminal status.
type TimeoutError struct {
	SubmissionID string
	Limit        time.Duration
	// Last is the final status observed, if any.
	Last types.JobStatus
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s did not reach terminal state within %s", e.SubmissionID, e.Limit)
}

// Is matches types.ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == types.ErrTimeout
}
