package jobs

import (
	"context"
	"os"

	"github.com/justapithecus/rayjob/packaging"
	"github.com/justapithecus/rayjob/types"
)

// Uploader turns a local directory into an uploaded package URI.
// *packages.Coordinator satisfies it.
type Uploader interface {
	UploadDirectoryIfNeeded(ctx context.Context, dir string) (string, error)
}

// RewriteWorkingDir returns a copy of req whose working_dir names an
// uploaded package instead of a local directory.
//
// The field is rewritten only when it is set, is not already a URI, and
// names an existing directory. Everything else passes through unchanged.
// req itself is never modified.
func RewriteWorkingDir(ctx context.Context, req types.JobSubmitRequest, uploader Uploader) (types.JobSubmitRequest, error) {
	out := req.Clone()
	if out.RuntimeEnv == nil || out.RuntimeEnv.WorkingDir == "" {
		return out, nil
	}

	dir := out.RuntimeEnv.WorkingDir
	if packaging.IsURI(dir) || !isDir(dir) {
		return out, nil
	}
	if uploader == nil {
		return out, types.NewError(types.ErrValidation, "rewrite working_dir", dir,
			errNoUploader)
	}

	uri, err := uploader.UploadDirectoryIfNeeded(ctx, dir)
	if err != nil {
		return out, err
	}
	out.RuntimeEnv.WorkingDir = uri
	return out, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
