package packaging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"github.com/justapithecus/rayjob/iox"
	"github.com/justapithecus/rayjob/types"
)

// CreatePackage writes the filtered tree at root to a zip archive at dest.
//
// Files are deflated at their relative paths and every included
// subdirectory gets an explicit "dir/" entry. Missing parents of dest are
// created. On failure the partially written archive is removed.
func (b *Builder) CreatePackage(root, dest string) (err error) {
	entries, err := b.Walk(root)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return types.NewError(types.ErrIO, "archive", dest, err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return types.NewError(types.ErrIO, "archive", dest, err)
	}
	defer func() {
		if err != nil {
			iox.DiscardClose(out)
			_ = iox.RemoveIfExists(dest)
		}
	}()

	var w io.Writer = out
	if b.wrapArchive != nil {
		w = b.wrapArchive(out)
	}
	zw := zip.NewWriter(w)
	var files, dirs int
	for _, e := range entries {
		if e.Dir {
			if err := writeDir(zw, e); err != nil {
				return err
			}
			dirs++
			continue
		}
		if err := writeFile(zw, e); err != nil {
			return err
		}
		files++
	}

	if err := zw.Close(); err != nil {
		return types.NewError(types.ErrArchive, "archive", dest, err)
	}
	if err := out.Close(); err != nil {
		return types.NewError(types.ErrIO, "archive", dest, err)
	}

	b.logger.Debug("created package", map[string]any{"root": root, "dest": dest, "files": files, "dirs": dirs})
	return nil
}

func writeDir(zw *zip.Writer, e Entry) error {
	hdr := &zip.FileHeader{Name: e.Path + "/", Method: zip.Store}
	hdr.SetMode(os.ModeDir | 0o755)
	if _, err := zw.CreateHeader(hdr); err != nil {
		return types.NewError(types.ErrArchive, "archive", e.Path, err)
	}
	return nil
}

func writeFile(zw *zip.Writer, e Entry) error {
	src, err := os.Open(e.AbsPath)
	if err != nil {
		return types.NewError(types.ErrIO, "archive", e.AbsPath, err)
	}
	defer iox.DiscardClose(src)

	info, err := src.Stat()
	if err != nil {
		return types.NewError(types.ErrIO, "archive", e.AbsPath, err)
	}

	hdr := &zip.FileHeader{Name: e.Path, Method: zip.Deflate}
	hdr.SetMode(info.Mode().Perm())
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return types.NewError(types.ErrArchive, "archive", e.Path, err)
	}

	r := &sourceReader{r: src}
	if _, err := io.Copy(w, r); err != nil {
		if r.err != nil {
			return types.NewError(types.ErrIO, "archive", e.AbsPath, r.err)
		}
		return types.NewError(types.ErrArchive, "archive", e.Path, err)
	}
	return nil
}

// sourceReader remembers read failures so they can be told apart from
// writer failures after io.Copy.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}
