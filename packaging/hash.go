package packaging

import (
	"crypto/sha1" //nolint:gosec // content addressing, not security
	"encoding/hex"
	"io"
	"os"

	"github.com/justapithecus/rayjob/iox"
	"github.com/justapithecus/rayjob/types"
)

// HashDirectory returns the hex SHA-1 identity of the filtered tree at root.
func (b *Builder) HashDirectory(root string) (string, error) {
	entries, err := b.Walk(root)
	if err != nil {
		return "", err
	}

	h := sha1.New() //nolint:gosec // content addressing, not security
	files := 0
	for _, e := range Files(entries) {
		_, _ = io.WriteString(h, e.Path)
		if err := copyFile(h, e.AbsPath); err != nil {
			return "", types.NewError(types.ErrIO, "hash", e.AbsPath, err)
		}
		files++
	}

	digest := hex.EncodeToString(h.Sum(nil))
	b.logger.Debug("hashed directory", map[string]any{"root": root, "files": files, "hash": digest})
	return digest, nil
}

// HashFile returns the hex SHA-1 of a single file's content.
func (b *Builder) HashFile(path string) (string, error) {
	h := sha1.New() //nolint:gosec // content addressing, not security
	if err := copyFile(h, path); err != nil {
		return "", types.NewError(types.ErrIO, "hash", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(f)
	_, err = io.Copy(w, f)
	return err
}
