package packaging

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/justapithecus/rayjob/types"
)

const (
	uriSeparator = "://"
	wheelExt     = ".whl"
)

// ErrInvalidURI is returned for identifiers that are not protocol://name.
var ErrInvalidURI = fmt.Errorf("%w: invalid package uri", types.ErrValidation)

// FormatURI formats a directory hash as a package URI.
func FormatURI(hash string) string {
	return types.PackageProtocol + uriSeparator + types.PackagePrefix + hash + ".zip"
}

// IsURI reports whether s already names a remote location (scheme://...).
func IsURI(s string) bool {
	return strings.Contains(s, uriSeparator)
}

// ParseURI splits a package URI into protocol and name.
func ParseURI(uri string) (protocol, name string, err error) {
	parts := strings.Split(uri, uriSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	return parts[0], parts[1], nil
}

// URIForDirectory returns the package URI for the tree at root.
func (b *Builder) URIForDirectory(root string) (string, error) {
	hash, err := b.HashDirectory(root)
	if err != nil {
		return "", err
	}
	return FormatURI(hash), nil
}

// URIForPackage returns the URI of a pre-built artifact. Wheel files keep
// their filename; anything else is addressed by content hash.
func (b *Builder) URIForPackage(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), wheelExt) {
		return types.PackageProtocol + uriSeparator + filepath.Base(path), nil
	}
	hash, err := b.HashFile(path)
	if err != nil {
		return "", err
	}
	return FormatURI(hash), nil
}
