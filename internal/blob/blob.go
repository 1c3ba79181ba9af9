// Package blob stores the original bytes of uploaded documents under
// owner-scoped keys. MinioStore talks to MinIO or S3; DirStore keeps blobs
// on the local filesystem for single-node and development setups.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

var (
	// ErrStorageUnavailable wraps any transport or service failure of the
	// blob backend.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNotFound is returned by Get when no blob exists under the key.
	ErrNotFound = errors.New("blob: not found")
)

// Store is a key-addressed blob store. Implementations must be safe to call
// from multiple goroutines.
type Store interface {
	// Put stores data under key, replacing any existing blob.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get returns the blob stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the blob under key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error
}

// maxNameLen bounds the filename portion of a key.
const maxNameLen = 100

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Key returns the storage key of a document's blob:
// documents/{owner}/{document}_{filename}. The filename is reduced to a
// safe character set so keys never contain path separators.
func Key(ownerID, documentID, filename string) string {
	return path.Join("documents", cleanSegment(ownerID), documentID+"_"+cleanName(filename))
}

func cleanName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "document"
	}
	if len(name) > maxNameLen {
		ext := path.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:maxNameLen-len(ext)] + ext
	}
	return name
}

func cleanSegment(s string) string {
	s = strings.Trim(unsafeChars.ReplaceAllString(s, "_"), ".")
	if s == "" {
		return "_"
	}
	return s
}

func unavailable(op string, err error) error {
	return fmt.Errorf("blob: %s: %w: %w", op, ErrStorageUnavailable, err)
}
