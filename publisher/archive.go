package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Load for an unknown session.
var ErrNotFound = errors.New("export not found")

// Archive stores exported session records.
type Archive interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, sessionID string) (Record, error)
	Close() error
}

// Archive kinds accepted by OpenArchive.
const (
	ArchiveNone   = "none"
	ArchiveJSON   = "json"
	ArchiveSQLite = "sqlite"
)

// OpenArchive opens the archive of the given kind. ArchiveNone and "" return a nil Archive.
func OpenArchive(kind, path string) (Archive, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", ArchiveNone:
		return nil, nil
	case ArchiveJSON:
		return NewJSONArchive(path)
	case ArchiveSQLite:
		return OpenSQLiteArchive(path)
	default:
		return nil, fmt.Errorf("unknown archive kind %q", kind)
	}
}
