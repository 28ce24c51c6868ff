package store

import (
	"database/sql"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// IsZero reports whether the fingerprint describes no file.
func (f FileFingerprint) IsZero() bool {
	return f.Path == ""
}

// Matches reports whether the file at f.Path still has the recorded size
// and modification time. Times are compared at the microsecond precision
// of DuckDB timestamps.
func (f FileFingerprint) Matches() bool {
	cur, err := StatFile(f.Path)
	if err != nil {
		return false
	}
	return cur.Size == f.Size &&
		cur.ModTime.Truncate(time.Microsecond).Equal(f.ModTime.Truncate(time.Microsecond))
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
