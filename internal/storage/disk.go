package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Usage is the on-disk footprint of the service's persistent state.
type Usage struct {
	DatabaseBytes    int64 `json:"database_bytes"`
	SearchIndexBytes int64 `json:"search_index_bytes"`
}

// Total returns the combined size.
func (u Usage) Total() int64 {
	return u.DatabaseBytes + u.SearchIndexBytes
}

// MeasureUsage sums the SQLite database (with its WAL sidecars) and the search index directory.
func MeasureUsage(dbPath, indexPath string) (Usage, error) {
	db, err := DiskUsageBytes(DatabaseFiles(dbPath)...)
	if err != nil {
		return Usage{}, err
	}
	idx, err := DiskUsageBytes(indexPath)
	if err != nil {
		return Usage{}, err
	}
	return Usage{DatabaseBytes: db, SearchIndexBytes: idx}, nil
}

// DatabaseFiles returns the database file and the journal files SQLite keeps beside it in WAL mode.
func DatabaseFiles(dbPath string) []string {
	if dbPath == "" {
		return nil
	}
	return []string{dbPath, dbPath + "-wal", dbPath + "-shm"}
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Missing paths are skipped; other errors are returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
