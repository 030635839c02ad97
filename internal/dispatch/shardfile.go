package dispatch

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// shardFile owns one output stream for the lifetime of the run: a plain
// file, or a file wrapped in a GZIP writer when compression is
// requested. Owned exclusively by the dispatcher goroutine; no locking.
type shardFile struct {
	f    *os.File
	gz   *gzip.Writer
	w    io.Writer
	path string
}

func openShardFile(path string, compress bool) (*shardFile, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create parent directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	sf := &shardFile{f: f, path: path, w: f}
	if compress {
		sf.gz = gzip.NewWriter(f)
		sf.w = sf.gz
	}
	return sf, nil
}

func (sf *shardFile) Write(b []byte) (int, error) {
	return sf.w.Write(b)
}

// Close flushes the GZIP trailer (if any) before closing the underlying
// file, so a cancelled or aborted run still leaves a valid archive
// (spec §5, "Partially written shard files are closed... before exit").
func (sf *shardFile) Close() error {
	var gzErr, fErr error
	if sf.gz != nil {
		gzErr = sf.gz.Close()
	}
	fErr = sf.f.Close()
	if gzErr != nil {
		return gzErr
	}
	return fErr
}
