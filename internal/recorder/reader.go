package recorder

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yanun0323/errors"
)

// DefaultMaxRecordSize bounds a single record when reading.
const DefaultMaxRecordSize = 1 << 20

// Reader returns records of one segment sequentially.
type Reader struct {
	s *bufio.Scanner
}

// NewReader wraps r. maxRecordSize <= 0 uses DefaultMaxRecordSize.
func NewReader(r io.Reader, maxRecordSize int) *Reader {
	if maxRecordSize <= 0 {
		maxRecordSize = DefaultMaxRecordSize
	}
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	return &Reader{s: s}
}

// Next returns the next record. The slice is only valid until the next call.
// It returns io.EOF after the last record.
func (r *Reader) Next() ([]byte, error) {
	if r.s.Scan() {
		return r.s.Bytes(), nil
	}
	if err := r.s.Err(); err != nil {
		return nil, errors.Wrap(err, "read record")
	}
	return nil, io.EOF
}

// Segments lists the segment files of cfg in write order.
func Segments(cfg Config) ([]string, error) {
	cfg = cfg.withDefaults()
	entries, err := os.ReadDir(cfg.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "list segments").With("dir", cfg.Dir)
	}
	prefix := cfg.FilePrefix + "-"
	suffix := "." + cfg.FileExt
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		files = append(files, filepath.Join(cfg.Dir, name))
	}
	sort.Strings(files)
	return files, nil
}
