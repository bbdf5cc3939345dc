package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ltd2-harvester/internal/flatten"
	"ltd2-harvester/internal/table"
)

// CSVSink writes one CSV file per table into a directory. Files are opened
// in append mode, so repeated runs against the same directory extend the
// existing files; the header is written only when a file is created empty.
// No cross-run deduplication is attempted.
type CSVSink struct {
	mu    sync.Mutex
	dir   string
	files map[string]*csvFile
}

type csvFile struct {
	f *os.File
	w *csv.Writer
}

// NewCSVSink creates the output directory if needed.
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return &CSVSink{
		dir:   dir,
		files: make(map[string]*csvFile),
	}, nil
}

func (s *CSVSink) Append(d *flatten.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range d.Tables() {
		if t.Len() == 0 {
			continue
		}
		cf, err := s.file(t)
		if err != nil {
			return err
		}
		if err := cf.w.WriteAll(t.Records()); err != nil {
			return fmt.Errorf("failed to write %s rows: %w", t.Name, err)
		}
	}
	return nil
}

// file returns the open writer for a table, creating the file (and its
// header) on first use.
func (s *CSVSink) file(t *table.Table) (*csvFile, error) {
	if cf, ok := s.files[t.Name]; ok {
		return cf, nil
	}

	path := filepath.Join(s.dir, t.Name+".csv")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cf := &csvFile{f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := cf.w.Write(t.Columns); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write %s header: %w", path, err)
		}
		cf.w.Flush()
	}

	s.files[t.Name] = cf
	return cf, nil
}

// Close flushes and closes all open files.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for name, cf := range s.files {
		cf.w.Flush()
		if err := cf.w.Error(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to flush %s: %w", name, err)
		}
		if err := cf.f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s: %w", name, err)
		}
	}
	s.files = make(map[string]*csvFile)
	return firstErr
}
