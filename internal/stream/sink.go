package stream

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/muurk/lorahub/internal/telemetry"
)

// Sink receives decoded pages. unit is the unit number the page came from.
type Sink interface {
	WritePage(unit uint8, page *telemetry.Page) error
	Close() error
}

// CSVSink writes pages to CSV files in a directory. In per-unit mode each
// unit gets its own "<unit>_<start>.csv"; otherwise every page goes to a
// single "<start>.csv". Files are created on the first page.
type CSVSink struct {
	dir     string
	start   time.Time
	perUnit bool
	writers map[uint8]*telemetry.CSVWriter
	files   []string
}

// NewUnitCSVSink returns a sink writing one file per unit.
func NewUnitCSVSink(dir string, start time.Time) *CSVSink {
	return &CSVSink{dir: dir, start: start, perUnit: true, writers: make(map[uint8]*telemetry.CSVWriter)}
}

// NewRawCSVSink returns a sink writing every page to one file.
func NewRawCSVSink(dir string, start time.Time) *CSVSink {
	return &CSVSink{dir: dir, start: start, writers: make(map[uint8]*telemetry.CSVWriter)}
}

// WritePage implements Sink.
func (s *CSVSink) WritePage(unit uint8, page *telemetry.Page) error {
	key := unit
	if !s.perUnit {
		key = 0
	}
	w, ok := s.writers[key]
	if !ok {
		name := telemetry.RawLogName(s.start)
		if s.perUnit {
			name = telemetry.UnitLogName(unit, s.start)
		}
		var err error
		w, err = telemetry.CreateCSV(filepath.Join(s.dir, name))
		if err != nil {
			return err
		}
		s.writers[key] = w
		s.files = append(s.files, w.Path())
		sort.Strings(s.files)
	}
	if err := w.WritePage(page); err != nil {
		return fmt.Errorf("failed to write %s: %w", w.Path(), err)
	}
	return nil
}

// Files lists the files written so far, including after Close.
func (s *CSVSink) Files() []string {
	return append([]string(nil), s.files...)
}

// Close implements Sink.
func (s *CSVSink) Close() error {
	var errs []error
	for key, w := range s.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(s.writers, key)
	}
	return errors.Join(errs...)
}

// MultiSink fans pages out to several sinks.
type MultiSink []Sink

// WritePage implements Sink. Every sink sees the page even if one fails.
func (m MultiSink) WritePage(unit uint8, page *telemetry.Page) error {
	var errs []error
	for _, s := range m {
		if err := s.WritePage(unit, page); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Sink.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
