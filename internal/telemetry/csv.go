package telemetry

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Header is the first row of every telemetry log.
const Header = `"X","Y","Z"`

// timestampLayout names log files by their UTC start time.
const timestampLayout = "2006-01-02_15-04-05"

// RawLogName returns the file name used by an individual raw stream.
func RawLogName(start time.Time) string {
	return start.UTC().Format(timestampLayout) + ".csv"
}

// UnitLogName returns the file name used for one unit in a group stream.
func UnitLogName(unit uint8, start time.Time) string {
	return fmt.Sprintf("%d_%s.csv", unit, start.UTC().Format(timestampLayout))
}

// CSVWriter appends decoded pages as "x,y,z" rows, one per sample.
type CSVWriter struct {
	path   string
	closer io.Closer
	w      *bufio.Writer
	pages  int
	buf    []byte
}

// NewCSVWriter writes the header to w and returns a writer for pages.
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	return newCSVWriter(w, true)
}

func newCSVWriter(w io.Writer, header bool) (*CSVWriter, error) {
	c := &CSVWriter{w: bufio.NewWriter(w)}
	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}
	if !header {
		return c, nil
	}
	if _, err := c.w.WriteString(Header + "\n"); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if err := c.w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return c, nil
}

// CreateCSV opens path for appending, creating parent directories. The
// header row is written only when the file is empty, so reopening an
// existing log continues it.
func CreateCSV(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}
	c, err := newCSVWriter(f, info.Size() == 0)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	c.path = path
	return c, nil
}

// Path returns the file path, or "" for writers not backed by a file.
func (c *CSVWriter) Path() string { return c.path }

// Pages returns the number of pages written so far.
func (c *CSVWriter) Pages() int { return c.pages }

// WritePage appends one row per sample and flushes.
func (c *CSVWriter) WritePage(p *Page) error {
	for i := 0; i < SamplesPerPage; i++ {
		c.buf = c.buf[:0]
		c.buf = strconv.AppendInt(c.buf, int64(p.X[i]), 10)
		c.buf = append(c.buf, ',')
		c.buf = strconv.AppendInt(c.buf, int64(p.Y[i]), 10)
		c.buf = append(c.buf, ',')
		c.buf = strconv.AppendInt(c.buf, int64(p.Z[i]), 10)
		c.buf = append(c.buf, '\n')
		if _, err := c.w.Write(c.buf); err != nil {
			return fmt.Errorf("failed to write sample row: %w", err)
		}
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush page: %w", err)
	}
	c.pages++
	return nil
}

// Close flushes and closes the underlying file, if any.
func (c *CSVWriter) Close() error {
	err := c.w.Flush()
	if c.closer != nil {
		if cerr := c.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
