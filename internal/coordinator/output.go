package coordinator

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"

	"github.com/gojiplus/get-weather-data/internal/domain"
)

// RecordWriter receives the record sequences drained from the result queue.
type RecordWriter interface {
	WriteRecords(recs []domain.DailyRecord) error
}

// CSVWriter renders DailyRecords as output CSV rows. The column set depends
// on the configured element list.
type CSVWriter struct {
	w        *csv.Writer
	elements []string
	rows     int
}

// NewCSVWriter creates a writer for the given element columns.
func NewCSVWriter(w io.Writer, elements []string) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w), elements: elements}
}

// WriteHeader writes the output header row.
func (c *CSVWriter) WriteHeader() error {
	if err := c.w.Write(domain.Header(c.elements)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return c.flush()
}

// WriteRecords writes one row per record and flushes, so an interrupted run
// keeps everything received so far.
func (c *CSVWriter) WriteRecords(recs []domain.DailyRecord) error {
	for _, r := range recs {
		if err := c.w.Write(r.Row(c.elements)); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		c.rows++
	}
	return c.flush()
}

// Rows is the number of records written.
func (c *CSVWriter) Rows() int { return c.rows }

func (c *CSVWriter) flush() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// writeBatch writes a result batch's sequences in batch-local index order.
func writeBatch(w RecordWriter, r domain.ResultBatch) (rows int, err error) {
	keys := make([]int, 0, len(r.Records))
	for k := range r.Records {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		recs := r.Records[k]
		if err := w.WriteRecords(recs); err != nil {
			return rows, err
		}
		rows += len(recs)
	}
	return rows, nil
}
