package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ZipCodeLength is the fixed width of a US ZIP code.
const ZipCodeLength = 5

// ZipQuery is one input row: a ZIP code and an inclusive date range.
type ZipQuery struct {
	UniqID string    `json:"uniqid"`
	Zip    string    `json:"zip"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
}

// JobBatch is the unit of dispatch between the coordinator and workers.
type JobBatch struct {
	ID      string     `json:"id"`
	Queries []ZipQuery `json:"queries"`
}

// ResultBatch carries the records for one JobBatch, keyed by the batch-local
// index of each query.
type ResultBatch struct {
	BatchID  string                `json:"batch_id"`
	WorkerID string                `json:"worker_id,omitempty"`
	Records  map[int][]DailyRecord `json:"records"`
}

// Len reports how many query results the batch carries.
func (r ResultBatch) Len() int {
	return len(r.Records)
}

// RowCount reports the total number of daily records in the batch.
func (r ResultBatch) RowCount() int {
	n := 0
	for _, recs := range r.Records {
		n += len(recs)
	}
	return n
}

// PadZip left-pads a ZIP code with zeros to five characters.
// Input rows often lose leading zeros when they pass through spreadsheets.
func PadZip(zip string) string {
	zip = strings.TrimSpace(zip)
	if len(zip) >= ZipCodeLength {
		return zip
	}
	return strings.Repeat("0", ZipCodeLength-len(zip)) + zip
}

// Date builds a UTC calendar date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// Days returns every calendar day from q.From to q.To inclusive.
// An inverted range yields no days.
func (q ZipQuery) Days() []time.Time {
	from := truncateDay(q.From)
	to := truncateDay(q.To)
	if to.Before(from) {
		return nil
	}
	days := make([]time.Time, 0, int(to.Sub(from).Hours()/24)+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Partition splits queries into batches of at most size queries, preserving order.
func Partition(queries []ZipQuery, size int) [][]ZipQuery {
	if size <= 0 {
		size = 1
	}
	chunks := make([][]ZipQuery, 0, (len(queries)+size-1)/size)
	for i := 0; i < len(queries); i += size {
		end := min(i+size, len(queries))
		chunks = append(chunks, queries[i:end])
	}
	return chunks
}

// EncodeJobBatch serializes a JobBatch for the queue transport.
func EncodeJobBatch(b JobBatch) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode job batch: %w", err)
	}
	return data, nil
}

// DecodeJobBatch parses a JobBatch produced by EncodeJobBatch.
func DecodeJobBatch(data []byte) (JobBatch, error) {
	var b JobBatch
	if err := json.Unmarshal(data, &b); err != nil {
		return JobBatch{}, fmt.Errorf("decode job batch: %w", err)
	}
	return b, nil
}

// EncodeResultBatch serializes a ResultBatch for the queue transport.
func EncodeResultBatch(r ResultBatch) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode result batch: %w", err)
	}
	return data, nil
}

// DecodeResultBatch parses a ResultBatch produced by EncodeResultBatch.
func DecodeResultBatch(data []byte) (ResultBatch, error) {
	var r ResultBatch
	if err := json.Unmarshal(data, &r); err != nil {
		return ResultBatch{}, fmt.Errorf("decode result batch: %w", err)
	}
	return r, nil
}
