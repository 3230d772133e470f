package coordinator

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/jszwec/csvutil"
)

// extendedMarker is the header column that selects date-range input rows.
const extendedMarker = "from.day"

// inputRow maps both input layouts: a single day (year, month, day) or an
// inclusive range (from.* and to.*).
type inputRow struct {
	UniqID    string `csv:"uniqid"`
	Zip       string `csv:"zip"`
	Year      int    `csv:"year,omitempty"`
	Month     int    `csv:"month,omitempty"`
	Day       int    `csv:"day,omitempty"`
	FromYear  int    `csv:"from.year,omitempty"`
	FromMonth int    `csv:"from.month,omitempty"`
	FromDay   int    `csv:"from.day,omitempty"`
	ToYear    int    `csv:"to.year,omitempty"`
	ToMonth   int    `csv:"to.month,omitempty"`
	ToDay     int    `csv:"to.day,omitempty"`
}

// ReadQueries decodes ZIP queries from an input CSV. Columns other than the
// recognised ones are ignored.
func ReadQueries(r io.Reader) ([]domain.ZipQuery, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	dec, err := csvutil.NewDecoder(cr)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read input header: %w", err)
	}
	extended := slices.Contains(dec.Header(), extendedMarker)

	var queries []domain.ZipQuery
	for line := 2; ; line++ {
		var row inputRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("input line %d: %w", line, err)
		}

		q, err := row.query(extended)
		if err != nil {
			return nil, fmt.Errorf("input line %d: %w", line, err)
		}
		queries = append(queries, q)
	}
	return queries, nil
}

// ReadQueryFiles reads every input file in order and concatenates the queries.
func ReadQueryFiles(paths []string) ([]domain.ZipQuery, error) {
	var all []domain.ZipQuery
	for _, p := range paths {
		qs, err := readQueryFile(p)
		if err != nil {
			return nil, err
		}
		all = append(all, qs...)
	}
	return all, nil
}

func readQueryFile(path string) ([]domain.ZipQuery, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	qs, err := ReadQueries(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return qs, nil
}

func (r inputRow) query(extended bool) (domain.ZipQuery, error) {
	if r.Zip == "" {
		return domain.ZipQuery{}, errors.New("missing zip")
	}

	var from, to time.Time
	var err error
	if extended {
		if from, err = validDate(r.FromYear, r.FromMonth, r.FromDay); err != nil {
			return domain.ZipQuery{}, fmt.Errorf("from date: %w", err)
		}
		if to, err = validDate(r.ToYear, r.ToMonth, r.ToDay); err != nil {
			return domain.ZipQuery{}, fmt.Errorf("to date: %w", err)
		}
		if to.Before(from) {
			return domain.ZipQuery{}, fmt.Errorf("to date %s before from date %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
		}
	} else {
		if from, err = validDate(r.Year, r.Month, r.Day); err != nil {
			return domain.ZipQuery{}, err
		}
		to = from
	}

	return domain.ZipQuery{
		UniqID: r.UniqID,
		Zip:    domain.PadZip(r.Zip),
		From:   from,
		To:     to,
	}, nil
}

func validDate(year, month, day int) (time.Time, error) {
	d := domain.Date(year, month, day)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, fmt.Errorf("invalid date %04d-%02d-%02d", year, month, day)
	}
	return d, nil
}
