// Command validate checks a coordinator output CSV against the input files
// that produced it: header layout, ZIP formatting, one row for every day of
// every input range, and well-formed station columns.
//
// Usage:
//
//	go run ./cmd/validate -out output.csv [-columns columns.txt] input.csv [input2.csv ...]
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/gojiplus/get-weather-data/internal/config"
	"github.com/gojiplus/get-weather-data/internal/coordinator"
	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/jszwec/csvutil"
)

// outputRow holds the columns every output row carries regardless of the
// configured element list.
type outputRow struct {
	UniqID   string `csv:"uniqid"`
	Zip      string `csv:"zip"`
	Year     int    `csv:"year"`
	Month    int    `csv:"month"`
	Day      int    `csv:"day"`
	SID      string `csv:"sid"`
	Type     string `csv:"type"`
	Nth      string `csv:"nth"`
	Distance string `csv:"distance"`
}

func (r outputRow) key() string {
	return fmt.Sprintf("%s|%s|%04d-%02d-%02d", r.UniqID, r.Zip, r.Year, r.Month, r.Day)
}

func queryDayKey(q domain.ZipQuery, day string) string {
	return q.UniqID + "|" + domain.PadZip(q.Zip) + "|" + day
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	outPath := flag.String("out", "", "coordinator output CSV to check")
	columnsPath := flag.String("columns", "", "element columns file the run used (default: built-in list)")
	flag.Parse()

	if *outPath == "" || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	columns := domain.DefaultElements
	if *columnsPath != "" {
		var err error
		columns, err = config.LoadColumns(*columnsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(1)
		}
	}

	if code := run(flag.Args(), *outPath, columns, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(inputs []string, outPath string, columns []string, w io.Writer) int {
	fmt.Fprintln(w, "=== Weather Output Validation ===")

	queries, err := coordinator.ReadQueryFiles(inputs)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load input: %v\n", err)
		return 1
	}

	header, rows, err := loadOutput(outPath)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load output: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateHeader(header, columns),
		validateZips(rows),
		validateCoverage(queries, rows),
		validateStationColumns(rows),
	}

	fmt.Fprintln(w)
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-36s %s\n", p.name, status)
	}
	fmt.Fprintf(w, "\nQueries: %d, output rows: %d\n", len(queries), len(rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

func loadOutput(path string) ([]string, []outputRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	dec, err := csvutil.NewDecoder(csv.NewReader(f))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%s is empty", path)
		}
		return nil, nil, err
	}

	var rows []outputRow
	for {
		var r outputRow
		if err := dec.Decode(&r); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, r)
	}
	return dec.Header(), rows, nil
}

// ── Phase 1: Header ──

func validateHeader(header, columns []string) *phase {
	p := &phase{name: "Phase 1: Header layout"}
	want := domain.Header(columns)
	if !slices.Equal(header, want) {
		p.errorf("header is %q, want %q", strings.Join(header, ","), strings.Join(want, ","))
	}
	return p
}

// ── Phase 2: ZIP codes ──

func validateZips(rows []outputRow) *phase {
	p := &phase{name: "Phase 2: ZIP formatting"}
	for i, r := range rows {
		if len(r.Zip) != domain.ZipCodeLength || strings.Trim(r.Zip, "0123456789") != "" {
			p.errorf("row %d: zip %q is not %d digits", i+2, r.Zip, domain.ZipCodeLength)
		}
	}
	return p
}

// ── Phase 3: Coverage ──
// Every day of every input range appears exactly once per input row.

func validateCoverage(queries []domain.ZipQuery, rows []outputRow) *phase {
	p := &phase{name: "Phase 3: Day coverage"}

	want := make(map[string]int)
	for _, q := range queries {
		for _, d := range q.Days() {
			want[queryDayKey(q, d.Format("2006-01-02"))]++
		}
	}
	got := make(map[string]int, len(rows))
	for _, r := range rows {
		got[r.key()]++
	}

	for _, k := range sortedKeys(want) {
		if got[k] != want[k] {
			p.errorf("%s: expected %d row(s), found %d", k, want[k], got[k])
		}
	}
	for _, k := range sortedKeys(got) {
		if _, ok := want[k]; !ok {
			p.errorf("%s: row not requested by any input", k)
		}
	}
	return p
}

// ── Phase 4: Station columns ──

func validateStationColumns(rows []outputRow) *phase {
	p := &phase{name: "Phase 4: Station columns"}
	for i, r := range rows {
		if r.SID == "" {
			if r.Nth != "" || r.Distance != "" || r.Type != "" {
				p.errorf("row %d: station columns set without a station id", i+2)
			}
			continue
		}
		if n, err := strconv.Atoi(r.Nth); err != nil || n < 1 {
			p.errorf("row %d: nth %q is not a positive integer", i+2, r.Nth)
		}
		if d, err := strconv.Atoi(r.Distance); err != nil || d < 0 || d > domain.MaxDistance {
			p.errorf("row %d: distance %q is out of range", i+2, r.Distance)
		}
		switch domain.StationType(r.Type) {
		case domain.StationGHCND, domain.StationUSAFWBAN, domain.StationCOOP:
		default:
			p.errorf("row %d: unknown station type %q", i+2, r.Type)
		}
	}
	return p
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
