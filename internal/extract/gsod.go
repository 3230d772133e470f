package extract

import (
	"fmt"
	"io"
	"time"

	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/klauspost/compress/gzip"
)

type gsodField struct {
	element  string
	start    int
	end      int
	sentinel string
	convert  func(string) (string, bool)
}

// Byte ranges of the GSOD daily summary fields.
var gsodFields = []gsodField{
	{"TEMP", 24, 30, "9999.9", nil},
	{"DEWP", 35, 41, "9999.9", nil},
	{"SLP", 46, 52, "9999.9", nil},
	{"STP", 57, 63, "9999.9", nil},
	{"VISIB", 68, 73, "999.9", nil},
	{"AWND", 78, 83, "999.9", tenthsMetersPerSecond},
	{"MXSPD", 88, 93, "999.9", nil},
	{"GUST", 95, 100, "999.9", nil},
	{"TMAX", 102, 108, "9999.9", tenthsCelsius},
	{"MAXF", 108, 109, "", nil},
	{"TMIN", 110, 116, "9999.9", tenthsCelsius},
	{"MINF", 116, 117, "", nil},
	{"PRCP", 118, 123, "99.99", nil},
	{"PRCPF", 123, 124, "", nil},
	{"SNWD", 125, 130, "999.9", nil},
	{"FRSHTT", 132, 138, "", nil},
}

const (
	gsodDateStart = 14
	gsodDateEnd   = 22
)

// GSOD reads gzip-compressed global summary of the day (.op.gz) files: one
// station-year per file, one line per day.
type GSOD struct{}

func (GSOD) Extract(r io.Reader, _ string, date time.Time, elems *domain.Elements) (bool, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return false, fmt.Errorf("open gsod archive: %w", err)
	}
	defer zr.Close()

	key := date.Format("20060102")
	sc := newScanner(zr)
	for sc.Scan() {
		line := sc.Text()
		if len(line) < gsodDateEnd || line[gsodDateStart:gsodDateEnd] != key {
			continue
		}
		for _, f := range gsodFields {
			if !elems.Wants(f.element) {
				continue
			}
			value, ok := field(line, f.start, f.end)
			if !ok || value == "" || value == f.sentinel {
				continue
			}
			if f.convert != nil {
				if value, ok = f.convert(value); !ok {
					continue
				}
			}
			elems.Set(f.element, value)
		}
		return true, nil
	}
	if err := sc.Err(); err != nil {
		return false, fmt.Errorf("scan gsod archive: %w", err)
	}
	return false, nil
}
