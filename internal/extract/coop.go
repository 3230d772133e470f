package extract

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gojiplus/get-weather-data/internal/domain"
)

const (
	coopFirstSlot   = 30
	coopSlotWidth   = 12
	coopValueOffset = 4
	coopValueWidth  = 6
	coopMissing     = "-99999"
)

var coopFahrenheit = map[string]bool{"TOBS": true, "TMAX": true, "TMIN": true}

// COOP reads cooperative-observer 3200 monthly ledgers: one line per station,
// month, and element, with a variable number of 12-byte day slots.
type COOP struct {
	logger *slog.Logger
}

func (c COOP) Extract(r io.Reader, stationID string, date time.Time, elems *domain.Elements) (bool, error) {
	if len(stationID) < 6 {
		return false, nil
	}
	station := stationID[:6]
	month := fmt.Sprintf("%04d%02d", date.Year(), int(date.Month()))

	matched := false
	sc := newScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if len(line) < 23 || line[3:9] != station || line[17:23] != month {
			if matched {
				break
			}
			continue
		}
		matched = true

		element, ok := field(line, 11, 15)
		if !ok || !elems.Wants(element) {
			continue
		}
		slot, ok := findDaySlot(line, date.Day())
		if !ok {
			c.log().Warn("coop ledger has no slot for day",
				"sid", stationID, "element", element, "date", date.Format(time.DateOnly))
			continue
		}
		start := slot + coopValueOffset
		value, ok := field(line, start, start+coopValueWidth)
		if !ok || value == "" || value == coopMissing {
			continue
		}
		if coopFahrenheit[element] {
			if value, ok = tenthsCelsius(value); !ok {
				continue
			}
		}
		elems.Set(element, value)
		if elems.Complete() {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return matched, fmt.Errorf("scan coop archive: %w", err)
	}
	return matched, nil
}

// findDaySlot scans the day slots for the one whose 2-digit day equals day.
func findDaySlot(line string, day int) (int, bool) {
	for off := coopFirstSlot; off+2 <= len(line); off += coopSlotWidth {
		d, err := strconv.Atoi(strings.TrimSpace(line[off : off+2]))
		if err == nil && d == day {
			return off, true
		}
	}
	return 0, false
}

func (c COOP) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}
