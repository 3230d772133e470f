package extract

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gojiplus/get-weather-data/internal/domain"
)

const (
	ghcndKeyLen     = 17
	ghcndElementEnd = 21
	ghcndSlotWidth  = 8
	ghcndValueWidth = 5
	ghcndMissing    = "-9999"
)

// GHCND reads daily-archive (.dly) files: one line per station, month, and
// element, with 31 eight-byte day slots after the element code.
type GHCND struct{}

func (GHCND) Extract(r io.Reader, stationID string, date time.Time, elems *domain.Elements) (bool, error) {
	key := fmt.Sprintf("%s%04d%02d", stationID, date.Year(), int(date.Month()))
	if len(key) != ghcndKeyLen {
		return false, nil
	}
	offset := ghcndElementEnd + date.Day()*ghcndSlotWidth - ghcndSlotWidth

	matched := false
	sc := newScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, key) {
			if matched {
				break
			}
			continue
		}
		matched = true

		element, ok := field(line, ghcndKeyLen, ghcndElementEnd)
		if !ok || !elems.Wants(element) {
			continue
		}
		value, ok := field(line, offset, offset+ghcndValueWidth)
		if !ok || value == "" || value == ghcndMissing {
			continue
		}
		elems.Set(element, value)
		if elems.Complete() {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return matched, fmt.Errorf("scan ghcnd archive: %w", err)
	}
	return matched, nil
}
