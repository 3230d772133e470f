package extract

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ghcndLine renders one .dly line; days without a value carry -9999.
func ghcndLine(id string, year, month int, element string, values map[int]int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%04d%02d%s", id, year, month, element)
	for day := 1; day <= 31; day++ {
		v, ok := values[day]
		if !ok {
			v = -9999
		}
		fmt.Fprintf(&b, "%5d  7", v)
	}
	return b.String()
}

// gsodLine renders one GSOD line with each value right-aligned in its field.
func gsodLine(date string, values map[string]string) string {
	line := []byte(strings.Repeat(" ", 138))
	copy(line[0:], "722860 23119  ")
	copy(line[gsodDateStart:], date)
	for _, f := range gsodFields {
		v, ok := values[f.element]
		if !ok {
			continue
		}
		copy(line[f.end-len(v):], v)
	}
	return string(line)
}

func gzipLines(t *testing.T, lines ...string) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := io.WriteString(zw, strings.Join(lines, "\n")+"\n")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return &buf
}

// coopLine renders one 3200 ledger line with the given day/value slots.
func coopLine(station string, year, month int, element string, slots [][2]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DLY%s99%sHI%04d%02d0099999", station, element, year, month)
	for _, s := range slots {
		fmt.Fprintf(&b, "%s00%6s  ", s[0], s[1])
	}
	return b.String()
}

func TestForType(t *testing.T) {
	for _, st := range []domain.StationType{domain.StationGHCND, domain.StationUSAFWBAN, domain.StationCOOP} {
		e, err := ForType(st, testLogger())
		require.NoError(t, err)
		assert.NotNil(t, e)
	}
	_, err := ForType("METAR", testLogger())
	require.Error(t, err)
}

func TestGHCND_Extract(t *testing.T) {
	archive := strings.Join([]string{
		ghcndLine("USC00166664", 2010, 7, "TMAX", map[int]int{17: 999}),
		ghcndLine("USC00166664", 2010, 8, "TMAX", map[int]int{17: 333}),
		ghcndLine("USC00166664", 2010, 8, "TMIN", map[int]int{17: 228}),
		ghcndLine("USC00166664", 2010, 8, "PRCP", map[int]int{16: 5}),
		ghcndLine("USC00166664", 2010, 8, "SNOW", map[int]int{17: 0}),
		ghcndLine("USC00166664", 2010, 9, "TMAX", map[int]int{17: 111}),
	}, "\n")

	elems := domain.NewElements([]string{"TMAX", "TMIN", "PRCP", "SNOW", "AWND"})
	matched, err := GHCND{}.Extract(strings.NewReader(archive), "USC00166664", domain.Date(2010, 8, 17), elems)
	require.NoError(t, err)

	assert.True(t, matched)
	assert.Equal(t, map[string]string{"TMAX": "333", "TMIN": "228", "SNOW": "0"}, elems.Values())
}

func TestGHCND_StopsAfterMatchedBlock(t *testing.T) {
	archive := strings.Join([]string{
		ghcndLine("USC00166664", 2010, 8, "TMAX", map[int]int{1: 10}),
		ghcndLine("USC00166664", 2010, 9, "TMAX", map[int]int{1: 20}),
		ghcndLine("USC00166664", 2010, 8, "TMIN", map[int]int{1: 5}),
	}, "\n")

	elems := domain.NewElements([]string{"TMAX", "TMIN"})
	matched, err := GHCND{}.Extract(strings.NewReader(archive), "USC00166664", domain.Date(2010, 8, 1), elems)
	require.NoError(t, err)

	assert.True(t, matched)
	assert.Equal(t, map[string]string{"TMAX": "10"}, elems.Values())
}

func TestGHCND_NoMatch(t *testing.T) {
	archive := ghcndLine("USC00166664", 2010, 8, "TMAX", map[int]int{1: 10})

	elems := domain.NewElements([]string{"TMAX"})
	matched, err := GHCND{}.Extract(strings.NewReader(archive), "USW00012916", domain.Date(2010, 8, 1), elems)
	require.NoError(t, err)
	assert.False(t, matched)
	assert.Zero(t, elems.Found())
}

func TestGHCND_FirstWriterWins(t *testing.T) {
	archive := ghcndLine("USC00166664", 2010, 8, "TMAX", map[int]int{1: 10})

	elems := domain.NewElements([]string{"TMAX"})
	elems.Set("TMAX", "99")
	_, err := GHCND{}.Extract(strings.NewReader(archive), "USC00166664", domain.Date(2010, 8, 1), elems)
	require.NoError(t, err)
	assert.Equal(t, "99", elems.Values()["TMAX"])
}

func TestGSOD_Extract(t *testing.T) {
	archive := gzipLines(t,
		gsodLine("20100816", map[string]string{"TMAX": "90.0"}),
		gsodLine("20100817", map[string]string{
			"TEMP":   "80.4",
			"DEWP":   "9999.9",
			"AWND":   "10.0",
			"MXSPD":  "999.9",
			"TMAX":   "89.6",
			"MAXF":   "*",
			"TMIN":   "32.0",
			"PRCP":   "0.12",
			"PRCPF":  "G",
			"FRSHTT": "010000",
		}),
		gsodLine("20100817", map[string]string{"TMAX": "50.0"}),
	)

	elems := domain.NewElements([]string{"TEMP", "DEWP", "AWND", "MXSPD", "TMAX", "MAXF", "TMIN", "PRCP", "PRCPF", "FRSHTT", "SNWD"})
	matched, err := GSOD{}.Extract(archive, "722860-23119", domain.Date(2010, 8, 17), elems)
	require.NoError(t, err)

	assert.True(t, matched)
	assert.Equal(t, map[string]string{
		"TEMP":   "80.4",
		"AWND":   "51.4",
		"TMAX":   "320.0",
		"MAXF":   "*",
		"TMIN":   "0.0",
		"PRCP":   "0.12",
		"PRCPF":  "G",
		"FRSHTT": "010000",
	}, elems.Values())
}

func TestGSOD_SentinelsNeverPopulate(t *testing.T) {
	archive := gzipLines(t, gsodLine("20100817", map[string]string{
		"TMAX": "9999.9",
		"TMIN": "9999.9",
		"AWND": "999.9",
		"PRCP": "99.99",
		"SNWD": "999.9",
	}))

	elems := domain.NewElements([]string{"TMAX", "TMIN", "AWND", "PRCP", "SNWD"})
	matched, err := GSOD{}.Extract(archive, "722860-23119", domain.Date(2010, 8, 17), elems)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Zero(t, elems.Found())
}

func TestGSOD_NotGzip(t *testing.T) {
	elems := domain.NewElements([]string{"TMAX"})
	_, err := GSOD{}.Extract(strings.NewReader("plain text"), "722860-23119", domain.Date(2010, 8, 17), elems)
	require.Error(t, err)
}

func TestCOOP_Extract(t *testing.T) {
	archive := strings.Join([]string{
		coopLine("166664", 2010, 8, "TMAX", [][2]string{{"01", "90"}, {"17", "212"}}),
		coopLine("166664", 2010, 8, "TMIN", [][2]string{{"17", "-99999"}}),
		coopLine("166664", 2010, 8, "PRCP", [][2]string{{"16", "3"}, {"17", "12"}}),
		coopLine("166664", 2010, 8, "SNOW", [][2]string{{"01", "0"}}),
		coopLine("999999", 2010, 8, "SNWD", [][2]string{{"17", "4"}}),
	}, "\n")

	elems := domain.NewElements([]string{"TMAX", "TMIN", "PRCP", "SNOW", "SNWD"})
	matched, err := COOP{logger: testLogger()}.Extract(strings.NewReader(archive), "16666401", domain.Date(2010, 8, 17), elems)
	require.NoError(t, err)

	assert.True(t, matched)
	assert.Equal(t, map[string]string{"TMAX": "1000.0", "PRCP": "12"}, elems.Values())
}

func TestCOOP_ShortStationID(t *testing.T) {
	elems := domain.NewElements([]string{"TMAX"})
	matched, err := COOP{}.Extract(strings.NewReader(""), "1666", domain.Date(2010, 8, 17), elems)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestFindDaySlot(t *testing.T) {
	line := coopLine("166664", 2010, 8, "PRCP", [][2]string{{"01", "0"}, {" 9", "1"}, {"31", "2"}})

	off, ok := findDaySlot(line, 9)
	require.True(t, ok)
	assert.Equal(t, coopFirstSlot+coopSlotWidth, off)

	_, ok = findDaySlot(line, 15)
	assert.False(t, ok)
}
