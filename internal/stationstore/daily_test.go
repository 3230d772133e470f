package stationstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeByYear(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "2010.csv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = io.WriteString(zw, strings.Join(lines, "\n")+"\n")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func newMockDaily(t *testing.T) (*DailyStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(regexp.QuoteMeta(yearsTable)).WillReturnResult(sqlmock.NewResult(0, 0))
	d, err := NewDaily(context.Background(), db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return d, mock
}

func TestDailyStore_ImportsYearOnceThenQueries(t *testing.T) {
	d, mock := newMockDaily(t)
	archive := writeByYear(t,
		"USC00165026,20100817,TMAX,333,,,7,0700",
		"USC00165026,20100817,TMIN,-9999,,,7,0700",
		"USW00013976,20100817,TMIN,228,,,W,",
	)

	mock.ExpectQuery(regexp.QuoteMeta(yearQuery)).WithArgs(2010).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(fmt.Sprintf(dailyTable, 2010))).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(fmt.Sprintf(dailyIndex, 2010, 2010))).WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(regexp.QuoteMeta(fmt.Sprintf(insertDaily, 2010)))
	prep.ExpectExec().WithArgs("USC00165026", "20100817", "TMAX", "333", "", "", "7", "0700").
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs("USC00165026", "20100817", "TMIN", "-9999", "", "", "7", "0700").
		WillReturnResult(sqlmock.NewResult(2, 1))
	prep.ExpectExec().WithArgs("USW00013976", "20100817", "TMIN", "228", "", "", "W", "").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertYear)).WithArgs(2010).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	lookup := regexp.QuoteMeta(fmt.Sprintf(dailyQuery, 2010))
	mock.ExpectQuery(lookup).WithArgs("USC00165026", "20100817").
		WillReturnRows(sqlmock.NewRows([]string{"element", "value"}).
			AddRow("TMAX", "333").
			AddRow("TMIN", "-9999"))
	mock.ExpectQuery(lookup).WithArgs("USW00013976", "20100817").
		WillReturnRows(sqlmock.NewRows([]string{"element", "value"}).AddRow("TMIN", "228"))

	day := domain.Date(2010, 8, 17)
	elems := domain.NewElements([]string{"TMAX", "TMIN"})

	matched, err := d.Lookup(context.Background(), archive, "USC00165026", day, elems)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, map[string]string{"TMAX": "333"}, elems.Values())

	matched, err = d.Lookup(context.Background(), archive, "USW00013976", day, elems)
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, map[string]string{"TMAX": "333", "TMIN": "228"}, elems.Values())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDailyStore_YearAlreadyImported(t *testing.T) {
	d, mock := newMockDaily(t)

	mock.ExpectQuery(regexp.QuoteMeta(yearQuery)).WithArgs(2010).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(fmt.Sprintf(dailyQuery, 2010))).WithArgs("USC00165026", "20100101").
		WillReturnRows(sqlmock.NewRows([]string{"element", "value"}))

	elems := domain.NewElements([]string{"TMAX"})
	matched, err := d.Lookup(context.Background(), "missing.csv.gz", "USC00165026", domain.Date(2010, 1, 1), elems)

	require.NoError(t, err)
	assert.False(t, matched)
	assert.Empty(t, elems.Values())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDailyStore_ImportFailureRollsBack(t *testing.T) {
	d, mock := newMockDaily(t)
	archive := writeByYear(t, "USC00165026,20100817,TMAX")

	mock.ExpectQuery(regexp.QuoteMeta(yearQuery)).WithArgs(2010).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(fmt.Sprintf(dailyTable, 2010))).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(fmt.Sprintf(dailyIndex, 2010, 2010))).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare(regexp.QuoteMeta(fmt.Sprintf(insertDaily, 2010)))
	mock.ExpectRollback()

	_, err := d.Lookup(context.Background(), archive, "USC00165026", domain.Date(2010, 8, 17), domain.NewElements([]string{"TMAX"}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
	assert.NoError(t, mock.ExpectationsWereMet())
}
