package stationstore

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gojiplus/get-weather-data/internal/domain"
	"github.com/jszwec/csvutil"
	"github.com/klauspost/compress/gzip"
)

const (
	yearsTable  = `create table if not exists ghcn_years (year integer primary key)`
	yearQuery   = `select count(*) from ghcn_years where year = ?`
	insertYear  = `insert or ignore into ghcn_years (year) values (?)`
	dailyTable  = `create table if not exists ghcn_%d (id varchar(12) not null, date varchar(8) not null, element varchar(4), value varchar(6), m_flag varchar(1), q_flag varchar(1), s_flag varchar(1), obs_time varchar(4))`
	dailyIndex  = `create unique index if not exists idx_ghcn_%d_id_date on ghcn_%d (id, date, element)`
	insertDaily = `insert or ignore into ghcn_%d (id, date, element, value, m_flag, q_flag, s_flag, obs_time) values (?, ?, ?, ?, ?, ?, ?, ?)`
	dailyQuery  = `select element, value from ghcn_%d where id = ? and date = ?`

	ghcndMissing = "-9999"
)

// dailyHeader names the columns of a by_year archive, which has no header row.
var dailyHeader = []string{"id", "date", "element", "value", "m_flag", "q_flag", "s_flag", "obs_time"}

type dailyRow struct {
	ID      string `csv:"id"`
	Date    string `csv:"date"`
	Element string `csv:"element"`
	Value   string `csv:"value"`
	MFlag   string `csv:"m_flag"`
	QFlag   string `csv:"q_flag"`
	SFlag   string `csv:"s_flag"`
	ObsTime string `csv:"obs_time"`
}

// DailyStore answers GHCND station-day lookups from one SQLite table per
// year, imported on first use from that year's by_year archive.
type DailyStore struct {
	db     *sql.DB
	logger *slog.Logger

	mu    sync.Mutex
	years map[int]bool
}

// OpenDaily opens (creating if needed) the SQLite database at dsn.
func OpenDaily(ctx context.Context, dsn string, logger *slog.Logger) (*DailyStore, error) {
	if path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?"); path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create ghcnd database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ghcnd database: %w", err)
	}
	db.SetMaxOpenConns(4)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping ghcnd database: %w", err)
	}
	d, err := NewDaily(ctx, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// NewDaily wraps an existing connection pool and creates the year registry.
func NewDaily(ctx context.Context, db *sql.DB, logger *slog.Logger) (*DailyStore, error) {
	if _, err := db.ExecContext(ctx, yearsTable); err != nil {
		return nil, fmt.Errorf("create ghcn_years: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DailyStore{db: db, logger: logger, years: make(map[int]bool)}, nil
}

// Lookup fills elems with the station's values for date. archivePath is the
// local copy of that year's by_year archive; it is imported the first time
// the year is needed. matched reports whether any row existed.
func (d *DailyStore) Lookup(ctx context.Context, archivePath, stationID string, date time.Time, elems *domain.Elements) (bool, error) {
	year := date.Year()
	if err := d.ensureYear(ctx, year, archivePath); err != nil {
		return false, err
	}

	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(dailyQuery, year), stationID, date.Format("20060102"))
	if err != nil {
		return false, fmt.Errorf("query ghcn_%d: %w", year, err)
	}
	defer rows.Close()

	matched := false
	for rows.Next() {
		var element string
		var value sql.NullString
		if err := rows.Scan(&element, &value); err != nil {
			return matched, fmt.Errorf("scan ghcn_%d: %w", year, err)
		}
		matched = true
		if v := strings.TrimSpace(value.String); v != "" && v != ghcndMissing {
			elems.Set(element, v)
		}
	}
	if err := rows.Err(); err != nil {
		return matched, fmt.Errorf("iterate ghcn_%d: %w", year, err)
	}
	return matched, nil
}

func (d *DailyStore) ensureYear(ctx context.Context, year int, archivePath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.years[year] {
		return nil
	}
	var n int
	if err := d.db.QueryRowContext(ctx, yearQuery, year).Scan(&n); err != nil {
		return fmt.Errorf("check ghcn_%d: %w", year, err)
	}
	if n == 0 {
		if err := d.importYear(ctx, year, archivePath); err != nil {
			return err
		}
	}
	d.years[year] = true
	return nil
}

func (d *DailyStore) importYear(ctx context.Context, year int, archivePath string) (err error) {
	start := time.Now()

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open by_year archive: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open by_year archive %s: %w", archivePath, err)
	}
	defer zr.Close()

	cr := csv.NewReader(zr)
	cr.ReuseRecord = true
	dec, err := csvutil.NewDecoder(cr, dailyHeader...)
	if err != nil {
		return fmt.Errorf("read by_year archive %s: %w", archivePath, err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ghcn_%d import: %w", year, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, fmt.Sprintf(dailyTable, year)); err != nil {
		return fmt.Errorf("create ghcn_%d: %w", year, err)
	}
	if _, err = tx.ExecContext(ctx, fmt.Sprintf(dailyIndex, year, year)); err != nil {
		return fmt.Errorf("index ghcn_%d: %w", year, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(insertDaily, year))
	if err != nil {
		return fmt.Errorf("prepare ghcn_%d insert: %w", year, err)
	}
	defer stmt.Close()

	rows := 0
	for {
		var r dailyRow
		if err = dec.Decode(&r); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("decode %s row %d: %w", archivePath, rows+1, err)
		}
		if _, err = stmt.ExecContext(ctx, r.ID, r.Date, r.Element, r.Value, r.MFlag, r.QFlag, r.SFlag, r.ObsTime); err != nil {
			return fmt.Errorf("insert ghcn_%d: %w", year, err)
		}
		rows++
	}

	if _, err = tx.ExecContext(ctx, insertYear, year); err != nil {
		return fmt.Errorf("register ghcn_%d: %w", year, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit ghcn_%d import: %w", year, err)
	}

	d.logger.Info("ghcnd year imported", "year", year, "rows", rows, "elapsed", time.Since(start))
	return nil
}

// CheckReadiness pings the database.
func (d *DailyStore) CheckReadiness(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ghcnd database unreachable: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (d *DailyStore) Close() error {
	return d.db.Close()
}
