// Package stationstore reads the station and ZIP reference tables.
package stationstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gojiplus/get-weather-data/internal/domain"

	_ "github.com/go-sql-driver/mysql" // MySQL/MariaDB reference store
	_ "github.com/mattn/go-sqlite3"    // SQLite reference store
)

const (
	stationsQuery = `select id, name, lat, lon, type from stations`
	zipQuery      = `select zipcode, lat, lon, gm_lat, gm_lon from zip where zipcode = ?`
)

// Store is a read-only view of the reference database.
type Store struct {
	db *sql.DB
}

// Open connects to the reference database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open station store: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping station store: %w", err)
	}
	return New(db), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Stations returns every station row. Null coordinates come back as empty
// strings.
func (s *Store) Stations(ctx context.Context) ([]domain.Station, error) {
	rows, err := s.db.QueryContext(ctx, stationsQuery)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer rows.Close()

	var stations []domain.Station
	for rows.Next() {
		var id, typ string
		var name, lat, lon sql.NullString
		if err := rows.Scan(&id, &name, &lat, &lon, &typ); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		stations = append(stations, domain.Station{
			ID:   id,
			Type: domain.StationType(typ),
			Name: name.String,
			Lat:  lat.String,
			Lon:  lon.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stations: %w", err)
	}
	return stations, nil
}

// ZipLocation returns the coordinate columns for zip, or
// domain.ErrZipNotFound when the table has no such row.
func (s *Store) ZipLocation(ctx context.Context, zip string) (domain.ZipLocation, error) {
	var loc domain.ZipLocation
	var lat, lon, gmLat, gmLon sql.NullString

	err := s.db.QueryRowContext(ctx, zipQuery, zip).Scan(&loc.Zip, &lat, &lon, &gmLat, &gmLon)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ZipLocation{}, fmt.Errorf("%w: %s", domain.ErrZipNotFound, zip)
	}
	if err != nil {
		return domain.ZipLocation{}, fmt.Errorf("query zip %s: %w", zip, err)
	}

	loc.Lat, loc.Lon = lat.String, lon.String
	loc.GeoLat, loc.GeoLon = gmLat.String, gmLon.String
	return loc, nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("station store unreachable: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
