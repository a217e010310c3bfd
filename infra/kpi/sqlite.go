package kpi

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Record aggregates one day of scheduling outcomes for a site.
type Record struct {
	SiteID        string
	Date          time.Time
	PlacedOrders  int
	Conflicts     int
	VolumePlanned float64
}

// Day truncates t to midnight UTC so records aggregate per calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SQLiteStore persists KPI records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS dispatch_kpi (
        site_id TEXT,
        day INTEGER,
        placed INTEGER,
        conflicts INTEGER,
        volume REAL,
        PRIMARY KEY(site_id, day)
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Add inserts or updates the KPI record, accumulating counts for the day.
func (s *SQLiteStore) Add(r Record) error {
	d := Day(r.Date)
	_, err := s.db.Exec(`INSERT INTO dispatch_kpi (site_id, day, placed, conflicts, volume)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(site_id, day) DO UPDATE SET
            placed = placed + excluded.placed,
            conflicts = conflicts + excluded.conflicts,
            volume = volume + excluded.volume`,
		r.SiteID, d.Unix(), r.PlacedOrders, r.Conflicts, r.VolumePlanned)
	return err
}

// Query returns records in the range [start,end].
func (s *SQLiteStore) Query(siteID string, start, end time.Time) ([]Record, error) {
	start = Day(start)
	end = Day(end)
	rows, err := s.db.Query(`SELECT site_id, day, placed, conflicts, volume
        FROM dispatch_kpi WHERE site_id = ? AND day >= ? AND day <= ? ORDER BY day`,
		siteID, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Record
	for rows.Next() {
		var sid string
		var ts int64
		var placed, conflicts int
		var volume float64
		if err := rows.Scan(&sid, &ts, &placed, &conflicts, &volume); err != nil {
			return nil, err
		}
		res = append(res, Record{
			SiteID:        sid,
			Date:          time.Unix(ts, 0).UTC(),
			PlacedOrders:  placed,
			Conflicts:     conflicts,
			VolumePlanned: volume,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
