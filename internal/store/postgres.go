// Package store persists routes, fixes and pickups to Postgres and serves
// roster lookups. Each write is a single statement, assumed crash-consistent.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"schoolbus/internal/domain"
)

type Postgres struct {
	db     *sql.DB
	logger *slog.Logger
}

func OpenPostgres(dsn string, logger *slog.Logger) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}

	return &Postgres{
		db:     db,
		logger: logger.With("component", "postgres"),
	}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// EnsureSchema creates the tables if they do not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS routes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			bus_id TEXT NOT NULL,
			driver_id TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ,
			distance_meters DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS route_fixes (
			route_id TEXT NOT NULL REFERENCES routes(id),
			seq INTEGER NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (route_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS student_pickups (
			id TEXT PRIMARY KEY,
			route_id TEXT NOT NULL REFERENCES routes(id),
			student_id TEXT NOT NULL,
			fix_seq INTEGER NOT NULL,
			picked_up_at TIMESTAMPTZ NOT NULL,
			UNIQUE (route_id, student_id),
			FOREIGN KEY (route_id, fix_seq) REFERENCES route_fixes(route_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS students (
			id TEXT PRIMARY KEY,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			grade TEXT NOT NULL DEFAULT '',
			pickup_latitude DOUBLE PRECISION,
			pickup_longitude DOUBLE PRECISION,
			active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
	}

	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) SaveRoute(ctx context.Context, r domain.Route) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO routes (id, name, bus_id, driver_id, started_at, ended_at, distance_meters)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		r.ID, r.Name, r.BusID, r.DriverID, r.StartedAt, r.EndedAt, r.DistanceMeters,
	)
	if err != nil {
		return fmt.Errorf("save route: %w", err)
	}
	return nil
}

func (p *Postgres) SaveFix(ctx context.Context, routeID string, f domain.Fix) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO route_fixes (route_id, seq, latitude, longitude, recorded_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (route_id, seq) DO NOTHING`,
		routeID, f.Seq, f.Lat, f.Lng, f.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("save fix: %w", err)
	}
	return nil
}

func (p *Postgres) SavePickup(ctx context.Context, pk domain.Pickup) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO student_pickups (id, route_id, student_id, fix_seq, picked_up_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (route_id, student_id) DO NOTHING`,
		pk.ID, pk.RouteID, pk.StudentID, pk.FixSeq, pk.PickedUpAt,
	)
	if err != nil {
		return fmt.Errorf("save pickup: %w", err)
	}
	return nil
}

func (p *Postgres) MarkRouteEnded(ctx context.Context, r domain.Route) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE routes SET ended_at = $2, distance_meters = $3 WHERE id = $1`,
		r.ID, r.EndedAt, r.DistanceMeters,
	)
	if err != nil {
		return fmt.Errorf("mark route ended: %w", err)
	}
	return nil
}

// Student implements the tracker's roster lookup against the students table.
func (p *Postgres) Student(ctx context.Context, id string) (domain.Student, bool, error) {
	var s domain.Student
	err := p.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, grade, pickup_latitude, pickup_longitude, active
		 FROM students WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.FirstName, &s.LastName, &s.Grade, &s.PickupLat, &s.PickupLng, &s.Active)
	if err == sql.ErrNoRows {
		return domain.Student{}, false, nil
	}
	if err != nil {
		return domain.Student{}, false, fmt.Errorf("query student: %w", err)
	}
	return s, true, nil
}

func (p *Postgres) ActiveStudents(ctx context.Context) ([]domain.Student, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, first_name, last_name, grade, pickup_latitude, pickup_longitude, active
		 FROM students WHERE active ORDER BY last_name, first_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var students []domain.Student
	for rows.Next() {
		var s domain.Student
		if err := rows.Scan(&s.ID, &s.FirstName, &s.LastName, &s.Grade, &s.PickupLat, &s.PickupLng, &s.Active); err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// UpsertStudents seeds the students table, used when a roster CSV is
// configured alongside the database.
func (p *Postgres) UpsertStudents(ctx context.Context, students []domain.Student) error {
	for _, s := range students {
		_, err := p.db.ExecContext(ctx,
			`INSERT INTO students (id, first_name, last_name, grade, pickup_latitude, pickup_longitude, active)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (id) DO UPDATE SET
				first_name = EXCLUDED.first_name,
				last_name = EXCLUDED.last_name,
				grade = EXCLUDED.grade,
				pickup_latitude = EXCLUDED.pickup_latitude,
				pickup_longitude = EXCLUDED.pickup_longitude,
				active = EXCLUDED.active`,
			s.ID, s.FirstName, s.LastName, s.Grade, s.PickupLat, s.PickupLng, s.Active,
		)
		if err != nil {
			return fmt.Errorf("upsert student %s: %w", s.ID, err)
		}
	}
	return nil
}
