package database

import (
	"database/sql"
	"errors"
	"fmt"

	"cotracker/internal/models"
)

// ErrNotFound is returned when a lookup by identifier matches no row
var ErrNotFound = errors.New("not found")

type PilotRepository interface {
	Create(pilot *models.Pilot) error
	GetByUsername(username string) (*models.Pilot, error)
	ListPilots() ([]models.Pilot, error)
	ListAll() ([]models.Pilot, error)
}

type pilotRepository struct {
	db *sql.DB
}

func NewPilotRepository(db *sql.DB) PilotRepository {
	return &pilotRepository{db: db}
}

const pilotColumns = `id, username, first_name, last_name, is_pilot, is_superuser, password_hash`

// Create inserts a new user and sets its ID
func (r *pilotRepository) Create(pilot *models.Pilot) error {
	res, err := r.db.Exec(`INSERT INTO pilots (
		username, first_name, last_name, is_pilot, is_superuser, password_hash
	) VALUES (?, ?, ?, ?, ?, ?)`,
		pilot.Username, pilot.FirstName, pilot.LastName,
		pilot.IsPilot, pilot.IsSuperuser, pilot.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pilot %s: %w", pilot.Username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read pilot id: %w", err)
	}
	pilot.ID = id
	return nil
}

func (r *pilotRepository) GetByUsername(username string) (*models.Pilot, error) {
	row := r.db.QueryRow(`SELECT `+pilotColumns+` FROM pilots WHERE username = ?`, username)
	p, err := scanPilot(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pilot %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pilot %q: %w", username, err)
	}
	return p, nil
}

// ListPilots returns users holding the pilot capability ordered by name
func (r *pilotRepository) ListPilots() ([]models.Pilot, error) {
	return r.query(`SELECT ` + pilotColumns + ` FROM pilots WHERE is_pilot = 1
		ORDER BY first_name, last_name, username`)
}

// ListAll returns every user, pilot or not
func (r *pilotRepository) ListAll() ([]models.Pilot, error) {
	return r.query(`SELECT ` + pilotColumns + ` FROM pilots ORDER BY username`)
}

func (r *pilotRepository) query(query string, args ...any) ([]models.Pilot, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pilots: %w", err)
	}
	defer rows.Close()

	pilots := make([]models.Pilot, 0)
	for rows.Next() {
		p, err := scanPilot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pilot: %w", err)
		}
		pilots = append(pilots, *p)
	}
	return pilots, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPilot(s scanner) (*models.Pilot, error) {
	var p models.Pilot
	if err := s.Scan(&p.ID, &p.Username, &p.FirstName, &p.LastName,
		&p.IsPilot, &p.IsSuperuser, &p.PasswordHash); err != nil {
		return nil, err
	}
	return &p, nil
}
