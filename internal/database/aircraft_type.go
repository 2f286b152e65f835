package database

import (
	"database/sql"
	"fmt"

	"cotracker/internal/models"
)

type AircraftTypeRepository interface {
	Create(aircraftType *models.AircraftType) error
	InsertBatch(aircraftTypes []*models.AircraftType) error
	List() ([]models.AircraftType, error)
	ListByNames(names []string) ([]models.AircraftType, error)
	IsTablePopulated() (bool, error)
	LoadFromCSV(csvPath string, batchSize int) error
}

type aircraftTypeRepository struct {
	db *sql.DB
}

func NewAircraftTypeRepository(db *sql.DB) AircraftTypeRepository {
	return &aircraftTypeRepository{db: db}
}

func (r *aircraftTypeRepository) Create(aircraftType *models.AircraftType) error {
	res, err := r.db.Exec(`INSERT INTO aircraft_types (name) VALUES (?)`, aircraftType.Name)
	if err != nil {
		return fmt.Errorf("failed to insert aircraft type %s: %w", aircraftType.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read aircraft type id: %w", err)
	}
	aircraftType.ID = id
	return nil
}

// InsertBatch inserts aircraft types in a single transaction, skipping names already present
func (r *aircraftTypeRepository) InsertBatch(aircraftTypes []*models.AircraftType) error {
	if len(aircraftTypes) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO aircraft_types (name) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range aircraftTypes {
		if _, err := stmt.Exec(t.Name); err != nil {
			return fmt.Errorf("failed to insert aircraft type: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *aircraftTypeRepository) List() ([]models.AircraftType, error) {
	return r.query(`SELECT id, name FROM aircraft_types ORDER BY name`)
}

// ListByNames returns the aircraft types matching names; unknown names are ignored
func (r *aircraftTypeRepository) ListByNames(names []string) ([]models.AircraftType, error) {
	if len(names) == 0 {
		return []models.AircraftType{}, nil
	}
	args := make([]any, len(names))
	for i, name := range names {
		args[i] = name
	}
	return r.query(`SELECT id, name FROM aircraft_types WHERE name IN (`+placeholders(len(names))+`)
		ORDER BY name`, args...)
}

func (r *aircraftTypeRepository) IsTablePopulated() (bool, error) {
	var ignored int
	err := r.db.QueryRow("SELECT 1 FROM aircraft_types LIMIT 1").Scan(&ignored)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check aircraft_types table: %w", err)
	}
	return true, nil
}

// LoadFromCSV loads aircraft types from a CSV file with a name column
func (r *aircraftTypeRepository) LoadFromCSV(csvPath string, batchSize int) error {
	batch := make([]*models.AircraftType, 0, batchSize)

	err := readCSV(csvPath, func(record []string, headerMap map[string]int) error {
		name := getField(record, headerMap, "name")
		if name == "" {
			return nil
		}
		batch = append(batch, &models.AircraftType{Name: name})
		if len(batch) >= batchSize {
			if err := r.InsertBatch(batch); err != nil {
				return fmt.Errorf("failed to insert batch: %w", err)
			}
			batch = batch[:0]
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(batch) > 0 {
		if err := r.InsertBatch(batch); err != nil {
			return fmt.Errorf("failed to insert final batch: %w", err)
		}
	}
	return nil
}

func (r *aircraftTypeRepository) query(query string, args ...any) ([]models.AircraftType, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query aircraft types: %w", err)
	}
	defer rows.Close()

	aircraftTypes := make([]models.AircraftType, 0)
	for rows.Next() {
		var t models.AircraftType
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan aircraft type: %w", err)
		}
		aircraftTypes = append(aircraftTypes, t)
	}
	return aircraftTypes, rows.Err()
}
