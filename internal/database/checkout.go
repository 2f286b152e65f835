package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cotracker/internal/models"
)

// CheckoutFilter narrows a checkout listing. Zero values match everything.
type CheckoutFilter struct {
	PilotID        int64
	AirstripIDs    []int64
	AircraftTypeID int64
}

type CheckoutRepository interface {
	Find(pilotID, airstripID int64, aircraftTypeIDs []int64) ([]models.Checkout, error)
	List(filter CheckoutFilter) ([]models.Checkout, error)
	Create(checkout *models.Checkout) error
	Delete(id int64) error
}

type checkoutRepository struct {
	db *sql.DB
}

func NewCheckoutRepository(db *sql.DB) CheckoutRepository {
	return &checkoutRepository{db: db}
}

const checkoutSelect = `SELECT c.id, c.created_at,
		p.id, p.username, p.first_name, p.last_name, p.is_pilot, p.is_superuser, p.password_hash,
		a.id, a.ident, a.name, a.is_base,
		t.id, t.name
	FROM checkouts c
	JOIN pilots p ON p.id = c.pilot_id
	JOIN airstrips a ON a.id = c.airstrip_id
	JOIN aircraft_types t ON t.id = c.aircraft_type_id`

// Find returns the checkouts held by a pilot at an airstrip in any of the given aircraft types
func (r *checkoutRepository) Find(pilotID, airstripID int64, aircraftTypeIDs []int64) ([]models.Checkout, error) {
	if len(aircraftTypeIDs) == 0 {
		return []models.Checkout{}, nil
	}
	args := []any{pilotID, airstripID}
	for _, id := range aircraftTypeIDs {
		args = append(args, id)
	}
	return r.query(checkoutSelect+` WHERE c.pilot_id = ? AND c.airstrip_id = ?
		AND c.aircraft_type_id IN (`+placeholders(len(aircraftTypeIDs))+`)
		ORDER BY t.name, c.id`, args...)
}

func (r *checkoutRepository) List(filter CheckoutFilter) ([]models.Checkout, error) {
	clauses := make([]string, 0, 3)
	args := make([]any, 0)

	if filter.PilotID != 0 {
		clauses = append(clauses, "c.pilot_id = ?")
		args = append(args, filter.PilotID)
	}
	if len(filter.AirstripIDs) > 0 {
		clauses = append(clauses, "c.airstrip_id IN ("+placeholders(len(filter.AirstripIDs))+")")
		for _, id := range filter.AirstripIDs {
			args = append(args, id)
		}
	}
	if filter.AircraftTypeID != 0 {
		clauses = append(clauses, "c.aircraft_type_id = ?")
		args = append(args, filter.AircraftTypeID)
	}

	query := checkoutSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY p.first_name, p.last_name, p.username, a.ident, t.name"

	return r.query(query, args...)
}

// Create inserts a checkout. Duplicate triples are not rejected here.
func (r *checkoutRepository) Create(checkout *models.Checkout) error {
	if checkout.CreatedAt.IsZero() {
		checkout.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.Exec(`INSERT INTO checkouts (pilot_id, airstrip_id, aircraft_type_id, created_at)
		VALUES (?, ?, ?, ?)`,
		checkout.Pilot.ID, checkout.Airstrip.ID, checkout.AircraftType.ID, checkout.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert checkout: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read checkout id: %w", err)
	}
	checkout.ID = id
	return nil
}

func (r *checkoutRepository) Delete(id int64) error {
	if _, err := r.db.Exec(`DELETE FROM checkouts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete checkout %d: %w", id, err)
	}
	return nil
}

func (r *checkoutRepository) query(query string, args ...any) ([]models.Checkout, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkouts: %w", err)
	}
	defer rows.Close()

	checkouts := make([]models.Checkout, 0)
	for rows.Next() {
		var c models.Checkout
		var createdAt sql.NullTime
		if err := rows.Scan(&c.ID, &createdAt,
			&c.Pilot.ID, &c.Pilot.Username, &c.Pilot.FirstName, &c.Pilot.LastName,
			&c.Pilot.IsPilot, &c.Pilot.IsSuperuser, &c.Pilot.PasswordHash,
			&c.Airstrip.ID, &c.Airstrip.Ident, &c.Airstrip.Name, &c.Airstrip.IsBase,
			&c.AircraftType.ID, &c.AircraftType.Name,
		); err != nil {
			return nil, fmt.Errorf("failed to scan checkout: %w", err)
		}
		c.CreatedAt = createdAt.Time
		checkouts = append(checkouts, c)
	}
	return checkouts, rows.Err()
}
