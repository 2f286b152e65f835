package database

import (
	"database/sql"
	"fmt"
	"strings"

	"cotracker/internal/models"
)

// Attachment is one row of the airstrip to base relation
type Attachment struct {
	Airstrip string `json:"airstrip"`
	Base     string `json:"base"`
}

type AirstripRepository interface {
	Create(airstrip *models.Airstrip) error
	InsertBatch(airstrips []*models.Airstrip) error
	GetByIdent(ident string) (*models.Airstrip, error)
	List() ([]models.Airstrip, error)
	ListByIdents(idents []string) ([]models.Airstrip, error)
	ListBases() ([]models.Airstrip, error)
	BaseSummaries() ([]models.BaseSummary, error)
	Attached(baseID int64) ([]models.Airstrip, error)
	Unattached(baseID int64) ([]models.Airstrip, error)
	Attach(airstripID, baseID int64) error
	Detach(airstripID, baseID int64) error
	Attachments() ([]Attachment, error)
	IsTablePopulated() (bool, error)
	LoadFromCSV(csvPath string, batchSize int) error
}

type airstripRepository struct {
	db *sql.DB
}

func NewAirstripRepository(db *sql.DB) AirstripRepository {
	return &airstripRepository{db: db}
}

const airstripColumns = `a.id, a.ident, a.name, a.is_base`

func (r *airstripRepository) Create(airstrip *models.Airstrip) error {
	res, err := r.db.Exec(`INSERT INTO airstrips (ident, name, is_base) VALUES (?, ?, ?)`,
		airstrip.Ident, airstrip.Name, airstrip.IsBase)
	if err != nil {
		return fmt.Errorf("failed to insert airstrip %s: %w", airstrip.Ident, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read airstrip id: %w", err)
	}
	airstrip.ID = id
	return nil
}

// InsertBatch inserts one or more airstrips in a single transaction.
// Existing idents are updated in place.
func (r *airstripRepository) InsertBatch(airstrips []*models.Airstrip) error {
	if len(airstrips) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO airstrips (ident, name, is_base) VALUES (?, ?, ?)
		ON CONFLICT(ident) DO UPDATE SET name = excluded.name, is_base = excluded.is_base`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, a := range airstrips {
		if _, err := stmt.Exec(a.Ident, a.Name, a.IsBase); err != nil {
			return fmt.Errorf("failed to insert airstrip: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *airstripRepository) GetByIdent(ident string) (*models.Airstrip, error) {
	var a models.Airstrip
	err := r.db.QueryRow(`SELECT `+airstripColumns+` FROM airstrips a WHERE a.ident = ?`, ident).
		Scan(&a.ID, &a.Ident, &a.Name, &a.IsBase)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("airstrip %q: %w", ident, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get airstrip %q: %w", ident, err)
	}
	return &a, nil
}

func (r *airstripRepository) List() ([]models.Airstrip, error) {
	return r.query(`SELECT ` + airstripColumns + ` FROM airstrips a ORDER BY a.ident`)
}

// ListByIdents returns the airstrips matching idents; unknown idents are ignored
func (r *airstripRepository) ListByIdents(idents []string) ([]models.Airstrip, error) {
	if len(idents) == 0 {
		return []models.Airstrip{}, nil
	}
	args := make([]any, len(idents))
	for i, ident := range idents {
		args[i] = ident
	}
	return r.query(`SELECT `+airstripColumns+` FROM airstrips a
		WHERE a.ident IN (`+placeholders(len(idents))+`) ORDER BY a.ident`, args...)
}

func (r *airstripRepository) ListBases() ([]models.Airstrip, error) {
	return r.query(`SELECT ` + airstripColumns + ` FROM airstrips a WHERE a.is_base = 1 ORDER BY a.ident`)
}

// BaseSummaries counts attached and unattached airstrips for every base
func (r *airstripRepository) BaseSummaries() ([]models.BaseSummary, error) {
	rows, err := r.db.Query(`SELECT ` + airstripColumns + `,
		(SELECT COUNT(*) FROM airstrip_bases ab WHERE ab.base_id = a.id) AS attached,
		(SELECT COUNT(*) FROM airstrips o WHERE o.id <> a.id AND o.id NOT IN
			(SELECT ab.airstrip_id FROM airstrip_bases ab WHERE ab.base_id = a.id)) AS unattached
		FROM airstrips a WHERE a.is_base = 1 ORDER BY a.ident`)
	if err != nil {
		return nil, fmt.Errorf("failed to query base summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]models.BaseSummary, 0)
	for rows.Next() {
		var s models.BaseSummary
		if err := rows.Scan(&s.Base.ID, &s.Base.Ident, &s.Base.Name, &s.Base.IsBase,
			&s.Attached, &s.Unattached); err != nil {
			return nil, fmt.Errorf("failed to scan base summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Attached returns the airstrips whose bases include baseID
func (r *airstripRepository) Attached(baseID int64) ([]models.Airstrip, error) {
	return r.query(`SELECT `+airstripColumns+` FROM airstrips a
		JOIN airstrip_bases ab ON ab.airstrip_id = a.id
		WHERE ab.base_id = ? ORDER BY a.ident`, baseID)
}

// Unattached returns every airstrip other than the base itself that is not attached to it
func (r *airstripRepository) Unattached(baseID int64) ([]models.Airstrip, error) {
	return r.query(`SELECT `+airstripColumns+` FROM airstrips a
		WHERE a.id <> ? AND a.id NOT IN
			(SELECT ab.airstrip_id FROM airstrip_bases ab WHERE ab.base_id = ?)
		ORDER BY a.ident`, baseID, baseID)
}

// Attach links an airstrip to a base. Attaching twice is a no-op.
func (r *airstripRepository) Attach(airstripID, baseID int64) error {
	if _, err := r.db.Exec(`INSERT OR IGNORE INTO airstrip_bases (airstrip_id, base_id) VALUES (?, ?)`,
		airstripID, baseID); err != nil {
		return fmt.Errorf("failed to attach airstrip %d to base %d: %w", airstripID, baseID, err)
	}
	return nil
}

// Detach unlinks an airstrip from a base. Detaching a missing link is a no-op.
func (r *airstripRepository) Detach(airstripID, baseID int64) error {
	if _, err := r.db.Exec(`DELETE FROM airstrip_bases WHERE airstrip_id = ? AND base_id = ?`,
		airstripID, baseID); err != nil {
		return fmt.Errorf("failed to detach airstrip %d from base %d: %w", airstripID, baseID, err)
	}
	return nil
}

func (r *airstripRepository) Attachments() ([]Attachment, error) {
	rows, err := r.db.Query(`SELECT a.ident, b.ident FROM airstrip_bases ab
		JOIN airstrips a ON a.id = ab.airstrip_id
		JOIN airstrips b ON b.id = ab.base_id
		ORDER BY b.ident, a.ident`)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()

	attachments := make([]Attachment, 0)
	for rows.Next() {
		var at Attachment
		if err := rows.Scan(&at.Airstrip, &at.Base); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, at)
	}
	return attachments, rows.Err()
}

func (r *airstripRepository) IsTablePopulated() (bool, error) {
	var ignored int
	err := r.db.QueryRow("SELECT 1 FROM airstrips LIMIT 1").Scan(&ignored)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check airstrips table: %w", err)
	}
	return true, nil
}

// LoadFromCSV loads airstrips from a CSV file with the columns
// ident,name,is_base,bases where bases is a ';' separated list of base idents.
// Base links are applied once every airstrip in the file has been inserted.
func (r *airstripRepository) LoadFromCSV(csvPath string, batchSize int) error {
	batch := make([]*models.Airstrip, 0, batchSize)
	pending := make([]Attachment, 0)

	err := readCSV(csvPath, func(record []string, headerMap map[string]int) error {
		a := &models.Airstrip{
			Ident:  getField(record, headerMap, "ident"),
			Name:   getField(record, headerMap, "name"),
			IsBase: parseBool(getField(record, headerMap, "is_base")),
		}
		if a.Ident == "" {
			return nil
		}
		if a.Name == "" {
			a.Name = a.Ident
		}

		for _, base := range strings.Split(getField(record, headerMap, "bases"), ";") {
			base = strings.TrimSpace(base)
			if base != "" && base != a.Ident {
				pending = append(pending, Attachment{Airstrip: a.Ident, Base: base})
			}
		}

		batch = append(batch, a)
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

	for _, link := range pending {
		airstrip, err := r.GetByIdent(link.Airstrip)
		if err != nil {
			return err
		}
		base, err := r.GetByIdent(link.Base)
		if err != nil {
			return fmt.Errorf("airstrip %s lists unknown base: %w", link.Airstrip, err)
		}
		if err := r.Attach(airstrip.ID, base.ID); err != nil {
			return err
		}
	}

	return nil
}

func (r *airstripRepository) query(query string, args ...any) ([]models.Airstrip, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query airstrips: %w", err)
	}
	defer rows.Close()

	airstrips := make([]models.Airstrip, 0)
	for rows.Next() {
		var a models.Airstrip
		if err := rows.Scan(&a.ID, &a.Ident, &a.Name, &a.IsBase); err != nil {
			return nil, fmt.Errorf("failed to scan airstrip: %w", err)
		}
		airstrips = append(airstrips, a)
	}
	return airstrips, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
