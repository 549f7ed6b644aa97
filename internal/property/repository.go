package property

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amarati/amarati-core/internal/infrastructure/database"
)

// Repository defines the interface for property and unit persistence.
type Repository interface {
	CreateProperty(ctx context.Context, p *Property) error
	GetProperty(ctx context.Context, id string) (*Property, error)
	ListProperties(ctx context.Context, filter Filter) ([]Property, error)
	UpdateProperty(ctx context.Context, p *Property) error
	DeleteProperty(ctx context.Context, id string) error

	CreateUnit(ctx context.Context, u *Unit) error
	GetUnit(ctx context.Context, id string) (*Unit, error)
	ListUnitsByProperty(ctx context.Context, propertyID string, skip, limit int) ([]Unit, error)
	UpdateUnit(ctx context.Context, u *Unit) error
	DeleteUnit(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed property repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const propertyColumns = `id, name, address, city, type, owner_id, supervisor_id,
	total_units, image_url, description, created_at`

const unitColumns = `id, property_id, unit_number, floor, bedrooms, bathrooms,
	area_sqm, rent_amount, status, tenant_id`

// CreateProperty validates and inserts a property. ID and CreatedAt are
// assigned here; TotalUnits always starts at zero.
func (r *SQLiteRepository) CreateProperty(ctx context.Context, p *Property) error {
	if err := ValidateProperty(p); err != nil {
		return err
	}

	p.ID = "prop-" + uuid.NewString()
	p.CreatedAt = r.now().UTC()
	p.TotalUnits = 0

	const query = `INSERT INTO properties (` + propertyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Address, p.City, string(p.Type), p.OwnerID, nullStr(p.SupervisorID),
		p.TotalUnits, nullStr(p.ImageURL), nullStr(p.Description), database.FormatTime(p.CreatedAt))
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("inserting property: %w", ErrInvalidReference)
		}
		return fmt.Errorf("inserting property %s: %w", p.ID, err)
	}
	return nil
}

// GetProperty returns a single property by ID.
func (r *SQLiteRepository) GetProperty(ctx context.Context, id string) (*Property, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE id = ?`, id)
	p, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPropertyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting property %s: %w", id, err)
	}
	return p, nil
}

// ListProperties returns properties matching filter in creation order.
func (r *SQLiteRepository) ListProperties(ctx context.Context, filter Filter) ([]Property, error) {
	var (
		conds []string
		args  []any
	)
	if filter.OwnerID != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.SupervisorID != "" {
		conds = append(conds, "supervisor_id = ?")
		args = append(args, filter.SupervisorID)
	}
	if filter.City != "" {
		conds = append(conds, "city = ? COLLATE NOCASE")
		args = append(args, filter.City)
	}

	query := `SELECT ` + propertyColumns + ` FROM properties`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, rowid LIMIT ? OFFSET ?"
	args = append(args, pageLimit(filter.Limit), max(filter.Skip, 0))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing properties: %w", err)
	}
	defer rows.Close()

	var out []Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning property: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating properties: %w", err)
	}
	return out, nil
}

// UpdateProperty validates and saves the mutable fields of p.
// TotalUnits and CreatedAt are not writable.
func (r *SQLiteRepository) UpdateProperty(ctx context.Context, p *Property) error {
	if err := ValidateProperty(p); err != nil {
		return err
	}

	const query = `UPDATE properties SET name = ?, address = ?, city = ?, type = ?,
		owner_id = ?, supervisor_id = ?, image_url = ?, description = ?
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		p.Name, p.Address, p.City, string(p.Type), p.OwnerID, nullStr(p.SupervisorID),
		nullStr(p.ImageURL), nullStr(p.Description), p.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("updating property %s: %w", p.ID, ErrInvalidReference)
		}
		return fmt.Errorf("updating property %s: %w", p.ID, err)
	}
	return requireRow(result, ErrPropertyNotFound)
}

// DeleteProperty removes a property. Its units are removed by cascade.
func (r *SQLiteRepository) DeleteProperty(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM properties WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting property %s: %w", id, err)
	}
	return requireRow(result, ErrPropertyNotFound)
}

// CreateUnit validates and inserts a unit, incrementing the parent
// property's unit count in the same transaction.
func (r *SQLiteRepository) CreateUnit(ctx context.Context, u *Unit) error {
	if err := ValidateUnit(u); err != nil {
		return err
	}
	u.ID = "unit-" + uuid.NewString()

	return r.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE properties SET total_units = total_units + 1 WHERE id = ?", u.PropertyID)
		if err != nil {
			return fmt.Errorf("incrementing unit count: %w", err)
		}
		if err := requireRow(result, ErrPropertyNotFound); err != nil {
			return err
		}

		const query = `INSERT INTO units (` + unitColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err = tx.ExecContext(ctx, query,
			u.ID, u.PropertyID, u.UnitNumber, nullInt(u.Floor), nullInt(u.Bedrooms),
			nullInt(u.Bathrooms), nullFloat(u.AreaSqm), nullFloat(u.RentAmount),
			string(u.Status), nullStr(u.TenantID))
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("inserting unit: %w", ErrInvalidReference)
			}
			return fmt.Errorf("inserting unit %s: %w", u.ID, err)
		}
		return nil
	})
}

// GetUnit returns a single unit by ID.
func (r *SQLiteRepository) GetUnit(ctx context.Context, id string) (*Unit, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+unitColumns+` FROM units WHERE id = ?`, id)
	u, err := scanUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting unit %s: %w", id, err)
	}
	return u, nil
}

// ListUnitsByProperty returns a page of units for one property ordered by
// unit number.
func (r *SQLiteRepository) ListUnitsByProperty(ctx context.Context, propertyID string, skip, limit int) ([]Unit, error) {
	const query = `SELECT ` + unitColumns + ` FROM units WHERE property_id = ?
		ORDER BY unit_number, rowid LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, propertyID, pageLimit(limit), max(skip, 0))
	if err != nil {
		return nil, fmt.Errorf("listing units for %s: %w", propertyID, err)
	}
	defer rows.Close()

	var out []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning unit: %w", err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating units: %w", err)
	}
	return out, nil
}

// UpdateUnit validates and saves the mutable fields of u. A unit cannot
// move between properties.
func (r *SQLiteRepository) UpdateUnit(ctx context.Context, u *Unit) error {
	if err := ValidateUnit(u); err != nil {
		return err
	}

	const query = `UPDATE units SET unit_number = ?, floor = ?, bedrooms = ?, bathrooms = ?,
		area_sqm = ?, rent_amount = ?, status = ?, tenant_id = ?
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		u.UnitNumber, nullInt(u.Floor), nullInt(u.Bedrooms), nullInt(u.Bathrooms),
		nullFloat(u.AreaSqm), nullFloat(u.RentAmount), string(u.Status), nullStr(u.TenantID), u.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("updating unit %s: %w", u.ID, ErrInvalidReference)
		}
		return fmt.Errorf("updating unit %s: %w", u.ID, err)
	}
	return requireRow(result, ErrUnitNotFound)
}

// DeleteUnit removes a unit and decrements its property's unit count.
func (r *SQLiteRepository) DeleteUnit(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		var propertyID string
		err := tx.QueryRowContext(ctx, "SELECT property_id FROM units WHERE id = ?", id).Scan(&propertyID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUnitNotFound
		}
		if err != nil {
			return fmt.Errorf("looking up unit %s: %w", id, err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM units WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting unit %s: %w", id, err)
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE properties SET total_units = MAX(total_units - 1, 0) WHERE id = ?", propertyID)
		if err != nil {
			return fmt.Errorf("decrementing unit count: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck // rollback after failure
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProperty(s scanner) (*Property, error) {
	var (
		p                                   Property
		typ, createdAt                      string
		supervisorID, imageURL, description sql.NullString
	)
	err := s.Scan(&p.ID, &p.Name, &p.Address, &p.City, &typ, &p.OwnerID, &supervisorID,
		&p.TotalUnits, &imageURL, &description, &createdAt)
	if err != nil {
		return nil, err
	}
	p.Type = Type(typ)
	p.SupervisorID = strPtr(supervisorID)
	p.ImageURL = strPtr(imageURL)
	p.Description = strPtr(description)
	if p.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for %s: %w", p.ID, err)
	}
	return &p, nil
}

func scanUnit(s scanner) (*Unit, error) {
	var (
		u                          Unit
		status                     string
		floor, bedrooms, bathrooms sql.NullInt64
		area, rent                 sql.NullFloat64
		tenantID                   sql.NullString
	)
	err := s.Scan(&u.ID, &u.PropertyID, &u.UnitNumber, &floor, &bedrooms, &bathrooms,
		&area, &rent, &status, &tenantID)
	if err != nil {
		return nil, err
	}
	u.Status = Status(status)
	u.Floor = intPtr(floor)
	u.Bedrooms = intPtr(bedrooms)
	u.Bathrooms = intPtr(bathrooms)
	u.AreaSqm = floatPtr(area)
	u.RentAmount = floatPtr(rent)
	u.TenantID = strPtr(tenantID)
	return &u, nil
}

func requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// isForeignKeyViolation checks if a SQLite error is a FOREIGN KEY constraint violation.
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	return &nf.Float64
}
