package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/subashmuthub/lab-management-system/internal/model"
)

// ResourceRepo resolves bookable resources. Labs and equipment live in
// separate tables; callers pick the lookup by resource kind. Both
// lookups treat inactive rows as absent so decommissioned resources
// can never be booked.
type ResourceRepo struct{ DB *sql.DB }

func NewResourceRepo(db *sql.DB) *ResourceRepo { return &ResourceRepo{DB: db} }

// GetActiveLab returns an active lab by id, or ErrResourceNotFound.
func (r *ResourceRepo) GetActiveLab(ctx context.Context, id uint64) (model.Lab, error) {
	var l model.Lab
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, name, location, capacity, is_active, created_at, updated_at
		   FROM labs WHERE id=? AND is_active=1 LIMIT 1`,
		id).Scan(&l.ID, &l.Name, &l.Location, &l.Capacity, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Lab{}, ErrResourceNotFound
	}
	return l, err
}

// GetActiveEquipment returns an active piece of equipment by id, or
// ErrResourceNotFound. The caller is responsible for checking Status
// before booking; a maintenance flag is not the same as absence.
func (r *ResourceRepo) GetActiveEquipment(ctx context.Context, id uint64) (model.Equipment, error) {
	var e model.Equipment
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, lab_id, name, model, status, is_active, created_at, updated_at
		   FROM equipment WHERE id=? AND is_active=1 LIMIT 1`,
		id).Scan(&e.ID, &e.LabID, &e.Name, &e.Model, &e.Status, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Equipment{}, ErrResourceNotFound
	}
	return e, err
}
