package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"invoice-tracker/internal/common"
	"invoice-tracker/internal/entity"
)

type ProfileRepository interface {
	Create(ctx context.Context, name, defaultCurrency string) (*entity.Profile, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Profile, error)
	GetOrCreateByName(ctx context.Context, name, defaultCurrency string) (*entity.Profile, error)
	List(ctx context.Context) ([]*entity.Profile, error)
}

type profileRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewProfileRepository(db *DB, logger *slog.Logger) ProfileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &profileRepository{db: db, logger: logger}
}

func (r *profileRepository) Create(ctx context.Context, name, defaultCurrency string) (*entity.Profile, error) {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	now := time.Now().UTC()
	p := &entity.Profile{
		ID:              uuid.New(),
		Name:            name,
		DefaultCurrency: defaultCurrency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	_, err := r.db.SQL.ExecContext(ctx,
		`INSERT INTO profiles (id, name, default_currency, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.DefaultCurrency, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		r.logger.Error("create profile failed", "name", name, "error", err)
		return nil, common.WrapError(err, "create profile")
	}
	r.logger.Info("profile created", "profile_id", p.ID, "name", name)
	return p, nil
}

func (r *profileRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Profile, error) {
	row := r.db.SQL.QueryRowContext(ctx,
		`SELECT id, name, default_currency, created_at, updated_at FROM profiles WHERE id = $1`, id)
	return scanProfile(row)
}

func (r *profileRepository) GetOrCreateByName(ctx context.Context, name, defaultCurrency string) (*entity.Profile, error) {
	row := r.db.SQL.QueryRowContext(ctx,
		`SELECT id, name, default_currency, created_at, updated_at FROM profiles WHERE name = $1`, name)
	p, err := scanProfile(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	return r.Create(ctx, name, defaultCurrency)
}

func (r *profileRepository) List(ctx context.Context) ([]*entity.Profile, error) {
	rows, err := r.db.SQL.QueryContext(ctx,
		`SELECT id, name, default_currency, created_at, updated_at FROM profiles ORDER BY name`)
	if err != nil {
		r.logger.Error("list profiles failed", "error", err)
		return nil, common.WrapError(err, "list profiles")
	}
	defer rows.Close()

	var out []*entity.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*entity.Profile, error) {
	var p entity.Profile
	err := row.Scan(&p.ID, &p.Name, &p.DefaultCurrency, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, "scan profile")
	}
	return &p, nil
}
