// Package featureconfig implements domain.FeatureConfigRepository over the
// feature_config table.
package featureconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"socialcore/internal/backend"
	"socialcore/internal/domain"
	"socialcore/internal/repository/schema"
)

type Repository struct {
	db  backend.Client
	now func() time.Time
}

var _ domain.FeatureConfigRepository = (*Repository)(nil)

type Option func(*Repository)

func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func New(db backend.Client, opts ...Option) *Repository {
	r := &Repository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type configRow struct {
	Key         string             `json:"key"`
	Value       domain.ConfigValue `json:"value"`
	Description *string            `json:"description"`
	CreatedAt   *time.Time         `json:"created_at"`
	UpdatedAt   *time.Time         `json:"updated_at"`
}

func (c configRow) toDomain() domain.FeatureConfigEntry {
	return domain.FeatureConfigEntry{
		Key:         c.Key,
		Value:       c.Value,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// All returns every entry ordered by key.
func (r *Repository) All(ctx context.Context) ([]domain.FeatureConfigEntry, error) {
	rows, err := backend.SelectInto[configRow](ctx, r.db, backend.From(schema.FeatureConfig).Select("*").OrderBy("key", false))
	if err != nil {
		return nil, err
	}
	out := make([]domain.FeatureConfigEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Upsert writes key, replacing the value and description of an existing
// entry.
func (r *Repository) Upsert(ctx context.Context, key string, value domain.ConfigValue, description *string) (domain.FeatureConfigEntry, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.FeatureConfigEntry{}, fmt.Errorf("config key is required: %w", domain.ErrInvalidArgument)
	}
	raw, err := r.db.Upsert(ctx, schema.FeatureConfig,
		backend.Row{
			"key":         key,
			"value":       value,
			"description": description,
			"updated_at":  r.now().UTC(),
		},
		backend.UpsertOptions{OnConflict: []string{"key"}},
		backend.From(schema.FeatureConfig).Select("*"))
	if err != nil {
		return domain.FeatureConfigEntry{}, err
	}
	row, err := backend.Decode[configRow](raw)
	if errors.Is(err, backend.ErrNoRows) {
		return domain.FeatureConfigEntry{}, fmt.Errorf("upsert config %s: %w", key, domain.ErrNoData)
	}
	if err != nil {
		return domain.FeatureConfigEntry{}, err
	}
	return row.toDomain(), nil
}

func (r *Repository) Delete(ctx context.Context, key string) error {
	return r.db.Delete(ctx, backend.From(schema.FeatureConfig).Where(backend.Eq("key", key)))
}
