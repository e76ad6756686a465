// Package topic implements domain.TopicRepository.
package topic

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"socialcore/internal/backend"
	"socialcore/internal/cache"
	"socialcore/internal/cache/policy"
	"socialcore/internal/domain"
	"socialcore/internal/repository/schema"
)

// PopularTopicsFunc ranks topics by the number of communities using them.
const PopularTopicsFunc = "get_popular_topics"

type Repository struct {
	db     backend.Client
	cache  *cache.Store
	logger zerolog.Logger
}

var _ domain.TopicRepository = (*Repository)(nil)

func New(db backend.Client, store *cache.Store, logger zerolog.Logger) *Repository {
	return &Repository{
		db:     db,
		cache:  store,
		logger: logger.With().Str("component", "repository.topic").Logger(),
	}
}

type topicRow struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Label     string     `json:"label"`
	Icon      string     `json:"icon"`
	Tone      string     `json:"tone"`
	CreatedAt *time.Time `json:"created_at"`
}

func (t topicRow) toDomain() domain.Topic {
	return domain.Topic{
		ID:        t.ID,
		Name:      t.Name,
		Label:     t.Label,
		Icon:      t.Icon,
		Tone:      domain.ParseTone(t.Tone),
		CreatedAt: t.CreatedAt,
	}
}

func toDomainAll(rows []topicRow) []domain.Topic {
	out := make([]domain.Topic, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}

func alphabetical() backend.Query {
	return backend.From(schema.Topics).Select("*").OrderBy("label", false)
}

// Topics lists every topic ordered by label.
func (r *Repository) Topics(ctx context.Context) ([]domain.Topic, error) {
	return cache.First(ctx, r.cache, policy.Topics(), policy.TTLTopics, func(ctx context.Context) ([]domain.Topic, error) {
		rows, err := backend.SelectInto[topicRow](ctx, r.db, alphabetical())
		if err != nil {
			return nil, err
		}
		return toDomainAll(rows), nil
	})
}

func (r *Repository) Topic(ctx context.Context, id int64) (*domain.Topic, error) {
	return cache.First(ctx, r.cache, policy.Topic(id), policy.TTLTopics, func(ctx context.Context) (*domain.Topic, error) {
		row, err := backend.MaybeSingleInto[topicRow](ctx, r.db, backend.From(schema.Topics).Select("*").Where(backend.Eq("id", id)))
		if err != nil || row == nil {
			return nil, err
		}
		t := row.toDomain()
		return &t, nil
	})
}

// PopularTopics ranks topics through the database function. When the
// function is not installed the first topics by label are returned instead;
// any other failure is reported.
func (r *Repository) PopularTopics(ctx context.Context, limit int) ([]domain.Topic, error) {
	limit = policy.NormalizeLimit(limit)
	return cache.First(ctx, r.cache, policy.PopularTopics(limit), policy.TTLTopics, func(ctx context.Context) ([]domain.Topic, error) {
		rows, err := backend.RPCInto[topicRow](ctx, r.db, PopularTopicsFunc, map[string]any{"limit_count": limit})
		if backend.HasCode(err, backend.CodeUndefinedFunction) {
			r.logger.Warn().Err(err).Str("function", PopularTopicsFunc).Msg("popular topics function missing, using alphabetical order")
			rows, err = backend.SelectInto[topicRow](ctx, r.db, alphabetical().WithLimit(limit))
		}
		if err != nil {
			return nil, err
		}
		return toDomainAll(rows), nil
	})
}
