package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clip-relay/internal/domain"
)

// Postgres реализует хранилище расписания и журнал публикаций на pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.ConfigRepo = (*Postgres)(nil)
var _ domain.PublicationLogRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// GetPublicationConfig читает единственное правило расписания.
func (p *Postgres) GetPublicationConfig(ctx context.Context) (domain.PublicationConfig, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var cfg domain.PublicationConfig
	row := p.pool.QueryRow(ctx, `
		SELECT frequency, times, interval_days, timezone
		FROM publication_config
		WHERE id = 1`)
	var frequency string
	if err := row.Scan(&frequency, &cfg.Times, &cfg.Interval, &cfg.Timezone); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PublicationConfig{}, fmt.Errorf("%w: правило расписания не задано", domain.ErrInvalidConfig)
		}
		return domain.PublicationConfig{}, fmt.Errorf("чтение расписания: %w", err)
	}
	cfg.Frequency = domain.Frequency(frequency)
	return cfg, nil
}

// UpdatePublicationConfig перезаписывает правило расписания после валидации.
func (p *Postgres) UpdatePublicationConfig(ctx context.Context, cfg domain.PublicationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx, `
		INSERT INTO publication_config (id, frequency, times, interval_days, timezone, updated_at)
		VALUES (1, $1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE
		SET frequency = EXCLUDED.frequency,
		    times = EXCLUDED.times,
		    interval_days = EXCLUDED.interval_days,
		    timezone = EXCLUDED.timezone,
		    updated_at = now()`,
		string(cfg.Frequency), cfg.Times, cfg.Interval, cfg.Timezone)
	if err != nil {
		return fmt.Errorf("обновление расписания: %w", err)
	}
	return nil
}

// SavePublication добавляет запись в журнал публикаций.
func (p *Postgres) SavePublication(ctx context.Context, rec domain.PublicationRecord) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx, `
		INSERT INTO publication_log (item_id, url, platform, media_id, permalink, published_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ItemID, rec.URL, string(rec.Platform), rec.MediaID, rec.Permalink, rec.PublishedAt)
	if err != nil {
		return fmt.Errorf("запись журнала публикаций: %w", err)
	}
	return nil
}
