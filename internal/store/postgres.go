package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voyagen/plutotv/internal/models"
)

// Postgres implements Store using PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store from a DSN. Caller must call Close when done.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping checks the database connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// --- providers ---

func (p *Postgres) UpsertProvider(ctx context.Context, info models.ProviderInfo) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO providers (id, name, supports_channels, supports_guide, channels_refresh, guide_refresh)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name, supports_channels = EXCLUDED.supports_channels,
		   supports_guide = EXCLUDED.supports_guide, channels_refresh = EXCLUDED.channels_refresh,
		   guide_refresh = EXCLUDED.guide_refresh`,
		info.ID, info.Name, info.SupportsChannels, info.SupportsGuide, info.ChannelsRefresh, info.GuideRefresh,
	)
	if err != nil {
		return fmt.Errorf("UpsertProvider: %w", err)
	}
	return nil
}

func (p *Postgres) MarkSynced(ctx context.Context, providerID, kind string, at time.Time) error {
	var column string
	switch kind {
	case models.SyncKindChannels:
		column = "channels_synced_at"
	case models.SyncKindGuide:
		column = "guide_synced_at"
	default:
		return fmt.Errorf("MarkSynced: unknown kind %q", kind)
	}
	tag, err := p.pool.Exec(ctx, `UPDATE providers SET `+column+` = $2 WHERE id = $1`, providerID, at)
	if err != nil {
		return fmt.Errorf("MarkSynced: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("MarkSynced %s: %w", providerID, ErrNotFound)
	}
	return nil
}

func (p *Postgres) ListProviders(ctx context.Context) ([]models.ProviderStatus, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, name, supports_channels, supports_guide, channels_refresh, guide_refresh,
		        channels_synced_at, guide_synced_at
		 FROM providers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ListProviders: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ProviderStatus, error) {
		var s models.ProviderStatus
		err := row.Scan(&s.ID, &s.Name, &s.SupportsChannels, &s.SupportsGuide,
			&s.ChannelsRefresh, &s.GuideRefresh, &s.ChannelsSyncedAt, &s.GuideSyncedAt)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("ListProviders: %w", err)
	}
	return out, nil
}

// --- channels ---

const channelColumns = `provider, id, name, number, title, call_sign, description, logo, channel_art, category, stream_url`

func scanChannel(row pgx.Row) (models.Channel, error) {
	var ch models.Channel
	err := row.Scan(&ch.Provider, &ch.ID, &ch.Name, &ch.Number, &ch.Title, &ch.CallSign,
		&ch.Description, &ch.Logo, &ch.ChannelArt, &ch.Category, &ch.StreamURL)
	return ch, err
}

func (p *Postgres) UpsertChannel(ctx context.Context, ch *models.Channel) error {
	if ch.Provider == "" {
		return fmt.Errorf("UpsertChannel %s: empty provider", ch.ID)
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO channels (`+channelColumns+`, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		 ON CONFLICT (provider, id) DO UPDATE SET
		   name = EXCLUDED.name, number = EXCLUDED.number, title = EXCLUDED.title,
		   call_sign = EXCLUDED.call_sign, description = EXCLUDED.description, logo = EXCLUDED.logo,
		   channel_art = EXCLUDED.channel_art, category = EXCLUDED.category,
		   stream_url = EXCLUDED.stream_url, updated_at = NOW()`,
		ch.Provider, ch.ID, ch.Name, ch.Number, ch.Title, ch.CallSign,
		ch.Description, ch.Logo, ch.ChannelArt, ch.Category, ch.StreamURL,
	)
	if err != nil {
		return fmt.Errorf("UpsertChannel: %w", err)
	}
	return nil
}

func (p *Postgres) RemoveStaleChannels(ctx context.Context, providerID string, keepIDs []string) (int64, error) {
	if keepIDs == nil {
		keepIDs = []string{}
	}
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM channels WHERE provider = $1 AND NOT (id = ANY($2))`,
		providerID, keepIDs,
	)
	if err != nil {
		return 0, fmt.Errorf("RemoveStaleChannels: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) GetChannel(ctx context.Context, providerID, channelID string) (*models.Channel, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE provider = $1 AND id = $2`,
		providerID, channelID)
	ch, err := scanChannel(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetChannel: %w", err)
	}
	return &ch, nil
}

func (p *Postgres) ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, int, error) {
	w := channelWhere(filter)
	var total int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM channels`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListChannels count: %w", err)
	}
	page, args := w.page(filter.Limit, filter.Offset)
	rows, err := p.pool.Query(ctx,
		`SELECT `+channelColumns+` FROM channels`+w.String()+` ORDER BY provider, number, id`+page,
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListChannels: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Channel, error) {
		return scanChannel(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("ListChannels: %w", err)
	}
	return out, total, nil
}

func (p *Postgres) ListCategories(ctx context.Context, providerID string) ([]models.Category, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT category, provider, COUNT(*) FROM channels
		 WHERE category <> '' AND ($1 = '' OR provider = $1)
		 GROUP BY provider, category ORDER BY provider, category`,
		providerID)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Category, error) {
		var c models.Category
		err := row.Scan(&c.Name, &c.Provider, &c.Channels)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("ListCategories: %w", err)
	}
	return out, nil
}

// --- airings ---

const airingColumns = `source, id, channel_id, title, sub_title, description, start_time, stop_time,
	length, program_id, series_id, episode_number, is_movie, image, original_release_date,
	first_aired_date, is_new, is_previously_shown, categories, ratings`

func scanAiring(row pgx.Row) (models.Airing, error) {
	var a models.Airing
	err := row.Scan(&a.Source, &a.ID, &a.ChannelID, &a.Title, &a.SubTitle, &a.Description,
		&a.StartTime, &a.StopTime, &a.Length, &a.ProgramID, &a.SeriesID, &a.EpisodeNumber,
		&a.IsMovie, &a.Image, &a.OriginalReleaseDate, &a.FirstAiredDate, &a.IsNew,
		&a.IsPreviouslyShown, &a.Categories, &a.Ratings)
	return a, err
}

func (p *Postgres) UpsertAiring(ctx context.Context, a *models.Airing) error {
	categories := a.Categories
	if categories == nil {
		categories = []string{}
	}
	ratings := a.Ratings
	if ratings == nil {
		ratings = []models.Rating{}
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO airings (`+airingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		 ON CONFLICT (source, id) DO UPDATE SET
		   channel_id = EXCLUDED.channel_id, title = EXCLUDED.title, sub_title = EXCLUDED.sub_title,
		   description = EXCLUDED.description, start_time = EXCLUDED.start_time,
		   stop_time = EXCLUDED.stop_time, length = EXCLUDED.length, program_id = EXCLUDED.program_id,
		   series_id = EXCLUDED.series_id, episode_number = EXCLUDED.episode_number,
		   is_movie = EXCLUDED.is_movie, image = EXCLUDED.image,
		   original_release_date = EXCLUDED.original_release_date,
		   first_aired_date = EXCLUDED.first_aired_date, is_new = EXCLUDED.is_new,
		   is_previously_shown = EXCLUDED.is_previously_shown,
		   categories = EXCLUDED.categories, ratings = EXCLUDED.ratings`,
		a.Source, a.ID, a.ChannelID, a.Title, a.SubTitle, a.Description, a.StartTime, a.StopTime,
		a.Length, a.ProgramID, a.SeriesID, a.EpisodeNumber, a.IsMovie, a.Image, a.OriginalReleaseDate,
		a.FirstAiredDate, a.IsNew, a.IsPreviouslyShown, categories, ratings,
	)
	if err != nil {
		return fmt.Errorf("UpsertAiring: %w", err)
	}
	return nil
}

func (p *Postgres) ListAirings(ctx context.Context, filter AiringFilter) ([]models.Airing, int, error) {
	w := airingWhere(filter)
	var total int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM airings`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListAirings count: %w", err)
	}
	page, args := w.page(filter.Limit, filter.Offset)
	rows, err := p.pool.Query(ctx,
		`SELECT `+airingColumns+` FROM airings`+w.String()+` ORDER BY start_time, channel_id`+page,
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListAirings: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Airing, error) {
		return scanAiring(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("ListAirings: %w", err)
	}
	return out, total, nil
}

func (p *Postgres) DeleteAiringsBefore(ctx context.Context, providerID string, t time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM airings WHERE source = $1 AND stop_time < $2`, providerID, t)
	if err != nil {
		return 0, fmt.Errorf("DeleteAiringsBefore: %w", err)
	}
	return tag.RowsAffected(), nil
}
