package postgres

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_players_scores",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_rankings",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "add_bonus_flags",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: PLAYERS AND SCORES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS players (
    id BIGSERIAL PRIMARY KEY,
    telegram_id BIGINT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS scores (
    id BIGSERIAL PRIMARY KEY,
    player_id BIGINT NOT NULL REFERENCES players(id),
    game_number INTEGER NOT NULL,
    score INTEGER NOT NULL,
    max_score INTEGER NOT NULL,
    percentage NUMERIC(5,1) NOT NULL,
    rounds JSONB NOT NULL DEFAULT '[]'::jsonb,
    raw_text TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT scores_player_game_unique UNIQUE (player_id, game_number),
    CONSTRAINT valid_score CHECK (score >= 0 AND score <= max_score AND max_score > 0)
);

CREATE INDEX IF NOT EXISTS idx_scores_game_number ON scores(game_number);
CREATE INDEX IF NOT EXISTS idx_scores_created_at ON scores(created_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS scores;
DROP TABLE IF EXISTS players;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: DERIVED RANKING TABLES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS daily_rankings (
    id BIGSERIAL PRIMARY KEY,
    game_number INTEGER NOT NULL,
    player_id BIGINT NOT NULL REFERENCES players(id),
    rank INTEGER NOT NULL,
    points_awarded INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT daily_rankings_game_player_unique UNIQUE (game_number, player_id),
    CONSTRAINT valid_daily_rank CHECK (rank >= 1)
);

CREATE INDEX IF NOT EXISTS idx_daily_rankings_created_at ON daily_rankings(created_at);

CREATE TABLE IF NOT EXISTS weekly_points (
    id BIGSERIAL PRIMARY KEY,
    week_start DATE NOT NULL,
    player_id BIGINT NOT NULL REFERENCES players(id),
    total_points INTEGER NOT NULL DEFAULT 0,
    daily_wins INTEGER NOT NULL DEFAULT 0,
    highest_score INTEGER NOT NULL DEFAULT 0,
    bonus_points INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT weekly_points_week_player_unique UNIQUE (week_start, player_id)
);

CREATE TABLE IF NOT EXISTS weekly_awards (
    id BIGSERIAL PRIMARY KEY,
    week_start DATE NOT NULL,
    player_id BIGINT NOT NULL REFERENCES players(id),
    rank INTEGER NOT NULL,
    points_awarded INTEGER NOT NULL,
    bonus_points INTEGER NOT NULL DEFAULT 0,
    total_points INTEGER NOT NULL,
    highest_score INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT weekly_awards_week_player_unique UNIQUE (week_start, player_id),
    CONSTRAINT valid_award_rank CHECK (rank BETWEEN 1 AND 10)
);

CREATE INDEX IF NOT EXISTS idx_weekly_awards_week_start ON weekly_awards(week_start DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS weekly_awards;
DROP TABLE IF EXISTS weekly_points;
DROP TABLE IF EXISTS daily_rankings;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: EXPLICIT BONUS FLAGS
// ══════════════════════════════════════════════════════════════════════════════

// Award flags stay nullable: rows finalized before this migration keep NULL
// and their labels are read back from bonus_points.
const migration003Up = `
ALTER TABLE weekly_points
    ADD COLUMN IF NOT EXISTS most_wins_bonus BOOLEAN NOT NULL DEFAULT FALSE,
    ADD COLUMN IF NOT EXISTS high_score_bonus BOOLEAN NOT NULL DEFAULT FALSE;

ALTER TABLE weekly_awards
    ADD COLUMN IF NOT EXISTS most_wins_bonus BOOLEAN,
    ADD COLUMN IF NOT EXISTS high_score_bonus BOOLEAN;
`

const migration003Down = `
ALTER TABLE weekly_awards
    DROP COLUMN IF EXISTS high_score_bonus,
    DROP COLUMN IF EXISTS most_wins_bonus;

ALTER TABLE weekly_points
    DROP COLUMN IF EXISTS high_score_bonus,
    DROP COLUMN IF EXISTS most_wins_bonus;
`
