package database

// migration is a single versioned schema change applied on startup.
type migration struct {
	Version uint
	Query   string
}

var allMigrations = []migration{
	{
		Version: 1,
		// bump is only meaningful on OP rows: it tracks the most recent
		// reply activity and drives board-page ordering.
		Query: `
			ALTER TABLE posts ADD COLUMN bump DATETIME;
			CREATE INDEX IF NOT EXISTS idx_posts_board_bump ON posts(board_id, bump DESC) WHERE thread_id = id;
		`,
	},
}

const migrationTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME NOT NULL
);
`
