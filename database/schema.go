package database

const schema = `
CREATE TABLE IF NOT EXISTS boards (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slug TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	description TEXT DEFAULT '',
	next_post_number INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	avatar_path TEXT DEFAULT '',
	role TEXT NOT NULL DEFAULT 'USER'
);
-- Sessions are issued by the external auth collaborator; this core only
-- resolves bearer tokens against them. Tokens are stored hashed.
CREATE TABLE IF NOT EXISTS sessions (
	token_hash TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	expires_at DATETIME NOT NULL,
	FOREIGN KEY (user_id) REFERENCES profiles(id) ON DELETE CASCADE
);
-- A post with thread_id == id is an OP; deleting it cascades to every
-- reply in the thread. The self-reference is deferred so an OP row can be
-- fixed up to point at itself inside the creating transaction.
CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	board_id INTEGER NOT NULL,
	thread_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE DEFERRABLE INITIALLY DEFERRED,
	board_post_id INTEGER NOT NULL,
	subject TEXT,
	comment TEXT,
	image_path TEXT,
	user_id TEXT,
	poster_ip TEXT,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (board_id) REFERENCES boards(id) ON DELETE CASCADE,
	UNIQUE (board_id, board_post_id)
);
CREATE TABLE IF NOT EXISTS backlinks (
	source_post_id INTEGER NOT NULL,
	target_post_id INTEGER NOT NULL,
	thread_id INTEGER NOT NULL,
	source_board_post_id INTEGER NOT NULL,
	target_board_post_id INTEGER NOT NULL,
	PRIMARY KEY (source_post_id, target_post_id),
	FOREIGN KEY (source_post_id) REFERENCES posts(id) ON DELETE CASCADE,
	FOREIGN KEY (target_post_id) REFERENCES posts(id) ON DELETE CASCADE
);
-- One-time binding of an uploaded image path to a post. The primary key
-- is what makes a second claim a conflict.
CREATE TABLE IF NOT EXISTS image_claims (
	image_path TEXT PRIMARY KEY,
	post_id INTEGER NOT NULL,
	claimed_at DATETIME NOT NULL,
	FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE
);
-- Append-only evidence for sliding-window admission. Never updated or
-- deleted by this core; pruning is an operator concern.
CREATE TABLE IF NOT EXISTS action_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT,
	ip_address TEXT,
	action_type TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
-- Hot-reloadable rate-limit configuration, keyed
-- "{action}_limit_count" / "{action}_limit_minutes".
CREATE TABLE IF NOT EXISTS rate_limit_policies (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

-- --- INDEXES ---
CREATE INDEX IF NOT EXISTS idx_posts_thread ON posts(thread_id);
CREATE INDEX IF NOT EXISTS idx_posts_board_op ON posts(board_id) WHERE thread_id = id;
CREATE INDEX IF NOT EXISTS idx_backlinks_target ON backlinks(target_post_id);
CREATE INDEX IF NOT EXISTS idx_action_logs_window ON action_logs(action_type, created_at);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`
