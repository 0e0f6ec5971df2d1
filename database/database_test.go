// nexchan/database/database_test.go
package database

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nexchan/models"
	"nexchan/utils"
)

// setupTestDB creates a fresh SQLite database in a temp dir for testing.
func setupTestDB(t *testing.T) *DatabaseService {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	dir, err := os.MkdirTemp("", "nexchan_test_db")
	if err != nil {
		t.Fatalf("Failed to create temp dir for test DB: %v", err)
	}
	dbPath := filepath.Join(dir, "test.db") + "?_journal_mode=WAL&_foreign_keys=on"

	ds, err := InitDB(dbPath, logger)
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	t.Cleanup(func() {
		ds.DB.Close()
		os.RemoveAll(dir)
	})

	return ds
}

// seedProfile inserts a user profile for tests that need identities.
func seedProfile(t *testing.T, ds *DatabaseService, id, username string, role models.Role) {
	t.Helper()
	if _, err := ds.DB.Exec("INSERT INTO profiles (id, username, avatar_path, role) VALUES (?, ?, '', ?)", id, username, string(role)); err != nil {
		t.Fatalf("Failed to seed profile %s: %v", id, err)
	}
}

// setPolicy writes both keys of a rate-limit policy.
func setPolicy(t *testing.T, ds *DatabaseService, action string, count, minutes int) {
	t.Helper()
	for key, value := range map[string]int{
		action + "_limit_count":   count,
		action + "_limit_minutes": minutes,
	} {
		if _, err := ds.DB.Exec("INSERT INTO rate_limit_policies (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value", key, value); err != nil {
			t.Fatalf("Failed to set policy %s: %v", key, err)
		}
	}
}

func TestInitDB(t *testing.T) {
	ds := setupTestDB(t)

	var boardCount int
	if err := ds.DB.QueryRow("SELECT COUNT(*) FROM boards").Scan(&boardCount); err != nil {
		t.Fatalf("Failed to query boards: %v", err)
	}
	if boardCount == 0 {
		t.Error("Expected boards to be seeded, but count is 0")
	}

	var policyCount int
	if err := ds.DB.QueryRow("SELECT COUNT(*) FROM rate_limit_policies").Scan(&policyCount); err != nil {
		t.Fatalf("Failed to query rate limit policies: %v", err)
	}
	if policyCount == 0 {
		t.Error("Expected rate limit policies to be seeded, but count is 0")
	}
}

func TestMigrations(t *testing.T) {
	ds := setupTestDB(t)

	// The bump column is added by migration version 1.
	rows, err := ds.DB.Query("SELECT bump FROM posts LIMIT 1")
	if err != nil {
		t.Fatalf("Migration test failed. Could not query for bump column: %v", err)
	}
	rows.Close()

	var version int
	if err := ds.DB.QueryRow("SELECT version FROM schema_migrations WHERE version = 1").Scan(&version); err != nil {
		t.Fatalf("Expected migration version 1 to be recorded: %v", err)
	}
}

func TestGetBoardBySlug(t *testing.T) {
	ds := setupTestDB(t)

	board, err := ds.GetBoardBySlug("b")
	if err != nil {
		t.Fatalf("Expected seeded board 'b' to resolve: %v", err)
	}
	if board.Slug != "b" {
		t.Errorf("Expected slug 'b', got %q", board.Slug)
	}

	_, err = ds.GetBoardBySlug("nope")
	if models.KindOf(err) != models.KindNotFound {
		t.Errorf("Expected NotFound for unknown slug, got %v", err)
	}
}

func TestLookupSession(t *testing.T) {
	ds := setupTestDB(t)
	seedProfile(t, ds, "user-1", "alice", models.RoleModerator)

	tokenHash := utils.HashToken("secret-token")
	if _, err := ds.DB.Exec("INSERT INTO sessions (token_hash, user_id, expires_at) VALUES (?, ?, ?)",
		tokenHash, "user-1", utils.GetSQLTime().Add(time.Hour)); err != nil {
		t.Fatalf("Failed to seed session: %v", err)
	}

	userID, role, ok := ds.LookupSession(tokenHash)
	if !ok {
		t.Fatal("Expected session lookup to succeed")
	}
	if userID != "user-1" || role != models.RoleModerator {
		t.Errorf("Unexpected session identity: %s / %s", userID, role)
	}

	if _, _, ok := ds.LookupSession(utils.HashToken("wrong-token")); ok {
		t.Error("Expected lookup of unknown token to fail")
	}

	expiredHash := utils.HashToken("expired-token")
	if _, err := ds.DB.Exec("INSERT INTO sessions (token_hash, user_id, expires_at) VALUES (?, ?, ?)",
		expiredHash, "user-1", utils.GetSQLTime().Add(-time.Hour)); err != nil {
		t.Fatalf("Failed to seed expired session: %v", err)
	}
	if _, _, ok := ds.LookupSession(expiredHash); ok {
		t.Error("Expected lookup of expired token to fail")
	}
}
