// nexchan/database/database.go
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"nexchan/config"
	"nexchan/models"
	"nexchan/utils"

	_ "github.com/mattn/go-sqlite3"
)

// DatabaseService is the central struct for all database operations.
type DatabaseService struct {
	DB     *sql.DB
	logger *slog.Logger
}

// InitDB connects to the database, runs migrations, and seeds default data.
func InitDB(dataSourceName string, logger *slog.Logger) (*DatabaseService, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, err
	}

	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to execute base schema: %w", err)
	}
	if _, err = db.Exec(migrationTable); err != nil {
		return nil, fmt.Errorf("failed to create migration table: %w", err)
	}
	if err := runMigrations(db, logger); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	// Seed database if empty
	var boardCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM boards").Scan(&boardCount); err == nil && boardCount == 0 {
		_, err = db.Exec("INSERT INTO boards (slug, name, description) VALUES ('b', 'Random', 'The anything-goes board.')")
		if err != nil {
			return nil, fmt.Errorf("failed to seed boards: %w", err)
		}
	}
	var policyCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM rate_limit_policies").Scan(&policyCount); err == nil && policyCount == 0 {
		defaults := map[string]string{
			config.ActionAnonCreatePost + "_limit_count":   "5",
			config.ActionAnonCreatePost + "_limit_minutes": "5",
			config.ActionAuthCreatePost + "_limit_count":   "10",
			config.ActionAuthCreatePost + "_limit_minutes": "5",
			config.ActionAvatarUpload + "_limit_count":     "3",
			config.ActionAvatarUpload + "_limit_minutes":   "60",
		}
		for key, value := range defaults {
			if _, err := db.Exec("INSERT INTO rate_limit_policies (key, value) VALUES (?, ?)", key, value); err != nil {
				return nil, fmt.Errorf("failed to seed rate limit policies: %w", err)
			}
		}
	}

	logger.Info("Database initialized.")

	return &DatabaseService{
		DB:     db,
		logger: logger,
	}, nil
}

// runMigrations applies all un-applied migrations.
func runMigrations(db *sql.DB, logger *slog.Logger) error {
	var latestVersion uint
	err := db.QueryRow("SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1").Scan(&latestVersion)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("could not get db version: %w", err)
	}

	logger.Info("Current database schema version", "version", latestVersion)

	for _, m := range allMigrations {
		if m.Version > latestVersion {
			logger.Info("Applying migration", "version", m.Version)
			tx, err := db.Begin()
			if err != nil {
				return err
			}

			if _, err := tx.Exec(m.Query); err != nil {
				if rerr := tx.Rollback(); rerr != nil {
					logger.Error("Failed to rollback migration", "version", m.Version, "error", rerr)
				}
				return fmt.Errorf("failed to apply migration v%d: %w", m.Version, err)
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", m.Version, utils.GetSQLTime()); err != nil {
				if rerr := tx.Rollback(); rerr != nil {
					logger.Error("Failed to rollback migration record", "version", m.Version, "error", rerr)
				}
				return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
			}

			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit migration v%d: %w", m.Version, err)
			}
		}
	}
	return nil
}

// GetBoardBySlug resolves a board by its immutable slug.
func (ds *DatabaseService) GetBoardBySlug(slug string) (*models.Board, error) {
	var b models.Board
	err := ds.DB.QueryRow("SELECT id, slug, name, description FROM boards WHERE slug = ?", slug).
		Scan(&b.ID, &b.Slug, &b.Name, &b.Description)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.NotFoundf("board %q not found", slug)
		}
		return nil, fmt.Errorf("db error getting board %q: %w", slug, err)
	}
	return &b, nil
}

// ListBoards returns all boards ordered by name.
func (ds *DatabaseService) ListBoards() ([]models.Board, error) {
	rows, err := ds.DB.Query("SELECT id, slug, name, description FROM boards ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in ListBoards", "error", err)
		}
	}()

	var boards []models.Board
	for rows.Next() {
		var b models.Board
		if err := rows.Scan(&b.ID, &b.Slug, &b.Name, &b.Description); err != nil {
			ds.logger.Error("Failed to scan board row", "error", err)
			continue
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

// LookupSession resolves a hashed bearer token to a user identity. A
// missing or expired session yields ok == false, never an error.
func (ds *DatabaseService) LookupSession(tokenHash string) (userID string, role models.Role, ok bool) {
	var roleStr string
	err := ds.DB.QueryRow(`
		SELECT s.user_id, p.role FROM sessions s
		JOIN profiles p ON p.id = s.user_id
		WHERE s.token_hash = ? AND s.expires_at > ?`,
		tokenHash, utils.GetSQLTime()).Scan(&userID, &roleStr)
	if err != nil {
		if err != sql.ErrNoRows {
			ds.logger.Error("Failed to query session", "error", err)
		}
		return "", "", false
	}
	return userID, models.ParseRole(roleStr), true
}

// GetProfiles fetches lightweight profiles for a set of user ids.
func (ds *DatabaseService) GetProfiles(userIDs []string) (map[string]models.UserProfile, error) {
	profiles := make(map[string]models.UserProfile)
	if len(userIDs) == 0 {
		return profiles, nil
	}
	args := make([]interface{}, 0, len(userIDs))
	for _, id := range userIDs {
		args = append(args, id)
	}
	query := "SELECT id, username, avatar_path, role FROM profiles WHERE id IN (?" + strings.Repeat(",?", len(args)-1) + ")"
	rows, err := ds.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in GetProfiles", "error", err)
		}
	}()

	for rows.Next() {
		var p models.UserProfile
		var roleStr string
		if err := rows.Scan(&p.ID, &p.Username, &p.AvatarPath, &roleStr); err != nil {
			ds.logger.Error("Failed to scan profile row", "error", err)
			continue
		}
		p.Role = models.ParseRole(roleStr)
		profiles[p.ID] = p
	}
	return profiles, rows.Err()
}

// fetchAndAssignBacklinks loads the reverse-reference sets for a group of
// posts and hands each edge to assignFunc keyed by the target's global id.
func (ds *DatabaseService) fetchAndAssignBacklinks(postIDs []interface{}, assignFunc func(targetID, sourceBoardPostID int64)) {
	if len(postIDs) == 0 {
		return
	}
	query := "SELECT target_post_id, source_board_post_id FROM backlinks WHERE target_post_id IN (?" +
		strings.Repeat(",?", len(postIDs)-1) + ") ORDER BY source_board_post_id ASC"
	rows, err := ds.DB.Query(query, postIDs...)
	if err != nil {
		ds.logger.Error("Failed to query backlinks", "error", err)
		return
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in fetchAndAssignBacklinks", "error", err)
		}
	}()
	for rows.Next() {
		var targetID, sourceBoardPostID int64
		if err := rows.Scan(&targetID, &sourceBoardPostID); err == nil {
			assignFunc(targetID, sourceBoardPostID)
		} else {
			ds.logger.Error("Failed to scan backlink row", "error", err)
		}
	}
	if err := rows.Err(); err != nil {
		ds.logger.Error("Row error during backlink scan", "error", err)
	}
}
