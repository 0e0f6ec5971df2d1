// nexchan/database/backlinks.go
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
)

// A quote reference is ">>" immediately followed by the target's
// board-scoped post number, e.g. ">>42".
var quoteRefPattern = regexp.MustCompile(`>>(\d+)`)

// indexReferences parses a new reply's comment for quote references and
// records a reverse edge on every referenced post. Resolution is confined
// to the reply's own thread; self-references, malformed numbers and
// unknown targets are dropped without failing the write. Runs inside the
// post writer's transaction so edges become visible with the post itself.
func indexReferences(tx *sql.Tx, threadID, sourcePostID, sourceBoardPostID int64, comment string, logger *slog.Logger) error {
	matches := quoteRefPattern.FindAllStringSubmatch(comment, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[int64]bool, len(matches))
	for _, match := range matches {
		targetBoardPostID, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil || targetBoardPostID <= 0 {
			continue
		}
		if targetBoardPostID == sourceBoardPostID || seen[targetBoardPostID] {
			continue
		}
		seen[targetBoardPostID] = true

		var targetPostID int64
		err = tx.QueryRow("SELECT id FROM posts WHERE thread_id = ? AND board_post_id = ?", threadID, targetBoardPostID).Scan(&targetPostID)
		if err != nil {
			if err == sql.ErrNoRows {
				// Unknown or foreign-thread reference; not an edge.
				continue
			}
			return fmt.Errorf("failed to resolve quote reference >>%d: %w", targetBoardPostID, err)
		}

		// INSERT OR IGNORE gives set semantics: re-indexing the same
		// reply can never duplicate an edge.
		_, err = tx.Exec(`
			INSERT OR IGNORE INTO backlinks (source_post_id, target_post_id, thread_id, source_board_post_id, target_board_post_id)
			VALUES (?, ?, ?, ?, ?)`,
			sourcePostID, targetPostID, threadID, sourceBoardPostID, targetBoardPostID)
		if err != nil {
			return fmt.Errorf("failed to insert backlink to >>%d: %w", targetBoardPostID, err)
		}
		logger.Debug("Indexed quote reference", "source", sourceBoardPostID, "target", targetBoardPostID, "thread_id", threadID)
	}
	return nil
}
