// nexchan/database/posts.go
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"nexchan/config"
	"nexchan/models"
	"nexchan/utils"

	"github.com/mattn/go-sqlite3"
)

// CreatePostArgs is the input to the post writer. Exactly one of BoardSlug
// (new thread) or ThreadID (reply) must be set.
type CreatePostArgs struct {
	BoardSlug string
	ThreadID  int64
	Subject   string
	Comment   string
	ImagePath string
	Identity  models.Identity
}

// CreatePost atomically creates a thread or reply. It validates structural
// invariants, allocates the per-board post number, claims the image path
// and, for replies, indexes quote references, all inside one transaction.
// Any failure rolls the whole sequence back.
func (ds *DatabaseService) CreatePost(args CreatePostArgs) (*models.Post, error) {
	newThread := args.BoardSlug != ""
	if newThread == (args.ThreadID != 0) {
		return nil, models.Validationf("exactly one of boardSlug or threadId is required")
	}
	if newThread {
		if strings.TrimSpace(args.Subject) == "" {
			return nil, models.Validationf("a new thread requires a subject")
		}
		if args.ImagePath == "" {
			return nil, models.Validationf("a new thread requires an image")
		}
	} else {
		if args.Subject != "" {
			return nil, models.Validationf("a reply cannot carry a subject")
		}
		if strings.TrimSpace(args.Comment) == "" && args.ImagePath == "" {
			return nil, models.Validationf("a post needs a comment or an image")
		}
	}
	if args.ImagePath != "" && !validImagePath(args.ImagePath) {
		return nil, models.Validationf("invalid image path")
	}

	tx, err := ds.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			ds.logger.Error("Failed to rollback transaction in CreatePost", "error", rerr)
		}
	}()

	var boardID int64
	if newThread {
		err = tx.QueryRow("SELECT id FROM boards WHERE slug = ?", args.BoardSlug).Scan(&boardID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, models.NotFoundf("board %q not found", args.BoardSlug)
			}
			return nil, fmt.Errorf("failed to resolve board: %w", err)
		}
	} else {
		// The target must be a known OP, not an arbitrary post.
		err = tx.QueryRow("SELECT board_id FROM posts WHERE id = ? AND thread_id = id", args.ThreadID).Scan(&boardID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, models.NotFoundf("thread %d not found", args.ThreadID)
			}
			return nil, fmt.Errorf("failed to resolve thread: %w", err)
		}
	}

	boardPostID, err := allocateBoardPostID(tx, boardID)
	if err != nil {
		return nil, err
	}

	now := utils.GetSQLTime()
	post := &models.Post{
		BoardID:     boardID,
		BoardPostID: boardPostID,
		Subject:     args.Subject,
		Comment:     args.Comment,
		ImagePath:   args.ImagePath,
		UserID:      args.Identity.UserID,
		CreatedAt:   now,
	}

	var posterIP interface{}
	if args.Identity.IsAnonymous() {
		posterIP = args.Identity.IP
	}

	if newThread {
		// The self-referencing thread_id is fixed up once the row id is
		// known; the deferred foreign key holds until commit.
		res, err := tx.Exec(`
			INSERT INTO posts (board_id, thread_id, board_post_id, subject, comment, image_path, user_id, poster_ip, bump, created_at)
			VALUES (?, 0, ?, ?, ?, ?, ?, ?, ?, ?)`,
			boardID, boardPostID, nullIfEmpty(args.Subject), nullIfEmpty(args.Comment), nullIfEmpty(args.ImagePath),
			nullIfEmpty(args.Identity.UserID), posterIP, now, now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert new OP: %w", err)
		}
		post.ID, _ = res.LastInsertId()
		post.ThreadID = post.ID
		if _, err := tx.Exec("UPDATE posts SET thread_id = ? WHERE id = ?", post.ID, post.ID); err != nil {
			return nil, fmt.Errorf("failed to fix up OP thread id: %w", err)
		}
	} else {
		res, err := tx.Exec(`
			INSERT INTO posts (board_id, thread_id, board_post_id, subject, comment, image_path, user_id, poster_ip, created_at)
			VALUES (?, ?, ?, NULL, ?, ?, ?, ?, ?)`,
			boardID, args.ThreadID, boardPostID, nullIfEmpty(args.Comment), nullIfEmpty(args.ImagePath),
			nullIfEmpty(args.Identity.UserID), posterIP, now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert reply: %w", err)
		}
		post.ID, _ = res.LastInsertId()
		post.ThreadID = args.ThreadID

		// A new reply resurfaces its thread on the board page.
		if _, err := tx.Exec("UPDATE posts SET bump = ? WHERE id = ?", now, args.ThreadID); err != nil {
			return nil, fmt.Errorf("failed to bump thread: %w", err)
		}
	}

	if args.ImagePath != "" {
		if err := claimImage(tx, args.ImagePath, post.ID, now); err != nil {
			return nil, err
		}
	}

	if !newThread {
		if err := indexReferences(tx, post.ThreadID, post.ID, post.BoardPostID, args.Comment, ds.logger); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit new post: %w", err)
	}
	return post, nil
}

// DeletePost removes a post and, when it is an OP, the whole thread. Rows,
// backlink edges and image claims go together through the cascade. It
// returns the image paths whose stored objects the caller should remove;
// the rows are the durability boundary, object cleanup is compensation.
func (ds *DatabaseService) DeletePost(postID int64) ([]string, error) {
	tx, err := ds.DB.Begin()
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			ds.logger.Error("Failed to rollback transaction in DeletePost", "error", rerr)
		}
	}()

	var threadID int64
	var imagePath sql.NullString
	err = tx.QueryRow("SELECT thread_id, image_path FROM posts WHERE id = ?", postID).Scan(&threadID, &imagePath)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.NotFoundf("post %d not found", postID)
		}
		return nil, fmt.Errorf("failed to look up post: %w", err)
	}

	var imagePaths []string
	if threadID == postID {
		rows, err := tx.Query("SELECT image_path FROM posts WHERE thread_id = ? AND image_path IS NOT NULL AND image_path != ''", threadID)
		if err != nil {
			return nil, fmt.Errorf("failed to query images for thread deletion: %w", err)
		}
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err == nil {
				imagePaths = append(imagePaths, p)
			}
		}
		if err := rows.Close(); err != nil {
			ds.logger.Warn("Failed to close rows for thread images", "error", err)
		}
	} else if imagePath.Valid && imagePath.String != "" {
		imagePaths = append(imagePaths, imagePath.String)
	}

	if _, err := tx.Exec("DELETE FROM posts WHERE id = ?", postID); err != nil {
		return nil, fmt.Errorf("failed to delete post: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit post deletion: %w", err)
	}
	return imagePaths, nil
}

// allocateBoardPostID hands out the next per-board sequence number. The
// counter survives deletions, so numbers are never reused.
func allocateBoardPostID(tx *sql.Tx, boardID int64) (int64, error) {
	if _, err := tx.Exec("UPDATE boards SET next_post_number = next_post_number + 1 WHERE id = ?", boardID); err != nil {
		return 0, fmt.Errorf("failed to advance board post counter: %w", err)
	}
	var n int64
	if err := tx.QueryRow("SELECT next_post_number - 1 FROM boards WHERE id = ?", boardID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to read board post counter: %w", err)
	}
	return n, nil
}

// claimImage binds an uploaded path to exactly one post, ever. A second
// claim of the same path hits the primary key and is reported as a
// conflict, distinct from any not-found condition.
func claimImage(tx *sql.Tx, imagePath string, postID int64, now time.Time) error {
	_, err := tx.Exec("INSERT INTO image_claims (image_path, post_id, claimed_at) VALUES (?, ?, ?)", imagePath, postID, now)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return models.Conflictf("image %q is already attached to a post", imagePath)
		}
		return fmt.Errorf("failed to claim image: %w", err)
	}
	return nil
}

// validImagePath checks the upload path convention for the posts bucket.
func validImagePath(path string) bool {
	prefix := config.PostsBucket + "/"
	return strings.HasPrefix(path, prefix) && len(path) > len(prefix) && !strings.Contains(path, "..")
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
