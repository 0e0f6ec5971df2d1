// nexchan/database/threads.go
package database

import (
	"database/sql"
	"fmt"
	"strings"

	"nexchan/config"
	"nexchan/models"
)

const postColumns = "id, board_id, thread_id, board_post_id, subject, comment, image_path, user_id, created_at"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (models.Post, error) {
	var p models.Post
	var subject, comment, imagePath, userID sql.NullString
	err := row.Scan(&p.ID, &p.BoardID, &p.ThreadID, &p.BoardPostID, &subject, &comment, &imagePath, &userID, &p.CreatedAt)
	if err != nil {
		return p, err
	}
	p.Subject = subject.String
	p.Comment = comment.String
	p.ImagePath = imagePath.String
	p.UserID = userID.String
	return p, nil
}

// GetBoardThreads materializes the board preview list: up to limit threads
// ordered by most recent reply activity, each with its OP, the latest few
// replies, reply counters and the profiles of every involved identity.
func (ds *DatabaseService) GetBoardThreads(slug string, page, limit int) (*models.BoardPage, error) {
	board, err := ds.GetBoardBySlug(slug)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	var total int
	if err := ds.DB.QueryRow("SELECT COUNT(*) FROM posts WHERE board_id = ? AND thread_id = id", board.ID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count threads: %w", err)
	}

	rows, err := ds.DB.Query(`
		SELECT `+postColumns+` FROM posts
		WHERE board_id = ? AND thread_id = id
		ORDER BY bump DESC, id DESC
		LIMIT ? OFFSET ?`, board.ID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in GetBoardThreads", "error", err)
		}
	}()

	var threads []models.ThreadPreview
	for rows.Next() {
		op, err := scanPost(rows)
		if err != nil {
			ds.logger.Error("Failed to scan OP row", "error", err)
			continue
		}
		threads = append(threads, models.ThreadPreview{
			Op:            op,
			LatestReplies: []models.Post{},
			Users:         make(map[string]models.UserProfile),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pageData := &models.BoardPage{
		Data: threads,
		Meta: models.PageMeta{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: (total + limit - 1) / limit,
		},
	}
	if len(threads) == 0 {
		pageData.Data = []models.ThreadPreview{}
		return pageData, nil
	}

	threadMap := make(map[int64]*models.ThreadPreview, len(threads))
	threadIDs := make([]interface{}, 0, len(threads))
	for i := range threads {
		threadMap[threads[i].Op.ID] = &threads[i]
		threadIDs = append(threadIDs, threads[i].Op.ID)
	}
	placeholders := "?" + strings.Repeat(",?", len(threadIDs)-1)

	// Denormalized counters for each previewed thread.
	countRows, err := ds.DB.Query(`
		SELECT thread_id, COUNT(*),
		       COALESCE(SUM(CASE WHEN image_path IS NOT NULL AND image_path != '' THEN 1 ELSE 0 END), 0)
		FROM posts
		WHERE thread_id IN (`+placeholders+`) AND id != thread_id
		GROUP BY thread_id`, threadIDs...)
	if err != nil {
		return nil, fmt.Errorf("failed to count replies: %w", err)
	}
	for countRows.Next() {
		var threadID int64
		var replies, imageReplies int
		if err := countRows.Scan(&threadID, &replies, &imageReplies); err == nil {
			if t, ok := threadMap[threadID]; ok {
				t.ReplyCount = replies
				t.ImageReplyCount = imageReplies
			}
		}
	}
	if err := countRows.Close(); err != nil {
		ds.logger.Error("Failed to close count rows in GetBoardThreads", "error", err)
	}

	ds.fetchAndAssignLatestReplies(threadMap, threadIDs, placeholders)

	// One profile lookup covers every identity on the page; the results
	// are distributed into per-thread maps.
	userIDSet := make(map[string][]int64)
	for id, t := range threadMap {
		if t.Op.UserID != "" {
			userIDSet[t.Op.UserID] = append(userIDSet[t.Op.UserID], id)
		}
		for _, r := range t.LatestReplies {
			if r.UserID != "" {
				userIDSet[r.UserID] = append(userIDSet[r.UserID], id)
			}
		}
	}
	userIDs := make([]string, 0, len(userIDSet))
	for id := range userIDSet {
		userIDs = append(userIDs, id)
	}
	profiles, err := ds.GetProfiles(userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	for userID, threadsOfUser := range userIDSet {
		profile, ok := profiles[userID]
		if !ok {
			continue
		}
		for _, threadID := range threadsOfUser {
			threadMap[threadID].Users[userID] = profile
		}
	}

	return pageData, nil
}

// fetchAndAssignLatestReplies attaches the most recent replies of each
// previewed thread, in creation order, bounded per thread.
func (ds *DatabaseService) fetchAndAssignLatestReplies(threadMap map[int64]*models.ThreadPreview, threadIDs []interface{}, placeholders string) {
	query := fmt.Sprintf(`
		WITH RankedReplies AS (
			SELECT %s, ROW_NUMBER() OVER (PARTITION BY thread_id ORDER BY id DESC) AS rn
			FROM posts
			WHERE thread_id IN (%s) AND id != thread_id
		)
		SELECT %s FROM RankedReplies WHERE rn <= %d ORDER BY thread_id, id ASC`,
		postColumns, placeholders, postColumns, config.LatestRepliesShown)
	rows, err := ds.DB.Query(query, threadIDs...)
	if err != nil {
		ds.logger.Error("Failed to fetch latest replies for board view", "error", err)
		return
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in fetchAndAssignLatestReplies", "error", err)
		}
	}()

	for rows.Next() {
		reply, err := scanPost(rows)
		if err != nil {
			ds.logger.Error("Failed to scan reply row", "error", err)
			continue
		}
		if t, ok := threadMap[reply.ThreadID]; ok {
			t.LatestReplies = append(t.LatestReplies, reply)
		}
	}
	if err := rows.Err(); err != nil {
		ds.logger.Error("Row error during latest reply scan", "error", err)
	}
}

// GetThread materializes the full-thread view: the OP, a page of replies
// in creation order, each post's backlink set and the profile lookup.
// Returns NotFound when id does not name an OP.
func (ds *DatabaseService) GetThread(opID int64, page, limit int) (*models.FullThread, error) {
	row := ds.DB.QueryRow("SELECT "+postColumns+" FROM posts WHERE id = ? AND thread_id = id", opID)
	op, err := scanPost(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.NotFoundf("post %d not found", opID)
		}
		return nil, fmt.Errorf("failed to load thread OP: %w", err)
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	var total int
	if err := ds.DB.QueryRow("SELECT COUNT(*) FROM posts WHERE thread_id = ? AND id != thread_id", opID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count replies: %w", err)
	}

	rows, err := ds.DB.Query(`
		SELECT `+postColumns+` FROM posts
		WHERE thread_id = ? AND id != thread_id
		ORDER BY id ASC
		LIMIT ? OFFSET ?`, opID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in GetThread", "error", err)
		}
	}()

	replies := []models.Post{}
	for rows.Next() {
		reply, err := scanPost(rows)
		if err != nil {
			ds.logger.Error("Failed to scan reply row", "error", err)
			continue
		}
		replies = append(replies, reply)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	thread := &models.FullThread{
		Op:              op,
		Replies:         replies,
		TotalReplyCount: total,
		Users:           make(map[string]models.UserProfile),
	}

	postMap := make(map[int64]*models.Post, len(replies)+1)
	postIDs := make([]interface{}, 0, len(replies)+1)
	postMap[thread.Op.ID] = &thread.Op
	postIDs = append(postIDs, thread.Op.ID)
	for i := range thread.Replies {
		postMap[thread.Replies[i].ID] = &thread.Replies[i]
		postIDs = append(postIDs, thread.Replies[i].ID)
	}

	ds.fetchAndAssignBacklinks(postIDs, func(targetID, sourceBoardPostID int64) {
		if post, ok := postMap[targetID]; ok {
			post.Backlinks = append(post.Backlinks, sourceBoardPostID)
		}
	})

	userIDSet := make(map[string]bool)
	if thread.Op.UserID != "" {
		userIDSet[thread.Op.UserID] = true
	}
	for _, r := range thread.Replies {
		if r.UserID != "" {
			userIDSet[r.UserID] = true
		}
	}
	userIDs := make([]string, 0, len(userIDSet))
	for id := range userIDSet {
		userIDs = append(userIDs, id)
	}
	profiles, err := ds.GetProfiles(userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	thread.Users = profiles

	return thread, nil
}
