// nexchan/models/models.go
package models

import (
	"time"
)

// --- Core Data Models ---

type Board struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Post is an immutable record. ThreadID == ID marks the originating post
// of a thread; everything else in the thread is a reply pointing at it.
// The raw image path never leaves the server; read paths resolve it to a
// public URL instead.
type Post struct {
	ID          int64     `json:"id"`
	BoardID     int64     `json:"board_id"`
	ThreadID    int64     `json:"thread_id"`
	BoardPostID int64     `json:"board_post_id"`
	UserID      string    `json:"user_id,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	Comment     string    `json:"comment,omitempty"`
	ImagePath   string    `json:"-"`
	ImageURL    string    `json:"image_url,omitempty"`
	Backlinks   []int64   `json:"backlinks,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsOp reports whether the post originates its thread.
func (p *Post) IsOp() bool { return p.ThreadID == p.ID }

type UserProfile struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	AvatarPath string `json:"-"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	Role       Role   `json:"role"`
}

// ThreadPreview is the board-page read shape: the OP, a bounded window of
// the most recent replies and denormalized counters.
type ThreadPreview struct {
	Op              Post                   `json:"op"`
	ReplyCount      int                    `json:"reply_count"`
	ImageReplyCount int                    `json:"image_reply_count"`
	LatestReplies   []Post                 `json:"latest_replies"`
	Users           map[string]UserProfile `json:"users"`
}

type PageMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type BoardPage struct {
	Data []ThreadPreview `json:"data"`
	Meta PageMeta        `json:"meta"`
}

// FullThread is the single-thread read shape: the OP plus a page of replies
// in creation order, each carrying its resolved backlink set.
type FullThread struct {
	Op              Post                   `json:"op"`
	Replies         []Post                 `json:"replies"`
	TotalReplyCount int                    `json:"totalReplyCount"`
	Users           map[string]UserProfile `json:"users"`
}

// --- Identity & Authorization ---

// Role is the enumerated authorization level attached to a profile.
type Role string

const (
	RoleUser      Role = "USER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

// CanModerate reports whether the role grants moderation capabilities.
func (r Role) CanModerate() bool {
	return r == RoleModerator || r == RoleAdmin
}

// ParseRole maps a stored role string onto the enum, defaulting to USER.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleModerator:
		return RoleModerator
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// Identity attributes a request to exactly one actor: an authenticated
// user when a valid session is present, otherwise the client IP. A valid
// session always wins over the IP, even when both are available.
type Identity struct {
	UserID string
	Role   Role
	IP     string
}

func (i Identity) IsAnonymous() bool { return i.UserID == "" }

// --- Rate Limiting ---

// RateLimitPolicy is the sliding-window quota for one action type. It is
// loaded from the policy table on every admission check so operators can
// change limits without a restart.
type RateLimitPolicy struct {
	ActionType string
	Count      int
	Window     time.Duration
}

// --- Upload Grants ---

// UploadGrant is a single-use, bucket-scoped permission to upload one
// object out-of-band. The path is later claimed by exactly one post.
type UploadGrant struct {
	Path            string            `json:"path"`
	SignedUploadURL string            `json:"signedUploadUrl"`
	ExpiresIn       int               `json:"expiresIn"`
	RequiredHeaders map[string]string `json:"requiredHeaders"`
}
