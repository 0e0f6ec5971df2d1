// nexchan/config/config.go
package config

import "time"

const (
	AppVersion = "0.4.0"

	// Form & Post Limits
	MaxSubjectLen = 100
	MaxCommentLen = 8000

	// Read view defaults
	DefaultBoardPageLimit = 15
	MaxBoardPageLimit     = 50
	DefaultRepliesLimit   = 100
	MaxRepliesLimit       = 500
	LatestRepliesShown    = 3

	// Thumbnail proxy
	ThumbnailWidth  = 250
	ThumbnailHeight = 250

	// Upload grants
	UploadGrantTTL = 10 * time.Minute

	// Rate-limited action types. The per-action policy (count/window) lives
	// in the rate_limit_policies table and is read fresh on every request.
	ActionAnonCreatePost = "anon_create_post"
	ActionAuthCreatePost = "auth_create_post"
	ActionAvatarUpload   = "avatar_upload"

	// Logical bucket names. The real S3 bucket behind each is configured
	// through the environment.
	PostsBucket   = "posts"
	AvatarsBucket = "avatars"

	// Transport-level burst limiting defaults
	DefaultBurstEvery = "10s"
	DefaultBurstCount = 5
)

// PostUploadTypes lists the MIME types accepted for post image grants.
var PostUploadTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
}

// AvatarUploadTypes lists the MIME types accepted for avatar grants.
var AvatarUploadTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}
