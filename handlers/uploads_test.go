// nexchan/handlers/uploads_test.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"nexchan/config"
	"nexchan/models"
)

func grantBody(fileType string) []byte {
	body, _ := json.Marshal(map[string]string{"fileType": fileType})
	return body
}

func TestHandleUploadGrantPosts(t *testing.T) {
	app := newTestApp(t)

	rec := doRequest(t, app, "POST", "/uploads/posts", grantBody("image/png"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var grant models.UploadGrant
	if err := json.Unmarshal(rec.Body.Bytes(), &grant); err != nil {
		t.Fatalf("Failed to decode grant: %v", err)
	}
	if !strings.HasPrefix(grant.Path, "posts/") {
		t.Errorf("Expected a posts-prefixed path, got %q", grant.Path)
	}
	if grant.SignedUploadURL == "" || !strings.Contains(grant.SignedUploadURL, grant.Path) {
		t.Errorf("Expected a signed URL for the granted path, got %q", grant.SignedUploadURL)
	}
	if grant.ExpiresIn != int(config.UploadGrantTTL.Seconds()) {
		t.Errorf("Expected expiry %d, got %d", int(config.UploadGrantTTL.Seconds()), grant.ExpiresIn)
	}
	if grant.RequiredHeaders["Content-Type"] != "image/png" {
		t.Errorf("Expected the declared content type pinned, got %v", grant.RequiredHeaders)
	}

	// Two grants never share a path.
	rec = doRequest(t, app, "POST", "/uploads/posts", grantBody("image/png"), nil)
	var second models.UploadGrant
	json.Unmarshal(rec.Body.Bytes(), &second)
	if second.Path == grant.Path {
		t.Errorf("Expected a fresh path per grant, got %q twice", grant.Path)
	}
}

func TestHandleUploadGrantFileTypes(t *testing.T) {
	app := newTestApp(t)
	token := seedSession(t, app, "user-up", "uppy", models.RoleUser)

	testCases := []struct {
		name     string
		bucket   string
		fileType string
		headers  map[string]string
		want     int
	}{
		{"Posts gif allowed", "posts", "image/gif", nil, http.StatusOK},
		{"Posts webp rejected", "posts", "image/webp", nil, http.StatusBadRequest},
		{"Posts text rejected", "posts", "text/plain", nil, http.StatusBadRequest},
		{"Avatars webp allowed", "avatars", "image/webp", authHeader(token), http.StatusOK},
		{"Avatars svg rejected", "avatars", "image/svg+xml", authHeader(token), http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, app, "POST", "/uploads/"+tc.bucket, grantBody(tc.fileType), tc.headers)
			if rec.Code != tc.want {
				t.Errorf("Expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandleUploadGrantAvatars(t *testing.T) {
	app := newTestApp(t)

	// Anonymous clients cannot touch the avatars bucket.
	rec := doRequest(t, app, "POST", "/uploads/avatars", grantBody("image/png"), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for anonymous avatar grant, got %d", rec.Code)
	}

	token := seedSession(t, app, "user-av", "avatarist", models.RoleUser)
	rec = doRequest(t, app, "POST", "/uploads/avatars", grantBody("image/png"), authHeader(token))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var grant models.UploadGrant
	if err := json.Unmarshal(rec.Body.Bytes(), &grant); err != nil {
		t.Fatalf("Failed to decode grant: %v", err)
	}
	// The path is pinned to the user so a re-upload overwrites in place.
	if grant.Path != "avatars/user-av" {
		t.Errorf("Expected path avatars/user-av, got %q", grant.Path)
	}

	var logged int
	app.db.DB.QueryRow(
		"SELECT COUNT(*) FROM action_logs WHERE user_id = 'user-av' AND action_type = ?",
		config.ActionAvatarUpload).Scan(&logged)
	if logged != 1 {
		t.Errorf("Expected one avatar_upload audit row, got %d", logged)
	}
}

func TestHandleUploadGrantAvatarQuota(t *testing.T) {
	app := newTestApp(t)
	token := seedSession(t, app, "user-q", "quoted", models.RoleUser)

	if _, err := app.db.DB.Exec(
		"UPDATE rate_limit_policies SET value = '1' WHERE key = ?",
		config.ActionAvatarUpload+"_limit_count"); err != nil {
		t.Fatalf("Failed to tighten policy: %v", err)
	}

	if rec := doRequest(t, app, "POST", "/uploads/avatars", grantBody("image/png"), authHeader(token)); rec.Code != http.StatusOK {
		t.Fatalf("First grant under quota failed: %d", rec.Code)
	}
	rec := doRequest(t, app, "POST", "/uploads/avatars", grantBody("image/png"), authHeader(token))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 at quota, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleUploadGrantUnknownBucket(t *testing.T) {
	app := newTestApp(t)

	rec := doRequest(t, app, "POST", "/uploads/secrets", grantBody("image/png"), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown bucket, got %d", rec.Code)
	}
}

func TestHandleUploadGrantStorageFailure(t *testing.T) {
	app := newTestApp(t)
	app.storage.fail = true

	rec := doRequest(t, app, "POST", "/uploads/posts", grantBody("image/png"), nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500 when signing fails, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Storage backend error") {
		t.Errorf("Expected the masked storage message, got %s", rec.Body.String())
	}
}
