// nexchan/database/ratelimit_test.go
package database

import (
	"errors"
	"testing"
	"time"

	"nexchan/config"
	"nexchan/models"
	"nexchan/utils"
)

func TestPolicyFor(t *testing.T) {
	ds := setupTestDB(t)

	policy, err := ds.PolicyFor(config.ActionAnonCreatePost)
	if err != nil {
		t.Fatalf("Failed to load seeded policy: %v", err)
	}
	if policy.Count <= 0 || policy.Window <= 0 {
		t.Errorf("Expected a positive seeded quota, got %+v", policy)
	}

	_, err = ds.PolicyFor("no_such_action")
	if models.KindOf(err) != models.KindConfiguration {
		t.Errorf("Expected Configuration error for missing policy, got %v", err)
	}

	if _, err := ds.DB.Exec("UPDATE rate_limit_policies SET value = 'banana' WHERE key = ?", config.ActionAnonCreatePost+"_limit_count"); err != nil {
		t.Fatalf("Failed to corrupt policy: %v", err)
	}
	_, err = ds.PolicyFor(config.ActionAnonCreatePost)
	if models.KindOf(err) != models.KindConfiguration {
		t.Errorf("Expected Configuration error for malformed policy, got %v", err)
	}
}

func TestPolicyHotReload(t *testing.T) {
	ds := setupTestDB(t)

	setPolicy(t, ds, config.ActionAnonCreatePost, 7, 30)
	policy, err := ds.PolicyFor(config.ActionAnonCreatePost)
	if err != nil {
		t.Fatalf("Failed to load updated policy: %v", err)
	}
	if policy.Count != 7 || policy.Window != 30*time.Minute {
		t.Errorf("Expected updated policy to apply without restart, got %+v", policy)
	}
}

func TestCheckAdmission(t *testing.T) {
	ds := setupTestDB(t)
	setPolicy(t, ds, config.ActionAnonCreatePost, 2, 60)

	ident := models.Identity{IP: "198.51.100.4"}

	for i := 0; i < 2; i++ {
		if err := ds.CheckAdmission(ident, config.ActionAnonCreatePost); err != nil {
			t.Fatalf("Request %d under quota was denied: %v", i+1, err)
		}
		if err := ds.LogAction(ident, config.ActionAnonCreatePost); err != nil {
			t.Fatalf("Failed to log action %d: %v", i+1, err)
		}
	}

	err := ds.CheckAdmission(ident, config.ActionAnonCreatePost)
	if models.KindOf(err) != models.KindRateLimited {
		t.Fatalf("Expected RateLimited at quota, got %v", err)
	}
	var rlErr *models.Error
	if !errors.As(err, &rlErr) || rlErr.Limit != 2 || rlErr.Window != 60*time.Minute {
		t.Errorf("Expected the quota attached to the denial, got %+v", rlErr)
	}
}

func TestCheckAdmissionWindowExpiry(t *testing.T) {
	ds := setupTestDB(t)
	setPolicy(t, ds, config.ActionAnonCreatePost, 1, 60)

	ident := models.Identity{IP: "198.51.100.5"}

	// An entry outside the window no longer counts.
	stale := utils.GetSQLTime().Add(-61 * time.Minute)
	if _, err := ds.DB.Exec(
		"INSERT INTO action_logs (ip_address, action_type, created_at) VALUES (?, ?, ?)",
		ident.IP, config.ActionAnonCreatePost, stale); err != nil {
		t.Fatalf("Failed to seed stale action log: %v", err)
	}

	if err := ds.CheckAdmission(ident, config.ActionAnonCreatePost); err != nil {
		t.Errorf("Expected stale entry to be ignored, got %v", err)
	}
}

func TestCheckAdmissionIdentityScoping(t *testing.T) {
	ds := setupTestDB(t)
	setPolicy(t, ds, config.ActionAuthCreatePost, 1, 60)

	seedProfile(t, ds, "user-a", "alice", models.RoleUser)
	seedProfile(t, ds, "user-b", "bob", models.RoleUser)

	userA := models.Identity{UserID: "user-a", Role: models.RoleUser, IP: "192.0.2.1"}
	userB := models.Identity{UserID: "user-b", Role: models.RoleUser, IP: "192.0.2.1"}

	if err := ds.LogAction(userA, config.ActionAuthCreatePost); err != nil {
		t.Fatalf("Failed to log action: %v", err)
	}

	if err := ds.CheckAdmission(userA, config.ActionAuthCreatePost); models.KindOf(err) != models.KindRateLimited {
		t.Errorf("Expected user A to be at quota, got %v", err)
	}
	// Same IP, different account: the user counter wins over the address.
	if err := ds.CheckAdmission(userB, config.ActionAuthCreatePost); err != nil {
		t.Errorf("Expected user B to be unaffected by user A's quota, got %v", err)
	}

	// The anonymous counter for that IP is likewise untouched.
	setPolicy(t, ds, config.ActionAnonCreatePost, 1, 60)
	anon := models.Identity{IP: "192.0.2.1"}
	if err := ds.CheckAdmission(anon, config.ActionAnonCreatePost); err != nil {
		t.Errorf("Expected anonymous quota to be separate from user quota, got %v", err)
	}
}
