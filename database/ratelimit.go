// nexchan/database/ratelimit.go
package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"nexchan/models"
	"nexchan/utils"
)

// PolicyProvider yields the sliding-window quota for an action type. The
// DatabaseService implementation reads the policy table on every call, so
// operators can change limits without a restart.
type PolicyProvider interface {
	PolicyFor(actionType string) (models.RateLimitPolicy, error)
}

// PolicyFor loads the policy for one action type. A missing or malformed
// key is a configuration error: the admission controller fails closed
// rather than silently allowing unlimited writes.
func (ds *DatabaseService) PolicyFor(actionType string) (models.RateLimitPolicy, error) {
	count, err := ds.policyInt(actionType + "_limit_count")
	if err != nil {
		return models.RateLimitPolicy{}, err
	}
	minutes, err := ds.policyInt(actionType + "_limit_minutes")
	if err != nil {
		return models.RateLimitPolicy{}, err
	}
	return models.RateLimitPolicy{
		ActionType: actionType,
		Count:      count,
		Window:     time.Duration(minutes) * time.Minute,
	}, nil
}

func (ds *DatabaseService) policyInt(key string) (int, error) {
	var value string
	err := ds.DB.QueryRow("SELECT value FROM rate_limit_policies WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, models.Configurationf("rate limit policy %q is not configured", key)
		}
		return 0, fmt.Errorf("failed to read rate limit policy %q: %w", key, err)
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, models.Configurationf("rate limit policy %q has invalid value %q", key, value)
	}
	return n, nil
}

// CheckAdmission decides whether the identity may perform the action now.
// It counts the identity's logged actions inside the policy window; at or
// over the limit the request is denied with the quota attached. Any
// failure to determine the count denies the request.
func (ds *DatabaseService) CheckAdmission(ident models.Identity, actionType string) error {
	policy, err := ds.PolicyFor(actionType)
	if err != nil {
		return err
	}

	since := utils.GetSQLTime().Add(-policy.Window)
	var n int
	if ident.IsAnonymous() {
		err = ds.DB.QueryRow(
			"SELECT COUNT(*) FROM action_logs WHERE action_type = ? AND ip_address = ? AND created_at >= ?",
			actionType, ident.IP, since).Scan(&n)
	} else {
		err = ds.DB.QueryRow(
			"SELECT COUNT(*) FROM action_logs WHERE action_type = ? AND user_id = ? AND created_at >= ?",
			actionType, ident.UserID, since).Scan(&n)
	}
	if err != nil {
		// Fail closed: an undeterminable count denies the write.
		return fmt.Errorf("failed to count actions for admission: %w", err)
	}

	if n >= policy.Count {
		return models.RateLimited(policy.Count, policy.Window)
	}
	return nil
}

// LogAction appends the audit entry that future admission checks count.
// Callers invoke it only after the guarded action actually succeeded, so
// failed requests do not consume quota.
func (ds *DatabaseService) LogAction(ident models.Identity, actionType string) error {
	var userID, ip interface{}
	if ident.IsAnonymous() {
		ip = ident.IP
	} else {
		userID = ident.UserID
	}
	_, err := ds.DB.Exec(
		"INSERT INTO action_logs (user_id, ip_address, action_type, created_at) VALUES (?, ?, ?, ?)",
		userID, ip, actionType, utils.GetSQLTime())
	if err != nil {
		return fmt.Errorf("failed to log action %q: %w", actionType, err)
	}
	return nil
}
