// nexchan/handlers/main_test.go
package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"nexchan/database"
	"nexchan/models"
	"nexchan/utils"

	"golang.org/x/crypto/bcrypt"
)

const testMasterKey = "test-master-key"

// MockApplication satisfies the App interface for handler tests.
type MockApplication struct {
	db         *database.DatabaseService
	storage    *fakeStore
	bursts     *models.BurstLimiter
	logger     *slog.Logger
	modKeyHash string
}

func (m *MockApplication) DB() *database.DatabaseService { return m.db }
func (m *MockApplication) Storage() models.ObjectStore   { return m.storage }
func (m *MockApplication) Bursts() *models.BurstLimiter  { return m.bursts }
func (m *MockApplication) Logger() *slog.Logger          { return m.logger }
func (m *MockApplication) ModKeyHash() string            { return m.modKeyHash }

// fakeStore is an in-memory ObjectStore that records removals.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
	fail    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) PresignedUpload(_ context.Context, bucket, objectPath string, _ time.Duration) (string, error) {
	if f.fail {
		return "", fmt.Errorf("signing backend unavailable")
	}
	return "https://s3.test/upload/" + bucket + "/" + objectPath, nil
}

func (f *fakeStore) PublicURL(bucket, objectPath string) string {
	return "https://cdn.test/" + bucket + "/" + objectPath
}

func (f *fakeStore) Fetch(_ context.Context, bucket, objectPath string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[bucket+"/"+objectPath]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, objectPath)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Remove(_ context.Context, bucket, objectPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, bucket+"/"+objectPath)
	return nil
}

func (f *fakeStore) removedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

// newTestApp wires a fresh database, permissive burst limiter and fake
// object store behind the real router.
func newTestApp(t *testing.T) *MockApplication {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	dir, err := os.MkdirTemp("", "nexchan_test_handlers")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	dbPath := filepath.Join(dir, "test.db") + "?_journal_mode=WAL&_foreign_keys=on"
	ds, err := database.InitDB(dbPath, logger)
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(func() {
		ds.DB.Close()
		os.RemoveAll(dir)
	})

	hash, err := bcrypt.GenerateFromPassword([]byte(testMasterKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash test master key: %v", err)
	}

	return &MockApplication{
		db:         ds,
		storage:    newFakeStore(),
		bursts:     models.NewBurstLimiter(time.Millisecond, 1000),
		logger:     logger,
		modKeyHash: string(hash),
	}
}

// seedSession creates a profile and a live session token for it.
func seedSession(t *testing.T, app *MockApplication, userID, username string, role models.Role) string {
	t.Helper()
	if _, err := app.db.DB.Exec(
		"INSERT INTO profiles (id, username, avatar_path, role) VALUES (?, ?, '', ?)",
		userID, username, string(role)); err != nil {
		t.Fatalf("Failed to seed profile: %v", err)
	}
	token := "token-" + userID
	if _, err := app.db.DB.Exec(
		"INSERT INTO sessions (token_hash, user_id, expires_at) VALUES (?, ?, ?)",
		utils.HashToken(token), userID, utils.GetSQLTime().Add(time.Hour)); err != nil {
		t.Fatalf("Failed to seed session: %v", err)
	}
	return token
}

// doRequest runs one request through the full middleware chain.
func doRequest(t *testing.T, app *MockApplication, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.50:4242"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	SetupRouter(app).ServeHTTP(rec, req)
	return rec
}

func authHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
