package testdb

import (
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/selivandex/marketmood/internal/adapters/database"
	"github.com/selivandex/marketmood/pkg/models"
)

// TestDB is a migrated PostgreSQL database emptied before and after each test
type TestDB struct {
	DB *database.DB
}

// Setup connects to TEST_DATABASE_URL and applies migrations. The test is
// skipped when the variable is unset or -short is given.
func Setup(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	conn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := database.RunMigrations(conn.DB, ""); err != nil {
		conn.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	tdb := &TestDB{DB: database.Wrap("postgres", conn)}
	tdb.Truncate(t)

	t.Cleanup(func() {
		tdb.Truncate(t)
		if err := tdb.DB.Close(); err != nil {
			t.Logf("warning: failed to close database: %v", err)
		}
	})

	return tdb
}

// Truncate empties every application table
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()
	tdb.Exec(t, `TRUNCATE content_items, daily_analysis RESTART IDENTITY`)
}

// Exec executes SQL against the test database
func (tdb *TestDB) Exec(t *testing.T, query string, args ...interface{}) {
	t.Helper()

	if _, err := tdb.DB.DB().Exec(query, args...); err != nil {
		t.Fatalf("failed to execute query: %v\nQuery: %s", err, query)
	}
}

// Count returns the number of rows in table
func (tdb *TestDB) Count(t *testing.T, table string) int {
	t.Helper()

	var n int
	if err := tdb.DB.DB().Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}

// SeedPost inserts a post created at createdAt
func (tdb *TestDB) SeedPost(t *testing.T, id, subreddit, title, body string, createdAt time.Time) {
	t.Helper()

	tdb.Exec(t, `
		INSERT INTO content_items (id, kind, subreddit, title, body, author, created_utc)
		VALUES ($1, $2, $3, $4, $5, 'tester', $6)
	`, id, models.ContentKindPost, subreddit, title, body, createdAt)
}

// SeedComment inserts a comment on postID created at createdAt
func (tdb *TestDB) SeedComment(t *testing.T, id, postID, subreddit, body string, createdAt time.Time) {
	t.Helper()

	tdb.Exec(t, `
		INSERT INTO content_items (id, kind, post_id, subreddit, body, author, created_utc)
		VALUES ($1, $2, $3, $4, $5, 'tester', $6)
	`, id, models.ContentKindComment, postID, subreddit, body, createdAt)
}
