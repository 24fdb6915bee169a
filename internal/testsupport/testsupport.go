// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pagesense/internal/events"
	"pagesense/internal/sessions"
	"pagesense/internal/store"
	"pagesense/internal/websites"
)

var (
	testDBCache   = make(map[string]*gorm.DB)
	testDBCacheMu sync.Mutex
)

func allModels() []any {
	return []any{
		&websites.Website{},
		&websites.Config{},
		&events.Event{},
		&sessions.Session{},
		&events.RollupMinute{},
		&events.DailyVisitor{},
		&events.DaySummary{},
	}
}

// SetupTestDB returns an in-memory database with every model migrated.
// The database is named after the root test so parallel subtests share one
// connection, and cache=shared keeps it alive across gorm's pool.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	defer testDBCacheMu.Unlock()
	if db, ok := testDBCache[rootName]; ok {
		return db
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", rootName)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(allModels()...))

	testDBCache[rootName] = db
	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
	})
	return db
}

// SetupTestStore returns a Store backed by an in-process redis and the
// miniredis handle for clock control in window tests.
func SetupTestStore(t *testing.T) (*store.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewWithClient(rdb)
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}

// CreateTestWebsite inserts a website with its default config and returns it.
func CreateTestWebsite(t *testing.T, db *gorm.DB, domains ...string) *websites.Website {
	t.Helper()

	if len(domains) == 0 {
		domains = []string{"example.com"}
	}
	website := &websites.Website{
		Name:     domains[0],
		Timezone: "UTC",
	}
	require.NoError(t, website.SetDomains(domains))
	require.NoError(t, db.Create(website).Error)

	cfg := websites.DefaultConfig(website.ID)
	require.NoError(t, db.Create(&cfg).Error)
	return website
}
