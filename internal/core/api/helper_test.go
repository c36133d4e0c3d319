package api

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solatis/logview/internal/core/config"
	"github.com/solatis/logview/internal/core/db"
	"github.com/solatis/logview/internal/rules"
)

const testLog = `2020-01-01T00:00:00 service=db connection opened
continuation line
2020-01-01T00:00:02 service=db DEBUG pool stats
2020-01-01T00:00:03 service=api ERROR request failed
`

// testViewJSON keeps three of the four lines of testLog.
const testViewJSON = `{"operations": [
  {"if": {
    "match": {"expression": {"record": {}}, "pattern": "^(?P<time>\\S+) service=(?P<service>\\S+) (?P<message>.*)$"},
    "then": [{"colorBy": {"variable": "service"}}],
    "else": [{"set": {"target": "time", "expression": {"lastVariableValue": "time"}}}]
  }},
  {"if": {
    "match": {"expression": {"record": {}}, "pattern": "\\bDEBUG\\b"},
    "then": [{"skip": {}}]
  }}
]}`

func testConfig(t *testing.T) config.WebConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte(testLog), 0o600))
	return config.WebConfig{
		LogFile:        path,
		MaxRecords:     1000,
		RequestTimeout: 5 * time.Second,
		MaxBodyBytes:   1 << 20,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestService builds a service over testLog. With stored set, stored
// views are backed by a migrated in-memory SQLite database.
func newTestService(t *testing.T, cfg config.WebConfig, stored bool) *QueryService {
	t.Helper()
	var views *db.ViewStore
	if stored {
		conn, err := db.Open("sqlite::memory:")
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		_, err = db.MigrateUp(conn)
		require.NoError(t, err)
		q, err := db.LoadQueries(conn)
		require.NoError(t, err)
		views = db.NewViewStore(q)
	}

	engine := rules.NewEngine(rules.WithLogger(quietLogger()))
	svc, err := NewQueryService(engine, views, cfg, quietLogger())
	require.NoError(t, err)
	return svc
}
