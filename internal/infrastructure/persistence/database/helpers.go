package database

import (
	"net/url"
	"time"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
)

// SlowQueryThreshold is the duration above which queries are logged as slow
const SlowQueryThreshold = 250 * time.Millisecond

// SQLiteDSN builds a go-sqlite3 DSN with WAL and a busy timeout.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000"
}

// TursoDSN appends the auth token to a libsql URL
func TursoDSN(databaseURL, authToken string) string {
	return databaseURL + "?authToken=" + url.QueryEscape(authToken)
}

// CheckAndLogSlowQuery logs query on the database channel when it exceeded the threshold
func CheckAndLogSlowQuery(logger *logging.ChanneledLogger, query string, duration time.Duration) {
	if duration > SlowQueryThreshold {
		logger.Database().Warn("Slow query detected", "query", query, "duration", duration, "threshold", SlowQueryThreshold)
	}
}
