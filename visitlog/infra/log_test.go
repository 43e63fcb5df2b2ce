package infra

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitor-tracker/visitlog/domain"
)

func sample(ip string) domain.Record {
	return domain.Record{
		IPAddress:   ip,
		VisitDate:   "2024-01-01",
		VisitTime:   "10:00:00",
		UserAgent:   "Mozilla/5.0",
		ReferrerURL: "https://example.com/page",
	}
}

func TestFileLog_AppendKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "visitor.json")
	log := NewFileLog(path)

	require.NoError(t, log.Append(ctx, sample("1.2.3.4")))
	require.NoError(t, log.Append(ctx, sample("5.6.7.8")))

	recs, err := log.All(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "1.2.3.4", recs[0].IPAddress)
	assert.Equal(t, "5.6.7.8", recs[1].IPAddress)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"referrer_url": "https://example.com/page"`)
	assert.True(t, strings.HasPrefix(string(raw), "[\n    {"))
}

func TestFileLog_CorruptFileStartsOver(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "visitor.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"a list"}`), 0o644))

	log := NewFileLog(path)
	require.NoError(t, log.Append(ctx, sample("1.2.3.4")))

	recs, err := log.All(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestFileLog_KeepsUndecodableElements(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "visitor.json")
	seed := `[
    {"ip_address": "1.2.3.4", "visit_date": "2024-01-01", "visit_time": "10:00:00", "user_agent": "a", "referrer_url": "Direct Access"},
    {"ip_address": false, "visit_date": "2024-01-01"}
]`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	log := NewFileLog(path)
	require.NoError(t, log.Append(ctx, sample("5.6.7.8")))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var elems []json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &elems))
	require.Len(t, elems, 3)
	assert.Contains(t, string(elems[1]), `"ip_address": false`)

	recs, err := log.All(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "1.2.3.4", recs[0].IPAddress)
	assert.Equal(t, "5.6.7.8", recs[1].IPAddress)
}

func TestFileLog_MissingFileIsEmpty(t *testing.T) {
	recs, err := NewFileLog(filepath.Join(t.TempDir(), "none.json")).All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRedisLog_AppendAndAll(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := NewRedisLog(rdb, "")
	require.NoError(t, log.Append(ctx, sample("1.2.3.4")))
	require.NoError(t, log.Append(ctx, sample("5.6.7.8")))

	recs, err := log.All(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "1.2.3.4", recs[0].IPAddress)
	assert.Equal(t, "5.6.7.8", recs[1].IPAddress)

	n, err := rdb.LLen(ctx, DefaultRedisLogKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func newMockLog(t *testing.T) (*SQLLog, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLLog(sqlx.NewDb(db, "postgres")), mock
}

func TestSQLLog_EnsureSchema(t *testing.T) {
	log, mock := newMockLog(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS visitor_log").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, log.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLog_Append(t *testing.T) {
	log, mock := newMockLog(t)
	rec := sample("1.2.3.4")
	rec.VisitDuration = 12

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO visitor_log")).
		WithArgs(rec.IPAddress, rec.VisitDate, rec.VisitTime, rec.UserAgent, rec.ReferrerURL, rec.VisitDuration).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, log.Append(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLog_All(t *testing.T) {
	log, mock := newMockLog(t)
	rows := sqlmock.NewRows([]string{"ip_address", "visit_date", "visit_time", "user_agent", "referrer_url", "visit_duration"}).
		AddRow("1.2.3.4", "2024-01-01", "10:00:00", "ua", "Direct Access", 0).
		AddRow("5.6.7.8", "2024-01-01", "10:00:05", "ua", "Direct Access", 5)
	mock.ExpectQuery("SELECT (.+) FROM visitor_log ORDER BY id").WillReturnRows(rows)

	recs, err := log.All(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "5.6.7.8", recs[1].IPAddress)
	assert.Equal(t, int64(5), recs[1].VisitDuration)
	require.NoError(t, mock.ExpectationsWereMet())
}
