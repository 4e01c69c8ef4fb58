package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/gorm"

	"github.com/adopsbot/adopsbot/internal/db/controller/auditlog"
	"github.com/adopsbot/adopsbot/internal/db/models"
)

// the pool opener of database/sql lives until the test cleanup closes the db.
var ignoreSQLOpener = goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener")

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AuditEntry{}))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer

	sink := NewLogSink(zerolog.New(&buf))
	sink.Record(Event{
		Action:   "unlockuser",
		Identity: 111,
		Login:    "ivanov",
		Outcome:  OutcomeSuccess,
		Target:   "petrov",
		Metadata: map[string]string{"dn": "CN=petrov,DC=corp,DC=local"},
	})
	sink.Record(Event{Action: "laps", Identity: 999, Outcome: OutcomeDenied})
	sink.Record(Event{Action: "resetpass", Identity: 111, Outcome: OutcomeError, Err: errors.New("user not found")})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "unlockuser", first["action"])
	assert.InDelta(t, 111, first["identity"], 0)
	assert.Equal(t, "petrov", first["target"])
	assert.Equal(t, map[string]any{"dn": "CN=petrov,DC=corp,DC=local"}, first["metadata"])

	var denied map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &denied))
	assert.Equal(t, "warn", denied["level"])
	assert.Equal(t, "denied", denied["outcome"])

	var failed map[string]any
	require.NoError(t, json.Unmarshal(lines[2], &failed))
	assert.Equal(t, "user not found", failed["error"])
}

func TestMulti(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)

	collect := func(name string) Sink {
		return SinkFunc(func(ev Event) {
			mu.Lock()
			defer mu.Unlock()

			got = append(got, name+":"+ev.Action)
		})
	}

	Multi(collect("a"), nil, collect("b")).Record(Event{Action: "whoami"})

	assert.Equal(t, []string{"a:whoami", "b:whoami"}, got)
}

func TestToEntry(t *testing.T) {
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600))

	entry := toEntry(Event{
		Time:     at,
		Action:   "disableuser",
		Identity: 111,
		Outcome:  OutcomeError,
		Target:   "petrov",
		Err:      errors.New("move failed"),
		Metadata: map[string]string{"moved": "false"},
	})

	assert.Equal(t, at.UTC(), entry.OccurredAt)
	assert.Equal(t, int64(111), entry.Identity)
	assert.Equal(t, "error", entry.Outcome)
	assert.JSONEq(t, `{"error":"move failed","moved":"false"}`, entry.Detail)

	assert.Empty(t, toEntry(Event{Action: "whoami"}).Detail)
}

func TestDBSink(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreSQLOpener)

	db := setupTestDB(t)
	sink := NewDBSink(db, 16)

	for i := range 10 {
		sink.Record(Event{Action: "unlockuser", Identity: 111, Outcome: OutcomeSuccess, Target: string(rune('a' + i))})
	}

	sink.Record(Event{Action: "laps", Identity: 222, Outcome: OutcomeDenied})
	sink.Close()

	assert.Zero(t, sink.Dropped())

	entries, err := auditlog.List(db, auditlog.Filter{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, entries, 11)

	denied, err := auditlog.List(db, auditlog.Filter{Outcome: "denied"})
	require.NoError(t, err)
	require.Len(t, denied, 1)
	assert.Equal(t, int64(222), denied[0].Identity)
	assert.False(t, denied[0].OccurredAt.IsZero())
}

func TestDBSinkDropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreSQLOpener)

	db := setupTestDB(t)

	var (
		once    sync.Once
		entered = make(chan struct{})
		block   = make(chan struct{})
	)

	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("block", func(*gorm.DB) {
		once.Do(func() { close(entered) })
		<-block
	}))

	sink := NewDBSink(db, 1)

	// the worker takes the first event and blocks in the callback, the second fills the queue
	sink.Record(Event{Action: "first", Outcome: OutcomeSuccess})
	<-entered

	sink.Record(Event{Action: "second", Outcome: OutcomeSuccess})
	sink.Record(Event{Action: "third", Outcome: OutcomeSuccess})

	assert.Equal(t, uint64(1), sink.Dropped())

	close(block)
	sink.Close()

	entries, err := auditlog.List(db, auditlog.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDBSinkRecordAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreSQLOpener)

	sink := NewDBSink(setupTestDB(t), 4)
	sink.Close()
	sink.Close()

	sink.Record(Event{Action: "late", Outcome: OutcomeSuccess})
	assert.Equal(t, uint64(1), sink.Dropped())
}
