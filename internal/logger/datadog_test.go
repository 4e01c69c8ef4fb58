package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubmit struct {
	mu    sync.Mutex
	items []datadogV2.HTTPLogItem
	err   error
}

func (r *recordingSubmit) submit(_ context.Context, items []datadogV2.HTTPLogItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append(r.items, items...)

	return r.err
}

func TestDataDogWriter(t *testing.T) {
	rec := &recordingSubmit{}

	w := newDataDogWriter(context.Background(), DataDog{
		ServiceName: "adopsbot",
		Tags:        "env:test",
		Timeout:     time.Second,
	}, rec.submit)

	n, err := w.Write([]byte(`{"level":"info","message":"first"}`))
	require.NoError(t, err)
	assert.Equal(t, 34, n)

	_, err = w.Write([]byte(`{"level":"warn","message":"second"}`))
	require.NoError(t, err)

	require.NoError(t, w.Close())

	require.Len(t, rec.items, 2)
	assert.JSONEq(t, `{"level":"info","message":"first"}`, rec.items[0].Message)
	assert.Equal(t, "adopsbot", rec.items[0].GetService())
	assert.Equal(t, "env:test", rec.items[0].GetDdtags())
	assert.Equal(t, dataDogSource, rec.items[1].GetDdsource())
}

func TestDataDogWriterSubmitErrorDoesNotStop(t *testing.T) {
	rec := &recordingSubmit{err: errors.New("intake unavailable")}

	w := newDataDogWriter(context.Background(), DataDog{}, rec.submit)

	_, _ = w.Write([]byte("one"))
	_, _ = w.Write([]byte("two"))

	require.NoError(t, w.Close())
	assert.Len(t, rec.items, 2)
}

func TestDataDogWriterCopiesInput(t *testing.T) {
	rec := &recordingSubmit{}
	w := newDataDogWriter(context.Background(), DataDog{}, rec.submit)

	buf := []byte("original")
	_, _ = w.Write(buf)
	copy(buf, "mutated!")

	require.NoError(t, w.Close())
	require.Len(t, rec.items, 1)
	assert.Equal(t, "original", rec.items[0].Message)
}

func TestInitRejectsDataDogWithoutKey(t *testing.T) {
	err := Init(Log{
		LogLevel:    "info",
		ServiceName: "test",
		AppName:     "test",
		DataDog:     DataDog{Enabled: true},
	})
	require.ErrorIs(t, err, ErrDataDogAPIKeyIsEmpty)
}

func TestNewAuditLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()

	cfg := Log{
		LogLevel:    "info",
		ServiceName: "test",
		AppName:     "test",
		File: LogFile{
			Enabled:  true,
			Path:     dir,
			InfoLog:  "info.log",
			ErrorLog: "error.log",
			WarnLog:  "warn.log",
			TraceLog: "trace.log",
			AuditLog: "audit.log",
		},
	}

	require.NoError(t, Init(cfg))

	audit := NewAuditLogger(cfg)
	audit.Info().Str("action", "unlockuser").Msg("command")

	assert.FileExists(t, dir+"/audit.log")
	assert.FileExists(t, dir+"/info.log")
}
