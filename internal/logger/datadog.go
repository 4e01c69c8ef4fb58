package logger

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

const (
	defaultDataDogTimeout    = 5 * time.Second
	defaultDataDogBufferSize = 1024
	dataDogSource            = "adopsbot"
)

// submitFunc ships a batch of log items.
type submitFunc func(ctx context.Context, items []datadogV2.HTTPLogItem) error

// DataDogWriter forwards JSON log lines to the DataDog log intake.
// Write never blocks: lines are queued and dropped when the queue is full.
type DataDogWriter struct {
	cfg      DataDog
	hostname string
	submit   submitFunc
	ctx      context.Context //nolint:containedctx // carries api keys for the client

	entries chan []byte
	done    chan struct{}
}

// NewDataDogWriter creates a writer using the datadog api client and starts its sender.
func NewDataDogWriter(cfg DataDog) *DataDogWriter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultDataDogTimeout
	}

	configuration := datadog.NewConfiguration()
	configuration.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	if len(cfg.Servers) > 0 {
		configuration.Servers = cfg.Servers
	}

	api := datadogV2.NewLogsApi(datadog.NewAPIClient(configuration))

	ctx := context.WithValue(context.Background(), datadog.ContextAPIKeys, map[string]datadog.APIKey{
		"apiKeyAuth": {Key: cfg.APIKey},
	})

	if cfg.Site != "" {
		ctx = context.WithValue(ctx, datadog.ContextServerVariables, map[string]string{"site": cfg.Site})
	}

	submit := func(ctx context.Context, items []datadogV2.HTTPLogItem) error {
		_, _, err := api.SubmitLog(ctx, items, *datadogV2.NewSubmitLogOptionalParameters())

		return err //nolint:wrapcheck
	}

	return newDataDogWriter(ctx, cfg, submit)
}

func newDataDogWriter(ctx context.Context, cfg DataDog, submit submitFunc) *DataDogWriter {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultDataDogBufferSize
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultDataDogTimeout
	}

	hostname, _ := os.Hostname()

	w := &DataDogWriter{
		cfg:      cfg,
		hostname: hostname,
		submit:   submit,
		ctx:      ctx,
		entries:  make(chan []byte, cfg.BufferSize),
		done:     make(chan struct{}),
	}

	go w.run()

	return w
}

// Write implements io.Writer.
func (w *DataDogWriter) Write(p []byte) (int, error) {
	line := make([]byte, len(p))
	copy(line, p)

	select {
	case w.entries <- line:
	default:
		ErrorHandler(ErrDataDogQueueFull)
	}

	return len(p), nil
}

// Close stops accepting lines and waits until the queued ones were sent.
func (w *DataDogWriter) Close() error {
	close(w.entries)
	<-w.done

	return nil
}

func (w *DataDogWriter) run() {
	defer close(w.done)

	for line := range w.entries {
		item := datadogV2.HTTPLogItem{
			Message:  string(line),
			Ddsource: datadog.PtrString(dataDogSource),
			Hostname: datadog.PtrString(w.hostname),
			Service:  datadog.PtrString(w.cfg.ServiceName),
		}

		if w.cfg.Tags != "" {
			item.Ddtags = datadog.PtrString(w.cfg.Tags)
		}

		ctx, cancel := context.WithTimeout(w.ctx, w.cfg.Timeout)
		err := w.submit(ctx, []datadogV2.HTTPLogItem{item})

		cancel()

		if err != nil {
			ErrorHandler(err)
		}
	}
}
