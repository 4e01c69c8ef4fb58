package audit

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/adopsbot/adopsbot/internal/db/controller/auditlog"
	"github.com/adopsbot/adopsbot/internal/db/models"
)

const (
	defaultBufferSize = 256
	maxBatch          = 64
)

// DBSink stores events in the audit table. Events are queued and written in batches by one
// background worker. When the queue is full the event is dropped with a warning.
type DBSink struct {
	db      *gorm.DB
	queue   chan models.AuditEntry
	done    chan struct{}
	dropped atomic.Uint64

	closeOnce sync.Once
	mu        sync.RWMutex // guards closed against concurrent Record
	closed    bool
}

// NewDBSink starts the background writer. Close must be called to flush and stop it.
func NewDBSink(db *gorm.DB, bufferSize int) *DBSink {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	s := &DBSink{
		db:    db,
		queue: make(chan models.AuditEntry, bufferSize),
		done:  make(chan struct{}),
	}

	go s.run()

	return s
}

// Record implements Sink.
func (s *DBSink) Record(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.drop(ev, "audit sink closed")
		return
	}

	select {
	case s.queue <- toEntry(stamp(ev)):
	default:
		s.drop(ev, "audit queue full")
	}
}

func (s *DBSink) drop(ev Event, reason string) {
	s.dropped.Add(1)
	log.Warn().Str("action", ev.Action).Int64("identity", int64(ev.Identity)).Msg(reason + ", event dropped")
}

// Dropped returns the number of events that could not be queued.
func (s *DBSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops accepting events and waits until the queued ones are written.
func (s *DBSink) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()

		<-s.done
	})
}

func (s *DBSink) run() {
	defer close(s.done)

	batch := make([]models.AuditEntry, 0, maxBatch)

	for entry := range s.queue {
		batch = append(batch[:0], entry)

	drain:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-s.queue:
				if !ok {
					break drain
				}

				batch = append(batch, next)
			default:
				break drain
			}
		}

		if err := auditlog.CreateBatch(s.db, batch); err != nil {
			log.Error().Err(err).Int("events", len(batch)).Msg("failed to store audit events")
		}
	}
}
