package audit

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-http/internal/ban"
)

// writeTimeout bounds a single background insert.
const writeTimeout = 5 * time.Second

// Logger is the subset of logging.Logger the recorder uses.
type Logger interface {
	Warn(msg string, args ...any)
}

// Recorder writes ban tracker events to a Repository. It implements
// ban.Notifier; writes happen on background goroutines.
type Recorder struct {
	repo   Repository
	logger Logger
	wg     sync.WaitGroup
}

var _ ban.Notifier = (*Recorder)(nil)

// NewRecorder creates a Recorder. logger may be nil.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// FailedAttempt records a login_failed entry.
func (r *Recorder) FailedAttempt(ip netip.Addr, attempts int) {
	r.record(&Entry{
		Action:     ActionLoginFailed,
		RemoteAddr: ip.String(),
		Attempts:   attempts,
	})
}

// Banned records an ip_banned entry.
func (r *Recorder) Banned(b ban.Ban) {
	r.record(&Entry{
		Action:     ActionIPBanned,
		RemoteAddr: b.IP.String(),
		Attempts:   b.Attempts,
		Details:    map[string]any{"banned_at": b.BannedAt.Format(time.RFC3339)},
		CreatedAt:  b.BannedAt,
	})
}

// Wait blocks until pending writes finish. Call it before closing the database.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) record(e *Entry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := r.repo.Create(ctx, e); err != nil && r.logger != nil {
			r.logger.Warn("failed to write audit entry", "action", e.Action, "error", err)
		}
	}()
}
