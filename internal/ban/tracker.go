package ban

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// NoThreshold disables banning while failed attempts are still counted.
const NoThreshold = -1

// DefaultMaxTracked is the number of addresses whose failed attempts are
// remembered when Options.MaxTracked is not set. The least recently failing
// address is forgotten first; bans are never evicted.
const DefaultMaxTracked = 4096

// Ban is a standing rejection of one address.
type Ban struct {
	IP       netip.Addr `json:"ip_address"`
	BannedAt time.Time  `json:"banned_at"`
	Attempts int        `json:"attempts"`
}

// Store persists bans.
type Store interface {
	LoadBans(ctx context.Context) ([]Ban, error)
	SaveBan(ctx context.Context, b Ban) error
}

// Notifier is told about failed attempts and new bans. Implementations
// must not block.
type Notifier interface {
	FailedAttempt(ip netip.Addr, attempts int)
	Banned(b Ban)
}

// Logger is the subset of logging.Logger the tracker uses.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Tracker. Store, Notifier and Logger are optional.
type Options struct {
	Threshold int
	// MaxTracked caps the attempt counters; zero or less means DefaultMaxTracked.
	MaxTracked int
	Store      Store
	Notifier   Notifier
	Logger     Logger
}

// Tracker counts failed attempts per address and holds the ban list.
type Tracker struct {
	threshold int
	store     Store
	notifier  Notifier
	logger    Logger

	mu       sync.Mutex
	attempts *simplelru.LRU[netip.Addr, int]
	banned   map[netip.Addr]Ban

	now func() time.Time
}

// NewTracker creates a Tracker. Call Load to restore persisted bans.
func NewTracker(opts Options) *Tracker {
	size := opts.MaxTracked
	if size <= 0 {
		size = DefaultMaxTracked
	}
	// NewLRU only fails for a non-positive size.
	attempts, _ := simplelru.NewLRU[netip.Addr, int](size, nil)

	return &Tracker{
		threshold: opts.Threshold,
		store:     opts.Store,
		notifier:  opts.Notifier,
		logger:    opts.Logger,
		attempts:  attempts,
		banned:    make(map[netip.Addr]Ban),
		now:       time.Now,
	}
}

// Load restores bans from the store. Without a store it does nothing.
func (t *Tracker) Load(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	bans, err := t.store.LoadBans(ctx)
	if err != nil {
		return fmt.Errorf("%w: loading bans: %w", ErrStore, err)
	}

	t.mu.Lock()
	for _, b := range bans {
		t.banned[b.IP.Unmap()] = b
	}
	t.mu.Unlock()

	if t.logger != nil {
		t.logger.Info("ip bans loaded", "count", len(bans))
	}
	return nil
}

// Threshold returns the configured ban threshold.
func (t *Tracker) Threshold() int {
	return t.threshold
}

// IsBanned reports whether ip is on the ban list.
func (t *Tracker) IsBanned(ip netip.Addr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.banned[ip.Unmap()]
	return ok
}

// Attempts returns the failed-attempt count recorded for ip since start, or
// zero once ip has been evicted from the counters.
func (t *Tracker) Attempts(ip netip.Addr) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count, _ := t.attempts.Peek(ip.Unmap())
	return count
}

// Bans returns the current ban list ordered by ban time.
func (t *Tracker) Bans() []Ban {
	t.mu.Lock()
	out := make([]Ban, 0, len(t.banned))
	for _, b := range t.banned {
		out = append(out, b)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].BannedAt.Equal(out[j].BannedAt) {
			return out[i].IP.Less(out[j].IP)
		}
		return out[i].BannedAt.Before(out[j].BannedAt)
	})
	return out
}

// RecordFailure counts a failed attempt from ip and bans it once the count
// reaches the threshold. It reports whether ip is banned after the call.
//
// The ban takes effect in memory even if persisting it fails; the store error
// is returned so the caller can log it.
func (t *Tracker) RecordFailure(ctx context.Context, ip netip.Addr) (bool, error) {
	if !ip.IsValid() {
		return false, ErrInvalidAddress
	}
	ip = ip.Unmap()

	t.mu.Lock()
	if _, already := t.banned[ip]; already {
		t.mu.Unlock()
		return true, nil
	}
	count, _ := t.attempts.Get(ip)
	count++
	t.attempts.Add(ip, count)

	var newBan *Ban
	if t.threshold != NoThreshold && count >= t.threshold {
		b := Ban{IP: ip, BannedAt: t.now().UTC(), Attempts: count}
		t.banned[ip] = b
		newBan = &b
	}
	t.mu.Unlock()

	if t.logger != nil {
		t.logger.Warn("failed authentication attempt", "remote_addr", ip.String(), "attempts", count)
	}
	if t.notifier != nil {
		t.notifier.FailedAttempt(ip, count)
	}

	if newBan == nil {
		return false, nil
	}

	if t.logger != nil {
		t.logger.Warn("banned ip for too many failed authentication attempts",
			"remote_addr", ip.String(), "attempts", count)
	}
	if t.notifier != nil {
		t.notifier.Banned(*newBan)
	}
	if t.store != nil {
		if err := t.store.SaveBan(ctx, *newBan); err != nil {
			return true, fmt.Errorf("%w: saving ban for %s: %w", ErrStore, ip, err)
		}
	}
	return true, nil
}
