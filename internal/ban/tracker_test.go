package ban

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"
)

// memStore is an in-memory Store with an optional forced failure.
type memStore struct {
	mu      sync.Mutex
	bans    []Ban
	saveErr error
	loadErr error
}

func (s *memStore) LoadBans(context.Context) ([]Ban, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]Ban(nil), s.bans...), nil
}

func (s *memStore) SaveBan(_ context.Context, b Ban) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.bans = append(s.bans, b)
	return nil
}

// recordingNotifier records every call.
type recordingNotifier struct {
	mu       sync.Mutex
	attempts []int
	bans     []Ban
}

func (n *recordingNotifier) FailedAttempt(_ netip.Addr, attempts int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attempts = append(n.attempts, attempts)
}

func (n *recordingNotifier) Banned(b Ban) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bans = append(n.bans, b)
}

var testIP = netip.MustParseAddr("203.0.113.7")

func TestRecordFailure_BansAtThreshold(t *testing.T) {
	store := &memStore{}
	notifier := &recordingNotifier{}
	tr := NewTracker(Options{Threshold: 3, Store: store, Notifier: notifier})
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		banned, err := tr.RecordFailure(ctx, testIP)
		if err != nil {
			t.Fatalf("RecordFailure() #%d error = %v", i, err)
		}
		if banned {
			t.Fatalf("RecordFailure() #%d banned before threshold", i)
		}
	}
	if tr.IsBanned(testIP) {
		t.Fatal("IsBanned() = true after 2 of 3 attempts")
	}

	banned, err := tr.RecordFailure(ctx, testIP)
	if err != nil {
		t.Fatalf("RecordFailure() #3 error = %v", err)
	}
	if !banned || !tr.IsBanned(testIP) {
		t.Fatal("address not banned on reaching the threshold")
	}
	if got := tr.Attempts(testIP); got != 3 {
		t.Errorf("Attempts() = %d, want 3", got)
	}

	if len(store.bans) != 1 || store.bans[0].IP != testIP || store.bans[0].Attempts != 3 {
		t.Errorf("stored bans = %+v, want one ban for %s with 3 attempts", store.bans, testIP)
	}
	if len(notifier.attempts) != 3 {
		t.Errorf("FailedAttempt notifications = %d, want 3", len(notifier.attempts))
	}
	if len(notifier.bans) != 1 {
		t.Errorf("Banned notifications = %d, want 1", len(notifier.bans))
	}
}

func TestRecordFailure_AlreadyBanned(t *testing.T) {
	notifier := &recordingNotifier{}
	tr := NewTracker(Options{Threshold: 1, Notifier: notifier})
	ctx := context.Background()

	if banned, _ := tr.RecordFailure(ctx, testIP); !banned {
		t.Fatal("threshold 1 should ban on the first failure")
	}
	if banned, _ := tr.RecordFailure(ctx, testIP); !banned {
		t.Fatal("RecordFailure() on a banned address should report banned")
	}
	if got := tr.Attempts(testIP); got != 1 {
		t.Errorf("Attempts() = %d, want 1 (banned addresses are not recounted)", got)
	}
	if len(notifier.bans) != 1 {
		t.Errorf("Banned notifications = %d, want 1", len(notifier.bans))
	}
}

func TestRecordFailure_NoThreshold(t *testing.T) {
	tr := NewTracker(Options{Threshold: NoThreshold})
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if banned, err := tr.RecordFailure(ctx, testIP); banned || err != nil {
			t.Fatalf("RecordFailure() = %v, %v; want false, nil", banned, err)
		}
	}
	if got := tr.Attempts(testIP); got != 50 {
		t.Errorf("Attempts() = %d, want 50", got)
	}
	if len(tr.Bans()) != 0 {
		t.Error("Bans() not empty with banning disabled")
	}
}

func TestRecordFailure_InvalidAddress(t *testing.T) {
	tr := NewTracker(Options{Threshold: 1})
	if _, err := tr.RecordFailure(context.Background(), netip.Addr{}); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("RecordFailure(zero addr) error = %v, want ErrInvalidAddress", err)
	}
}

func TestRecordFailure_MappedAddress(t *testing.T) {
	tr := NewTracker(Options{Threshold: 1})
	mapped := netip.MustParseAddr("::ffff:203.0.113.7")

	if _, err := tr.RecordFailure(context.Background(), mapped); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	if !tr.IsBanned(testIP) {
		t.Error("IPv4-mapped address should ban the plain IPv4 address")
	}
}

func TestRecordFailure_StoreErrorKeepsBan(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	tr := NewTracker(Options{Threshold: 1, Store: store})

	banned, err := tr.RecordFailure(context.Background(), testIP)
	if !errors.Is(err, ErrStore) {
		t.Errorf("RecordFailure() error = %v, want ErrStore", err)
	}
	if !banned || !tr.IsBanned(testIP) {
		t.Error("ban should hold in memory when persisting fails")
	}
}

func TestLoad(t *testing.T) {
	when := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	store := &memStore{bans: []Ban{{IP: testIP, BannedAt: when, Attempts: 5}}}
	tr := NewTracker(Options{Threshold: 5, Store: store})

	if err := tr.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !tr.IsBanned(testIP) {
		t.Error("loaded ban not applied")
	}
	bans := tr.Bans()
	if len(bans) != 1 || !bans[0].BannedAt.Equal(when) {
		t.Errorf("Bans() = %+v, want the loaded ban", bans)
	}
}

func TestLoad_StoreError(t *testing.T) {
	tr := NewTracker(Options{Threshold: 5, Store: &memStore{loadErr: errors.New("locked")}})
	if err := tr.Load(context.Background()); !errors.Is(err, ErrStore) {
		t.Errorf("Load() error = %v, want ErrStore", err)
	}
}

func TestLoad_NoStore(t *testing.T) {
	tr := NewTracker(Options{Threshold: 5})
	if err := tr.Load(context.Background()); err != nil {
		t.Errorf("Load() without store error = %v", err)
	}
}

func TestBans_Ordered(t *testing.T) {
	tr := NewTracker(Options{Threshold: 1})
	base := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	step := 0
	tr.now = func() time.Time {
		step++
		return base.Add(time.Duration(-step) * time.Minute)
	}

	first := netip.MustParseAddr("198.51.100.1")
	second := netip.MustParseAddr("198.51.100.2")
	tr.RecordFailure(context.Background(), first)  //nolint:errcheck // no store
	tr.RecordFailure(context.Background(), second) //nolint:errcheck // no store

	bans := tr.Bans()
	if len(bans) != 2 {
		t.Fatalf("len(Bans()) = %d, want 2", len(bans))
	}
	// second was banned at an earlier clock reading
	if bans[0].IP != second || bans[1].IP != first {
		t.Errorf("Bans() order = %s, %s; want %s, %s", bans[0].IP, bans[1].IP, second, first)
	}
}

func TestRecordFailure_Concurrent(t *testing.T) {
	store := &memStore{}
	notifier := &recordingNotifier{}
	tr := NewTracker(Options{Threshold: 10, Store: store, Notifier: notifier})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.RecordFailure(context.Background(), testIP) //nolint:errcheck // memStore never fails here
		}()
	}
	wg.Wait()

	if got := tr.Attempts(testIP); got != 10 {
		t.Errorf("Attempts() = %d, want 10 (counting stops once banned)", got)
	}
	if len(store.bans) != 1 {
		t.Errorf("stored bans = %d, want exactly 1", len(store.bans))
	}
	if len(notifier.bans) != 1 {
		t.Errorf("Banned notifications = %d, want exactly 1", len(notifier.bans))
	}
}

func TestNotifiers_FanOut(t *testing.T) {
	a, b := &recordingNotifier{}, &recordingNotifier{}
	tr := NewTracker(Options{Threshold: 2, Notifier: Notifiers{a, b}})

	for i := 0; i < 2; i++ {
		if _, err := tr.RecordFailure(context.Background(), testIP); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	for i, n := range []*recordingNotifier{a, b} {
		if len(n.attempts) != 2 || len(n.bans) != 1 {
			t.Errorf("notifier %d saw %d attempts and %d bans, want 2 and 1", i, len(n.attempts), len(n.bans))
		}
	}
}

func TestRecordFailure_CountersBounded(t *testing.T) {
	tr := NewTracker(Options{Threshold: NoThreshold, MaxTracked: 3})
	ctx := context.Background()

	first := netip.MustParseAddr("2001:db8::1")
	if _, err := tr.RecordFailure(ctx, first); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	// rotating source addresses push the oldest counter out
	for i := 2; i <= 4; i++ {
		ip := netip.AddrFrom16([16]byte{0x20, 0x01, 0x0d, 0xb8, 15: byte(i)})
		if _, err := tr.RecordFailure(ctx, ip); err != nil {
			t.Fatalf("RecordFailure(%s) error = %v", ip, err)
		}
	}

	if got := tr.attempts.Len(); got != 3 {
		t.Errorf("tracked addresses = %d, want 3", got)
	}
	if got := tr.Attempts(first); got != 0 {
		t.Errorf("Attempts(evicted) = %d, want 0", got)
	}
	if got := tr.Attempts(netip.MustParseAddr("2001:db8::4")); got != 1 {
		t.Errorf("Attempts(newest) = %d, want 1", got)
	}
}

func TestNewTracker_DefaultMaxTracked(t *testing.T) {
	tr := NewTracker(Options{Threshold: NoThreshold})
	for i := 0; i < DefaultMaxTracked+10; i++ {
		ip := netip.AddrFrom4([4]byte{10, byte(i >> 16), byte(i >> 8), byte(i)})
		if _, err := tr.RecordFailure(context.Background(), ip); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}
	if got := tr.attempts.Len(); got != DefaultMaxTracked {
		t.Errorf("tracked addresses = %d, want %d", got, DefaultMaxTracked)
	}
}
