package bookings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// memRepo is an in-memory Repository. Writes made inside a transaction are
// applied on commit; InProductTx serializes per product like the row lock.
type memRepo struct {
	mu     sync.Mutex
	rows   map[uint64]*Booking
	nextID atomic.Uint64

	lockMu sync.Mutex
	locks  map[uint64]*sync.Mutex
	txMu   sync.Mutex

	// commitErr, when set, fails the next commit after fn succeeded.
	commitErr error
	// readErr fails every read.
	readErr error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[uint64]*Booking{}, locks: map[uint64]*sync.Mutex{}}
}

func (m *memRepo) productLock(id uint64) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

type memTx struct {
	repo   *memRepo
	writes []*Booking
}

func (m *memRepo) run(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memTx{repo: m}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		err := m.commitErr
		m.commitErr = nil
		return err
	}
	for _, b := range tx.writes {
		cp := clone(b)
		m.rows[b.BookingID] = cp
	}
	return nil
}

func (m *memRepo) InProductTx(ctx context.Context, productID uint64, fn func(ctx context.Context, tx Tx) error) error {
	l := m.productLock(productID)
	l.Lock()
	defer l.Unlock()
	return m.run(ctx, fn)
}

func (m *memRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.run(ctx, fn)
}

func (t *memTx) FindOverlapping(ctx context.Context, q OverlapQuery) ([]Booking, error) {
	return t.repo.FindOverlapping(ctx, q)
}

func (t *memTx) LockByID(ctx context.Context, id uint64) (*Booking, error) {
	return t.repo.FindByID(ctx, id)
}

func (t *memTx) Insert(_ context.Context, b *Booking) error {
	t.repo.mu.Lock()
	for _, r := range t.repo.rows {
		if r.BookingNumber == b.BookingNumber {
			t.repo.mu.Unlock()
			return fmt.Errorf("insert: %w", ErrDuplicate)
		}
	}
	t.repo.mu.Unlock()
	b.BookingID = t.repo.nextID.Add(1)
	t.writes = append(t.writes, clone(b))
	return nil
}

func (t *memTx) Update(_ context.Context, b *Booking) error {
	t.writes = append(t.writes, clone(b))
	return nil
}

func (m *memRepo) FindOverlapping(_ context.Context, q OverlapQuery) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := []Booking{}
	for _, b := range m.sorted() {
		if b.ProductID != q.ProductID || !b.Interval.Overlaps(q.Interval) {
			continue
		}
		if q.ExcludeID != 0 && b.BookingID == q.ExcludeID {
			continue
		}
		if q.CreatedSince != nil && b.CreatedAt.Before(*q.CreatedSince) {
			continue
		}
		if !hasStatus(q.Statuses, b.Status) {
			continue
		}
		out = append(out, *clone(b))
	}
	return out, nil
}

func (m *memRepo) FindByID(_ context.Context, id uint64) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	b, ok := m.rows[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return clone(b), nil
}

func (m *memRepo) FindByNumber(_ context.Context, number string) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.rows {
		if b.BookingNumber == number {
			return clone(b), nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *memRepo) List(_ context.Context, f Filter, p Page) ([]Booking, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, 0, m.readErr
	}
	matched := []Booking{}
	for _, b := range m.sorted() {
		if matches(f, b) {
			matched = append(matched, *clone(b))
		}
	}
	if p.Order != "asc" {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	total := int64(len(matched))
	if p.Offset >= len(matched) {
		return []Booking{}, total, nil
	}
	end := p.Offset + p.Limit
	if p.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[p.Offset:end], total, nil
}

func (m *memRepo) Stats(_ context.Context, f Filter) ([]StatusStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	by := map[Status]*StatusStat{}
	for _, b := range m.rows {
		if !matches(f, b) {
			continue
		}
		st, ok := by[b.Status]
		if !ok {
			st = &StatusStat{Status: b.Status}
			by[b.Status] = st
		}
		st.Count++
		st.TotalRevenue += b.TotalAmount
	}
	out := []StatusStat{}
	for _, st := range by {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

func (m *memRepo) ListOverdueCandidates(_ context.Context, now time.Time, limit int) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Booking{}
	for _, b := range m.sorted() {
		if b.Status == StatusActive && b.Interval.End.Before(now) && b.OverdueFlaggedAt == nil {
			out = append(out, *clone(b))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memRepo) FlagOverdue(_ context.Context, id uint64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok || b.Status != StatusActive || b.OverdueFlaggedAt != nil {
		return false, nil
	}
	t := at
	b.OverdueFlaggedAt = &t
	b.UpdatedAt = at
	return true, nil
}

// helpers (callers hold m.mu)

func (m *memRepo) sorted() []*Booking {
	out := make([]*Booking, 0, len(m.rows))
	for _, b := range m.rows {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingID < out[j].BookingID })
	return out
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func matches(f Filter, b *Booking) bool {
	if f.CustomerID != nil && b.CustomerID != *f.CustomerID {
		return false
	}
	if f.ProductID != nil && b.ProductID != *f.ProductID {
		return false
	}
	if f.Status != nil && b.Status != *f.Status {
		return false
	}
	if f.Overdue && !(b.Status == StatusActive && b.Interval.End.Before(f.OverdueAt)) {
		return false
	}
	if f.From != nil && b.Interval.Start.Before(*f.From) {
		return false
	}
	if f.To != nil && !b.Interval.Start.Before(*f.To) {
		return false
	}
	return true
}

func hasStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func clone(b *Booking) *Booking {
	cp := *b
	return &cp
}

// ---------- catalog / clock / notifier ----------

type memCatalog map[uint64]RentalInfo

func (c memCatalog) GetRentalInfo(_ context.Context, id uint64) (RentalInfo, error) {
	info, ok := c[id]
	if !ok {
		return RentalInfo{}, ErrProductNotFound
	}
	return info, nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type sentEvent struct {
	Event     NotifyEvent
	BookingID uint64
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev NotifyEvent, b Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{Event: ev, BookingID: b.BookingID})
}

func (n *recordingNotifier) count(ev NotifyEvent) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Event == ev {
			c++
		}
	}
	return c
}

type seqIDs struct{ n atomic.Uint64 }

func (g *seqIDs) NewULID(time.Time) string {
	return fmt.Sprintf("%026d", g.n.Add(1))
}

var errDown = errors.New("dial tcp 127.0.0.1:3306: connect: connection refused")
