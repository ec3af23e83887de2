// Package registry holds the in-memory token store shared by both backends.
//
// Each registration is a Record keyed by an unguessable token. Records carry
// an expiry deadline; once the deadline is reached the record is invisible
// to every operation and is lazily deleted. Upload records additionally move
// through a small state machine:
//
//	Pending ──Fulfill──▶ Fulfilled ──Consume──▶ gone
//
// Consume succeeds exactly once. A record that expires while Pending or
// Fulfilled is treated as absent from then on.
package registry

import (
	"sync"
	"time"

	"github.com/jonmmease/jons-mcp-file-server/internal/errs"
	"github.com/jonmmease/jons-mcp-file-server/internal/token"
)

// Kind distinguishes download registrations from upload registrations.
// A token never changes kind after creation.
type Kind int

const (
	KindDownload Kind = iota
	KindUpload
)

// State tracks the upload lifecycle. Download records stay Pending.
type State int

const (
	StatePending   State = iota // registered, no payload yet
	StateFulfilled              // whole payload committed
	StateConsumed               // payload handed out; record is deleted at the same time
)

// Record is one registration. Fields are fixed at Put time except State and
// Body, which change only through Fulfill.
type Record struct {
	Token     string
	Kind      Kind
	Path      string // source file path (downloads) or object key (uploads)
	Filename  string
	MaxBytes  int64
	State     State
	Body      []byte // buffered upload payload (localhost backend only)
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store is a mutex-guarded token → Record map. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	records map[string]*Record

	now func() time.Time // swapped out by tests
}

// New returns an empty store.
func New() *Store {
	return &Store{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// Put stores rec under a freshly generated token and returns the token.
// CreatedAt, ExpiresAt, Token, and State are assigned here; any values the
// caller set for them are ignored.
func (s *Store) Put(rec Record, ttl time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok := token.New()
	now := s.now()
	rec.Token = tok
	rec.State = StatePending
	rec.CreatedAt = now
	rec.ExpiresAt = now.Add(ttl)
	s.records[tok] = &rec
	return tok
}

// Get returns a copy of the live record for tok. Expired and unknown tokens
// both report ok == false; an expired record is deleted on the way out.
func (s *Store) Get(tok string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.live(tok)
	if rec == nil {
		return Record{}, false
	}
	return *rec, true
}

// Delete removes tok if present.
func (s *Store) Delete(tok string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, tok)
}

// Take atomically removes and returns the live record for tok. Used by the
// object-store backend to claim an upload so that two concurrent consumers
// cannot both succeed.
func (s *Store) Take(tok string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.live(tok)
	if rec == nil {
		return Record{}, false
	}
	delete(s.records, tok)
	return *rec, true
}

// Fulfill commits body to a Pending upload record and marks it Fulfilled.
// The transition happens under the store lock, so a concurrent Consume can
// never observe a partially written payload.
func (s *Store) Fulfill(tok string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.live(tok)
	if rec == nil {
		return errs.New(errs.ErrKindNotFound, "unknown or expired upload token")
	}
	if rec.Kind != KindUpload {
		return errs.New(errs.ErrKindInvalidInput, "token is not an upload token")
	}
	if rec.State != StatePending {
		return errs.New(errs.ErrKindInvalidInput, "upload already fulfilled")
	}
	rec.Body = body
	rec.State = StateFulfilled
	return nil
}

// Consume returns the Fulfilled record for tok and deletes it, enforcing
// one-time semantics. Unknown, expired, still-Pending, and already-consumed
// tokens all report not found.
func (s *Store) Consume(tok string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.live(tok)
	if rec == nil {
		return Record{}, errs.New(errs.ErrKindNotFound, "unknown or expired upload token")
	}
	if rec.Kind != KindUpload || rec.State != StateFulfilled {
		return Record{}, errs.New(errs.ErrKindNotFound, "upload not yet fulfilled")
	}
	rec.State = StateConsumed
	delete(s.records, tok)
	return *rec, nil
}

// Sweep deletes every expired record and returns how many were removed.
// Lazy expiry in Get already hides them; the sweep only bounds memory.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for tok, rec := range s.records {
		if !now.Before(rec.ExpiresAt) {
			delete(s.records, tok)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored records, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Clear drops every record. Called on backend shutdown.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*Record)
}

// live returns the record for tok if it has not expired, deleting it if it
// has. The expiry boundary is inclusive: at exactly ExpiresAt the record is
// already gone. Caller must hold s.mu.
func (s *Store) live(tok string) *Record {
	rec, ok := s.records[tok]
	if !ok {
		return nil
	}
	if !s.now().Before(rec.ExpiresAt) {
		delete(s.records, tok)
		return nil
	}
	return rec
}
