// Package ledger tracks detected cross-venue opportunities through their
// open/closed lifecycle in a bounded, append-only log.
package ledger

import (
	"cmp"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// DefaultCap is the number of records the ledger retains.
const DefaultCap = 200

// Transitions reports what one Apply call changed.
type Transitions struct {
	Opened  []domain.Opportunity
	Closed  []domain.Opportunity
	Evicted []domain.Opportunity
}

// Empty reports whether nothing changed.
func (t Transitions) Empty() bool {
	return len(t.Opened) == 0 && len(t.Closed) == 0 && len(t.Evicted) == 0
}

// Ledger is the bounded opportunity log. At most one record per key is open at
// any time; closed records are never modified.
type Ledger struct {
	mu      sync.RWMutex
	cap     int
	records []domain.Opportunity
	open    map[string]int // key -> index into records
	newID   func() string
}

// New creates an empty ledger retaining at most capacity records. A
// non-positive capacity selects DefaultCap.
func New(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Ledger{
		cap:   capacity,
		open:  make(map[string]int),
		newID: uuid.NewString,
	}
}

// Load replaces the ledger contents with records, ordered by detection time
// and trimmed to the cap. When several loaded records are open for the same
// key, all but the most recent are closed at the time the newer one was
// detected.
func (l *Ledger) Load(records []domain.Opportunity) {
	recs := slices.Clone(records)
	SortByDetection(recs)
	if n := len(recs) - l.cap; n > 0 {
		recs = recs[n:]
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = recs
	l.open = make(map[string]int)
	for i := range l.records {
		r := &l.records[i]
		if r.Key == "" {
			r.Key = domain.PairKey(r.IDA, r.IDB)
		}
		if !r.IsOpen() {
			continue
		}
		if prev, ok := l.open[r.Key]; ok {
			closeRecord(&l.records[prev], r.DetectedAt)
		}
		l.open[r.Key] = i
	}
}

// Apply runs one cycle's lifecycle update. pairs are all of the cycle's
// similar pairs regardless of spread; minSpread is the live opening
// threshold. Open records whose pair is missing, or whose spread fell below
// the threshold in force when they were detected, are closed. Pairs at or
// above minSpread with no open record are opened. The log is then trimmed to
// the cap and the dropped records are reported as evicted.
func (l *Ledger) Apply(pairs []domain.MatchCandidate, minSpread int, now time.Time) Transitions {
	byKey := make(map[string]domain.MatchCandidate, len(pairs))
	for _, p := range pairs {
		if _, dup := byKey[p.Key()]; !dup {
			byKey[p.Key()] = p
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var tr Transitions

	var closing []int
	for key, idx := range l.open {
		p, ok := byKey[key]
		if ok && p.Spread >= l.records[idx].DetectionMinSpread {
			continue
		}
		closing = append(closing, idx)
		delete(l.open, key)
	}
	slices.Sort(closing)
	for _, idx := range closing {
		closeRecord(&l.records[idx], now)
		tr.Closed = append(tr.Closed, l.records[idx])
	}

	for _, p := range pairs {
		if p.Spread < minSpread {
			continue
		}
		key := p.Key()
		if _, ok := l.open[key]; ok {
			continue
		}
		rec := domain.Opportunity{
			ID:                 l.newID(),
			Key:                key,
			TitleA:             p.TitleA,
			TitleB:             p.TitleB,
			IDA:                p.IDA,
			IDB:                p.IDB,
			PriceA:             p.PriceA,
			PriceB:             p.PriceB,
			Spread:             p.Spread,
			Direction:          p.Direction,
			Similarity:         p.Similarity,
			ProfitPer100:       domain.ProfitPer100(p.Spread),
			DetectionMinSpread: minSpread,
			Status:             domain.OpportunityOpen,
			DetectedAt:         now,
		}
		l.records = append(l.records, rec)
		l.open[key] = len(l.records) - 1
		tr.Opened = append(tr.Opened, rec)
	}

	tr.Evicted = l.truncate()
	return tr
}

// Records returns a copy of the log, oldest detection first.
func (l *Ledger) Records() []domain.Opportunity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.records)
}

// Open returns copies of the open records, oldest detection first.
func (l *Ledger) Open() []domain.Opportunity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := make([]int, 0, len(l.open))
	for _, i := range l.open {
		idx = append(idx, i)
	}
	slices.Sort(idx)
	out := make([]domain.Opportunity, 0, len(idx))
	for _, i := range idx {
		out = append(out, l.records[i])
	}
	return out
}

// List returns up to limit records with the given status, most recent
// detection first. An empty status matches every record; limit <= 0 means no
// limit.
func (l *Ledger) List(status domain.OpportunityStatus, limit int) []domain.Opportunity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.Opportunity
	for i := len(l.records) - 1; i >= 0; i-- {
		r := l.records[i]
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Len returns the number of records held.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

func (l *Ledger) truncate() []domain.Opportunity {
	n := len(l.records) - l.cap
	if n <= 0 {
		return nil
	}
	evicted := slices.Clone(l.records[:n])
	l.records = slices.Delete(l.records, 0, n)
	for key, idx := range l.open {
		if idx < n {
			delete(l.open, key)
			continue
		}
		l.open[key] = idx - n
	}
	return evicted
}

func closeRecord(r *domain.Opportunity, at time.Time) {
	mins := int(math.Round(at.Sub(r.DetectedAt).Minutes()))
	closedAt := at
	r.Status = domain.OpportunityClosed
	r.ClosedAt = &closedAt
	r.DurationMinutes = &mins
}

// SortByDetection orders records oldest detection first.
func SortByDetection(records []domain.Opportunity) {
	slices.SortStableFunc(records, func(a, b domain.Opportunity) int {
		return cmp.Compare(a.DetectedAt.UnixNano(), b.DetectedAt.UnixNano())
	})
}
