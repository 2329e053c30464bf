package versioning

import (
	"fmt"
	"sync"
	"time"
)

// TokenSource issues version tokens that are strictly increasing within the
// process and timestamp-ordered across processes. Tokens are fixed-width
// decimal (nanoseconds plus a tie-break counter) so lexicographic comparison
// matches issue order; the head-pointer conditional write relies on that.
type TokenSource struct {
	mu       sync.Mutex
	lastNano int64
	seq      int
}

func NewTokenSource() *TokenSource {
	return &TokenSource{}
}

func (ts *TokenSource) Next() string {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := time.Now().UTC().UnixNano()
	if now <= ts.lastNano {
		now = ts.lastNano
		ts.seq++
	} else {
		ts.lastNano = now
		ts.seq = 0
	}
	return fmt.Sprintf("%020d.%06d", now, ts.seq)
}
