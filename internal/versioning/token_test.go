package versioning

import (
	"regexp"
	"sync"
	"testing"
)

func TestTokenSource_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{20}\.\d{6}$`)
	ts := NewTokenSource()
	for i := 0; i < 10; i++ {
		token := ts.Next()
		if !pattern.MatchString(token) {
			t.Fatalf("token %q does not match fixed-width format", token)
		}
	}
}

func TestTokenSource_StrictlyIncreasing(t *testing.T) {
	ts := NewTokenSource()
	prev := ts.Next()
	for i := 0; i < 1000; i++ {
		next := ts.Next()
		if next <= prev {
			t.Fatalf("token order: %q not greater than %q", next, prev)
		}
		prev = next
	}
}

func TestTokenSource_ConcurrentUniqueness(t *testing.T) {
	ts := NewTokenSource()
	const workers = 8
	const perWorker = 200

	var mu sync.Mutex
	seen := map[string]bool{}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, ts.Next())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, token := range local {
				if seen[token] {
					t.Errorf("duplicate token %q", token)
				}
				seen[token] = true
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Fatalf("unique tokens: want=%d got=%d", workers*perWorker, len(seen))
	}
}
