package capability

import (
	"sync"
	"testing"
)

func TestCache_MarkMissing(t *testing.T) {
	c := NewCache()

	if c.Missing(HybridSearch) {
		t.Error("fresh cache should not report anything missing")
	}

	c.MarkMissing(HybridSearch)
	if !c.Missing(HybridSearch) {
		t.Error("expected hybrid_search to be missing after MarkMissing")
	}
	if c.Missing(KeywordSearch) {
		t.Error("keyword_search should be unaffected")
	}
}

func TestCache_Attempts(t *testing.T) {
	c := NewCache()

	c.RecordAttempt(FullTextSearch)
	c.RecordAttempt(FullTextSearch)
	if got := c.Attempts(FullTextSearch); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
	if got := c.Attempts(HybridSearch); got != 0 {
		t.Errorf("expected 0 attempts, got %d", got)
	}
}

func TestCache_Reset(t *testing.T) {
	c := NewCache()
	c.MarkMissing(HybridSearch)
	c.RecordAttempt(HybridSearch)

	c.Reset()

	if c.Missing(HybridSearch) {
		t.Error("flags should be cleared after Reset")
	}
	if c.Attempts(HybridSearch) != 0 {
		t.Error("counters should be cleared after Reset")
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.MarkMissing(KeywordSearch)
			c.RecordAttempt(KeywordSearch)
		}()
		go func() {
			defer wg.Done()
			_ = c.Missing(KeywordSearch)
			_ = c.Attempts(KeywordSearch)
		}()
	}
	wg.Wait()

	if !c.Missing(KeywordSearch) {
		t.Error("expected keyword_search missing after concurrent marks")
	}
	if c.Attempts(KeywordSearch) != 50 {
		t.Errorf("expected 50 attempts, got %d", c.Attempts(KeywordSearch))
	}
}
