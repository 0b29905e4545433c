package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	c := New()
	if c == nil {
		t.Fatal("New() returned nil")
	}
}

func TestCollector_RecordPage(t *testing.T) {
	c := New()

	c.RecordPage(100 * time.Millisecond)
	c.RecordPage(700 * time.Millisecond)
	c.RecordPage(30 * time.Second)

	snap := c.Snapshot()
	if snap.PagesFetched != 3 {
		t.Errorf("PagesFetched = %d, want 3", snap.PagesFetched)
	}
	if got := snap.AverageLoadTime; got != 10266*time.Millisecond {
		t.Errorf("AverageLoadTime = %v, want 10.266s", got)
	}
	want := []int64{1, 1, 0, 0, 0, 0, 1}
	for i, n := range want {
		if snap.LoadTimeHist[i] != n {
			t.Errorf("LoadTimeHist[%d] = %d, want %d", i, snap.LoadTimeHist[i], n)
		}
	}
}

func TestCollector_RecordError(t *testing.T) {
	c := New()

	c.RecordError("navigation")
	c.RecordError("navigation")
	c.RecordError("extraction")

	snap := c.Snapshot()
	if snap.ErrorsTotal != 3 {
		t.Errorf("ErrorsTotal = %d, want 3", snap.ErrorsTotal)
	}
	if snap.ErrorCounts["navigation"] != 2 {
		t.Errorf("ErrorCounts[navigation] = %d, want 2", snap.ErrorCounts["navigation"])
	}
}

func TestCollector_Counters(t *testing.T) {
	c := New()

	c.RecordRecords(5)
	c.RecordRecords(2)
	c.RecordDropped(3)
	c.RecordRetry()
	c.RecordContentNotReady()
	c.RecordSeedDone()
	c.RecordSeedDone()
	c.RecordSeedFailed()
	c.RecordSeedSkipped()
	c.RecordPacing(1500 * time.Millisecond)

	snap := c.Snapshot()
	if snap.RecordsEmitted != 7 || snap.ItemsDropped != 3 {
		t.Errorf("records %d dropped %d, want 7 and 3", snap.RecordsEmitted, snap.ItemsDropped)
	}
	if snap.RetriesTotal != 1 || snap.ContentNotReady != 1 {
		t.Errorf("retries %d not-ready %d, want 1 and 1", snap.RetriesTotal, snap.ContentNotReady)
	}
	if snap.SeedsDone != 2 || snap.SeedsFailed != 1 || snap.SeedsSkipped != 1 {
		t.Errorf("seeds done %d failed %d skipped %d", snap.SeedsDone, snap.SeedsFailed, snap.SeedsSkipped)
	}
	if snap.PacingTotal != 1500*time.Millisecond {
		t.Errorf("PacingTotal = %v", snap.PacingTotal)
	}

	summary := snap.Summary()
	if summary["records"] != int64(7) {
		t.Errorf("Summary()[records] = %v", summary["records"])
	}
}

func TestCollector_Workers(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.WorkerStarted()
		}()
	}
	wg.Wait()
	c.WorkerStopped()

	if got := c.Snapshot().ActiveWorkers; got != 3 {
		t.Errorf("ActiveWorkers = %d, want 3", got)
	}
}

func TestCollector_AverageLoadTimeEmpty(t *testing.T) {
	if got := New().AverageLoadTime(); got != 0 {
		t.Errorf("AverageLoadTime() = %v, want 0", got)
	}
}
