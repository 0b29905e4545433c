package fetcher

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/gautamk/summer-hiking-series/internal/browser/browsertest"
	crawlerrors "github.com/gautamk/summer-hiking-series/internal/errors"
	"github.com/gautamk/summer-hiking-series/internal/metrics"
	"github.com/gautamk/summer-hiking-series/internal/ratelimit"
)

const (
	trailURL = "https://www.wta.org/go-hiking/hikes/mount-si"
	marker   = "#trip-reports .item"
	ready    = `<div id="trip-reports"><div class="item">report</div></div>`
)

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return ctx.Err()
}

func newFetcher(rec *sleepRecorder, m *metrics.Collector) *Fetcher {
	policy := ratelimit.NewPolicy(ratelimit.DefaultPolicyConfig(), rand.New(rand.NewSource(1)))
	return New(ratelimit.NewPacer(policy, 0, rec.sleep), time.Second, m, nil)
}

func openTab(t *testing.T, site *browsertest.Site) *browsertest.Tab {
	t.Helper()
	tab, err := site.NewTab(context.Background())
	if err != nil {
		t.Fatalf("NewTab() error = %v", err)
	}
	return tab.(*browsertest.Tab)
}

// =============================================================================
// Load Tests
// =============================================================================

func TestFetcher_LoadReady(t *testing.T) {
	site := browsertest.NewSite()
	site.Add(trailURL, browsertest.Page{HTML: ready})
	rec := &sleepRecorder{}
	m := metrics.New()

	status, err := newFetcher(rec, m).Load(context.Background(), openTab(t, site), trailURL, marker)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if status != StatusReady {
		t.Errorf("Load() status = %v, want ready", status)
	}
	if len(rec.calls) != 0 {
		t.Errorf("no retry expected, slept %v", rec.calls)
	}
	if m.Snapshot().PagesFetched != 1 {
		t.Error("page load not recorded")
	}
}

func TestFetcher_LoadNoMarker(t *testing.T) {
	site := browsertest.NewSite()
	site.Add(trailURL, browsertest.Page{HTML: "<h1>Mount Si</h1>"})

	status, err := newFetcher(&sleepRecorder{}, nil).Load(context.Background(), openTab(t, site), trailURL, "")
	if err != nil || status != StatusReady {
		t.Errorf("Load() = %v, %v; want ready, nil", status, err)
	}
}

func TestFetcher_LoadSlowContentRetriesOnce(t *testing.T) {
	site := browsertest.NewSite()
	site.Add(trailURL, browsertest.Page{HTML: ready, MarkerMisses: 1})
	rec := &sleepRecorder{}
	m := metrics.New()

	status, err := newFetcher(rec, m).Load(context.Background(), openTab(t, site), trailURL, marker)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if status != StatusReady {
		t.Errorf("Load() status = %v, want ready after retry", status)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("slept %d times, want 1", len(rec.calls))
	}
	if d := rec.calls[0]; d < 3*time.Second || d > 6*time.Second {
		t.Errorf("retry delay = %v, want within [3s, 6s]", d)
	}
	if m.Snapshot().RetriesTotal != 1 {
		t.Error("retry not recorded")
	}
	if site.VisitCount(trailURL) != 1 {
		t.Errorf("retry should wait again, not re-navigate; visits = %d", site.VisitCount(trailURL))
	}
}

func TestFetcher_LoadContentNotReady(t *testing.T) {
	site := browsertest.NewSite()
	site.Add(trailURL, browsertest.Page{HTML: "<p>no reports yet</p>"})
	rec := &sleepRecorder{}
	m := metrics.New()

	status, err := newFetcher(rec, m).Load(context.Background(), openTab(t, site), trailURL, marker)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if status != StatusContentNotReady {
		t.Errorf("Load() status = %v, want content_not_ready", status)
	}
	if len(rec.calls) != 1 {
		t.Errorf("slept %d times, want exactly one retry delay", len(rec.calls))
	}
	if m.Snapshot().ContentNotReady != 1 {
		t.Error("content-not-ready not recorded")
	}
}

func TestFetcher_LoadNavigationError(t *testing.T) {
	site := browsertest.NewSite()
	site.Add(trailURL, browsertest.Page{NavigateErr: errors.New("net::ERR_CONNECTION_RESET")})

	_, err := newFetcher(&sleepRecorder{}, nil).Load(context.Background(), openTab(t, site), trailURL, marker)
	if crawlerrors.GetErrorType(err) != crawlerrors.Navigation {
		t.Errorf("Load() error = %v, want navigation error", err)
	}
}

func TestFetcher_LoadCancelled(t *testing.T) {
	site := browsertest.NewSite()
	site.Add(trailURL, browsertest.Page{HTML: ready})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newFetcher(&sleepRecorder{}, nil).Load(ctx, openTab(t, site), trailURL, marker)
	if crawlerrors.GetErrorType(err) != crawlerrors.Cancelled {
		t.Errorf("Load() error = %v, want cancelled", err)
	}
	if len(site.Visits()) != 0 {
		t.Error("cancelled load should not navigate")
	}
}

func TestFetcher_LoadCancelledDuringRetry(t *testing.T) {
	site := browsertest.NewSite()
	site.Add(trailURL, browsertest.Page{HTML: "<p>empty</p>"})

	ctx, cancel := context.WithCancel(context.Background())
	sleep := func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	policy := ratelimit.NewPolicy(ratelimit.DefaultPolicyConfig(), rand.New(rand.NewSource(1)))
	f := New(ratelimit.NewPacer(policy, 0, sleep), time.Second, nil, nil)

	status, err := f.Load(ctx, openTab(t, site), trailURL, marker)
	if crawlerrors.GetErrorType(err) != crawlerrors.Cancelled {
		t.Errorf("Load() = %v, %v; want cancelled error", status, err)
	}
}

// =============================================================================
// Snapshot Tests
// =============================================================================

func TestFetcher_SnapshotFollowsRedirect(t *testing.T) {
	site := browsertest.NewSite()
	site.Add(trailURL, browsertest.Page{HTML: `<h1 class="documentFirstHeading">Mount Si</h1>`, RedirectTo: trailURL + "/"})
	tab := openTab(t, site)
	f := newFetcher(&sleepRecorder{}, nil)

	if _, err := f.Load(context.Background(), tab, trailURL, ""); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	doc, current, err := f.Snapshot(context.Background(), tab)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if current != trailURL+"/" {
		t.Errorf("Snapshot() url = %q", current)
	}
	if got := doc.Find("h1").Text(); got != "Mount Si" {
		t.Errorf("heading = %q", got)
	}
}

func TestStatus_String(t *testing.T) {
	if StatusReady.String() != "ready" || StatusContentNotReady.String() != "content_not_ready" {
		t.Error("unexpected status names")
	}
}
