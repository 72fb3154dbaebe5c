package entity

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = `<html><head>
<link rel="stylesheet" href="/style.css">
<script src="/app.js"></script>
</head><body>
<img src="/logo.png">
<p class="lead">ready</p>
</body></html>`

// requireChrome skips when no browser chromedp could start is installed.
func requireChrome(t *testing.T) {
	t.Helper()
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable", "chrome"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("chrome not found")
}

type testSite struct {
	*httptest.Server
	images atomic.Int64
	styles atomic.Int64
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()
	s := &testSite{}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "cf_clearance", Value: "token-123", Path: "/"})
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, testPage)
	})
	mux.HandleFunc("/style.css", func(w http.ResponseWriter, r *http.Request) {
		s.styles.Add(1)
		w.Header().Set("Content-Type", "text/css")
		fmt.Fprint(w, "p{color:red}")
	})
	mux.HandleFunc("/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		fmt.Fprint(w, "void 0;")
	})
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, r *http.Request) {
		s.images.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func TestExec(t *testing.T) {
	requireChrome(t)
	site := newTestSite(t)

	b, err := NewExec(true)
	require.NoError(t, err)
	defer b.Close()

	tab, err := b.NewTab(site.URL + "/")
	require.NoError(t, err)
	defer tab.Close()

	tab.Hijack(MinimalPolicy())
	require.NoError(t, tab.EnableFetch())

	require.NoError(t, chromedp.Run(tab.Ctx, tab.BuildHooks()...))
	require.NoError(t, tab.WaitReady("p.lead", 30*time.Second))

	cookies, err := tab.Cookies()
	require.NoError(t, err)
	var token string
	for _, c := range cookies {
		if c.Name == "cf_clearance" {
			token = c.Value
		}
	}
	assert.Equal(t, "token-123", token)

	v, err := b.Version()
	require.NoError(t, err)
	assert.NotEmpty(t, v.UserAgent)

	assert.Zero(t, site.images.Load())
	assert.Zero(t, site.styles.Load())
	assert.Positive(t, tab.Allowed.Load())
	assert.Positive(t, tab.Blocked.Load())
	assert.NotEmpty(t, tab.FetchRedirectNodes())
}

func TestWaitReadyTimeout(t *testing.T) {
	requireChrome(t)
	site := newTestSite(t)

	b, err := NewExec(true)
	require.NoError(t, err)
	defer b.Close()

	tab, err := b.NewTab(site.URL + "/")
	require.NoError(t, err)
	defer tab.Close()

	require.NoError(t, chromedp.Run(tab.Ctx, tab.BuildHooks()...))
	err = tab.WaitReady("#never", time.Second)
	require.Error(t, err)
}

func TestCrawler(t *testing.T) {
	requireChrome(t)
	site := newTestSite(t)

	b, err := NewExec(true, WithCapcity(3))
	require.NoError(t, err)
	defer b.Close()

	wg := sync.WaitGroup{}
	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			tab, err := b.NewTab(site.URL + "/")
			if err != nil {
				errs <- err
				return
			}
			defer tab.Close()

			if err := chromedp.Run(tab.Ctx, tab.BuildHooks()...); err != nil {
				errs <- err
				return
			}
			errs <- tab.WaitReady("p.lead", 30*time.Second)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, b.Pool, 0)
}
