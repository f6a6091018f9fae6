package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"webrag/pkg/config"
	"webrag/pkg/utils"
)

// navigatorOverrideScript masks the headless webdriver fingerprint before any page script runs
const navigatorOverrideScript = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
window.chrome = window.chrome || {runtime: {}};
`

// removeOverlaysScript strips fixed and sticky elements that cover a
// significant share of the viewport (cookie banners, signup modals) and
// restores scrolling in case a modal locked it
const removeOverlaysScript = `
(() => {
	const viewportArea = window.innerWidth * window.innerHeight;
	for (const el of Array.from(document.querySelectorAll('body *'))) {
		const style = window.getComputedStyle(el);
		if (style.position !== 'fixed' && style.position !== 'sticky') continue;
		const z = parseInt(style.zIndex, 10);
		if (isNaN(z) || z < 100) continue;
		const rect = el.getBoundingClientRect();
		if (rect.width * rect.height > viewportArea * 0.1) {
			el.remove();
		}
	}
	document.documentElement.style.overflow = 'auto';
	document.body.style.overflow = 'auto';
})();
`

// inlineIframesScript replaces same-origin iframes with their document body
// so their text survives the HTML capture; cross-origin frames are left alone
const inlineIframesScript = `
(() => {
	for (const frame of Array.from(document.querySelectorAll('iframe'))) {
		try {
			const doc = frame.contentDocument;
			if (!doc || !doc.body) continue;
			const div = document.createElement('div');
			div.innerHTML = doc.body.innerHTML;
			frame.replaceWith(div);
		} catch (e) {
			// Cross-origin frame, not readable
		}
	}
})();
`

const (
	maxScrollRounds   = 20
	imageWaitTimeout  = 10 * time.Second
	imageWaitInterval = 200 * time.Millisecond
)

// BrowserFetcher renders pages in a headless Chrome tab before capturing
// their HTML, so JavaScript-built content is present in the capture.
// Each FetchHTML call runs in a fresh tab; Close shuts the browser down.
type BrowserFetcher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	fcfg        config.FetchConfig
	log         *logrus.Entry
}

// NewBrowserFetcher prepares a Chrome exec allocator from the fetch settings.
// The browser process itself starts lazily on the first FetchHTML call.
func NewBrowserFetcher(cfg *config.AppConfig, log *logrus.Entry) *BrowserFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if !*cfg.Fetch.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	log.Info("Headless browser allocator initialized")

	return &BrowserFetcher{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		fcfg:        cfg.Fetch,
		log:         log,
	}
}

// FetchHTML renders pageURL in a new tab and returns the captured HTML
func (bf *BrowserFetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(bf.allocCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, bf.fcfg.PageTimeout)
	defer cancelTimeout()

	// The tab descends from the allocator context, not the caller's, so the
	// browser survives across fetches; propagate caller cancellation by hand
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			cancelTimeout()
		case <-stopWatch:
		}
	}()

	var html string
	tasks := bf.renderTasks(pageURL, &html)

	if err := chromedp.Run(tabCtx, tasks); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: rendering %s: %v", utils.ErrFetchFailed, pageURL, err)
	}
	return html, nil
}

// renderTasks assembles the per-page action sequence from the fetch settings
func (bf *BrowserFetcher) renderTasks(pageURL string, html *string) chromedp.Tasks {
	f := bf.fcfg
	var tasks chromedp.Tasks

	if *f.OverrideNavigator {
		tasks = append(tasks, chromedp.ActionFunc(func(c context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(navigatorOverrideScript).Do(c)
			return err
		}))
	}

	tasks = append(tasks, chromedp.Navigate(pageURL))

	if *f.ScanFullPage {
		tasks = append(tasks, bf.scrollFullPage())
	}
	if *f.WaitForImages {
		tasks = append(tasks, waitForImages())
	}
	if *f.SimulateUser {
		tasks = append(tasks, chromedp.ActionFunc(func(c context.Context) error {
			return input.DispatchMouseEvent(input.MouseMoved, 131, 204).Do(c)
		}))
	}
	if *f.RemoveOverlays {
		tasks = append(tasks, chromedp.Evaluate(removeOverlaysScript, nil))
	}
	if *f.ProcessIframes {
		tasks = append(tasks, chromedp.Evaluate(inlineIframesScript, nil))
	}
	if *f.AdjustViewport {
		tasks = append(tasks, adjustViewportToContent())
	}

	tasks = append(tasks,
		chromedp.Sleep(f.SettleDelay),
		chromedp.OuterHTML("html", html, chromedp.ByQuery),
	)
	return tasks
}

// scrollFullPage scrolls to the bottom in rounds until the document height
// stops growing, forcing lazy-loaded content to render, then returns to the top
func (bf *BrowserFetcher) scrollFullPage() chromedp.Action {
	return chromedp.ActionFunc(func(c context.Context) error {
		var lastHeight, height int64
		for i := 0; i < maxScrollRounds; i++ {
			err := chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight); document.body.scrollHeight`, &height).Do(c)
			if err != nil {
				return err
			}
			if height == lastHeight {
				break
			}
			lastHeight = height
			if err := chromedp.Sleep(bf.fcfg.ScrollDelay).Do(c); err != nil {
				return err
			}
		}
		return chromedp.Evaluate(`window.scrollTo(0, 0)`, nil).Do(c)
	})
}

// waitForImages polls until every <img> reports complete, bounded by
// imageWaitTimeout; slow images are not an error, the capture proceeds
func waitForImages() chromedp.Action {
	return chromedp.ActionFunc(func(c context.Context) error {
		err := chromedp.Poll(
			`Array.from(document.images).every(img => img.complete)`,
			nil,
			chromedp.WithPollingInterval(imageWaitInterval),
			chromedp.WithPollingTimeout(imageWaitTimeout),
		).Do(c)
		if err != nil && c.Err() != nil {
			return c.Err()
		}
		return nil
	})
}

// adjustViewportToContent resizes the emulated viewport to the full document
// size so position-dependent layouts render everything
func adjustViewportToContent() chromedp.Action {
	return chromedp.ActionFunc(func(c context.Context) error {
		var dims struct {
			Width  int64 `json:"width"`
			Height int64 `json:"height"`
		}
		err := chromedp.Evaluate(
			`({width: document.documentElement.scrollWidth, height: document.documentElement.scrollHeight})`,
			&dims,
		).Do(c)
		if err != nil {
			return err
		}
		if dims.Width <= 0 || dims.Height <= 0 {
			return nil
		}
		// Cap the emulated surface; pathological pages report absurd heights
		if dims.Height > 12000 {
			dims.Height = 12000
		}
		return emulation.SetDeviceMetricsOverride(dims.Width, dims.Height, 1, false).Do(c)
	})
}

// Close shuts down the browser process and releases the allocator
func (bf *BrowserFetcher) Close() {
	bf.allocCancel()
	bf.log.Info("Headless browser shut down")
}
