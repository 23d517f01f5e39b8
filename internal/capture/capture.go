// Package capture takes page screenshots with headless Chrome. Animations,
// transitions and the text caret are disabled before capturing so the diff
// pipeline doesn't flag rendering noise.
package capture

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"visual-tracer/pkg/log"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// Viewport presets. Arbitrary sizes are accepted as "WxH" strings.
var viewports = map[string][2]int{
	"desktop": {1366, 768},
	"mobile":  {390, 844},
}

const quietCSS = `* { animation: none !important; transition: none !important; caret-color: transparent !important; }`

// Options configures a single capture.
type Options struct {
	Viewport string
	FullPage bool
	// SettleDelay is how long to wait after load before the screenshot, so
	// late layout shifts and images settle.
	SettleDelay time.Duration
	// HideSelectors are CSS selectors to blank out (dynamic content the
	// caller wants ignored).
	HideSelectors []string
	// RemoveSelectors are CSS selectors whose elements are deleted from the
	// DOM before capture, collapsing the space they occupied.
	RemoveSelectors []string
	// MaxHeight caps the page height in pixels for full-page captures.
	// Zero means no cap.
	MaxHeight int
	Timeout   time.Duration
}

// Client captures screenshots with a fresh headless browser per call.
type Client struct {
	log *logrus.Logger
}

// New returns a capture client.
func New(logger *logrus.Logger) *Client {
	return &Client{log: logger}
}

// ParseViewport resolves a preset name or "WxH" string to pixel dimensions,
// defaulting to desktop.
func ParseViewport(s string) (int, int) {
	if w, h, ok := parseDims(s); ok {
		return w, h
	}
	return viewports["desktop"][0], viewports["desktop"][1]
}

// ValidViewport reports whether s names a preset or is a "WxH" string with
// positive dimensions.
func ValidViewport(s string) bool {
	_, _, ok := parseDims(s)
	return ok
}

func parseDims(s string) (int, int, bool) {
	if dims, ok := viewports[strings.ToLower(s)]; ok {
		return dims[0], dims[1], true
	}
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) == 2 {
		w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
		h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errW == nil && errH == nil && w > 0 && h > 0 {
			return w, h, true
		}
	}
	return 0, 0, false
}

// Capture navigates to the URL and writes a PNG screenshot to outPath.
func (c *Client) Capture(ctx context.Context, url, outPath string, opts Options) error {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	w, h := ParseViewport(opts.Viewport)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("hide-scrollbars", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, opts.Timeout)
	defer cancelRun()

	var buf []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(w), int64(h)),
		chromedp.Navigate(url),
		removeElements(opts.RemoveSelectors),
		injectStyle(pageCSS(opts)),
		chromedp.Sleep(opts.SettleDelay),
	}
	if opts.FullPage {
		tasks = append(tasks, chromedp.FullScreenshot(&buf, 100))
	} else {
		tasks = append(tasks, chromedp.CaptureScreenshot(&buf))
	}

	if err := chromedp.Run(runCtx, tasks); err != nil {
		return fmt.Errorf("capture %s: %w", url, err)
	}

	if err := os.WriteFile(outPath, buf, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}

	c.log.WithFields(log.Fields{"url": url, "viewport": fmt.Sprintf("%dx%d", w, h)}).
		Info("Screenshot captured")
	return nil
}

// pageCSS builds the style sheet injected after navigation: animation
// quieting, hidden selectors, and the optional full-page height cap.
func pageCSS(opts Options) string {
	css := quietCSS
	if selector := joinSelectors(opts.HideSelectors); selector != "" {
		css += fmt.Sprintf(" %s { visibility: hidden !important; opacity: 0 !important; }", selector)
	}
	if opts.FullPage && opts.MaxHeight > 0 {
		css += fmt.Sprintf(" html, body { max-height: %dpx !important; overflow: hidden !important; }", opts.MaxHeight)
	}
	return css
}

func removeScript(selectors []string) string {
	selector := joinSelectors(selectors)
	if selector == "" {
		return ""
	}
	return fmt.Sprintf(`document.querySelectorAll(%q).forEach((el) => el.remove())`, selector)
}

func removeElements(selectors []string) chromedp.Action {
	script := removeScript(selectors)
	if script == "" {
		return chromedp.ActionFunc(func(context.Context) error { return nil })
	}
	return chromedp.Evaluate(script, nil)
}

func injectStyle(css string) chromedp.Action {
	script := fmt.Sprintf(
		`(() => { const s = document.createElement("style"); s.textContent = %q; document.head.appendChild(s); })()`,
		css)
	return chromedp.Evaluate(script, nil)
}

func joinSelectors(selectors []string) string {
	var cleaned []string
	for _, s := range selectors {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return strings.Join(cleaned, ", ")
}
