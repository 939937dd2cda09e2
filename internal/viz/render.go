package viz

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/joelkehle/clinical-copilot/internal/trial"
)

// Renderer is the plotting surface: chart spec in, image bytes out. The
// default implementation rasterizes through headless Chromium; tests and
// deployments without a browser substitute their own.
type Renderer interface {
	Render(ctx context.Context, spec trial.ChartSpec) ([]byte, error)
}

// ChromiumRenderer screenshots the chart SVG in a headless browser and
// returns PNG bytes.
type ChromiumRenderer struct {
	chromePath string
}

func NewChromiumRenderer() *ChromiumRenderer {
	return &ChromiumRenderer{chromePath: detectChromePath()}
}

// NewChromiumRendererAt pins the browser binary; an empty path falls back to
// detection.
func NewChromiumRendererAt(path string) *ChromiumRenderer {
	if path == "" {
		return NewChromiumRenderer()
	}
	return &ChromiumRenderer{chromePath: path}
}

func (r *ChromiumRenderer) Render(ctx context.Context, spec trial.ChartSpec) ([]byte, error) {
	doc := fmt.Sprintf(`<!DOCTYPE html><html><head><meta charset="utf-8"><style>body{margin:0}</style></head><body>%s</body></html>`,
		BuildSVG(spec))

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var png []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(doc))
	err := chromedp.Run(taskCtx,
		chromedp.EmulateViewport(svgWidth, svgHeight),
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			out, err := page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithClip(&page.Viewport{Width: svgWidth, Height: svgHeight, Scale: 1}).
				Do(ctx)
			if err != nil {
				return err
			}
			png = out
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s chart: %w", spec.Kind, err)
	}
	return png, nil
}

func detectChromePath() string {
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p
	}
	for _, name := range []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}
