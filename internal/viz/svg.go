package viz

import (
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/joelkehle/clinical-copilot/internal/trial"
)

// The corpus has no Go plotting library, so chart geometry is emitted as a
// small SVG document and rasterized by the rendering backend.

const (
	svgWidth  = 960
	svgHeight = 600
)

var palette = []string{"#2E86AB", "#90EE90", "#FFD700", "#FFA500", "#FF6347", "#7f7fff"}

// BuildSVG lays out one chart spec as a standalone SVG document.
func BuildSVG(spec trial.ChartSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		svgWidth, svgHeight, svgWidth, svgHeight)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="white"/>`, svgWidth, svgHeight)
	fmt.Fprintf(&b, `<text x="%d" y="36" text-anchor="middle" font-family="sans-serif" font-size="22" font-weight="bold">%s</text>`,
		svgWidth/2, html.EscapeString(spec.Title))

	switch spec.Kind {
	case trial.ChartPie:
		drawPie(&b, spec.Series)
	case trial.ChartLine, trial.ChartTimeline:
		drawLine(&b, spec.Series)
	case trial.ChartDashboard:
		drawPanels(&b, spec.Series)
	default:
		drawBars(&b, spec.Series)
	}

	b.WriteString("</svg>")
	return b.String()
}

func drawBars(b *strings.Builder, series []trial.SeriesPoint) {
	if len(series) == 0 {
		return
	}
	const top, bottom, left = 80.0, 540.0, 80.0
	maxVal := 1.0
	for _, p := range series {
		if v := math.Abs(p.Value); v > maxVal {
			maxVal = v
		}
	}
	width := (svgWidth - 2*left) / float64(len(series))
	for i, p := range series {
		h := math.Abs(p.Value) / maxVal * (bottom - top)
		x := left + float64(i)*width + width*0.15
		fmt.Fprintf(b, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" opacity="0.85"/>`,
			x, bottom-h, width*0.7, h, palette[i%len(palette)])
		fmt.Fprintf(b, `<text x="%.1f" y="%.1f" text-anchor="middle" font-family="sans-serif" font-size="14" font-weight="bold">%.1f</text>`,
			x+width*0.35, bottom-h-8, p.Value)
		fmt.Fprintf(b, `<text x="%.1f" y="%.1f" text-anchor="middle" font-family="sans-serif" font-size="13">%s</text>`,
			x+width*0.35, bottom+22, html.EscapeString(p.Label))
	}
	fmt.Fprintf(b, `<line x1="%.1f" y1="%.1f" x2="%d" y2="%.1f" stroke="#333"/>`, left, bottom, svgWidth-80, bottom)
}

func drawPie(b *strings.Builder, series []trial.SeriesPoint) {
	total := 0.0
	for _, p := range series {
		if p.Value > 0 {
			total += p.Value
		}
	}
	if total == 0 {
		return
	}
	const cx, cy, r = 400.0, 320.0, 200.0
	angle := -math.Pi / 2
	for i, p := range series {
		if p.Value <= 0 {
			continue
		}
		span := p.Value / total * 2 * math.Pi
		x1, y1 := cx+r*math.Cos(angle), cy+r*math.Sin(angle)
		x2, y2 := cx+r*math.Cos(angle+span), cy+r*math.Sin(angle+span)
		large := 0
		if span > math.Pi {
			large = 1
		}
		fmt.Fprintf(b, `<path d="M%.1f,%.1f L%.1f,%.1f A%.1f,%.1f 0 %d 1 %.1f,%.1f Z" fill="%s"/>`,
			cx, cy, x1, y1, r, r, large, x2, y2, palette[i%len(palette)])
		// Legend row per slice.
		ly := 120 + i*28
		fmt.Fprintf(b, `<rect x="680" y="%d" width="18" height="18" fill="%s"/>`, ly, palette[i%len(palette)])
		fmt.Fprintf(b, `<text x="706" y="%d" font-family="sans-serif" font-size="14">%s (%.1f%%)</text>`,
			ly+14, html.EscapeString(p.Label), p.Value/total*100)
		angle += span
	}
}

func drawLine(b *strings.Builder, series []trial.SeriesPoint) {
	if len(series) == 0 {
		return
	}
	const top, bottom, left, right = 90.0, 520.0, 90.0, 880.0
	maxVal := 1.0
	for _, p := range series {
		if p.Value > maxVal {
			maxVal = p.Value
		}
	}
	step := (right - left) / math.Max(1, float64(len(series)-1))
	var points []string
	for i, p := range series {
		x := left + float64(i)*step
		y := bottom - p.Value/maxVal*(bottom-top)
		points = append(points, fmt.Sprintf("%.1f,%.1f", x, y))
		fmt.Fprintf(b, `<circle cx="%.1f" cy="%.1f" r="6" fill="%s"/>`, x, y, palette[0])
		fmt.Fprintf(b, `<text x="%.1f" y="%.1f" text-anchor="middle" font-family="sans-serif" font-size="12">%s</text>`,
			x, bottom+24, html.EscapeString(p.Label))
	}
	fmt.Fprintf(b, `<polyline points="%s" fill="none" stroke="%s" stroke-width="3"/>`,
		strings.Join(points, " "), palette[0])
	fmt.Fprintf(b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#333"/>`, left, bottom, right, bottom)
}

func drawPanels(b *strings.Builder, series []trial.SeriesPoint) {
	cols := 2
	for i, p := range series {
		col, row := i%cols, i/cols
		x, y := 60+col*430, 70+row*170
		fmt.Fprintf(b, `<rect x="%d" y="%d" width="400" height="140" rx="8" fill="#f2f6fa" stroke="#ccd"/>`, x, y)
		fmt.Fprintf(b, `<text x="%d" y="%d" font-family="sans-serif" font-size="15" font-weight="bold">%s</text>`,
			x+16, y+34, html.EscapeString(truncate(p.Label, 48)))
		fmt.Fprintf(b, `<text x="%d" y="%d" font-family="sans-serif" font-size="13" fill="#556">%d data points</text>`,
			x+16, y+66, int(p.Value))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
