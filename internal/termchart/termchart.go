// Package termchart renders price series as terminal line plots.
package termchart

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"stockwatch/internal/domain"
	"stockwatch/internal/watch"
)

var (
	upStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	downStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Plot draws closes at the given size, colored by trend.
func Plot(series []domain.PricePoint, trend watch.Trend, height, width int) string {
	if len(series) == 0 {
		return ""
	}
	closes := make([]float64, len(series))
	for i, p := range series {
		closes[i] = p.Price
	}
	return plot(closes, trend, caption(series), height, width)
}

func caption(series []domain.PricePoint) string {
	return series[0].Date + " .. " + series[len(series)-1].Date
}

func plot(closes []float64, trend watch.Trend, caption string, height, width int) string {
	plotW := width - 12 // y-axis labels
	if plotW < 10 {
		plotW = 10
	}
	out := asciigraph.Plot(closes,
		asciigraph.Height(height),
		asciigraph.Width(plotW),
		asciigraph.Precision(2),
		asciigraph.Caption(caption),
	)
	if trend == watch.TrendUp {
		return upStyle.Render(out)
	}
	return downStyle.Render(out)
}

// asciiChart draws a card's closes as a line plot. The plot is cached per
// width so repaints between resizes are free.
type asciiChart struct {
	mu       sync.Mutex
	id       watch.CardID
	closes   []float64
	trend    watch.Trend
	caption  string
	height   int
	width    int
	cached   string
	disposed bool
}

// NewFactory returns a watch.ChartFactory producing plots of the given
// height.
func NewFactory(height int) watch.ChartFactory {
	if height < 2 {
		height = 2
	}
	return func(id watch.CardID, series []domain.PricePoint, trend watch.Trend) watch.Chart {
		closes := make([]float64, len(series))
		for i, p := range series {
			closes[i] = p.Price
		}
		return &asciiChart{id: id, closes: closes, trend: trend, caption: caption(series), height: height}
	}
}

func (c *asciiChart) View(width int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed || len(c.closes) == 0 {
		return ""
	}
	if width == c.width && c.cached != "" {
		return c.cached
	}
	c.width = width
	c.cached = plot(c.closes, c.trend, c.caption, c.height, width)
	return c.cached
}

func (c *asciiChart) Dispose() {
	c.mu.Lock()
	c.disposed = true
	c.closes = nil
	c.cached = ""
	c.mu.Unlock()
}
