package termchart

import (
	"strings"
	"testing"

	"stockwatch/internal/domain"
	"stockwatch/internal/watch"
)

var series = []domain.PricePoint{
	{Date: "2024-01-02", Price: 185.5},
	{Date: "2024-01-03", Price: 184.25},
	{Date: "2024-01-04", Price: 181.91},
	{Date: "2024-01-05", Price: 181.18},
}

func TestFactoryViewAndDispose(t *testing.T) {
	c := NewFactory(4)("chart-AAPL", series, watch.TrendDown)

	out := c.View(60)
	if !strings.Contains(out, "2024-01-02 .. 2024-01-05") {
		t.Errorf("plot missing caption:\n%s", out)
	}
	if lines := strings.Count(out, "\n"); lines < 4 {
		t.Errorf("plot has %d lines, want at least the configured height", lines)
	}
	if again := c.View(60); again != out {
		t.Error("repeat View at the same width should be identical")
	}

	c.Dispose()
	if got := c.View(60); got != "" {
		t.Errorf("View after Dispose = %q, want empty", got)
	}
}

func TestPlotEmpty(t *testing.T) {
	if got := Plot(nil, watch.TrendUp, 4, 60); got != "" {
		t.Errorf("Plot(nil) = %q", got)
	}
	if got := Plot(series, watch.TrendUp, 4, 60); !strings.Contains(got, "185.50") {
		t.Errorf("Plot should label the max close:\n%s", got)
	}
}
