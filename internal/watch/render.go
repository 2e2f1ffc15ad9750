package watch

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"stockwatch/internal/domain"
)

// HiddenSet is the read side of the hidden-notice store.
type HiddenSet interface {
	IsHidden(id int64) bool
}

// RenderInput is everything a render pass reads.
type RenderInput struct {
	Groups  []domain.TrackedSymbol
	Hidden  HiddenSet
	Periods map[CardID]domain.Period // selected period per card; missing means DefaultPeriod
	Now     time.Time
}

// PeriodButton is one entry of a card's period selector.
type PeriodButton struct {
	Period domain.Period
	Label  string
	Active bool
}

// NoticeView is one visible notice row.
type NoticeView struct {
	ID           int64
	Date         string
	Age          string
	PriceNoticed string
	Change       string
	Trend        string // "up", "down" or "flat"
	Notes        string
}

// CardView is the view model for one tracked symbol.
type CardView struct {
	ID              CardID
	Symbol          string
	Price           string
	Periods         []PeriodButton
	Period          domain.Period
	Notices         []NoticeView
	HiddenCount     int
	ShowHiddenLabel string
	HasBundledChart bool
}

// Render rebuilds every card from scratch, in server order. Hidden notices
// are left out of the rows and counted instead.
func Render(in RenderInput) []CardView {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	cards := make([]CardView, 0, len(in.Groups))
	for _, g := range in.Groups {
		id := CardIDFor(g.Symbol)
		period, ok := in.Periods[id]
		if !ok || !period.Valid() {
			period = domain.DefaultPeriod
		}

		card := CardView{
			ID:              id,
			Symbol:          domain.NormalizeSymbol(g.Symbol),
			Price:           FormatPrice(g.CurrentPrice),
			Periods:         periodButtons(period),
			Period:          period,
			Notices:         []NoticeView{},
			HasBundledChart: len(g.ChartData) > 0,
		}

		for _, e := range g.Entries {
			if in.Hidden != nil && in.Hidden.IsHidden(e.ID) {
				card.HiddenCount++
				continue
			}
			card.Notices = append(card.Notices, noticeView(e, now))
		}
		if card.HiddenCount > 0 {
			card.ShowHiddenLabel = fmt.Sprintf("%d hidden — show all", card.HiddenCount)
		}
		cards = append(cards, card)
	}
	return cards
}

func periodButtons(active domain.Period) []PeriodButton {
	out := make([]PeriodButton, 0, len(domain.Periods))
	for _, p := range domain.Periods {
		out = append(out, PeriodButton{Period: p, Label: p.Label(), Active: p == active})
	}
	return out
}

func noticeView(e domain.Notice, now time.Time) NoticeView {
	v := NoticeView{
		ID:           e.ID,
		Date:         e.DateNoticed,
		PriceNoticed: fmt.Sprintf("$%.2f", e.PriceNoticed),
		Change:       FormatChange(e.Change, e.ChangePercent),
		Trend:        TrendClass(e.Change),
		Notes:        e.Notes,
	}
	if t, err := time.Parse(domain.DateLayout, e.DateNoticed); err == nil {
		v.Age = humanize.RelTime(t, now, "ago", "from now")
	}
	return v
}

// FormatPrice formats a price as $X.XX with thousands separators, or "N/A".
func FormatPrice(p *float64) string {
	if p == nil || math.IsNaN(*p) {
		return "N/A"
	}
	return "$" + humanize.FormatFloat("#,###.##", *p)
}

// FormatChange renders "+$12.50 (+9.09%)". It returns "" when the server
// could not compute a change.
func FormatChange(change, pct *float64) string {
	if change == nil {
		return ""
	}
	sign := "+"
	c := *change
	if c < 0 {
		sign = "-"
		c = -c
	}
	s := fmt.Sprintf("%s$%.2f", sign, c)
	if pct != nil {
		s += fmt.Sprintf(" (%+.2f%%)", *pct)
	}
	return s
}

// TrendClass classifies a change as "up", "down" or "flat".
func TrendClass(change *float64) string {
	switch {
	case change == nil || *change == 0:
		return "flat"
	case *change > 0:
		return "up"
	default:
		return "down"
	}
}
