package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"stockwatch/internal/config"
	"stockwatch/internal/domain"
	"stockwatch/internal/termchart"
	"stockwatch/internal/util"
	"stockwatch/internal/watch"
	"stockwatch/pkg/watchlist"
)

const version = "0.1.0"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: watch-cli [-config path] <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  list                          List tracked symbols and visible notices\n")
	fmt.Fprintf(os.Stderr, "  add SYMBOL [-price P] [-date D] [-notes N]\n")
	fmt.Fprintf(os.Stderr, "                                Record a notice (defaults: current price, today)\n")
	fmt.Fprintf(os.Stderr, "  remove SYMBOL [-yes]          Delete a symbol and all its notices\n")
	fmt.Fprintf(os.Stderr, "  delete ID [-yes]              Delete one notice\n")
	fmt.Fprintf(os.Stderr, "  hide ID                       Hide a notice locally\n")
	fmt.Fprintf(os.Stderr, "  unhide SYMBOL                 Show every hidden notice of a symbol\n")
	fmt.Fprintf(os.Stderr, "  price SYMBOL                  Print the current price\n")
	fmt.Fprintf(os.Stderr, "  history SYMBOL [-period P]    Plot daily closes (1mo, 3mo, 6mo, 1yr)\n")
	fmt.Fprintf(os.Stderr, "  version                       Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "\n")
}

func main() {
	flag.Usage = usage
	cfgPath := flag.String("config", config.Path(), "path to config file")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}
	if args[0] == "version" {
		fmt.Printf("watch-cli %s\n", version)
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := &cli{
		cfg:    cfg,
		client: watchlist.NewClient(cfg.Client.BaseURL, cfg.Client.Timeout),
		out:    os.Stdout,
		in:     bufio.NewReader(os.Stdin),
	}
	if err := app.run(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", watchlist.UserMessage(err))
		os.Exit(1)
	}
}

type cli struct {
	cfg    *config.Config
	client *watchlist.Client
	out    io.Writer
	in     *bufio.Reader
}

// manager builds a watch.Manager that prints notifications and asks for
// confirmation on stdin unless yes is set.
func (c *cli) manager(yes bool) (*watch.Manager, error) {
	hidden := watch.NewHiddenStore(filepath.Join(c.cfg.Client.StateDir, "hidden.json"), nil)
	confirm := watch.ConfirmFunc(c.ask)
	if yes {
		confirm = watch.AlwaysConfirm
	}
	return watch.NewManager(watch.Options{
		API:     c.client,
		Store:   watch.NewStore(hidden),
		Charts:  termchart.NewFactory(c.cfg.Client.ChartHeight),
		Confirm: confirm,
		Notify: watch.NotifyFunc(func(n watch.Notification) {
			fmt.Fprintln(c.out, n.Message)
		}),
	})
}

func (c *cli) ask(prompt string) bool {
	fmt.Fprintf(c.out, "%s [y/N] ", prompt)
	line, _ := c.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	price := fs.String("price", "", "price noticed (default: current price)")
	date := fs.String("date", "", "date noticed YYYY-MM-DD (default: today)")
	notes := fs.String("notes", "", "free-form notes")
	period := fs.String("period", string(domain.DefaultPeriod), "history period")
	// Flags may follow the positional argument.
	var pos []string
	for len(args) > 0 {
		if err := fs.Parse(args); err != nil {
			return err
		}
		args = fs.Args()
		if len(args) > 0 {
			pos = append(pos, args[0])
			args = args[1:]
		}
	}
	arg := func() (string, error) {
		if len(pos) == 0 {
			return "", fmt.Errorf("%s: missing argument", cmd)
		}
		return pos[0], nil
	}

	switch cmd {
	case "list":
		return c.list(ctx)

	case "add":
		sym, err := arg()
		if err != nil {
			return err
		}
		m, err := c.manager(true)
		if err != nil {
			return err
		}
		defer m.Close()
		_, err = m.AddNotice(ctx, watch.AddForm{Symbol: sym, Price: *price, Date: *date, Notes: *notes})
		return err

	case "remove":
		sym, err := arg()
		if err != nil {
			return err
		}
		return c.dispatch(ctx, *yes, watch.Action{Kind: watch.ActionRemove, Symbol: sym})

	case "delete", "hide":
		s, err := arg()
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid notice id %q", s)
		}
		kind := watch.ActionDeleteNotice
		if cmd == "hide" {
			kind = watch.ActionHide
		}
		return c.dispatch(ctx, *yes, watch.Action{Kind: kind, NoticeID: id})

	case "unhide":
		sym, err := arg()
		if err != nil {
			return err
		}
		return c.dispatch(ctx, *yes, watch.Action{Kind: watch.ActionShowHidden, Symbol: sym})

	case "price":
		sym, err := arg()
		if err != nil {
			return err
		}
		m, err := c.manager(true)
		if err != nil {
			return err
		}
		defer m.Close()
		_, err = m.FetchPrice(ctx, sym)
		return err

	case "history":
		sym, err := arg()
		if err != nil {
			return err
		}
		return c.history(ctx, sym, domain.Period(*period))
	}

	usage()
	return fmt.Errorf("unknown command: %s", cmd)
}

func (c *cli) dispatch(ctx context.Context, yes bool, a watch.Action) error {
	m, err := c.manager(yes)
	if err != nil {
		return err
	}
	defer m.Close()
	// Load first so hide and unhide act on the current notices.
	if err := m.Reload(ctx); err != nil {
		return err
	}
	return m.Dispatch(ctx, a)
}

func (c *cli) list(ctx context.Context) error {
	m, err := c.manager(false)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Reload(ctx); err != nil {
		return err
	}

	cards := m.Cards()
	if len(cards) == 0 {
		fmt.Fprintln(c.out, "No stocks tracked yet.")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "SYMBOL", "PRICE", "NOTICED", "AGE", "AT", "CHANGE", "NOTES").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, card := range cards {
		if len(card.Notices) == 0 {
			t.Row("", card.Symbol, card.Price, "", "", "", "", card.ShowHiddenLabel)
			continue
		}
		for i, n := range card.Notices {
			sym, price := card.Symbol, card.Price
			if i > 0 {
				sym, price = "", ""
			}
			t.Row(strconv.FormatInt(n.ID, 10), sym, price, n.Date, n.Age, n.PriceNoticed, n.Change, n.Notes)
		}
		if card.HiddenCount > 0 {
			t.Row("", "", "", "", "", "", "", card.ShowHiddenLabel)
		}
	}
	fmt.Fprintln(c.out, t.Render())
	return nil
}

func (c *cli) history(ctx context.Context, symbol string, period domain.Period) error {
	if !period.Valid() {
		return fmt.Errorf("unknown period %q (want 1mo, 3mo, 6mo or 1yr)", period)
	}
	sym := domain.NormalizeSymbol(symbol)
	pts, err := c.client.GetHistory(ctx, sym, period)
	if err != nil {
		return err
	}
	if len(pts) == 0 {
		fmt.Fprintf(c.out, "No chart data for %s (%s)\n", sym, period.Label())
		return nil
	}
	fmt.Fprintf(c.out, "%s  %s\n\n", sym, period.Label())
	fmt.Fprintln(c.out, termchart.Plot(pts, watch.TrendOf(pts), c.cfg.Client.ChartHeight, 80))
	return nil
}
