package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/render"
	"ledger/internal/sheets/google"
)

// withLedger opens the ledger, runs fn and releases the ledger.
func (a *App) withLedger(ctx context.Context, fn func(*ledger.Service) subcommands.ExitStatus) subcommands.ExitStatus {
	svc, release, err := a.OpenLedger(ctx)
	if err != nil {
		return a.fail(err)
	}
	defer func() {
		if err := release(); err != nil {
			fmt.Fprintf(a.Err, "warning: %v\n", err)
		}
	}()
	return fn(svc)
}

func (a *App) writeJSON(v any) subcommands.ExitStatus {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return a.fail(err)
	}
	return subcommands.ExitSuccess
}

type addCmd struct {
	app *App
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "create a new entry" }
func (*addCmd) Usage() string {
	return `ledgerctl add <name>

  Creates an entry. Names are unique regardless of case and surrounding
  whitespace.
`
}
func (*addCmd) SetFlags(*flag.FlagSet) {}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return c.app.usage("add takes exactly one name")
	}
	return c.app.withLedger(ctx, func(svc *ledger.Service) subcommands.ExitStatus {
		entry, err := svc.AddEntry(ctx, f.Arg(0))
		if err != nil {
			return c.app.fail(err)
		}
		fmt.Fprintf(c.app.Out, "Created %s (%s)\n", entry.Name, entry.CreatedAt)
		return subcommands.ExitSuccess
	})
}

type entriesCmd struct {
	app      *App
	jsonMode bool
}

func (*entriesCmd) Name() string     { return "entries" }
func (*entriesCmd) Synopsis() string { return "list entries, newest first" }
func (*entriesCmd) Usage() string {
	return `ledgerctl entries [-json]
`
}

func (c *entriesCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.jsonMode, "json", false, "Print JSON instead of a table.")
}

func (c *entriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.withLedger(ctx, func(svc *ledger.Service) subcommands.ExitStatus {
		entries := svc.Entries(ctx)
		if c.jsonMode {
			return c.app.writeJSON(entries)
		}
		if err := render.Entries(c.app.Out, entries); err != nil {
			return c.app.fail(err)
		}
		return subcommands.ExitSuccess
	})
}

type assignCmd struct {
	app *App
}

func (*assignCmd) Name() string     { return "assign" }
func (*assignCmd) Synopsis() string { return "record an amount against an entry" }
func (*assignCmd) Usage() string {
	return `ledgerctl assign <name> <amount>

  Records an assignment. The name is matched case-insensitively. The amount
  accepts a decimal point, or a single decimal comma when it has no point
  ("12,5" is 12.5). Text after the number is ignored.
`
}
func (*assignCmd) SetFlags(*flag.FlagSet) {}

func (c *assignCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		return c.app.usage("assign takes a name and an amount")
	}
	return c.app.withLedger(ctx, func(svc *ledger.Service) subcommands.ExitStatus {
		record, err := svc.Assign(ctx, f.Arg(0), decimalComma(f.Arg(1)))
		if err != nil {
			return c.app.fail(err)
		}
		fmt.Fprintf(c.app.Out, "Assigned %s to %s\n", render.Money(record.Amount, c.app.Config.Currency), record.Name)
		return subcommands.ExitSuccess
	})
}

// decimalComma rewrites a typed amount like "12,5" to "12.5". Amounts that
// already use a point, or carry several commas, are left alone.
func decimalComma(s string) string {
	if strings.Contains(s, ".") || strings.Count(s, ",") != 1 {
		return s
	}
	return strings.Replace(s, ",", ".", 1)
}

type recentCmd struct {
	app      *App
	limit    int
	jsonMode bool
}

func (*recentCmd) Name() string     { return "recent" }
func (*recentCmd) Synopsis() string { return "show the most recent assignments" }
func (*recentCmd) Usage() string {
	return `ledgerctl recent [-n <limit>] [-json]
`
}

func (c *recentCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 0, "Number of assignments to show. Defaults to RECENT_LIMIT.")
	f.BoolVar(&c.jsonMode, "json", false, "Print JSON instead of a table.")
}

func (c *recentCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	limit := c.limit
	if limit == 0 {
		limit = c.app.Config.RecentLimit
	}
	return c.app.withLedger(ctx, func(svc *ledger.Service) subcommands.ExitStatus {
		recent := svc.Recent(ctx, limit)
		if c.jsonMode {
			return c.app.writeJSON(recent)
		}
		if err := render.Assignments(c.app.Out, recent, c.app.Config.Currency); err != nil {
			return c.app.fail(err)
		}
		return subcommands.ExitSuccess
	})
}

type totalsCmd struct {
	app       *App
	fromSheet bool
	jsonMode  bool
}

func (*totalsCmd) Name() string     { return "totals" }
func (*totalsCmd) Synopsis() string { return "show per-entry totals" }
func (*totalsCmd) Usage() string {
	return `ledgerctl totals [-sheet] [-json]

  Sums assignments per entry, ordered by name. With -sheet the assignments
  are read from the exported Google Sheet instead of the local store.
`
}

func (c *totalsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.fromSheet, "sheet", false, "Read assignments from the Google Sheet export.")
	f.BoolVar(&c.jsonMode, "json", false, "Print JSON instead of a table.")
}

func (c *totalsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.fromSheet {
		reader, err := c.app.OpenSheet(ctx)
		if err != nil {
			return c.app.fail(err)
		}
		assignments, err := reader.ReadAssignments(ctx)
		if err != nil {
			return c.app.fail(err)
		}
		return c.print(core.CalculateTotals(assignments))
	}
	return c.app.withLedger(ctx, func(svc *ledger.Service) subcommands.ExitStatus {
		return c.print(svc.Totals(ctx))
	})
}

func (c *totalsCmd) print(totals []core.Total) subcommands.ExitStatus {
	if c.jsonMode {
		return c.app.writeJSON(totals)
	}
	if err := render.Totals(c.app.Out, totals, c.app.Config.Currency); err != nil {
		return c.app.fail(err)
	}
	return subcommands.ExitSuccess
}

type importCmd struct {
	app         *App
	entriesFile string
	limit       int
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "summarize an assignments JSON file" }
func (*importCmd) Usage() string {
	return `ledgerctl import [-entries <file>] [-n <limit>] <assignments.json>

  Reads a JSON array of assignments and prints its totals and most recent
  records without touching the ledger. With -entries, every assignment must
  name an entry from that JSON array.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.entriesFile, "entries", "", "JSON array of entries the assignments must reference.")
	f.IntVar(&c.limit, "n", 0, "Number of recent assignments to show. Defaults to RECENT_LIMIT.")
}

func (c *importCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return c.app.usage("import takes one assignments file")
	}

	data, err := os.ReadFile(f.Arg(0))
	if err != nil {
		return c.app.fail(err)
	}
	assignments, err := core.DecodeAssignments(data, core.CodeSummaryInvalidCollection)
	if err != nil {
		return c.app.fail(fmt.Errorf("%s: %w", f.Arg(0), err))
	}

	if c.entriesFile != "" {
		if status := c.checkReferences(assignments); status != subcommands.ExitSuccess {
			return status
		}
	}

	limit := c.limit
	if limit == 0 {
		limit = c.app.Config.RecentLimit
	}

	if err := render.Totals(c.app.Out, core.CalculateTotals(assignments), c.app.Config.Currency); err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintln(c.app.Out)
	if err := render.Assignments(c.app.Out, core.RecentAssignments(assignments, limit), c.app.Config.Currency); err != nil {
		return c.app.fail(err)
	}
	return subcommands.ExitSuccess
}

func (c *importCmd) checkReferences(assignments []core.Assignment) subcommands.ExitStatus {
	data, err := os.ReadFile(c.entriesFile)
	if err != nil {
		return c.app.fail(err)
	}
	entries, err := core.DecodeEntries(data, core.CodeAssignInvalidEntries)
	if err != nil {
		return c.app.fail(fmt.Errorf("%s: %w", c.entriesFile, err))
	}

	var unknown []string
	for _, a := range assignments {
		if _, err := core.ResolveEntry(entries, a.Name); err != nil {
			unknown = append(unknown, a.Name)
		}
	}
	if len(unknown) > 0 {
		return c.app.fail(fmt.Errorf("%w: %s", core.ErrAssignUnknownEntry, strings.Join(unknown, ", ")))
	}
	return subcommands.ExitSuccess
}

type authCmd struct {
	app  *App
	port string
}

func (*authCmd) Name() string     { return "auth" }
func (*authCmd) Synopsis() string { return "authorize the Google Sheets export with OAuth" }
func (*authCmd) Usage() string {
	return `ledgerctl auth [-port <port>]

  Runs the OAuth consent flow for the client in GOOGLE_OAUTH_CLIENT_JSON or
  GOOGLE_OAUTH_CLIENT_FILE and saves the token to GOOGLE_OAUTH_TOKEN_FILE.
`
}

func (c *authCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.port, "port", os.Getenv("OAUTH_REDIRECT_PORT"), "Local port for the OAuth redirect. Defaults to 8085.")
}

func (c *authCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	path, err := google.Authorize(ctx, c.port, c.app.Out)
	if err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintf(c.app.Out, "Saved token to %s\n", path)
	return subcommands.ExitSuccess
}
