package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/google/subcommands"

	"ledger/internal/amqp"
	"ledger/internal/backend"
	"ledger/internal/config"
	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/sheets/google"
)

// AssignmentReader reads assignments from an external source.
type AssignmentReader interface {
	ReadAssignments(ctx context.Context) ([]core.Assignment, error)
}

// App carries what every ledgerctl subcommand needs.
type App struct {
	Config *config.Config
	Logger *log.Logger
	Out    io.Writer
	Err    io.Writer

	// OpenLedger builds a loaded service and returns its release function.
	OpenLedger func(ctx context.Context) (*ledger.Service, func() error, error)
	// OpenSheet builds the reader behind "totals -sheet".
	OpenSheet func(ctx context.Context) (AssignmentReader, error)
}

// NewApp wires the default ledger and sheet openers from cfg.
func NewApp(cfg *config.Config, logger *log.Logger, out, errOut io.Writer) *App {
	a := &App{
		Config: cfg,
		Logger: logger.WithComponent(log.ComponentCLI),
		Out:    out,
		Err:    errOut,
	}
	a.OpenLedger = a.openLedger
	a.OpenSheet = func(ctx context.Context) (AssignmentReader, error) {
		exp, err := google.NewExporter(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			return nil, err
		}
		return exp, nil
	}
	return a
}

// Register adds every subcommand to c.
func (a *App) Register(c *subcommands.Commander) {
	c.Register(&addCmd{app: a}, "entries")
	c.Register(&entriesCmd{app: a}, "entries")

	c.Register(&assignCmd{app: a}, "assignments")
	c.Register(&recentCmd{app: a}, "assignments")

	c.Register(&totalsCmd{app: a}, "summaries")
	c.Register(&importCmd{app: a}, "summaries")

	c.Register(&authCmd{app: a}, "setup")
}

func (a *App) openLedger(ctx context.Context) (*ledger.Service, func() error, error) {
	bcfg, err := backend.FromAppConfig(a.Config)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(a.Logger, nil).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open backend: %w", err)
	}

	opts := []ledger.Option{ledger.WithLogger(a.Logger)}
	if a.Config.AMQPURL != "" {
		client, err := amqp.NewClient(a.Config.AMQPURL, a.Config.AMQPExchange, a.Config.AMQPQueue)
		if err != nil {
			a.Logger.WarnContext(ctx, "AMQP unavailable, events will not be published", log.FieldError, err)
		} else {
			opts = append(opts, ledger.WithPublisher(client))
		}
	}

	svc := ledger.NewService(res.Store, opts...)
	if err := svc.Load(ctx); err != nil {
		svc.Close()
		return nil, nil, err
	}
	return svc, svc.Close, nil
}

// fail prints err and picks the exit status. Ledger errors print as
// "CODE: message".
func (a *App) fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(a.Err, err)
	return subcommands.ExitFailure
}

func (a *App) usage(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(a.Err, format+"\n", args...)
	return subcommands.ExitUsageError
}
