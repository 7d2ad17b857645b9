package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/pfcatalog/pkg/catalog"
	"github.com/platinummonkey/pfcatalog/pkg/export"
	"github.com/platinummonkey/pfcatalog/pkg/normalize"
)

// datasetOptions are the flags shared by list and export
type datasetOptions struct {
	env     string
	dataset string
	filters listFlag
}

func (o *datasetOptions) bind(fs *flag.FlagSet) {
	fs.StringVar(&o.env, "env", "", "Environment name")
	fs.StringVar(&o.dataset, "dataset", catalog.DatasetConnections, "Dataset: connections or clients")
	fs.Var(&o.filters, "filter", "column:value filter, repeatable")
}

func (o *datasetOptions) validate() (normalize.Filter, error) {
	if o.env == "" {
		return nil, fmt.Errorf("env is required")
	}
	filter, err := normalize.ParseFilter(o.filters)
	if err != nil {
		return nil, err
	}

	switch o.dataset {
	case catalog.DatasetConnections:
		err = filter.Validate(normalize.ConnectionColumns())
	case catalog.DatasetClients:
		err = filter.Validate(normalize.ClientColumns())
	default:
		err = fmt.Errorf("unknown dataset: %s", o.dataset)
	}
	return filter, err
}

func load[T normalize.Tabular](ctx context.Context, env string, filter normalize.Filter, list func(context.Context, string) ([]T, error)) ([]T, error) {
	records, err := list(ctx, env)
	if err != nil {
		return nil, err
	}
	return normalize.Apply(records, filter), nil
}

func newEnvironmentsCommand(app *App) *Command {
	cmd := &Command{
		Name:        "environments",
		Description: "List configured environments",
		Flags:       flag.NewFlagSet("environments", flag.ContinueOnError),
	}
	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		for _, name := range app.Catalog.Environments() {
			fmt.Fprintln(app.Out, name)
		}
		return nil
	}
	return cmd
}

func newListCommand(app *App) *Command {
	cmd := &Command{
		Name:        "list",
		Description: "Print normalized records as JSON",
	}
	cmd.Run = func(ctx context.Context, args []string) error {
		var opts datasetOptions
		cmd.Flags = flag.NewFlagSet("list", flag.ContinueOnError)
		opts.bind(cmd.Flags)
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		filter, err := opts.validate()
		if err != nil {
			return err
		}

		switch opts.dataset {
		case catalog.DatasetConnections:
			records, err := load(ctx, opts.env, filter, app.Catalog.Connections)
			if err != nil {
				return err
			}
			return writeJSON(app.Out, records)
		default:
			records, err := load(ctx, opts.env, filter, app.Catalog.Clients)
			if err != nil {
				return err
			}
			return writeJSON(app.Out, records)
		}
	}
	return cmd
}

func newExportCommand(app *App) *Command {
	cmd := &Command{
		Name:        "export",
		Description: "Write records to an xlsx workbook",
	}
	cmd.Run = func(ctx context.Context, args []string) error {
		var opts datasetOptions
		var output, schedule string
		cmd.Flags = flag.NewFlagSet("export", flag.ContinueOnError)
		opts.bind(cmd.Flags)
		cmd.Flags.StringVar(&output, "output", "", "Output file (default <saml|oauth>_connections_<env>.xlsx)")
		cmd.Flags.StringVar(&schedule, "schedule", "", "Cron schedule; re-export until interrupted")
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		filter, err := opts.validate()
		if err != nil {
			return err
		}
		if output == "" {
			output = export.Filename(opts.dataset, opts.env)
		}

		run := func() error {
			return exportOnce(ctx, app, opts, filter, output)
		}
		if schedule == "" {
			return run()
		}
		return runScheduled(ctx, app.Logger, schedule, run)
	}
	return cmd
}

// exportOnce writes the workbook to a temporary file next to output and
// renames it into place, so a failed run leaves the previous export intact
func exportOnce(ctx context.Context, app *App, opts datasetOptions, filter normalize.Filter, output string) error {
	f, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", output, err)
	}
	tmp := f.Name()

	var n int
	switch opts.dataset {
	case catalog.DatasetConnections:
		var records []normalize.Connection
		if records, err = load(ctx, opts.env, filter, app.Catalog.Connections); err == nil {
			n = len(records)
			err = export.WriteXLSX(f, export.SheetName, normalize.ConnectionColumns(), records)
		}
	default:
		var records []normalize.Client
		if records, err = load(ctx, opts.env, filter, app.Catalog.Clients); err == nil {
			n = len(records)
			err = export.WriteXLSX(f, export.SheetName, normalize.ClientColumns(), records)
		}
	}

	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		if err = os.Rename(tmp, output); err != nil {
			err = fmt.Errorf("failed to write %s: %w", output, err)
		}
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}

	app.Logger.WithFields(logrus.Fields{
		"env":     opts.env,
		"dataset": opts.dataset,
		"records": n,
		"output":  output,
	}).Info("Export written")
	return nil
}

// runScheduled runs job on schedule until ctx is done. Failed runs are logged
// and retried at the next tick.
func runScheduled(ctx context.Context, logger *logrus.Logger, schedule string, job func() error) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if err := job(); err != nil {
			logger.WithError(err).Error("Scheduled export failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	c.Start()
	logger.Infof("Export scheduled: %s", schedule)

	<-ctx.Done()
	logger.Info("Stopping scheduled export")
	<-c.Stop().Done()
	return nil
}

func newStatusCommand(app *App) *Command {
	cmd := &Command{
		Name:        "status",
		Description: "Report reference table population",
	}
	cmd.Run = func(ctx context.Context, args []string) error {
		var env string
		var populate bool
		cmd.Flags = flag.NewFlagSet("status", flag.ContinueOnError)
		cmd.Flags.StringVar(&env, "env", "", "Environment name (default all)")
		cmd.Flags.BoolVar(&populate, "populate", false, "Populate reference tables first")
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		statuses, err := app.Catalog.CacheStatus(ctx, env, populate)
		if err != nil {
			return err
		}
		return writeJSON(app.Out, statuses)
	}
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
