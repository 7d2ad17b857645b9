package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/pfcatalog/pkg/normalize"
	"github.com/platinummonkey/pfcatalog/pkg/refcache"
)

// Catalog lists normalized records per environment
type Catalog interface {
	Connections(ctx context.Context, envName string) ([]normalize.Connection, error)
	Clients(ctx context.Context, envName string) ([]normalize.Client, error)
	Environments() []string
	CacheStatus(ctx context.Context, envName string, populate bool) ([]refcache.PopulationStatus, error)
}

// App holds what every command needs
type App struct {
	Catalog Catalog
	Logger  *logrus.Logger
	Out     io.Writer
}

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// NewRootCommand creates the root command
func NewRootCommand(app *App) *Command {
	root := &Command{
		Name:        "pfcatalog-export",
		Description: "PingFederate connection catalog exporter",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("pfcatalog-export", flag.ContinueOnError),
	}

	root.Subcommands["environments"] = newEnvironmentsCommand(app)
	root.Subcommands["list"] = newListCommand(app)
	root.Subcommands["export"] = newExportCommand(app)
	root.Subcommands["status"] = newStatusCommand(app)

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		return c.usage(out)
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(ctx, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage(out io.Writer) error {
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// listFlag collects a repeatable string flag
type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, ",")
}

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}
