// Package command provides CLI command definitions for filevault-cli.
//
// It uses urfave/cli/v2 for command parsing.
package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/filevault-go/internal/cli/config"
	"github.com/yndnr/filevault-go/internal/cli/connection"
	"github.com/yndnr/filevault-go/internal/cli/output"
	"github.com/yndnr/filevault-go/internal/infra/buildinfo"
)

const (
	metaConfig  = "cliConfig"
	metaConnMgr = "connMgr"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "filevault-cli",
		Usage:   "FileVault command-line client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			RegisterCommand(),
			ListCommand(),
			MkdirCommand(),
			PutCommand(),
			GetCommand(),
			RemoveCommand(),
			PingCommand(),
			AdminCommand(),
			ConfigCommand(),
		},
		Before: before,
		After:  after,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI config file",
			EnvVars: []string{"FILEVAULT_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "FileVault server address (host:port)",
			EnvVars: []string{"FILEVAULT_ADDR"},
		},
		&cli.StringFlag{
			Name:    "user",
			Aliases: []string{"u"},
			Usage:   "Account username",
			EnvVars: []string{"FILEVAULT_USER"},
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "Account password",
			EnvVars: []string{"FILEVAULT_PASSWORD"},
		},
		&cli.BoolFlag{
			Name:    "legacy-framing",
			Usage:   "Send bare JSON messages instead of length-prefixed frames",
			EnvVars: []string{"FILEVAULT_LEGACY_FRAMING"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			EnvVars: []string{"FILEVAULT_OUTPUT"},
		},
		&cli.StringFlag{
			Name:    "socket",
			Usage:   "Admin socket path",
			EnvVars: []string{"FILEVAULT_SOCKET"},
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Timeout for each command",
			Value: connection.DefaultTimeout,
		},
	}
}

// before merges the config file under the flags and prepares the connection.
func before(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("server") {
		cfg.Server = c.String("server")
	}
	if c.IsSet("user") {
		cfg.User = c.String("user")
	}
	if c.IsSet("legacy-framing") {
		cfg.LegacyFraming = c.Bool("legacy-framing")
	}
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.IsSet("socket") {
		cfg.Socket = c.String("socket")
	}
	if _, err := output.ParseFormat(cfg.Output); err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[metaConfig] = cfg
	c.App.Metadata[metaConnMgr] = connection.NewManager(connection.Profile{
		Server:        cfg.Server,
		Username:      cfg.User,
		Password:      c.String("password"),
		LegacyFraming: cfg.LegacyFraming,
		Timeout:       c.Duration("timeout"),
	})
	return nil
}

func after(c *cli.Context) error {
	if mgr := GetConnectionManager(c); mgr != nil {
		return mgr.Close()
	}
	return nil
}

// GetConfig returns the effective CLI configuration.
func GetConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

// GetConnectionManager retrieves the connection manager from context.
func GetConnectionManager(c *cli.Context) *connection.Manager {
	if mgr, ok := c.App.Metadata[metaConnMgr].(*connection.Manager); ok {
		return mgr
	}
	return nil
}

// EnsureSession returns a client logged in as the configured user.
func EnsureSession(c *cli.Context) (*connection.Client, error) {
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return nil, fmt.Errorf("connection manager not initialized")
	}
	ctx, cancel := commandContext(c)
	defer cancel()
	return mgr.Session(ctx)
}

// commandContext bounds one command by --timeout.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	timeout := c.Duration("timeout")
	if timeout <= 0 {
		timeout = connection.DefaultTimeout
	}
	return context.WithTimeout(parent, timeout)
}

// render writes data in the configured output format.
func render(c *cli.Context, data any) error {
	format, _ := output.ParseFormat(GetConfig(c).Output)
	return output.NewFormatter(format).Format(c.App.Writer, data)
}

// actionResult is the structured form of a one-line result.
type actionResult struct {
	Status  string `json:"status" yaml:"status"`
	Message string `json:"message" yaml:"message"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
	Bytes   *int64 `json:"bytes,omitempty" yaml:"bytes,omitempty"`
}

// report prints a success line, or its structured form for json and yaml.
func report(c *cli.Context, res actionResult) error {
	res.Status = "success"
	if format, _ := output.ParseFormat(GetConfig(c).Output); format == output.FormatTable {
		_, err := fmt.Fprintln(c.App.Writer, res.Message)
		return err
	}
	return render(c, res)
}
