package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/filevault-go/internal/cli/config"
	serverconfig "github.com/yndnr/filevault-go/internal/server/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective CLI configuration",
				Action: configShow,
			},
			{
				Name:  "init",
				Usage: "Write the effective CLI configuration to the config file",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: configInit,
			},
			{
				Name:      "check",
				Usage:     "Validate a server configuration file",
				ArgsUsage: "FILE",
				Action:    configCheck,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	return render(c, GetConfig(c))
}

func configInit(c *cli.Context) error {
	path := c.String("config")
	if !c.Bool("force") {
		if existing, err := config.Load(path); err == nil && *existing != *config.Default() {
			return fmt.Errorf("%s already has settings (use --force to overwrite)", path)
		}
	}
	if err := config.Save(GetConfig(c), path); err != nil {
		return err
	}
	return report(c, actionResult{Message: "wrote " + path, Path: path})
}

// configCheck loads a server configuration the way filevault-server does
// and prints it with secrets masked.
func configCheck(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("config file required")
	}
	cfg, err := serverconfig.Load(path)
	if err != nil {
		return err
	}
	if err := serverconfig.Verify(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return render(c, serverconfig.Flatten(cfg))
}
