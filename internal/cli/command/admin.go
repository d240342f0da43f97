package command

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/filevault-go/internal/cli/connection"
)

// AdminCommand returns the admin subcommand group, which talks to the
// server's local admin socket.
func AdminCommand() *cli.Command {
	sub := func(name, usage string) *cli.Command {
		return &cli.Command{
			Name:   name,
			Usage:  usage,
			Action: adminAction(name),
		}
	}
	return &cli.Command{
		Name:  "admin",
		Usage: "Server administration over the local socket",
		Subcommands: []*cli.Command{
			sub("status", "Show uptime, connections and accounts"),
			sub("conns", "List file protocol connections"),
			sub("reload", "Re-read the server configuration"),
			sub("version", "Show server build information"),
			sub("shutdown", "Stop the server gracefully"),
		},
	}
}

func adminAction(name string) cli.ActionFunc {
	return func(c *cli.Context) error {
		ctx, cancel := commandContext(c)
		defer cancel()

		client := connection.NewSocketClient(GetConfig(c).Socket)
		out, err := client.Execute(ctx, name)
		if err != nil {
			return fmt.Errorf("admin %s: %w", name, err)
		}
		if !strings.HasSuffix(out, "\n") && out != "" {
			out += "\n"
		}
		_, err = fmt.Fprint(c.App.Writer, out)
		return err
	}
}
