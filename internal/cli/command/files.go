package command

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/filevault-go/internal/cli/connection"
	"github.com/yndnr/filevault-go/internal/cli/output"
)

// RegisterCommand returns the register command.
func RegisterCommand() *cli.Command {
	return &cli.Command{
		Name:      "register",
		Usage:     "Create an account",
		ArgsUsage: "[USERNAME]",
		Action:    registerAction,
	}
}

func registerAction(c *cli.Context) error {
	mgr := GetConnectionManager(c)
	profile := mgr.Profile()
	username := c.Args().First()
	if username == "" {
		username = profile.Username
	}
	if username == "" {
		return errors.New("username required")
	}
	if profile.Password == "" {
		return errors.New("password required (--password or FILEVAULT_PASSWORD)")
	}

	ctx, cancel := commandContext(c)
	defer cancel()
	client, err := mgr.Connect(ctx)
	if err != nil {
		return err
	}
	if err := client.Register(ctx, username, profile.Password); err != nil {
		return err
	}
	return report(c, actionResult{Message: fmt.Sprintf("registered %s", username)})
}

// entryList renders as a NAME/TYPE table.
type entryList []connection.Entry

func (l entryList) Table() *output.Table {
	t := &output.Table{Headers: []string{"NAME", "TYPE"}}
	for _, e := range l {
		name := e.Name
		if e.IsDir() {
			name += "/"
		}
		t.AddRow(name, e.Type)
	}
	return t
}

// ListCommand returns the ls command.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "List a directory",
		ArgsUsage: "[PATH]",
		Action:    listAction,
	}
}

func listAction(c *cli.Context) error {
	client, err := EnsureSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	entries, err := client.List(ctx, c.Args().First())
	if err != nil {
		return err
	}
	return render(c, entryList(entries))
}

// MkdirCommand returns the mkdir command.
func MkdirCommand() *cli.Command {
	return &cli.Command{
		Name:      "mkdir",
		Usage:     "Create a directory and any missing parents",
		ArgsUsage: "PATH",
		Action:    mkdirAction,
	}
}

func mkdirAction(c *cli.Context) error {
	p := c.Args().First()
	if p == "" {
		return errors.New("path required")
	}
	client, err := EnsureSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	if err := client.CreateDirectory(ctx, p); err != nil {
		return err
	}
	return report(c, actionResult{Message: "created " + p, Path: p})
}

// PutCommand returns the put command.
func PutCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "Upload a local file (- reads stdin)",
		ArgsUsage: "LOCAL [REMOTE]",
		Action:    putAction,
	}
}

func putAction(c *cli.Context) error {
	local := c.Args().Get(0)
	remote := c.Args().Get(1)
	if local == "" {
		return errors.New("local file required")
	}
	if remote == "" {
		if local == "-" {
			return errors.New("remote path required when reading stdin")
		}
		remote = filepath.Base(local)
	}

	var data []byte
	var err error
	if local == "-" {
		data, err = io.ReadAll(c.App.Reader)
	} else {
		data, err = os.ReadFile(local)
	}
	if err != nil {
		return err
	}

	client, err := EnsureSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	if err := client.Upload(ctx, remote, data); err != nil {
		return err
	}
	n := int64(len(data))
	return report(c, actionResult{
		Message: fmt.Sprintf("uploaded %s (%s)", remote, output.FormatBytes(n)),
		Path:    remote,
		Bytes:   &n,
	})
}

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Download a file (- writes stdout)",
		ArgsUsage: "REMOTE [LOCAL]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Overwrite an existing local file",
			},
		},
		Action: getAction,
	}
}

func getAction(c *cli.Context) error {
	remote := c.Args().Get(0)
	local := c.Args().Get(1)
	if remote == "" {
		return errors.New("remote path required")
	}
	if local == "" {
		local = path.Base(remote)
	}
	if local != "-" && !c.Bool("force") {
		if _, err := os.Stat(local); err == nil {
			return fmt.Errorf("%s exists (use --force to overwrite)", local)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	client, err := EnsureSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	data, err := client.Download(ctx, remote)
	if err != nil {
		return err
	}
	if local == "-" {
		_, err := c.App.Writer.Write(data)
		return err
	}
	if err := os.WriteFile(local, data, 0644); err != nil {
		return err
	}
	n := int64(len(data))
	return report(c, actionResult{
		Message: fmt.Sprintf("downloaded %s to %s (%s)", remote, local, output.FormatBytes(n)),
		Path:    remote,
		Bytes:   &n,
	})
}

// RemoveCommand returns the rm command.
func RemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete a file or a directory tree",
		ArgsUsage: "PATH",
		Action:    removeAction,
	}
}

func removeAction(c *cli.Context) error {
	p := c.Args().First()
	if p == "" {
		return errors.New("path required")
	}
	client, err := EnsureSession(c)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	if err := client.Delete(ctx, p); err != nil {
		return err
	}
	return report(c, actionResult{Message: "deleted " + p, Path: p})
}

// pingResult is the output of ping.
type pingResult struct {
	Server string `json:"server" yaml:"server"`
	RTT    string `json:"rtt" yaml:"rtt"`
}

// PingCommand returns the ping command.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:   "ping",
		Usage:  "Check that the server answers",
		Action: pingAction,
	}
}

func pingAction(c *cli.Context) error {
	mgr := GetConnectionManager(c)
	ctx, cancel := commandContext(c)
	defer cancel()

	client, err := mgr.Connect(ctx)
	if err != nil {
		return err
	}
	rtt, err := client.Ping(ctx)
	if err != nil {
		return err
	}
	res := pingResult{Server: mgr.Profile().Server, RTT: rtt.String()}
	if format, _ := output.ParseFormat(GetConfig(c).Output); format == output.FormatTable {
		_, err := fmt.Fprintf(c.App.Writer, "pong from %s in %s\n", res.Server, res.RTT)
		return err
	}
	return render(c, res)
}
