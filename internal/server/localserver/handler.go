package localserver

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/yndnr/filevault-go/internal/infra/buildinfo"
	"github.com/yndnr/filevault-go/internal/server/fileserver"
	"github.com/yndnr/filevault-go/internal/telemetry/logger"
)

// ConnLister reports live file protocol connections.
type ConnLister interface {
	ActiveConnections() int
	Connections() []fileserver.ConnInfo
}

// HandlerConfig wires the handler to the running server.
type HandlerConfig struct {
	Conns ConnLister

	// Accounts returns the number of registered accounts.
	Accounts func() int

	// Reload re-reads the configuration file.
	Reload func() error

	// Shutdown starts a graceful shutdown of the process.
	Shutdown func()

	StartedAt time.Time
}

// Handler handles local management commands.
type Handler struct {
	cfg HandlerConfig
	now func() time.Time
}

// NewHandler creates a new Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}
	return &Handler{cfg: cfg, now: time.Now}
}

var commands = map[string]string{
	"status":   "uptime, connections and accounts",
	"conns":    "list file protocol connections",
	"reload":   "re-read the configuration file",
	"version":  "build information",
	"shutdown": "stop the server gracefully",
	"help":     "list commands",
}

// Execute executes a local management command.
func (h *Handler) Execute(w io.Writer, cmd string, args []string) error {
	switch cmd {
	case "status":
		return h.handleStatus(w)
	case "conns":
		return h.handleConns(w)
	case "reload":
		return h.handleReload(w)
	case "version":
		return h.handleVersion(w)
	case "shutdown":
		return h.handleShutdown(w)
	case "help", "":
		return h.handleHelp(w)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func (h *Handler) handleStatus(w io.Writer) error {
	uptime := h.now().Sub(h.cfg.StartedAt).Truncate(time.Second)
	active, accounts := 0, 0
	if h.cfg.Conns != nil {
		active = h.cfg.Conns.ActiveConnections()
	}
	if h.cfg.Accounts != nil {
		accounts = h.cfg.Accounts()
	}
	_, err := fmt.Fprintf(w, "uptime: %s\nconnections: %d\naccounts: %d\nlog_level: %s\n",
		uptime, active, accounts, logger.GetLevel())
	return err
}

func (h *Handler) handleConns(w io.Writer) error {
	var conns []fileserver.ConnInfo
	if h.cfg.Conns != nil {
		conns = h.cfg.Conns.Connections()
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tREMOTE\tUSER\tFRAMING\tAGE")
	for _, c := range conns {
		user := c.User
		if user == "" {
			user = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Remote, user, c.Framing, h.now().Sub(c.CreatedAt).Truncate(time.Second))
	}
	return tw.Flush()
}

func (h *Handler) handleReload(w io.Writer) error {
	if h.cfg.Reload == nil {
		return fmt.Errorf("reload not supported")
	}
	if err := h.cfg.Reload(); err != nil {
		return fmt.Errorf("reload failed: %w", err)
	}
	_, err := fmt.Fprintf(w, "reloaded, log_level: %s\n", logger.GetLevel())
	return err
}

func (h *Handler) handleVersion(w io.Writer) error {
	_, err := fmt.Fprintln(w, buildinfo.String())
	return err
}

func (h *Handler) handleShutdown(w io.Writer) error {
	if h.cfg.Shutdown == nil {
		return fmt.Errorf("shutdown not supported")
	}
	if _, err := fmt.Fprintln(w, "shutting down"); err != nil {
		return err
	}
	go h.cfg.Shutdown()
	return nil
}

func (h *Handler) handleHelp(w io.Writer) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%-9s %s\n", name, commands[name])
	}
	_, err := io.WriteString(w, b.String())
	return err
}
