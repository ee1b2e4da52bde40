// Package app wires the engine into an interactive console driver.
package app

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-errors/errors"
	"pkt.systems/pslog"

	"github.com/abdullathedruid/blockterm/internal/block"
	"github.com/abdullathedruid/blockterm/internal/channel"
	"github.com/abdullathedruid/blockterm/internal/classify"
	"github.com/abdullathedruid/blockterm/internal/config"
	"github.com/abdullathedruid/blockterm/internal/event"
	"github.com/abdullathedruid/blockterm/internal/input"
	"github.com/abdullathedruid/blockterm/internal/procinfo"
	"github.com/abdullathedruid/blockterm/internal/remote"
)

var errQuit = errors.New("quit")

// App drives the block engine from a line-oriented console: plain lines
// run as commands in the current session, /-prefixed lines control the
// driver itself, and engine events print as they arrive.
type App struct {
	cfg *config.Store
	log pslog.Logger

	bus        *event.Bus
	classifier *classify.Classifier
	channels   *channel.Manager
	remotes    *remote.Manager
	tracker    *input.Tracker
	blocks     *block.Orchestrator
	profiles   *remote.Store
	watcher    *config.Watcher

	in  io.Reader
	out io.Writer

	// sessionID is the session new commands run in. "local" spawns
	// processes through the channel manager; a connected remote session
	// routes through its shell instead.
	sessionID string
	seq       int
}

// New creates a new App.
func New(cfg *config.Config, logger pslog.Logger) *App {
	store := config.NewStore(cfg)
	bus := event.NewSized(logger, cfg.OutputBuffer)
	remotes := remote.NewManager(store, nil, bus, logger)

	resolve := func(sessionID string) (block.RemoteSession, bool) {
		s, ok := remotes.Get(sessionID)
		if !ok {
			return nil, false
		}
		return s, true
	}

	profiles := remote.NewStore(cfg.ProfilesFile())
	if err := profiles.Load(); err != nil {
		logger.Warn("saved profiles unavailable", "error", err)
	}

	a := &App{
		cfg:        store,
		log:        logger,
		bus:        bus,
		classifier: classify.New(),
		channels:   channel.NewManager(store, bus, logger),
		remotes:    remotes,
		tracker:    input.NewTracker(),
		profiles:   profiles,
		in:         os.Stdin,
		out:        os.Stdout,
		sessionID:  "local",
	}
	a.blocks = block.NewOrchestrator(store, a.classifier, a.channels, a.tracker, resolve, bus, logger)
	return a
}

// Run reads lines until EOF, SIGINT/SIGTERM, or /quit.
func (a *App) Run() error {
	if err := a.startWatcher(); err != nil {
		a.log.Warn("config watch unavailable", "error", err)
	}
	defer a.stopWatcher()

	events, cancel := a.bus.Subscribe()
	defer cancel()
	go a.printEvents(events)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	lines := make(chan string)
	go a.readLines(lines)

	fmt.Fprintln(a.out, "blockterm ready. /help lists commands.")

	for {
		select {
		case <-sigCh:
			a.shutdown()
			return nil
		case line, ok := <-lines:
			if !ok {
				a.shutdown()
				return nil
			}
			if err := a.dispatch(line); err != nil {
				if errors.Is(err, errQuit) {
					a.shutdown()
					return nil
				}
				fmt.Fprintf(a.out, "error: %v\n", err)
			}
		}
	}
}

func (a *App) readLines(lines chan<- string) {
	scanner := bufio.NewScanner(a.in)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
	close(lines)
}

func (a *App) shutdown() {
	for _, e := range a.blocks.Registry().List() {
		a.blocks.TerminateBlock(e.BlockID)
	}
	a.remotes.DisconnectAll()
}

func (a *App) startWatcher() error {
	w, err := config.NewWatcher(a.cfg.Current().DataDir, a.log)
	if err != nil {
		return err
	}
	w.OnReload(a.applyConfig)
	if err := w.Start(); err != nil {
		w.Stop()
		return err
	}
	a.watcher = w
	return nil
}

func (a *App) stopWatcher() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
}

// applyConfig adopts a reloaded configuration by swapping the live
// snapshot. Timeouts take effect on the next use; shell and screen size
// apply to channels created after.
func (a *App) applyConfig(next *config.Config) {
	a.cfg.Swap(next)
	a.log.Info("config applied",
		"shell", next.Shell, "terminate_timeout_ms", next.TerminateTimeoutMS)
}

// dispatch routes one input line. Driver commands start with "/"; with a
// focused block taking input, plain lines go to the block; otherwise a
// plain line starts a command in the current session.
func (a *App) dispatch(raw string) error {
	line := strings.TrimSpace(raw)
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, "/") {
		return a.command(line)
	}

	if a.tracker.ShouldForwardKeys() {
		if id := a.tracker.FocusedBlock(); id != "" && a.blocks.SendInput(id, line) {
			return nil
		}
	}
	return a.runCommand(line)
}

func (a *App) command(line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return errQuit

	case "/help":
		a.printHelp()

	case "/session":
		if len(fields) != 2 {
			return usage("/session <id>")
		}
		a.sessionID = fields[1]
		fmt.Fprintf(a.out, "session: %s\n", a.sessionID)

	case "/connect":
		return a.connect(fields[1:])

	case "/disconnect":
		if len(fields) != 2 {
			return usage("/disconnect <session>")
		}
		return a.remotes.Disconnect(fields[1])

	case "/reconnect":
		if len(fields) != 2 {
			return usage("/reconnect <session>")
		}
		return a.remotes.Reconnect(fields[1])

	case "/sessions":
		a.listSessions()

	case "/profiles":
		a.listProfiles()

	case "/profile":
		return a.profileCommand(fields[1:])

	case "/blocks":
		a.listBlocks()

	case "/focus":
		if len(fields) != 2 {
			return usage("/focus <block>")
		}
		if !a.blocks.FocusBlock(fields[1]) {
			fmt.Fprintf(a.out, "no such block: %s\n", fields[1])
		}

	case "/unfocus":
		a.blocks.ClearFocus()

	case "/kill":
		if len(fields) != 2 {
			return usage("/kill <block>")
		}
		if !a.blocks.TerminateBlock(fields[1]) {
			fmt.Fprintf(a.out, "no such block: %s\n", fields[1])
		}

	case "/sig":
		if len(fields) != 3 {
			return usage("/sig <block> <ctrl+c|ctrl+d|ctrl+z>")
		}
		sig, ok := channel.ParseSignal(fields[2])
		if !ok {
			return fmt.Errorf("unknown signal %q", fields[2])
		}
		if !a.blocks.SendSignal(fields[1], sig) {
			fmt.Fprintf(a.out, "block %s is not taking input\n", fields[1])
		}

	case "/stats":
		a.printStats()

	default:
		return fmt.Errorf("unknown command %s", fields[0])
	}
	return nil
}

func (a *App) connect(args []string) error {
	if len(args) != 2 && len(args) < 4 {
		return usage("/connect <session> (<profile> | <host[:port]> <user> <password>)")
	}

	var profile remote.Profile
	if len(args) == 2 {
		p, ok := a.profiles.Get(args[1])
		if !ok {
			return fmt.Errorf("no saved profile %q", args[1])
		}
		profile = p
	} else {
		p, err := parseProfile(args[1:])
		if err != nil {
			return err
		}
		profile = p
	}

	if _, err := a.remotes.Connect(args[0], profile); err != nil {
		return err
	}
	a.sessionID = args[0]
	return nil
}

// parseProfile builds a password profile from <host[:port]> <user>
// <password...> arguments.
func parseProfile(args []string) (remote.Profile, error) {
	profile := remote.Profile{
		Host:     args[0],
		Username: args[1],
		AuthType: remote.AuthPassword,
		Password: strings.Join(args[2:], " "),
	}
	if host, portStr, err := net.SplitHostPort(args[0]); err == nil {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return remote.Profile{}, fmt.Errorf("bad port %q", portStr)
		}
		profile.Host = host
		profile.Port = port
	}
	return profile, nil
}

func (a *App) profileCommand(args []string) error {
	if len(args) == 0 {
		return usage("/profile save <name> <host[:port]> <user> <password>, /profile rm <name>")
	}
	switch args[0] {
	case "save":
		if len(args) < 5 {
			return usage("/profile save <name> <host[:port]> <user> <password>")
		}
		profile, err := parseProfile(args[2:])
		if err != nil {
			return err
		}
		if err := a.profiles.Set(args[1], profile); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "saved profile %s\n", args[1])
	case "rm":
		if len(args) != 2 {
			return usage("/profile rm <name>")
		}
		return a.profiles.Delete(args[1])
	default:
		return usage("/profile save <name> <host[:port]> <user> <password>, /profile rm <name>")
	}
	return nil
}

// runCommand starts a command in the current session. Tracked commands
// become blocks; untracked ones run straight through the remote shell,
// or a one-shot local shell when the session is not remote.
func (a *App) runCommand(command string) error {
	a.blocks.OnNewCommandStarted(a.sessionID, command)

	a.seq++
	blockID := fmt.Sprintf("b%d", a.seq)
	if entry := a.blocks.ActivateBlock(blockID, a.sessionID, command, ""); entry != nil {
		return nil
	}

	if s, ok := a.remotes.Get(a.sessionID); ok {
		return s.SendCommand(command)
	}
	out, err := exec.Command(a.cfg.Current().Shell, "-c", command).CombinedOutput()
	a.out.Write(out)
	if err != nil {
		fmt.Fprintf(a.out, "[%v]\n", err)
	}
	return nil
}

func (a *App) listProfiles() {
	names := a.profiles.Names()
	if len(names) == 0 {
		fmt.Fprintln(a.out, "no saved profiles")
		return
	}
	for _, name := range names {
		p, ok := a.profiles.Get(name)
		if !ok {
			continue
		}
		fmt.Fprintf(a.out, "%s  %s@%s\n", name, p.Username, p.Addr(a.cfg.Current().Remote.Port))
	}
}

func (a *App) listSessions() {
	ids := a.remotes.Sessions()
	if len(ids) == 0 {
		fmt.Fprintln(a.out, "no remote sessions")
		return
	}
	for _, id := range ids {
		s, ok := a.remotes.Get(id)
		if !ok {
			continue
		}
		marker := " "
		if id == a.sessionID {
			marker = "*"
		}
		fmt.Fprintf(a.out, "%s %s  %s  %s\n", marker, id, s.Status(), s.Profile.Host)
	}
}

func (a *App) listBlocks() {
	entries := a.blocks.Registry().List()
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "no blocks")
		return
	}
	for _, e := range entries {
		state := "remote"
		label := e.Classification.ProcessLabel
		if e.Channel != nil {
			state = e.Channel.State().String()
			label = e.Channel.ProcessLabel()
		}
		if label == "" {
			label = procinfo.CommandName(e.Command)
		}
		marker := " "
		if e.Focused {
			marker = "*"
		}
		fmt.Fprintf(a.out, "%s %-6s %-10s %-12s %-10s %s\n",
			marker, e.BlockID, state, e.Classification.Category, label, e.Command)
	}
}

func (a *App) printStats() {
	stats := a.blocks.Registry().Snapshot()
	remoteStats := a.remotes.Snapshot()
	fmt.Fprintf(a.out, "blocks=%d running=%d terminated=%d unhealthy=%d sessions=%d\n",
		stats.Blocks, stats.Running, stats.Terminated, stats.Unhealthy, remoteStats.Sessions)
	if stats.Focused != "" {
		fmt.Fprintf(a.out, "focused=%s mode=%s\n", stats.Focused, a.tracker.Mode())
	}
	if len(stats.Categories) > 0 {
		fmt.Fprintln(a.out, countLine(stats.Categories))
	}
	if len(remoteStats.Statuses) > 0 {
		fmt.Fprintln(a.out, countLine(remoteStats.Statuses))
	}
}

func countLine(counts map[string]int) string {
	parts := make([]string, 0, len(counts))
	for k, n := range counts {
		parts = append(parts, fmt.Sprintf("%s:%d", k, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func (a *App) printHelp() {
	fmt.Fprint(a.out, `commands:
  /connect <session> (<profile> | <host[:port]> <user> <password>)
  /disconnect <session>    close a remote session
  /reconnect <session>     cycle a remote session's connection
  /session <id>            switch the session new commands run in
  /sessions                list remote sessions
  /profiles                list saved connection profiles
  /profile save <name> <host[:port]> <user> <password>
  /profile rm <name>
  /blocks                  list tracked blocks
  /focus <block>           route typed lines to a block
  /unfocus                 return typed lines to the composer
  /kill <block>            terminate a block
  /sig <block> <name>      send ctrl+c, ctrl+d, or ctrl+z
  /stats                   engine statistics
  /quit
anything else runs as a command in the current session.
`)
}

// printEvents mirrors the engine's event stream onto the console.
func (a *App) printEvents(events <-chan event.Event) {
	for ev := range events {
		switch ev.Type {
		case event.TypeBlockActivated:
			fmt.Fprintf(a.out, "[%s started: %s]\n", ev.Block.BlockID, ev.Block.Message)
		case event.TypeBlockOutput, event.TypeSessionOutput:
			fmt.Fprint(a.out, ev.Block.Data)
		case event.TypeBlockError:
			fmt.Fprintln(a.out, ev.Block.Message)
		case event.TypeBlockTerminated:
			if ev.Block.Data != "" {
				fmt.Fprintf(a.out, "[%s exited with code %s]\n", ev.Block.BlockID, ev.Block.Data)
			} else {
				fmt.Fprintf(a.out, "[%s exited]\n", ev.Block.BlockID)
			}
		case event.TypeFocusChanged:
			if ev.Block.BlockID != "" {
				fmt.Fprintf(a.out, "[focus: %s]\n", ev.Block.BlockID)
			} else {
				fmt.Fprintln(a.out, "[focus cleared]")
			}
		case event.TypeConnStatus:
			detail := ""
			if ev.Status.Data != "" {
				detail = " (" + ev.Status.Data + ")"
			}
			fmt.Fprintf(a.out, "[session %s: %s%s]\n", ev.Status.SessionID, ev.Status.Status, detail)
		case event.TypeConnError:
			fmt.Fprintf(a.out, "[session %s %s error: %s]\n",
				ev.Status.SessionID, ev.Status.Data, ev.Status.Error)
		}
	}
}

func usage(u string) error {
	return fmt.Errorf("usage: %s", u)
}
