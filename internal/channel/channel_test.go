package channel

import (
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"pkt.systems/pslog"

	"github.com/abdullathedruid/blockterm/internal/classify"
	"github.com/abdullathedruid/blockterm/internal/config"
	"github.com/abdullathedruid/blockterm/internal/event"
)

func testLogger() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured})
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Shell = "/bin/sh"
	cfg.DisposeGraceMS = 50
	cfg.HistoryLines = 100
	return cfg
}

// testChannel builds a bare running channel for unit tests that never
// touch a real process.
func testChannel() *Channel {
	return &Channel{
		state:   StateRunning,
		inputCh: make(chan []byte, 4),
		done:    make(chan struct{}),
		history: NewHistory(16),
		bus:     event.New(nil),
		log:     testLogger(),
	}
}

func waitForOutput(t *testing.T, events <-chan event.Event, substr string) event.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == event.TypeBlockOutput && strings.Contains(ev.Block.Data, substr) {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for output containing %q", substr)
		}
	}
}

func TestParseSignal(t *testing.T) {
	tests := []struct {
		name string
		want Signal
		ok   bool
	}{
		{"ctrl+c", SignalInterrupt, true},
		{"interrupt", SignalInterrupt, true},
		{"CTRL+C", SignalInterrupt, true},
		{"ctrl+d", SignalEOF, true},
		{"eof", SignalEOF, true},
		{"ctrl+z", SignalSuspend, true},
		{"suspend", SignalSuspend, true},
		{"ctrl+q", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseSignal(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseSignal(%q) = (%#x, %v), want (%#x, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateCreated, "created"},
		{StateRunning, "running"},
		{StateTerminated, "terminated"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestSendSignal_WritesExactlyOneByte(t *testing.T) {
	c := testChannel()
	if !c.SendSignal(SignalInterrupt) {
		t.Fatal("SendSignal() = false on a running channel")
	}

	select {
	case data := <-c.inputCh:
		if len(data) != 1 {
			t.Fatalf("queued %d bytes, want exactly 1", len(data))
		}
		if data[0] != 0x03 {
			t.Errorf("queued byte = %#x, want 0x03", data[0])
		}
	default:
		t.Fatal("no input queued")
	}
}

func TestSendSignal_RejectedUnlessRunning(t *testing.T) {
	c := testChannel()
	c.finish(0)
	if c.SendSignal(SignalInterrupt) {
		t.Error("SendSignal() = true on a terminated channel")
	}
}

func TestSendInput_AppendsTrailingNewline(t *testing.T) {
	c := testChannel()

	if !c.SendInput("abc") {
		t.Fatal("SendInput() = false on a running channel")
	}
	if got := string(<-c.inputCh); got != "abc\n" {
		t.Errorf("queued input = %q, want %q", got, "abc\n")
	}

	if !c.SendInput("xyz\n") {
		t.Fatal("SendInput() = false on a running channel")
	}
	if got := string(<-c.inputCh); got != "xyz\n" {
		t.Errorf("queued input = %q, want %q", got, "xyz\n")
	}
}

func TestFinish_ExactlyOnce(t *testing.T) {
	c := testChannel()
	fired := 0
	c.onExit = func(*Channel) { fired++ }

	c.finish(3)
	c.finish(7)

	if c.State() != StateTerminated {
		t.Errorf("State() = %v, want %v", c.State(), StateTerminated)
	}
	code, ok := c.ExitCode()
	if !ok || code != 3 {
		t.Errorf("ExitCode() = (%d, %v), want (3, true)", code, ok)
	}
	if fired != 1 {
		t.Errorf("exit handler fired %d times, want 1", fired)
	}

	select {
	case <-c.Done():
	default:
		t.Error("Done() not closed after finish")
	}

	lines := c.history.Lines()
	if len(lines) == 0 || !strings.Contains(lines[len(lines)-1], "[Process exited with code 3]") {
		t.Errorf("history missing exit marker, got %q", lines)
	}
}

func TestHealthy(t *testing.T) {
	c := testChannel()
	if !c.Healthy() {
		t.Error("running channel with open output should be healthy")
	}

	c.markOutputClosed()
	if c.Healthy() {
		t.Error("output closed while running should be unhealthy")
	}

	c = testChannel()
	c.Classification = classify.Result{NeedsChannel: true}
	if c.Healthy() {
		t.Error("needsChannel without a process handle should be unhealthy")
	}

	c.finish(0)
	if !c.Healthy() {
		t.Error("terminated channel should report healthy")
	}
}

func TestProcessLabel_FallsBackWithoutProcess(t *testing.T) {
	// Signature labels win without touching the process table.
	c := testChannel()
	c.Command = "claude"
	c.Classification = classify.Result{ProcessLabel: "Claude"}
	if got := c.ProcessLabel(); got != "Claude" {
		t.Errorf("ProcessLabel() = %q, want %q", got, "Claude")
	}

	// No process handle means the command's leading name.
	c = testChannel()
	c.state = StateTerminated
	c.Command = "tail -f /dev/null"
	if got := c.ProcessLabel(); got != "tail" {
		t.Errorf("ProcessLabel() = %q, want %q", got, "tail")
	}
}

func TestProcessLabel_RunningProcess(t *testing.T) {
	cfg := testConfig()
	mgr := NewManager(config.NewStore(cfg), event.New(nil), testLogger())
	cls := classify.Result{Category: classify.CategoryPersistent, Mode: classify.ModeBlockInteractive, IsPersistent: true, NeedsChannel: true}

	ch, err := mgr.Create("b1", "s1", "tail -f /dev/null", cls, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer ch.Terminate(time.Second)

	// The shell may not have handed off to tail yet; poll until the
	// label settles on the foreground process.
	deadline := time.Now().Add(5 * time.Second)
	for ch.ProcessLabel() != "tail" {
		if time.Now().After(deadline) {
			t.Fatalf("ProcessLabel() = %q, want %q", ch.ProcessLabel(), "tail")
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestCreate_StreamsMergedOutput(t *testing.T) {
	cfg := testConfig()
	bus := event.New(nil)
	events, cancel := bus.Subscribe()
	defer cancel()

	mgr := NewManager(config.NewStore(cfg), bus, testLogger())
	cls := classify.Result{Category: classify.CategoryBuildTool, Mode: classify.ModeBlockInteractive, NeedsChannel: true}

	ch, err := mgr.Create("b1", "s1", "echo out; echo err >&2", cls, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Both streams land in the one output stream.
	waitForOutput(t, events, "out")
	waitForOutput(t, events, "err")
	waitForOutput(t, events, "[Process exited with code 0]")

	select {
	case <-ch.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for exit")
	}

	if ch.State() != StateTerminated {
		t.Errorf("State() = %v, want %v", ch.State(), StateTerminated)
	}
	if code, ok := ch.ExitCode(); !ok || code != 0 {
		t.Errorf("ExitCode() = (%d, %v), want (0, true)", code, ok)
	}
}

func TestCreate_PipeOutputKeepsLineBreaks(t *testing.T) {
	cfg := testConfig()
	bus := event.New(nil)
	events, cancel := bus.Subscribe()
	defer cancel()

	mgr := NewManager(config.NewStore(cfg), bus, testLogger())
	cls := classify.Result{Category: classify.CategoryBuildTool, Mode: classify.ModeBlockInteractive, NeedsChannel: true}

	if _, err := mgr.Create("b1", "s1", "echo one; echo two", cls, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Each pipe line arrives as its own newline-terminated chunk, so a
	// consumer printing chunks verbatim does not run lines together.
	if ev := waitForOutput(t, events, "one"); ev.Block.Data != "one\n" {
		t.Errorf("chunk = %q, want %q", ev.Block.Data, "one\n")
	}
	if ev := waitForOutput(t, events, "two"); ev.Block.Data != "two\n" {
		t.Errorf("chunk = %q, want %q", ev.Block.Data, "two\n")
	}
	if ev := waitForOutput(t, events, "[Process exited"); !strings.HasSuffix(ev.Block.Data, "]\n") {
		t.Errorf("exit marker chunk = %q, want a trailing newline", ev.Block.Data)
	}
}

func TestCreate_UntracksOnExit(t *testing.T) {
	cfg := testConfig()
	mgr := NewManager(config.NewStore(cfg), event.New(nil), testLogger())
	cls := classify.Result{Category: classify.CategoryBuildTool, Mode: classify.ModeBlockInteractive, NeedsChannel: true}

	exited := make(chan *Channel, 1)
	ch, err := mgr.Create("b1", "s1", "true", cls, func(c *Channel) { exited <- c })
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	select {
	case got := <-exited:
		if got.ID != ch.ID {
			t.Errorf("exit handler channel = %s, want %s", got.ID, ch.ID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for exit handler")
	}

	if _, ok := mgr.Get(ch.ID); ok {
		t.Error("channel still tracked after exit")
	}
	if mgr.Count() != 0 {
		t.Errorf("Count() = %d, want 0", mgr.Count())
	}
}

func TestCreate_InstantExitLeavesNoGhostEntry(t *testing.T) {
	cfg := testConfig()
	mgr := NewManager(config.NewStore(cfg), event.New(nil), testLogger())
	cls := classify.Result{Category: classify.CategoryBuildTool, Mode: classify.ModeBlockInteractive, NeedsChannel: true}

	// A process that exits before Create returns must still be untracked
	// by its exit handler, never stranded in the registry.
	for i := 0; i < 20; i++ {
		exited := make(chan struct{})
		_, err := mgr.Create("b1", "s1", "true", cls, func(*Channel) { close(exited) })
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		select {
		case <-exited:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for exit handler")
		}
	}

	if mgr.Count() != 0 {
		t.Errorf("Count() = %d after all exits, want 0", mgr.Count())
	}
}

func TestCreate_SpawnFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Shell = "/nonexistent/shell"
	mgr := NewManager(config.NewStore(cfg), event.New(nil), testLogger())
	cls := classify.Result{Category: classify.CategoryBuildTool, Mode: classify.ModeBlockInteractive, NeedsChannel: true}

	ch, err := mgr.Create("b1", "s1", "echo hi", cls, nil)
	if err == nil {
		t.Fatal("Create() expected error for missing shell")
	}
	if ch != nil {
		t.Errorf("Create() returned channel %v alongside error", ch.ID)
	}
}

func TestSendInput_ReachesProcess(t *testing.T) {
	cfg := testConfig()
	bus := event.New(nil)
	events, cancel := bus.Subscribe()
	defer cancel()

	mgr := NewManager(config.NewStore(cfg), bus, testLogger())
	cls := classify.Result{Category: classify.CategoryBuildTool, Mode: classify.ModeBlockInteractive, NeedsChannel: true}

	ch, err := mgr.Create("b1", "s1", "cat", cls, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !ch.SendInput("hello from test") {
		t.Fatal("SendInput() = false on a running channel")
	}
	waitForOutput(t, events, "hello from test")

	if !ch.Terminate(2 * time.Second) {
		t.Error("Terminate() = false")
	}
}

func TestTerminate_GracefulWithinTimeout(t *testing.T) {
	cfg := testConfig()
	mgr := NewManager(config.NewStore(cfg), event.New(nil), testLogger())
	cls := classify.Result{Category: classify.CategoryPersistent, Mode: classify.ModeBlockInteractive, IsPersistent: true}

	ch, err := mgr.Create("b1", "s1", "sleep 5", cls, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	start := time.Now()
	if !ch.Terminate(3 * time.Second) {
		t.Error("Terminate() = false")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("graceful terminate took %v, expected well under the timeout", elapsed)
	}
	if ch.State() != StateTerminated {
		t.Errorf("State() = %v, want %v", ch.State(), StateTerminated)
	}
}

func TestTerminate_ForcedKillAfterTimeout(t *testing.T) {
	cfg := testConfig()
	mgr := NewManager(config.NewStore(cfg), event.New(nil), testLogger())
	cls := classify.Result{Category: classify.CategoryPersistent, Mode: classify.ModeBlockInteractive, IsPersistent: true}

	// The shell ignores the interrupt, so only the forced kill ends it.
	ch, err := mgr.Create("b1", "s1", "trap '' INT; sleep 10", cls, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	start := time.Now()
	if !ch.Terminate(300 * time.Millisecond) {
		t.Error("Terminate() = false, want true after forced kill")
	}
	elapsed := time.Since(start)
	if elapsed < 300*time.Millisecond {
		t.Errorf("terminate returned in %v, before the graceful window elapsed", elapsed)
	}

	if ch.State() != StateTerminated {
		t.Errorf("State() = %v, want %v", ch.State(), StateTerminated)
	}
	if code, ok := ch.ExitCode(); !ok || code != 137 {
		t.Errorf("ExitCode() = (%d, %v), want (137, true) after SIGKILL", code, ok)
	}
}

func TestTerminate_KillLosesRaceToOwnExit(t *testing.T) {
	// A handle to a process that has already been reaped: Kill on it
	// fails with ErrProcessDone, the way it does when the process ends
	// in the instant between the timeout and the kill.
	cmd := exec.Command("true")
	if err := cmd.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cmd.Wait()

	c := testChannel()
	c.cmd = cmd

	go func() {
		time.Sleep(300 * time.Millisecond)
		c.finish(0)
	}()

	if !c.Terminate(100 * time.Millisecond) {
		t.Error("Terminate() = false though the process had already exited")
	}
	if c.State() != StateTerminated {
		t.Errorf("State() = %v, want %v", c.State(), StateTerminated)
	}
}

func TestTerminate_AlreadyTerminated(t *testing.T) {
	cfg := testConfig()
	mgr := NewManager(config.NewStore(cfg), event.New(nil), testLogger())
	cls := classify.Result{Category: classify.CategoryBuildTool, Mode: classify.ModeBlockInteractive, NeedsChannel: true}

	ch, err := mgr.Create("b1", "s1", "true", cls, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	<-ch.Done()

	if !ch.Terminate(time.Second) {
		t.Error("Terminate() = false on an already-terminated channel, want true")
	}
}

func TestCreate_PTYForInteractive(t *testing.T) {
	cfg := testConfig()
	bus := event.New(nil)
	events, cancel := bus.Subscribe()
	defer cancel()

	mgr := NewManager(config.NewStore(cfg), bus, testLogger())
	cls := classify.Result{
		Category:      classify.CategoryInteractive,
		Mode:          classify.ModeBlockInteractive,
		RequiresInput: true,
		NeedsChannel:  true,
	}

	ch, err := mgr.Create("b1", "s1", "echo from-pty", cls, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ch.ptyFile == nil {
		t.Fatal("interactive channel did not get a PTY")
	}

	waitForOutput(t, events, "from-pty")

	select {
	case <-ch.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for exit")
	}
}

func TestSendSignal_InterruptsViaPTY(t *testing.T) {
	cfg := testConfig()
	mgr := NewManager(config.NewStore(cfg), event.New(nil), testLogger())
	cls := classify.Result{
		Category:      classify.CategoryInteractive,
		Mode:          classify.ModeBlockInteractive,
		RequiresInput: true,
		NeedsChannel:  true,
	}

	ch, err := mgr.Create("b1", "s1", "cat", cls, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Give the process a moment to set up its terminal.
	time.Sleep(100 * time.Millisecond)

	if !ch.SendSignal(SignalInterrupt) {
		t.Fatal("SendSignal() = false on a running channel")
	}

	select {
	case <-ch.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("interrupt byte did not end the process")
	}

	if code, ok := ch.ExitCode(); !ok || code != 130 {
		t.Errorf("ExitCode() = (%d, %v), want (130, true) after SIGINT", code, ok)
	}
}

func TestCreate_FullscreenKeepsScreenState(t *testing.T) {
	cfg := testConfig()
	mgr := NewManager(config.NewStore(cfg), event.New(nil), testLogger())
	cls := classify.Result{
		Category:           classify.CategoryInteractive,
		Mode:               classify.ModeFullscreenModal,
		RequiresInput:      true,
		NeedsChannel:       true,
		RequiresFullscreen: true,
	}

	ch, err := mgr.Create("b1", "s1", "printf fullscreen-output", cls, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ch.Screen() == nil {
		t.Fatal("fullscreen channel did not get a screen")
	}

	select {
	case <-ch.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for exit")
	}
	// The PTY pump may still be flushing its last chunk into the screen.
	time.Sleep(200 * time.Millisecond)

	content, err := ch.Screen().RenderString()
	if err != nil {
		t.Fatalf("RenderString() error = %v", err)
	}
	if !strings.Contains(content, "fullscreen-output") {
		t.Errorf("screen content missing program output:\n%s", content)
	}
}
