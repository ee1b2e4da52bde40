package classify

// Mode is the handling mode of a command: how its output and input are
// presented once activated.
type Mode int

const (
	// ModeOneshot runs outside the block system entirely.
	ModeOneshot Mode = iota
	// ModeBlockInteractive streams output inside an addressable block.
	ModeBlockInteractive
	// ModeFullscreenModal takes over the full display (editors, pagers,
	// monitors) until the program exits.
	ModeFullscreenModal
)

func (m Mode) String() string {
	switch m {
	case ModeOneshot:
		return "oneshot"
	case ModeBlockInteractive:
		return "block_interactive"
	case ModeFullscreenModal:
		return "fullscreen_modal"
	default:
		return "unknown"
	}
}

// fullscreenCommands take over the whole display when they run.
var fullscreenCommands = []string{
	"vim", "vi", "nvim", "nano", "emacs",
	"less", "more", "man",
	"top", "htop", "btop",
	"tig", "lazygit", "k9s", "ranger", "mc",
	"tmux", "screen", "watch",
}

// blockInteractiveCommands are forced into block-interactive handling even
// when the rule table knows nothing about the argument form.
var blockInteractiveCommands = []string{
	"claude", "aider", "gemini",
}

// handlingMode decides how a command is presented. Fullscreen matches are
// checked first, then the direct block-interactive set, then the category
// decides: any tracked category streams inside a block, oneshot stays
// oneshot.
func handlingMode(normalized string, category Category) Mode {
	for _, pattern := range fullscreenCommands {
		if matchWord(normalized, pattern) {
			return ModeFullscreenModal
		}
	}
	for _, pattern := range blockInteractiveCommands {
		if matchWord(normalized, pattern) {
			return ModeBlockInteractive
		}
	}
	if category != CategoryOneshot {
		return ModeBlockInteractive
	}
	return ModeOneshot
}
