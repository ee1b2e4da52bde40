package classify

import "strings"

// rule matches a normalized command against one pattern. Exact rules match
// the whole string; prefix rules match at a word boundary, so "vi" matches
// "vi notes.txt" but not "vim".
type rule struct {
	category Category
	pattern  string
	exact    bool
	priority int
}

func (r rule) match(normalized string) bool {
	if r.exact {
		return normalized == r.pattern
	}
	return matchWord(normalized, r.pattern)
}

func matchWord(normalized, pattern string) bool {
	return normalized == pattern || strings.HasPrefix(normalized, pattern+" ")
}

// Priority bands, lowest first. Specific phrase patterns ("npm run dev")
// must beat generic single-token patterns ("node"), so dev servers and
// watchers sit ahead of the broader categories.
const (
	priorityDevServer   = 100
	priorityWatcher     = 200
	priorityBuildTool   = 300
	priorityInteractive = 400
	priorityRepl        = 500
	priorityPersistent  = 600
)

var rules = []rule{
	{category: CategoryDevServer, pattern: "npm run dev", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "npm run start", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "npm run serve", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "npm start", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "yarn dev", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "yarn start", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "yarn serve", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "pnpm dev", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "pnpm start", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "bun dev", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "vite", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "next dev", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "ng serve", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "rails server", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "rails s", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "flask run", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "python -m http.server", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "python3 -m http.server", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "php -s", priority: priorityDevServer},
	{category: CategoryDevServer, pattern: "hugo server", priority: priorityDevServer},

	{category: CategoryWatcher, pattern: "npm run watch", priority: priorityWatcher},
	{category: CategoryWatcher, pattern: "yarn watch", priority: priorityWatcher},
	{category: CategoryWatcher, pattern: "pnpm watch", priority: priorityWatcher},
	{category: CategoryWatcher, pattern: "tsc --watch", priority: priorityWatcher},
	{category: CategoryWatcher, pattern: "tsc -w", priority: priorityWatcher},
	{category: CategoryWatcher, pattern: "webpack --watch", priority: priorityWatcher},
	{category: CategoryWatcher, pattern: "cargo watch", priority: priorityWatcher},
	{category: CategoryWatcher, pattern: "jest --watch", priority: priorityWatcher},
	{category: CategoryWatcher, pattern: "nodemon", priority: priorityWatcher},
	{category: CategoryWatcher, pattern: "watchexec", priority: priorityWatcher},
	{category: CategoryWatcher, pattern: "air", priority: priorityWatcher},

	{category: CategoryBuildTool, pattern: "npm run build", priority: priorityBuildTool},
	{category: CategoryBuildTool, pattern: "yarn build", priority: priorityBuildTool},
	{category: CategoryBuildTool, pattern: "pnpm build", priority: priorityBuildTool},
	{category: CategoryBuildTool, pattern: "make", priority: priorityBuildTool},
	{category: CategoryBuildTool, pattern: "cargo build", priority: priorityBuildTool},
	{category: CategoryBuildTool, pattern: "go build", priority: priorityBuildTool},
	{category: CategoryBuildTool, pattern: "gradle", priority: priorityBuildTool},
	{category: CategoryBuildTool, pattern: "./gradlew", priority: priorityBuildTool},
	{category: CategoryBuildTool, pattern: "mvn", priority: priorityBuildTool},
	{category: CategoryBuildTool, pattern: "cmake", priority: priorityBuildTool},
	{category: CategoryBuildTool, pattern: "bazel build", priority: priorityBuildTool},
	{category: CategoryBuildTool, pattern: "docker build", priority: priorityBuildTool},
	{category: CategoryBuildTool, pattern: "webpack", priority: priorityBuildTool},
	{category: CategoryBuildTool, pattern: "tsc", exact: true, priority: priorityBuildTool},

	{category: CategoryInteractive, pattern: "ssh", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "mysql", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "psql", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "redis-cli", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "mongo", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "mongosh", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "sqlite3", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "gdb", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "lldb", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "vim", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "vi", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "nvim", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "nano", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "emacs", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "less", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "more", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "man", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "top", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "htop", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "btop", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "tig", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "lazygit", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "k9s", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "ranger", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "mc", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "tmux", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "screen", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "claude", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "aider", priority: priorityInteractive},
	{category: CategoryInteractive, pattern: "gemini", priority: priorityInteractive},

	{category: CategoryRepl, pattern: "python", exact: true, priority: priorityRepl},
	{category: CategoryRepl, pattern: "python3", exact: true, priority: priorityRepl},
	{category: CategoryRepl, pattern: "ipython", exact: true, priority: priorityRepl},
	{category: CategoryRepl, pattern: "node", exact: true, priority: priorityRepl},
	{category: CategoryRepl, pattern: "deno", exact: true, priority: priorityRepl},
	{category: CategoryRepl, pattern: "irb", exact: true, priority: priorityRepl},
	{category: CategoryRepl, pattern: "pry", exact: true, priority: priorityRepl},
	{category: CategoryRepl, pattern: "ghci", exact: true, priority: priorityRepl},
	{category: CategoryRepl, pattern: "iex", exact: true, priority: priorityRepl},
	{category: CategoryRepl, pattern: "erl", exact: true, priority: priorityRepl},
	{category: CategoryRepl, pattern: "julia", exact: true, priority: priorityRepl},
	{category: CategoryRepl, pattern: "lua", exact: true, priority: priorityRepl},
	{category: CategoryRepl, pattern: "php -a", exact: true, priority: priorityRepl},

	{category: CategoryPersistent, pattern: "tail -f", priority: priorityPersistent},
	{category: CategoryPersistent, pattern: "journalctl -f", priority: priorityPersistent},
	{category: CategoryPersistent, pattern: "docker logs -f", priority: priorityPersistent},
	{category: CategoryPersistent, pattern: "kubectl logs -f", priority: priorityPersistent},
	{category: CategoryPersistent, pattern: "ping", priority: priorityPersistent},
	{category: CategoryPersistent, pattern: "watch", priority: priorityPersistent},
}

// signatures holds exact-match classifications for known commands. A hit
// here is final; the rule table is never consulted.
var signatures = map[string]Result{
	"claude": {
		Category:      CategoryInteractive,
		Mode:          ModeBlockInteractive,
		RequiresInput: true,
		IsPersistent:  true,
		NeedsChannel:  true,
		ProcessLabel:  "Claude",
	},
	"aider": {
		Category:      CategoryInteractive,
		Mode:          ModeBlockInteractive,
		RequiresInput: true,
		IsPersistent:  true,
		NeedsChannel:  true,
		ProcessLabel:  "Aider",
	},
	"gemini": {
		Category:      CategoryInteractive,
		Mode:          ModeBlockInteractive,
		RequiresInput: true,
		IsPersistent:  true,
		NeedsChannel:  true,
		ProcessLabel:  "Gemini",
	},
}
