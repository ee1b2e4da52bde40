// Package classify maps command strings to behavioral categories and
// handling modes. Classification decides whether a command runs as a plain
// one-shot call or is tracked as a block with its own channel.
package classify

import (
	"sort"
	"strings"
	"sync"
)

// Category is the behavioral category of a command.
type Category int

const (
	CategoryOneshot Category = iota
	CategoryInteractive
	CategoryPersistent
	CategoryWatcher
	CategoryRepl
	CategoryDevServer
	CategoryBuildTool
)

func (c Category) String() string {
	switch c {
	case CategoryOneshot:
		return "oneshot"
	case CategoryInteractive:
		return "interactive"
	case CategoryPersistent:
		return "persistent"
	case CategoryWatcher:
		return "watcher"
	case CategoryRepl:
		return "repl"
	case CategoryDevServer:
		return "dev_server"
	case CategoryBuildTool:
		return "build_tool"
	default:
		return "unknown"
	}
}

// Attributes carries category-specific fields. Exactly one variant applies
// per category; categories without extra fields carry nil.
type Attributes interface {
	attributes()
}

// DevServerAttributes describes a development server command.
type DevServerAttributes struct {
	IsServer   bool
	HasLogs    bool
	CanRestart bool
}

func (DevServerAttributes) attributes() {}

// ReplAttributes describes a read-eval-print loop command.
type ReplAttributes struct {
	SupportsHistory bool
	Multiline       bool
}

func (ReplAttributes) attributes() {}

// Result is the classification of one normalized command string.
type Result struct {
	Category           Category
	Mode               Mode
	RequiresInput      bool
	IsPersistent       bool
	NeedsChannel       bool
	RequiresFullscreen bool
	ProcessLabel       string
	Attributes         Attributes
}

// NeedsBlock reports whether the command is tracked as a block at all.
// Oneshot commands are executed outside the orchestrator.
func (r Result) NeedsBlock() bool {
	return r.Mode != ModeOneshot
}

// NeedsProcess reports whether activating the command spawns an OS process.
func (r Result) NeedsProcess() bool {
	return r.NeedsChannel || r.IsPersistent
}

// Classifier caches classification results by normalized command string.
type Classifier struct {
	mu    sync.RWMutex
	cache map[string]Result
	rules []rule
}

// New constructs a Classifier with the built-in rule table sorted by
// priority. Lower priority values are evaluated first.
func New() *Classifier {
	rs := make([]rule, len(rules))
	copy(rs, rules)
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].priority < rs[j].priority
	})
	return &Classifier{
		cache: make(map[string]Result),
		rules: rs,
	}
}

// Classify returns the classification for command. Results are cached per
// normalized command string; classification never fails, unmatched commands
// resolve to oneshot.
func (c *Classifier) Classify(command string) Result {
	normalized := strings.ToLower(strings.TrimSpace(command))
	if normalized == "" {
		return Result{Category: CategoryOneshot, Mode: ModeOneshot}
	}

	c.mu.RLock()
	cached, ok := c.cache[normalized]
	c.mu.RUnlock()
	if ok {
		return cached
	}

	result := c.classify(normalized)

	c.mu.Lock()
	c.cache[normalized] = result
	c.mu.Unlock()
	return result
}

func (c *Classifier) classify(normalized string) Result {
	// Known command signatures win outright, bypassing pattern matching.
	if result, ok := signatures[normalized]; ok {
		return result
	}

	result := Result{Category: CategoryOneshot}
	for _, r := range c.rules {
		if r.match(normalized) {
			result = resultFor(r.category)
			break
		}
	}

	result.Mode = handlingMode(normalized, result.Category)
	result.RequiresFullscreen = result.Mode == ModeFullscreenModal
	return result
}

// Mode returns only the handling mode for command. Shares the Classify
// cache.
func (c *Classifier) Mode(command string) Mode {
	return c.Classify(command).Mode
}

// ClearCache drops all cached classifications.
func (c *Classifier) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]Result)
	c.mu.Unlock()
}

// CacheSize returns the number of cached classifications.
func (c *Classifier) CacheSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func resultFor(category Category) Result {
	result := Result{Category: category}
	switch category {
	case CategoryDevServer:
		result.IsPersistent = true
		result.Attributes = DevServerAttributes{IsServer: true, HasLogs: true, CanRestart: true}
	case CategoryWatcher:
		result.IsPersistent = true
	case CategoryBuildTool:
		result.NeedsChannel = true
	case CategoryInteractive:
		result.RequiresInput = true
		result.NeedsChannel = true
	case CategoryRepl:
		result.RequiresInput = true
		result.IsPersistent = true
		result.NeedsChannel = true
		result.Attributes = ReplAttributes{SupportsHistory: true, Multiline: true}
	case CategoryPersistent:
		result.IsPersistent = true
	}
	return result
}
