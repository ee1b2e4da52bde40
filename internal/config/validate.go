package config

import (
	"fmt"
	"strings"
)

// Validate checks a merged configuration for out-of-range values.
func Validate(cfg *Config) error {
	var problems []string

	if cfg.WelcomeTimeoutMS < 0 {
		problems = append(problems, fmt.Sprintf("welcome_timeout_ms %d is negative", cfg.WelcomeTimeoutMS))
	}
	if cfg.TerminateTimeoutMS <= 0 {
		problems = append(problems, fmt.Sprintf("terminate_timeout_ms %d must be positive", cfg.TerminateTimeoutMS))
	}
	if cfg.DisposeGraceMS < 0 {
		problems = append(problems, fmt.Sprintf("dispose_grace_ms %d is negative", cfg.DisposeGraceMS))
	}
	if cfg.OutputBuffer <= 0 {
		problems = append(problems, fmt.Sprintf("output_buffer %d must be positive", cfg.OutputBuffer))
	}
	if cfg.HistoryLines <= 0 {
		problems = append(problems, fmt.Sprintf("history_lines %d must be positive", cfg.HistoryLines))
	}
	if cfg.ScreenRows <= 0 || cfg.ScreenCols <= 0 {
		problems = append(problems, fmt.Sprintf("screen size %dx%d must be positive", cfg.ScreenRows, cfg.ScreenCols))
	}
	if cfg.Remote.Port < 1 || cfg.Remote.Port > 65535 {
		problems = append(problems, fmt.Sprintf("remote port %d out of range", cfg.Remote.Port))
	}
	if cfg.Remote.ConnectTimeoutMS <= 0 {
		problems = append(problems, fmt.Sprintf("connect_timeout_ms %d must be positive", cfg.Remote.ConnectTimeoutMS))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}
