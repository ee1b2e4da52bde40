// Package procinfo provides cross-platform process inspection utilities.
package procinfo

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Info contains information about a running process.
type Info struct {
	PID     int
	Command string // Full command line with arguments
}

// CommandLine returns the full command line for a process.
// Works on macOS and Linux using POSIX-compatible ps flags.
func CommandLine(pid int) (string, error) {
	cmd := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "args=")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ps command failed: %w: %s", err, stderr.String())
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Children returns all direct child processes of the given PID.
// Works on macOS and Linux using POSIX ps.
func Children(pid int) ([]Info, error) {
	cmd := exec.Command("ps", "-eo", "pid=,ppid=,args=")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ps failed: %w: %s", err, stderr.String())
	}

	parentPID := strconv.Itoa(pid)
	var children []Info

	lines := strings.Split(stdout.String(), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Parse: "  PID  PPID COMMAND..."
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		ppid := fields[1]
		if ppid != parentPID {
			continue
		}

		childPID, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}

		children = append(children, Info{
			PID:     childPID,
			Command: strings.Join(fields[2:], " "),
		})
	}

	return children, nil
}

// Foreground returns the command actually running under a shell process.
// Wrapper chains (npm -> node, shell -> command) are walked down to the
// deepest first child, so a block running "npm run dev" reports the node
// process a user would recognize.
func Foreground(shellPID int) (name string, cmdLine string, err error) {
	pid := shellPID
	line := ""

	// Bounded walk; process trees are shallow and this avoids looping on
	// pathological ppid output.
	for depth := 0; depth < 8; depth++ {
		children, err := Children(pid)
		if err != nil {
			return "", "", err
		}
		if len(children) == 0 {
			break
		}
		pid = children[0].PID
		line = children[0].Command
	}

	if line == "" {
		// No children means the shell itself is active (idle prompt)
		line, err = CommandLine(shellPID)
		if err != nil {
			return "", "", err
		}
	}

	return CommandName(line), line, nil
}

// CommandName extracts the command name from a full command line.
// Handles paths like "/usr/local/bin/node" -> "node"
func CommandName(cmdLine string) string {
	parts := strings.Fields(cmdLine)
	if len(parts) == 0 {
		return ""
	}

	cmd := parts[0]
	if idx := strings.LastIndex(cmd, "/"); idx >= 0 {
		cmd = cmd[idx+1:]
	}
	return cmd
}
