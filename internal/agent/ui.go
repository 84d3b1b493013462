package agent

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// UI is the sole outbound presentation capability the driver depends on.
// Any implementation that honors these operations is acceptable; a headless
// driver (built for a subagent) is constructed with NoopUI instead.
type UI interface {
	PrintInfo(text string)
	PrintSuccess(text string)
	PrintWarning(text string)
	PrintError(text string)
	PrintAgentMessage(text, agentName string)
	PrintThinking(text string)
	PrintCode(text, filename string)
	PrintSubagentSpawned(id, label string)
	PrintSubagentCompleted(id, label string)
	PrintSubagentFailed(id, label, reason string)
	StartThinking(label string)
	StopThinking()
	GetUserInput(prompt string) (string, error)
}

// ConsoleUI renders to a terminal using fatih/color for the category colors
// (info/success/warning/error).
type ConsoleUI struct {
	out io.Writer
	in  *bufio.Reader

	mu       sync.Mutex
	thinking bool
}

// NewConsoleUI builds a UI backed by stdout/stdin.
func NewConsoleUI() *ConsoleUI {
	return &ConsoleUI{out: os.Stdout, in: bufio.NewReader(os.Stdin)}
}

func (c *ConsoleUI) PrintInfo(text string) {
	fmt.Fprintln(c.out, color.CyanString(text))
}

func (c *ConsoleUI) PrintSuccess(text string) {
	fmt.Fprintln(c.out, color.GreenString(text))
}

func (c *ConsoleUI) PrintWarning(text string) {
	fmt.Fprintln(c.out, color.YellowString(text))
}

func (c *ConsoleUI) PrintError(text string) {
	fmt.Fprintln(c.out, color.RedString(text))
}

func (c *ConsoleUI) PrintAgentMessage(text, agentName string) {
	fmt.Fprintf(c.out, "%s %s\n", color.New(color.Bold).Sprintf("%s:", agentName), text)
}

func (c *ConsoleUI) PrintThinking(text string) {
	fmt.Fprintln(c.out, color.New(color.Faint).Sprint(text))
}

func (c *ConsoleUI) PrintCode(text, filename string) {
	if filename != "" {
		fmt.Fprintln(c.out, color.MagentaString("--- %s ---", filename))
	}
	fmt.Fprintln(c.out, text)
}

func (c *ConsoleUI) PrintSubagentSpawned(id, label string) {
	fmt.Fprintln(c.out, color.BlueString("background task started: %s (%s)", label, id))
}

func (c *ConsoleUI) PrintSubagentCompleted(id, label string) {
	fmt.Fprintln(c.out, color.GreenString("background task finished: %s (%s)", label, id))
}

func (c *ConsoleUI) PrintSubagentFailed(id, label, reason string) {
	fmt.Fprintln(c.out, color.RedString("background task failed: %s (%s): %s", label, id, reason))
}

func (c *ConsoleUI) StartThinking(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thinking = true
	fmt.Fprint(c.out, color.New(color.Faint).Sprintf("%s...\n", label))
}

func (c *ConsoleUI) StopThinking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thinking = false
}

func (c *ConsoleUI) GetUserInput(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// NoopUI discards every call. Used for headless subagent drivers: when a
// driver is constructed for a subagent, UI prints are suppressed.
type NoopUI struct{}

func (NoopUI) PrintInfo(string)                           {}
func (NoopUI) PrintSuccess(string)                        {}
func (NoopUI) PrintWarning(string)                        {}
func (NoopUI) PrintError(string)                          {}
func (NoopUI) PrintAgentMessage(string, string)           {}
func (NoopUI) PrintThinking(string)                       {}
func (NoopUI) PrintCode(string, string)                   {}
func (NoopUI) PrintSubagentSpawned(string, string)        {}
func (NoopUI) PrintSubagentCompleted(string, string)      {}
func (NoopUI) PrintSubagentFailed(string, string, string) {}
func (NoopUI) StartThinking(string)                       {}
func (NoopUI) StopThinking()                              {}
func (NoopUI) GetUserInput(string) (string, error)        { return "", nil }
