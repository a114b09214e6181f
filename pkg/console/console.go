// Package console provides the interactive input console for a
// simulated box. Operators type lever and nose commands instead of
// touching hardware.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"

	"github.com/nyxlab/boxd/pkg/display"
	"github.com/nyxlab/boxd/pkg/hw"
)

// Styles for the state banner. lipgloss degrades these to plain text
// when the output is not a color terminal.
var (
	styleTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	styleActive = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleIdle   = lipgloss.NewStyle().Faint(true)
)

// Console is the interactive command-line interface to the simulated
// inputs. It drives the same Sim the session loop reads from.
type Console struct {
	box     *hw.Sim
	screens *display.Sim
	rl      *readline.Instance
	out     io.Writer
}

// Config holds console configuration.
type Config struct {
	HistoryFile string
}

// New creates a new input console. screens may be nil when the real
// OLED panels are attached.
func New(box *hw.Sim, screens *display.Sim, cfg Config) (*Console, error) {
	completer := NewCompleter()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[32mboxd>\033[0m ",
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		return nil, err
	}

	return &Console{
		box:     box,
		screens: screens,
		rl:      rl,
		out:     os.Stdout,
	}, nil
}

// Run starts the interactive loop. It returns when the operator quits,
// on EOF, or when the context is cancelled.
func (c *Console) Run(ctx context.Context) error {
	defer c.rl.Close()

	fmt.Fprintln(c.out, "Simulated box inputs. Type a command to move a lever or the nose.")
	fmt.Fprintln(c.out, "Commands: left on|off, right on|off, nose in|out, state, help, quit")
	fmt.Fprintln(c.out)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := c.handleCommand(line); err != nil {
			if err == errQuit {
				return nil
			}
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
	}
}

var errQuit = fmt.Errorf("quit")

func (c *Console) handleCommand(line string) error {
	parts := strings.Fields(line)
	cmd := parts[0]

	switch cmd {
	case "quit", "exit", "q":
		return errQuit

	case "help", "h":
		c.printHelp()

	case "state":
		fmt.Fprintln(c.out, c.renderState())

	case "left", "right":
		if len(parts) < 2 {
			return fmt.Errorf("usage: %s on|off", cmd)
		}
		pressed, err := parseOnOff(parts[1])
		if err != nil {
			return err
		}
		side := hw.SideLeft
		if cmd == "right" {
			side = hw.SideRight
		}
		c.box.SimulateLever(side, pressed)
		fmt.Fprintf(c.out, "%s lever %s\n", cmd, parts[1])

	case "nose":
		if len(parts) < 2 {
			return fmt.Errorf("usage: nose in|out")
		}
		in, err := parseInOut(parts[1])
		if err != nil {
			return err
		}
		c.box.SimulateNose(in)
		fmt.Fprintf(c.out, "nose %s\n", parts[1])

	default:
		fmt.Fprintf(c.out, "Unknown command: %s\n", cmd)
	}

	return nil
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
}

func parseInOut(s string) (bool, error) {
	switch s {
	case "in":
		return true, nil
	case "out":
		return false, nil
	default:
		return false, fmt.Errorf("expected in or out, got %q", s)
	}
}

// renderState formats the current snapshot as a small banner. Labels
// stay plain so column alignment survives color codes.
func (c *Console) renderState() string {
	snap := c.box.Read()

	var sb strings.Builder
	sb.WriteString(styleTitle.Render("box state"))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  %-8s left=%s right=%s\n", "levers",
		signal(snap.LeverLeft, "pressed", "released"),
		signal(snap.LeverRight, "pressed", "released"))
	fmt.Fprintf(&sb, "  %-8s %s\n", "nose",
		signal(snap.NoseIn(), "in", "out"))
	fmt.Fprintf(&sb, "  %-8s %s\n", "valve",
		signal(snap.WaterValve, "open", "closed"))
	fmt.Fprintf(&sb, "  %-8s nose=%s left=%s right=%s", "lights",
		signal(snap.NoseLight, "on", "off"),
		signal(snap.LeverLightLeft, "on", "off"),
		signal(snap.LeverLightRight, "on", "off"))

	if c.screens != nil {
		left, right := c.screens.States()
		fmt.Fprintf(&sb, "\n  %-8s left=%s right=%s", "screens",
			screenState(left), screenState(right))
	}

	return sb.String()
}

// signal renders the active label green and the idle one dim.
func signal(active bool, yes, no string) string {
	if active {
		return styleActive.Render(yes)
	}
	return styleIdle.Render(no)
}

func screenState(s display.State) string {
	if s == display.StateClear {
		return styleIdle.Render(string(s))
	}
	return styleActive.Render(string(s))
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, "Commands:")
	fmt.Fprintln(c.out, "  left on|off   - Press or release the left lever")
	fmt.Fprintln(c.out, "  right on|off  - Press or release the right lever")
	fmt.Fprintln(c.out, "  nose in|out   - Break or restore the nose port beam")
	fmt.Fprintln(c.out, "  state         - Show the current box IO snapshot")
	fmt.Fprintln(c.out, "  help          - Show this help")
	fmt.Fprintln(c.out, "  quit          - Exit")
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Tip: Use Tab to autocomplete commands")
}
