package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/smazurov/lightnode/internal/api/models"
	"github.com/smazurov/lightnode/internal/client"
)

const consoleHelp = `Commands:
  1) static green | static yellow | static red   hold one colour
  4) normal loop                                 run the sequence
  5) everything off                              all lamps off
  6) exit                                        lamps off, then leave
     flash <color>                               blink one colour
     set <red|yellow|green|flash> <seconds>      change a live timing
     presets | preset <name> | save <name>       timing presets
     state | help | quit (leave lamps as they are)`

// errQuit ends the console loop.
var errQuit = errors.New("quit")

// console executes console lines against a controller.
type console struct {
	api     *client.Client
	out     io.Writer
	errOut  io.Writer
	timeout func() (context.Context, context.CancelFunc)
}

// CreateConsoleCmd creates the interactive console command.
func CreateConsoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive console for a running controller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "lightnode> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "quit",
				AutoComplete:    consoleCompleter(),
			})
			if err != nil {
				return fmt.Errorf("failed to create readline: %w", err)
			}
			defer rl.Close()

			con := &console{
				api:     c,
				out:     rl.Stdout(),
				errOut:  rl.Stderr(),
				timeout: func() (context.Context, context.CancelFunc) { return requestContext(cmd) },
			}
			fmt.Fprintf(con.out, "Connected to %s\n%s\n", c.BaseURL(), consoleHelp)
			return con.run(rl)
		},
	}
	addServerFlags(cmd)
	return cmd
}

func consoleCompleter() *readline.PrefixCompleter {
	colors := []readline.PrefixCompleterInterface{
		readline.PcItem("red"), readline.PcItem("yellow"), readline.PcItem("green"),
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("static", colors...),
		readline.PcItem("flash", colors...),
		readline.PcItem("normal", readline.PcItem("loop")),
		readline.PcItem("everything", readline.PcItem("off")),
		readline.PcItem("set", append(colors, readline.PcItem("flash"))...),
		readline.PcItem("presets"),
		readline.PcItem("preset"),
		readline.PcItem("save"),
		readline.PcItem("state"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
	)
}

func (c *console) run(rl *readline.Instance) error {
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return nil
		}
		if err := c.execute(line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(c.errOut, "error:", err)
		}
	}
}

// execute runs one console line. It returns errQuit when the console
// should end.
func (c *console) execute(line string) error {
	raw := strings.Fields(line)
	if len(raw) == 0 {
		return nil
	}
	fields := strings.Fields(strings.ToLower(line))

	switch input := strings.Join(fields, " "); {
	case input == "help" || input == "?":
		fmt.Fprintln(c.out, consoleHelp)
		return nil
	case input == "quit":
		return errQuit
	case input == "exit" || input == "6":
		if err := c.control(models.ControlRequestData{Action: "STOP"}); err != nil {
			return err
		}
		return errQuit
	case input == "state":
		return c.state()
	case input == "presets":
		return c.presets()
	}

	req, err := parseConsoleAction(fields)
	if err == nil {
		return c.control(req)
	}

	switch fields[0] {
	case "preset":
		if len(fields) != 2 {
			return errors.New("usage: preset <name>")
		}
		return c.applyPreset(raw[1])
	case "save":
		if len(fields) != 2 {
			return errors.New("usage: save <name>")
		}
		return c.savePreset(raw[1])
	}
	return err
}

// parseConsoleAction maps console phrases onto a control request.
func parseConsoleAction(fields []string) (models.ControlRequestData, error) {
	var req models.ControlRequestData
	input := strings.Join(fields, " ")

	switch input {
	case "1", "static green", "green":
		req.Action = "HOLD_GREEN"
	case "2", "static yellow", "yellow":
		req.Action = "HOLD_YELLOW"
	case "3", "static red", "red":
		req.Action = "HOLD_RED"
	case "4", "normal loop", "normal", "sequence":
		req.Action = "SEQUENCE"
	case "5", "everything off", "off", "stop":
		req.Action = "STOP"
	}
	if req.Action != "" {
		return req, nil
	}

	switch {
	case fields[0] == "flash" && len(fields) == 2:
		req.Action = "FLASH_" + strings.ToUpper(fields[1])
		return req, nil
	case fields[0] == "set" && len(fields) == 3:
		if _, err := strconv.ParseFloat(fields[2], 64); err != nil {
			return req, fmt.Errorf("%q is not a number of seconds", fields[2])
		}
		switch fields[1] {
		case "red":
			req.Red = fields[2]
		case "yellow":
			req.Yellow = fields[2]
		case "green":
			req.Green = fields[2]
		case "flash":
			req.Flash = fields[2]
		default:
			return req, fmt.Errorf("unknown timing %q", fields[1])
		}
		return req, nil
	}
	return req, fmt.Errorf("unknown command %q (type help)", input)
}

func (c *console) control(req models.ControlRequestData) error {
	ctx, cancel := c.timeout()
	defer cancel()

	out, err := c.api.Control(ctx, req)
	if err != nil {
		return err
	}
	renderWarnings(c.errOut, out.Warnings)
	renderState(c.out, &out.State)
	return nil
}

func (c *console) state() error {
	ctx, cancel := c.timeout()
	defer cancel()

	state, err := c.api.State(ctx)
	if err != nil {
		return err
	}
	renderState(c.out, state)
	return nil
}

func (c *console) presets() error {
	ctx, cancel := c.timeout()
	defer cancel()

	list, err := c.api.Presets(ctx)
	if err != nil {
		return err
	}
	renderPresets(c.out, list)
	return nil
}

func (c *console) applyPreset(name string) error {
	ctx, cancel := c.timeout()
	defer cancel()

	state, err := c.api.ApplyPreset(ctx, name)
	if err != nil {
		return err
	}
	renderState(c.out, state)
	return nil
}

func (c *console) savePreset(name string) error {
	ctx, cancel := c.timeout()
	defer cancel()

	list, err := c.api.SavePreset(ctx, name, nil)
	if err != nil {
		return err
	}
	renderPresets(c.out, list)
	return nil
}
