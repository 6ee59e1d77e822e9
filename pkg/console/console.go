// Package console is an interactive step debugger for a running game.
// It reads commands with line editing and history, ticks the scheduler on
// demand and prints the run list and globals.
package console

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/zurustar/sludge-vm/pkg/engine"
	"github.com/zurustar/sludge-vm/pkg/logger"
	"github.com/zurustar/sludge-vm/pkg/vm"
)

const prompt = "sludge> "

// Stepper advances the game one tick at a time.
type Stepper interface {
	Update() error
	Terminate()
	IsTerminated() bool
	Ticks() uint64
}

// Inspector exposes the machine state the console prints.
type Inspector interface {
	Functions() []*vm.Function
	Globals() []vm.Value
	Heap() *vm.Heap
	FunctionName(num int) string
}

// Console runs debugger commands against a stepper and machine.
type Console struct {
	stepper     Stepper
	machine     Inspector
	out         io.Writer
	historyPath string
	log         *slog.Logger
	err         error
}

// Option configures a Console.
type Option func(*Console)

// WithOutput sets where command output goes.
func WithOutput(w io.Writer) Option {
	return func(c *Console) {
		c.out = w
	}
}

// WithHistoryFile loads and saves line history at path.
func WithHistoryFile(path string) Option {
	return func(c *Console) {
		c.historyPath = path
	}
}

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Console) {
		c.log = log
	}
}

// New creates a console.
func New(stepper Stepper, machine Inspector, opts ...Option) *Console {
	c := &Console{
		stepper: stepper,
		machine: machine,
		out:     os.Stdout,
		log:     logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Err returns the fatal script error seen while stepping, if any.
func (c *Console) Err() error {
	return c.err
}

// Run reads commands until quit, end of input or the end of the game.
func (c *Console) Run() error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if c.historyPath != "" {
		if f, err := os.Open(c.historyPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			if f, err := os.Create(c.historyPath); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}()
	}

	fmt.Fprintln(c.out, "Type 'help' for commands.")
	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(c.out)
			c.stepper.Terminate()
			return c.err
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) != "" {
			ln.AppendHistory(line)
		}

		if quit := c.Exec(line); quit {
			return c.err
		}
	}
}

// Exec runs one command line and reports whether the console should exit.
// An empty line steps one tick.
func (c *Console) Exec(line string) bool {
	fields := strings.Fields(line)
	c.log.Debug("console command", "line", line)
	cmd := "step"
	if len(fields) > 0 {
		cmd = strings.ToLower(fields[0])
	}

	switch cmd {
	case "step", "s":
		return c.run(1)
	case "run", "r":
		n := 1
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil || v < 1 {
				fmt.Fprintf(c.out, "invalid tick count: %s\n", fields[1])
				return false
			}
			n = v
		}
		return c.run(n)
	case "continue", "c":
		return c.run(-1)
	case "functions", "f":
		c.printFunctions()
	case "globals", "g":
		c.printGlobals()
	case "help", "h", "?":
		c.printHelp()
	case "quit", "q", "exit":
		c.stepper.Terminate()
		return true
	default:
		fmt.Fprintf(c.out, "unknown command %q. Type 'help' for commands.\n", cmd)
	}
	return false
}

// run ticks n times, or until the game ends when n is negative.
func (c *Console) run(n int) bool {
	if c.stepper.IsTerminated() {
		fmt.Fprintln(c.out, "game is over")
		return true
	}
	for i := 0; n < 0 || i < n; i++ {
		err := c.stepper.Update()
		if err == nil {
			continue
		}
		if !errors.Is(err, engine.ErrTerminated) {
			c.err = err
			fmt.Fprintf(c.out, "fatal error: %v\n", err)
		}
		fmt.Fprintf(c.out, "game over after %d ticks\n", c.stepper.Ticks())
		return true
	}
	fmt.Fprintf(c.out, "tick %d, %d functions\n", c.stepper.Ticks(), len(c.machine.Functions()))
	return false
}

func (c *Console) printFunctions() {
	fns := c.machine.Functions()
	if len(fns) == 0 {
		fmt.Fprintln(c.out, "no functions")
		return
	}
	for _, f := range fns {
		var state []string
		if f.TimeLeft != 0 {
			state = append(state, fmt.Sprintf("wait %d", f.TimeLeft))
		}
		if f.FreezeLevel > 0 {
			state = append(state, fmt.Sprintf("frozen %d", f.FreezeLevel))
		}
		if f.IsSpeech {
			state = append(state, "speech")
		}
		if f.Cancel {
			state = append(state, "cancelled")
		}
		line := fmt.Sprintf("#%d %s pc=%d stack=%d", f.ID, c.machine.FunctionName(f.Number), f.PC, f.StackDepth())
		if len(state) > 0 {
			line += " [" + strings.Join(state, ", ") + "]"
		}
		if in, ok := f.Current(); ok {
			line += "  " + in.String()
		}
		fmt.Fprintln(c.out, line)
	}
}

func (c *Console) printGlobals() {
	globals := c.machine.Globals()
	if len(globals) == 0 {
		fmt.Fprintln(c.out, "no globals")
		return
	}
	h := c.machine.Heap()
	for i, v := range globals {
		s, err := h.Text(v)
		if err != nil {
			s = "<" + err.Error() + ">"
		}
		fmt.Fprintf(c.out, "%3d  %-12s %s\n", i, v.Type, s)
	}
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `Commands:
  step, s          run one tick (also an empty line)
  run N, r N       run N ticks
  continue, c      run until the game ends
  functions, f     list live functions
  globals, g       print global variables
  quit, q          stop the game and exit
`)
}
