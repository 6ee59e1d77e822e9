package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/zurustar/sludge-vm/pkg/builtins"
	"github.com/zurustar/sludge-vm/pkg/opcode"
	"github.com/zurustar/sludge-vm/pkg/vm"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeMachine finishes after doneAfter ticks, or fails on tick failAt.
type fakeMachine struct {
	ticks     int
	doneAfter int
	failAt    int
	tickErr   error
	err       error
	quit      bool
	stopped   bool
}

func (m *fakeMachine) Tick() error {
	if m.stopped {
		return vm.ErrStopped
	}
	m.ticks++
	if m.failAt > 0 && m.ticks == m.failAt {
		return m.tickErr
	}
	return nil
}

func (m *fakeMachine) Done() bool {
	return m.quit || m.err != nil || (m.doneAfter > 0 && m.ticks >= m.doneAfter)
}

func (m *fakeMachine) Err() error          { return m.err }
func (m *fakeMachine) Stop()               { m.stopped = true }
func (m *fakeMachine) LiveFunctions() int  { return 1 }
func (m *fakeMachine) QuitRequested() bool { return m.quit }

func newTestEngine(m Machine, opts ...Option) *Engine {
	opts = append([]Option{WithLogger(quietLogger()), WithFrameInterval(0)}, opts...)
	e := New(m, opts...)
	e.Start()
	return e
}

func TestUpdate_RunsUntilDone(t *testing.T) {
	m := &fakeMachine{doneAfter: 3}
	e := newTestEngine(m)

	for i := 1; i <= 2; i++ {
		if err := e.Update(); err != nil {
			t.Fatalf("Update() %d = %v", i, err)
		}
	}
	if err := e.Update(); !errors.Is(err, ErrTerminated) {
		t.Fatalf("Update() after the last function = %v, want ErrTerminated", err)
	}
	if !e.IsTerminated() || !m.stopped {
		t.Error("engine should be terminated and the machine stopped")
	}

	// Nothing runs after termination.
	if err := e.Update(); !errors.Is(err, ErrTerminated) {
		t.Errorf("Update() after termination = %v", err)
	}
	if m.ticks != 3 || e.Ticks() != 3 {
		t.Errorf("ticks = %d (engine %d), want 3", m.ticks, e.Ticks())
	}
}

func TestUpdate_Errors(t *testing.T) {
	fatal := vm.NewDivisionByZeroError()

	tests := []struct {
		name    string
		machine *fakeMachine
		want    error
	}{
		{"tick error is returned", &fakeMachine{failAt: 1, tickErr: fatal}, fatal},
		{"halted machine reports its error", &fakeMachine{err: fatal}, fatal},
		{"quit ends normally", &fakeMachine{quit: true}, ErrTerminated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(tt.machine)
			if err := e.Update(); !errors.Is(err, tt.want) {
				t.Errorf("Update() = %v, want %v", err, tt.want)
			}
			if !e.IsTerminated() {
				t.Error("engine should be terminated")
			}
		})
	}
}

func TestTerminate(t *testing.T) {
	m := &fakeMachine{}
	e := newTestEngine(m)

	e.Terminate()
	e.Terminate()
	if !e.CheckTermination() {
		t.Error("CheckTermination() should report a requested termination")
	}
	if err := e.Update(); !errors.Is(err, ErrTerminated) {
		t.Errorf("Update() = %v, want ErrTerminated", err)
	}
	if m.ticks != 0 {
		t.Errorf("machine ticked %d times after Terminate", m.ticks)
	}
}

func TestTimeout(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	m := &fakeMachine{}
	e := newTestEngine(m, WithTimeout(2*time.Second), WithClock(clock))

	if err := e.Update(); err != nil {
		t.Fatalf("Update() before the timeout = %v", err)
	}
	now = now.Add(1999 * time.Millisecond)
	if e.CheckTermination() {
		t.Fatal("terminated before the timeout")
	}
	now = now.Add(time.Millisecond)
	if err := e.Update(); !errors.Is(err, ErrTerminated) {
		t.Errorf("Update() at the timeout = %v, want ErrTerminated", err)
	}
	if m.ticks != 1 {
		t.Errorf("ticks = %d, want 1", m.ticks)
	}
}

func TestRun(t *testing.T) {
	t.Run("returns nil when the game ends", func(t *testing.T) {
		m := &fakeMachine{doneAfter: 10}
		e := New(m, WithLogger(quietLogger()), WithFrameInterval(0))
		if err := e.Run(context.Background()); err != nil {
			t.Fatalf("Run() = %v", err)
		}
		if m.ticks != 10 {
			t.Errorf("ticks = %d, want 10", m.ticks)
		}
	})

	t.Run("returns the fatal error", func(t *testing.T) {
		fatal := vm.NewStackUnderflowError("test")
		m := &fakeMachine{failAt: 2, tickErr: fatal}
		e := New(m, WithLogger(quietLogger()), WithFrameInterval(0))
		if err := e.Run(context.Background()); !errors.Is(err, fatal) {
			t.Errorf("Run() = %v, want %v", err, fatal)
		}
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		m := &fakeMachine{}
		e := New(m, WithLogger(quietLogger()), WithFrameInterval(time.Millisecond))
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := e.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Run() = %v, want context.DeadlineExceeded", err)
		}
		if !m.stopped {
			t.Error("the machine should be stopped")
		}
	})
}

func TestRun_ScriptWithPause(t *testing.T) {
	table := builtins.Table()
	pauseID, _ := table.ID("pause")
	code := scriptCode{0: {Lines: []opcode.Instruction{
		{Cmd: opcode.LoadValue, Param: 2},
		{Cmd: opcode.StackPush},
		{Cmd: opcode.LoadBuilt, Param: int32(pauseID)},
		{Cmd: opcode.CallIt, Param: 1},
		{Cmd: opcode.Return},
	}}}
	m := vm.New(code, 0, vm.WithLogger(quietLogger()), vm.WithBuiltins(table))
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}

	e := New(m, WithLogger(quietLogger()), WithFrameInterval(0))
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	// The call, one waiting frame, then the return.
	if e.Ticks() != 3 {
		t.Errorf("Ticks() = %d, want 3", e.Ticks())
	}
	if m.LiveFunctions() != 0 {
		t.Errorf("LiveFunctions() = %d", m.LiveFunctions())
	}
}

type scriptCode map[int]*vm.FunctionCode

func (c scriptCode) LoadFunction(num int) (*vm.FunctionCode, error) {
	if fc, ok := c[num]; ok {
		return fc, nil
	}
	return nil, errors.New("no such function")
}

func (c scriptCode) String(int) (string, error) { return "", errors.New("no strings") }
func (c scriptCode) ResourceName(int32) string  { return "RESOURCE" }
