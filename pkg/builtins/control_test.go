package builtins

import (
	"testing"

	"github.com/zurustar/sludge-vm/pkg/opcode"
	"github.com/zurustar/sludge-vm/pkg/vm"
)

func TestPause(t *testing.T) {
	tests := []struct {
		ticks    int32
		verdict  vm.Verdict
		timeLeft int
	}{
		{3, vm.KeepAndPause, 2},
		{1, vm.KeepAndPause, 0},
		{0, vm.Continue, 0},
		{-4, vm.Continue, 0},
	}
	for _, tt := range tests {
		m, f := newMachine(t)
		f.IsSpeech = true
		verdict, err := call(t, m, f, "pause", vm.Int(tt.ticks))
		if err != nil || verdict != tt.verdict {
			t.Errorf("pause(%d) = %v, %v; want %v", tt.ticks, verdict, err, tt.verdict)
		}
		if f.TimeLeft != tt.timeLeft {
			t.Errorf("pause(%d) left a timer of %d, want %d", tt.ticks, f.TimeLeft, tt.timeLeft)
		}
		if tt.verdict == vm.KeepAndPause && f.IsSpeech {
			t.Errorf("pause(%d) should clear the speech flag", tt.ticks)
		}
	}
}

func TestPause_ArgumentType(t *testing.T) {
	m, f := newMachine(t)
	if _, err := call(t, m, f, "pause", vm.String("soon")); !vm.IsErrorType(err, vm.ErrorTypeMismatch) {
		t.Errorf("pause(\"soon\") error = %v", err)
	}
}

func TestFreeze(t *testing.T) {
	m, f := newMachine(t)
	other, err := m.Spawn(1, 0, nil, nil, true)
	if err != nil {
		t.Fatal(err)
	}

	mustCall(t, m, f, "freeze")
	if f.FreezeLevel != 0 {
		t.Errorf("caller freeze level = %d, want 0", f.FreezeLevel)
	}
	if other.FreezeLevel != 1 {
		t.Errorf("other freeze level = %d, want 1", other.FreezeLevel)
	}
	mustCall(t, m, f, "howFrozen")
	if f.Reg != vm.Int(1) {
		t.Errorf("howFrozen() = %v, want 1", f.Reg)
	}

	mustCall(t, m, f, "unfreeze")
	if other.FreezeLevel != 0 {
		t.Errorf("other freeze level after unfreeze = %d", other.FreezeLevel)
	}
	mustCall(t, m, f, "howFrozen")
	if f.Reg != vm.Int(0) {
		t.Errorf("howFrozen() after unfreeze = %v, want 0", f.Reg)
	}
}

func TestCompleteTimers(t *testing.T) {
	m, f := newMachine(t)
	other, _ := m.Spawn(1, 0, nil, nil, true)
	other.TimeLeft = 40
	waiting, _ := m.Spawn(2, 0, nil, nil, true)
	waiting.TimeLeft = -1

	mustCall(t, m, f, "completeTimers")
	if other.TimeLeft != 0 {
		t.Errorf("positive timer = %d, want 0", other.TimeLeft)
	}
	if waiting.TimeLeft != -1 {
		t.Errorf("resource wait = %d, want it untouched", waiting.TimeLeft)
	}
}

func TestSpawnSub(t *testing.T) {
	m, f := newMachine(t)
	before := m.LiveFunctions()

	mustCall(t, m, f, "spawnSub", vm.Typed(vm.TypeFunc, 1))
	if m.LiveFunctions() != before+1 {
		t.Errorf("LiveFunctions() = %d, want %d", m.LiveFunctions(), before+1)
	}
	spawned := m.Functions()[0]
	if spawned.Number != 1 || spawned.Caller != nil {
		t.Errorf("spawned %d with caller %v", spawned.Number, spawned.Caller)
	}

	if _, err := call(t, m, f, "spawnSub", vm.Typed(vm.TypeFunc, 99)); err == nil {
		t.Error("spawning a missing function should fail")
	}
	if _, err := call(t, m, f, "spawnSub", vm.Int(1)); !vm.IsErrorType(err, vm.ErrorTypeMismatch) {
		t.Errorf("spawnSub(1) error = %v", err)
	}
}

func TestCancelSub(t *testing.T) {
	t.Run("other instances are flagged", func(t *testing.T) {
		m, f := newMachine(t)
		a, _ := m.Spawn(1, 0, nil, nil, true)
		b, _ := m.Spawn(1, 0, nil, nil, true)
		c, _ := m.Spawn(2, 0, nil, nil, true)

		mustCall(t, m, f, "cancelSub", vm.Typed(vm.TypeFunc, 1))
		if !a.Cancel || !b.Cancel {
			t.Error("every instance of function 1 should be flagged")
		}
		if c.Cancel || f.Cancel {
			t.Error("other functions should not be flagged")
		}
	})

	t.Run("cancelling the caller's own function", func(t *testing.T) {
		m, f := newMachine(t)
		verdict, err := call(t, m, f, "cancelSub", vm.Typed(vm.TypeFunc, 0))
		if err != nil || verdict != vm.AlreadyGone {
			t.Fatalf("cancelSub(self) = %v, %v; want already-gone", verdict, err)
		}
		if !f.Dead() {
			t.Error("the caller should be aborted")
		}
	})
}

type eventMap map[[2]int32]int32

func (e eventMap) EventFunction(objType, event int32) (int32, bool) {
	fn, ok := e[[2]int32{objType, event}]
	return fn, ok
}

func TestCallEvent(t *testing.T) {
	events := eventMap{{5, 1}: 2}

	t.Run("handler found", func(t *testing.T) {
		m, f := newMachine(t, vm.WithEvents(events))
		verdict, err := call(t, m, f, "callEvent", vm.Typed(vm.TypeObjType, 5), vm.Int(1))
		if err != nil || verdict != vm.CallAFunction {
			t.Fatalf("callEvent() = %v, %v; want call-a-function", verdict, err)
		}
		if f.Reg != vm.Typed(vm.TypeFunc, 2) {
			t.Errorf("register = %v, want function 2", f.Reg)
		}
	})

	t.Run("no handler", func(t *testing.T) {
		m, f := newMachine(t, vm.WithEvents(events))
		mustCall(t, m, f, "callEvent", vm.Typed(vm.TypeObjType, 5), vm.Int(2))
		if f.Reg != vm.Int(0) {
			t.Errorf("register = %v, want 0", f.Reg)
		}
	})

	t.Run("no event table", func(t *testing.T) {
		m, f := newMachine(t)
		mustCall(t, m, f, "callEvent", vm.Typed(vm.TypeObjType, 5), vm.Int(1))
		if f.Reg != vm.Int(0) {
			t.Errorf("register = %v, want 0", f.Reg)
		}
	})
}

// A script calls an event handler through the interpreter and gets 1 back.
func TestCallEvent_RunsHandler(t *testing.T) {
	b := Table()
	callEventID, _ := b.ID("callEvent")
	code := testCode{
		0: {NumLocals: 0, Lines: []opcode.Instruction{
			{Cmd: opcode.LoadObjType, Param: 5},
			{Cmd: opcode.StackPush},
			{Cmd: opcode.LoadValue, Param: 1},
			{Cmd: opcode.StackPush},
			{Cmd: opcode.LoadBuilt, Param: int32(callEventID)},
			{Cmd: opcode.CallIt, Param: 2},
			{Cmd: opcode.SetGlobal, Param: 0},
			{Cmd: opcode.Return},
		}},
		2: {Lines: []opcode.Instruction{
			{Cmd: opcode.IncrementGlobal, Param: 1},
			{Cmd: opcode.Return},
		}},
	}
	m := vm.New(code, 2, vm.WithLogger(quietLogger()), vm.WithBuiltins(b), vm.WithEvents(eventMap{{5, 1}: 2}))
	_ = m.SetGlobal(1, vm.Int(0))
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5 && !m.Done(); i++ {
		if err := m.Tick(); err != nil {
			t.Fatalf("Tick() failed: %v", err)
		}
	}
	if m.Globals()[1] != vm.Int(1) {
		t.Errorf("handler ran %v times, want 1", m.Globals()[1])
	}
	if m.Globals()[0] != vm.Int(1) {
		t.Errorf("callEvent result = %v, want 1", m.Globals()[0])
	}
}

func TestQuitGame(t *testing.T) {
	m, f := newMachine(t)
	mustCall(t, m, f, "quitGame")
	if !m.QuitRequested() || !m.Done() {
		t.Error("quitGame should end the game")
	}
}
