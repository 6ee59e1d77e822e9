package builtins

import (
	"github.com/zurustar/sludge-vm/pkg/vm"
)

// pause(ticks) waits ticks frames; zero or less returns at once.
func pause(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	t, err := m.PopInt(f)
	if err != nil {
		return vm.Error, err
	}
	if t > 0 {
		f.TimeLeft = int(t) - 1
		f.IsSpeech = false
		return vm.KeepAndPause, nil
	}
	return vm.Continue, nil
}

// freeze() freezes everything else; the caller keeps running.
func freeze(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	m.Freeze()
	f.FreezeLevel = 0
	return vm.Continue, nil
}

func unfreeze(m *vm.VM, _ *vm.Function, _ int) (vm.Verdict, error) {
	m.Unfreeze()
	return vm.Continue, nil
}

func howFrozen(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	m.SetReg(f, vm.Int(int32(m.FrozenDepth())))
	return vm.Continue, nil
}

func completeTimers(m *vm.VM, _ *vm.Function, _ int) (vm.Verdict, error) {
	m.CompleteTimers()
	return vm.Continue, nil
}

// spawnSub(fn) starts fn running alongside the caller.
func spawnSub(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	num, err := m.PopTyped(f, vm.TypeFunc)
	if err != nil {
		return vm.Error, err
	}
	if _, err := m.Spawn(int(num), 0, nil, nil, true); err != nil {
		return vm.Error, err
	}
	return vm.Continue, nil
}

// cancelSub(fn) stops every running instance of fn, possibly the caller itself.
func cancelSub(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	num, err := m.PopTyped(f, vm.TypeFunc)
	if err != nil {
		return vm.Error, err
	}
	if m.CancelFunction(int(num), f) {
		m.Abort(f)
		return vm.AlreadyGone, nil
	}
	return vm.Continue, nil
}

// callEvent(objType, event) runs the object's handler for event, if any.
// The register is 0 when there is no handler.
func callEvent(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	event, err := m.PopInt(f)
	if err != nil {
		return vm.Error, err
	}
	obj, err := m.PopTyped(f, vm.TypeObjType)
	if err != nil {
		return vm.Error, err
	}
	if events := m.Events(); events != nil {
		if fn, ok := events.EventFunction(obj, event); ok {
			m.SetReg(f, vm.Typed(vm.TypeFunc, fn))
			return vm.CallAFunction, nil
		}
	}
	m.SetReg(f, vm.Int(0))
	return vm.Continue, nil
}

func quitGame(m *vm.VM, _ *vm.Function, _ int) (vm.Verdict, error) {
	log().Info("quitGame called")
	m.RequestQuit()
	return vm.Continue, nil
}
