package builtins

import (
	"github.com/zurustar/sludge-vm/pkg/vm"
)

// Sound and graphics are not rendered by this machine. These built-ins take
// their arguments so scripts keep running, and log what was asked for.

func playSound(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	file, err := m.PopTyped(f, vm.TypeFile)
	if err != nil {
		return vm.Error, err
	}
	log().Debug("playSound", "resource", m.Code().ResourceName(file))
	return vm.Continue, nil
}

// addOverlay(file, x, y)
func addOverlay(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	y, err := m.PopInt(f)
	if err != nil {
		return vm.Error, err
	}
	x, err := m.PopInt(f)
	if err != nil {
		return vm.Error, err
	}
	file, err := m.PopTyped(f, vm.TypeFile)
	if err != nil {
		return vm.Error, err
	}
	log().Debug("addOverlay", "resource", m.Code().ResourceName(file), "x", x, "y", y)
	return vm.Continue, nil
}
