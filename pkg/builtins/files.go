package builtins

import (
	"github.com/zurustar/sludge-vm/pkg/customdata"
	"github.com/zurustar/sludge-vm/pkg/fileutil"
	"github.com/zurustar/sludge-vm/pkg/vm"
)

func saveDir(m *vm.VM) *fileutil.SaveDir {
	return fileutil.NewSaveDir(m.SaveDir())
}

// fileExists(name) checks the save directory.
func fileExists(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	name, err := m.PopText(f)
	if err != nil {
		return vm.Error, err
	}
	m.SetReg(f, vm.Bool(saveDir(m).Exists(name)))
	return vm.Continue, nil
}

// saveCustomData(stack, name) writes the numbers and text in stack.
func saveCustomData(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	name, err := m.PopText(f)
	if err != nil {
		return vm.Error, err
	}
	coll, err := m.PopValue(f)
	if err != nil {
		return vm.Error, err
	}
	defer m.Heap().Release(&coll)
	if coll.Type != vm.TypeStack && coll.Type != vm.TypeFastArray {
		return vm.Error, vm.NewTypeMismatchError(vm.TypeStack, coll.Type)
	}

	dir := saveDir(m)
	if err := dir.Ensure(); err != nil {
		return vm.Error, err
	}
	path, err := dir.Resolve(name)
	if err != nil {
		return vm.Error, err
	}
	if err := customdata.SaveFile(path, m.Heap(), coll); err != nil {
		return vm.Error, err
	}
	log().Debug("saved custom data", "path", path)
	return vm.Continue, nil
}

// loadCustomData(name) returns a new stack read from the save directory.
func loadCustomData(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	name, err := m.PopText(f)
	if err != nil {
		return vm.Error, err
	}
	path, err := saveDir(m).Resolve(name)
	if err != nil {
		return vm.Error, err
	}
	st, err := customdata.LoadFile(path, m.Heap())
	if err != nil {
		return vm.Error, err
	}
	m.SetReg(f, st)
	return vm.Continue, nil
}
