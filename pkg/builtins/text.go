package builtins

import (
	"math/rand/v2"
	"unicode/utf8"

	"github.com/zurustar/sludge-vm/pkg/vm"
)

// random(n) returns a number from 0 to n-1. n below 1 counts as 1.
func random(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	n, err := m.PopInt(f)
	if err != nil {
		return vm.Error, err
	}
	if n <= 0 {
		n = 1
	}
	m.SetReg(f, vm.Int(rand.Int32N(n)))
	return vm.Continue, nil
}

// substring(text, start, length) counts in characters and clamps to the text.
func substring(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	length, err := m.PopInt(f)
	if err != nil {
		return vm.Error, err
	}
	start, err := m.PopInt(f)
	if err != nil {
		return vm.Error, err
	}
	text, err := m.PopText(f)
	if err != nil {
		return vm.Error, err
	}
	m.SetReg(f, vm.String(runeSlice(text, int(start), int(length))))
	return vm.Continue, nil
}

func runeSlice(s string, start, length int) string {
	runes := []rune(s)
	start = max(0, min(start, len(runes)))
	length = max(0, min(length, len(runes)-start))
	return string(runes[start : start+length])
}

func stringLength(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	text, err := m.PopText(f)
	if err != nil {
		return vm.Error, err
	}
	m.SetReg(f, vm.Int(int32(utf8.RuneCountInString(text))))
	return vm.Continue, nil
}
