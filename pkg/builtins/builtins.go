// Package builtins provides the built-in functions scripts can call.
//
// Handlers take their arguments off the caller's operand stack, last
// argument first, and leave their result in the caller's register.
package builtins

import (
	"log/slog"

	"github.com/zurustar/sludge-vm/pkg/logger"
	"github.com/zurustar/sludge-vm/pkg/vm"
)

// Default returns the built-in table in the order compiled games without a
// name table expect. Games carrying names are rebound by Builtins.Bind.
func Default() []vm.Builtin {
	return []vm.Builtin{
		{Name: "say", Arity: vm.Variadic, Func: say},
		{Name: "think", Arity: vm.Variadic, Func: think},
		{Name: "skipSpeech", Arity: 0, Func: skipSpeech},
		{Name: "pause", Arity: 1, Func: pause},
		{Name: "freeze", Arity: 0, Func: freeze},
		{Name: "unfreeze", Arity: 0, Func: unfreeze},
		{Name: "howFrozen", Arity: 0, Func: howFrozen},
		{Name: "completeTimers", Arity: 0, Func: completeTimers},
		{Name: "spawnSub", Arity: 1, Func: spawnSub},
		{Name: "cancelSub", Arity: 1, Func: cancelSub},
		{Name: "callEvent", Arity: 2, Func: callEvent},
		{Name: "quitGame", Arity: 0, Func: quitGame},
		{Name: "newStack", Arity: vm.Variadic, Func: newStack},
		{Name: "stackSize", Arity: 1, Func: stackSize},
		{Name: "copyStack", Arity: 1, Func: copyStack},
		{Name: "pushToStack", Arity: 2, Func: pushToStack},
		{Name: "enqueue", Arity: 2, Func: enqueue},
		{Name: "deleteFromStack", Arity: 2, Func: deleteFromStack},
		{Name: "deleteAllFromStack", Arity: 2, Func: deleteAllFromStack},
		{Name: "popFromStack", Arity: 1, Func: popFromStack},
		{Name: "peekStart", Arity: 1, Func: peekStart},
		{Name: "peekEnd", Arity: 1, Func: peekEnd},
		{Name: "makeFastArray", Arity: 1, Func: makeFastArray},
		{Name: "random", Arity: 1, Func: random},
		{Name: "substring", Arity: 3, Func: substring},
		{Name: "stringLength", Arity: 1, Func: stringLength},
		{Name: "fileExists", Arity: 1, Func: fileExists},
		{Name: "saveCustomData", Arity: 2, Func: saveCustomData},
		{Name: "loadCustomData", Arity: 1, Func: loadCustomData},
		{Name: "playSound", Arity: 1, Func: playSound},
		{Name: "addOverlay", Arity: 3, Func: addOverlay},
	}
}

// Table returns a new built-in table holding Default.
func Table() *vm.Builtins {
	return vm.NewBuiltins(Default())
}

func log() *slog.Logger {
	return logger.Channel(logger.ChannelBuiltin)
}
