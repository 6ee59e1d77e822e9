package builtins

import (
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/zurustar/sludge-vm/pkg/logger"
	"github.com/zurustar/sludge-vm/pkg/vm"
)

// SpeechTicks is how long a line stays up when no speaker decides otherwise.
func SpeechTicks(text string) int {
	return utf8.RuneCountInString(text) + 20
}

// LogSpeaker shows dialogue by logging it. It is used when no window is open.
type LogSpeaker struct {
	Log *slog.Logger
}

// NewLogSpeaker returns a speaker logging on the script channel.
func NewLogSpeaker() *LogSpeaker {
	return &LogSpeaker{Log: logger.Channel(logger.ChannelScript)}
}

// Say logs the line and returns SpeechTicks.
func (s *LogSpeaker) Say(objType int32, text string, think bool) int {
	verb := "says"
	if think {
		verb = "thinks"
	}
	s.Log.Info(fmt.Sprintf("object %d %s", objType, verb), "text", text)
	return SpeechTicks(text)
}

// KillSpeech does nothing; logged lines cannot be taken back.
func (s *LogSpeaker) KillSpeech() {}

// killSpeechTimers ends every running speech wait and clears the speaker.
func killSpeechTimers(m *vm.VM) {
	for _, fn := range m.Functions() {
		if fn.IsSpeech {
			fn.IsSpeech = false
			fn.TimeLeft = 0
		}
	}
	m.KillSpeech()
}

// say(objType, text) and say(objType, text, sound).
func say(m *vm.VM, f *vm.Function, numParams int) (vm.Verdict, error) {
	return speak(m, f, numParams, false)
}

func think(m *vm.VM, f *vm.Function, numParams int) (vm.Verdict, error) {
	return speak(m, f, numParams, true)
}

func speak(m *vm.VM, f *vm.Function, numParams int, thinking bool) (vm.Verdict, error) {
	if numParams != 2 && numParams != 3 {
		return vm.Error, vm.Errorf(vm.ErrorArityMismatch, "built-in function must have 2 or 3 parameters")
	}
	sound := int32(-1)
	if numParams == 3 {
		n, err := m.PopTyped(f, vm.TypeFile)
		if err != nil {
			return vm.Error, err
		}
		sound = n
	}
	text, err := m.PopText(f)
	if err != nil {
		return vm.Error, err
	}
	obj, err := m.PopTyped(f, vm.TypeObjType)
	if err != nil {
		return vm.Error, err
	}

	killSpeechTimers(m)
	ticks := SpeechTicks(text)
	if s := m.Speaker(); s != nil {
		ticks = s.Say(obj, text, thinking)
	}
	if sound >= 0 {
		log().Debug("speech sound", "resource", m.Code().ResourceName(sound))
	}

	f.TimeLeft = ticks
	f.IsSpeech = true
	return vm.KeepAndPause, nil
}

func skipSpeech(m *vm.VM, _ *vm.Function, _ int) (vm.Verdict, error) {
	killSpeechTimers(m)
	return vm.Continue, nil
}
