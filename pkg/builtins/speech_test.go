package builtins

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/zurustar/sludge-vm/pkg/vm"
)

type recordingSpeaker struct {
	lines []string
	kills int
	ticks int
}

func (s *recordingSpeaker) Say(_ int32, text string, think bool) int {
	if think {
		text = "(" + text + ")"
	}
	s.lines = append(s.lines, text)
	return s.ticks
}

func (s *recordingSpeaker) KillSpeech() {
	s.kills++
}

func TestSay(t *testing.T) {
	speaker := &recordingSpeaker{ticks: 30}
	m, f := newMachine(t, vm.WithSpeaker(speaker))

	verdict, err := call(t, m, f, "say", vm.Typed(vm.TypeObjType, 3), vm.String("Hello"))
	if err != nil || verdict != vm.KeepAndPause {
		t.Fatalf("say() = %v, %v; want keep-and-pause", verdict, err)
	}
	if f.TimeLeft != 30 || !f.IsSpeech {
		t.Errorf("timer = %d, speech = %v", f.TimeLeft, f.IsSpeech)
	}
	if len(speaker.lines) != 1 || speaker.lines[0] != "Hello" {
		t.Errorf("speaker got %v", speaker.lines)
	}
	if f.Stack != nil {
		t.Error("say() should take all its arguments")
	}
}

func TestSay_InterruptsOtherSpeech(t *testing.T) {
	speaker := &recordingSpeaker{ticks: 10}
	m, f := newMachine(t, vm.WithSpeaker(speaker))
	other, _ := m.Spawn(1, 0, nil, nil, true)
	other.TimeLeft, other.IsSpeech = 25, true
	waiting, _ := m.Spawn(2, 0, nil, nil, true)
	waiting.TimeLeft = 25

	if _, err := call(t, m, f, "think", vm.Typed(vm.TypeObjType, 1), vm.String("hmm")); err != nil {
		t.Fatal(err)
	}
	if other.TimeLeft != 0 || other.IsSpeech {
		t.Errorf("earlier speaker still waiting: %d, %v", other.TimeLeft, other.IsSpeech)
	}
	if waiting.TimeLeft != 25 {
		t.Errorf("a pause was cut short: %d", waiting.TimeLeft)
	}
	if speaker.kills != 1 || speaker.lines[0] != "(hmm)" {
		t.Errorf("kills = %d, lines = %v", speaker.kills, speaker.lines)
	}
}

func TestSay_WithSound(t *testing.T) {
	m, f := newMachine(t)
	verdict, err := call(t, m, f, "say", vm.Typed(vm.TypeObjType, 3), vm.String("Hi"), vm.Typed(vm.TypeFile, 4))
	if err != nil || verdict != vm.KeepAndPause {
		t.Fatalf("say() with sound = %v, %v", verdict, err)
	}
	// No speaker: the default duration applies.
	if f.TimeLeft != SpeechTicks("Hi") {
		t.Errorf("timer = %d, want %d", f.TimeLeft, SpeechTicks("Hi"))
	}
}

func TestSay_BadArguments(t *testing.T) {
	tests := []struct {
		name    string
		args    []vm.Value
		errType vm.ErrorType
	}{
		{"too few", []vm.Value{vm.String("Hi")}, vm.ErrorArityMismatch},
		{"not an object", []vm.Value{vm.Int(3), vm.String("Hi")}, vm.ErrorTypeMismatch},
		{"sound is not a file", []vm.Value{vm.Typed(vm.TypeObjType, 3), vm.String("Hi"), vm.Int(2)}, vm.ErrorTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, f := newMachine(t)
			if _, err := call(t, m, f, "say", tt.args...); !vm.IsErrorType(err, tt.errType) {
				t.Errorf("say() error = %v, want %s", err, tt.errType)
			}
		})
	}
}

func TestSkipSpeech(t *testing.T) {
	speaker := &recordingSpeaker{}
	m, f := newMachine(t, vm.WithSpeaker(speaker))
	other, _ := m.Spawn(1, 0, nil, nil, true)
	other.TimeLeft, other.IsSpeech = 12, true

	mustCall(t, m, f, "skipSpeech")
	if other.TimeLeft != 0 || speaker.kills != 1 {
		t.Errorf("timer = %d, kills = %d", other.TimeLeft, speaker.kills)
	}
}

func TestLogSpeaker(t *testing.T) {
	var buf bytes.Buffer
	s := &LogSpeaker{Log: slog.New(slog.NewTextHandler(&buf, nil))}

	if got := s.Say(2, "Open the door", false); got != SpeechTicks("Open the door") {
		t.Errorf("Say() = %d", got)
	}
	s.Say(2, "Strange...", true)
	s.KillSpeech()

	out := buf.String()
	for _, want := range []string{"object 2 says", "Open the door", "object 2 thinks"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q should contain %q", out, want)
		}
	}
	if SpeechTicks("héllo") != 25 {
		t.Errorf("SpeechTicks counts characters, got %d", SpeechTicks("héllo"))
	}
}
