package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/lorahub/internal/ota"
	"github.com/muurk/lorahub/internal/protocol"
)

func TestHeaderKeepsParamOrder(t *testing.T) {
	h := NewHeader("Firmware update", "acclogger program",
		Param{"Unit", "42"},
		Param{"Image", "program.bin"},
		Param{"Channel", "869400000 Hz"},
	).SetWidth(80)
	out := h.Render()

	unit := strings.Index(out, "42")
	image := strings.Index(out, "program.bin")
	channel := strings.Index(out, "869400000 Hz")
	if unit < 0 || image < 0 || channel < 0 {
		t.Fatalf("missing params in header:\n%s", out)
	}
	if !(unit < image && image < channel) {
		t.Errorf("params out of order:\n%s", out)
	}
	if !strings.Contains(out, "FIRMWARE UPDATE") {
		t.Errorf("title not upper-cased:\n%s", out)
	}
}

func TestResultRender(t *testing.T) {
	tests := []struct {
		name    string
		result  *Result
		want    []string
		notWant []string
	}{
		{
			name:   "success",
			result: NewSuccessResult("unit 9 programmed", Param{"Chunks", "3"}),
			want:   []string{"SUCCESS", "unit 9 programmed", "Chunks:", "3"},
		},
		{
			name:    "failure",
			result:  NewFailureResult("Firmware update failed", errors.New("no ready-ack"), []string{"move closer"}),
			want:    []string{"FAILED", "no ready-ack", "Troubleshooting:", "move closer"},
			notWant: []string{"SUCCESS"},
		},
		{
			name:   "warning",
			result: NewWarningResult("Some units silent"),
			want:   []string{"WARNING", "Some units silent"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).Render()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output contains %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestUnitTable(t *testing.T) {
	table := NewUnitTable("Range check", 0b00000101, 0b00000001)
	table.Width = 80
	if got := table.Missing(); got != 0b00000100 {
		t.Errorf("Missing() = %08b, want 00000100", got)
	}
	out := table.Render()
	for _, want := range []string{"RANGE CHECK", "Unit 1", "Unit 3", "acknowledged", "no reply", "1 of 2 units answered"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Unit 2") {
		t.Errorf("unrequested unit listed:\n%s", out)
	}
}

func TestCountBits(t *testing.T) {
	tests := []struct {
		in   uint8
		want int
	}{
		{0, 0},
		{0b1, 1},
		{0b101, 2},
		{0xFF, 8},
	}
	for _, tt := range tests {
		if got := countBits(tt.in); got != tt.want {
			t.Errorf("countBits(%08b) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestProgressSteps(t *testing.T) {
	p := NewProgress("", "one", "two", "three").SetWidth(80)
	p.StartStep(1, "")
	p.StartStep(2, "busy")
	if p.Steps[0].Status != StepComplete {
		t.Errorf("step 1 = %v, want complete", p.Steps[0].Status)
	}
	if p.Steps[1].Status != StepRunning || p.Current != 2 {
		t.Errorf("step 2 = %v (current %d), want running", p.Steps[1].Status, p.Current)
	}
	p.SetPercent(1.5)
	if p.Percent != 1 {
		t.Errorf("Percent = %v, want clamped to 1", p.Percent)
	}
	if !strings.Contains(p.Render(), "(busy)") {
		t.Errorf("step message not rendered:\n%s", p.Render())
	}
}

func TestStepOf(t *testing.T) {
	tests := []struct {
		state ota.State
		want  int
	}{
		{ota.StateAwaitPresence, 1},
		{ota.StateAwaitReady, 2},
		{ota.StateAwaitStartAck, 3},
		{ota.StateTransferring, 4},
		{ota.StateRetransmitting, 5},
		{ota.StateAwaitResult, 5},
		{ota.StateDone, 0},
	}
	for _, tt := range tests {
		if got := stepOf(tt.state); got != tt.want {
			t.Errorf("stepOf(%s) = %d, want %d", tt.state, got, tt.want)
		}
	}
}

func TestProgramRunner(t *testing.T) {
	addr, err := protocol.Individual(9)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	r := NewProgramRunner(&buf, "acclogger program", Param{"Unit", "9"}).SetWidth(80)
	r.Begin()
	for _, ev := range []ota.Event{
		{State: ota.StateAwaitPresence},
		{State: ota.StateRequestSent},
		{State: ota.StateAwaitReady},
		{State: ota.StateGotReady},
		{State: ota.StateStartSent},
		{State: ota.StateAwaitStartAck},
		{State: ota.StateTransferring},
		{State: ota.StateTransferring, Chunk: 1, Total: 2},
		{State: ota.StateTransferring, Chunk: 2, Total: 2},
		{State: ota.StateAwaitResult},
		{State: ota.StateRetransmitting},
		{State: ota.StateRetransmitting, Chunk: 1, Total: 1, Round: 1},
		{State: ota.StateAwaitResult},
	} {
		r.Event(ev)
	}
	r.Finish(&ota.Result{Target: addr, State: ota.StateDone, Chunks: 2, Rounds: 1, Resent: 1, RSSI: -64, Duration: time.Second}, nil)

	out := buf.String()
	for _, want := range []string{"FIRMWARE UPDATE", "Waiting for unit", "Sending chunks", "round 1", "unit 9 programmed", "-64 dBm", "1 in 1 round(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestProgramRunnerFailure(t *testing.T) {
	var buf bytes.Buffer
	r := NewProgramRunner(&buf, "acclogger program").SetWidth(80)
	r.Event(ota.Event{State: ota.StateAwaitPresence})
	r.Finish(&ota.Result{State: ota.StateFailed}, errors.New("unit silent"))

	out := buf.String()
	for _, want := range []string{"FAILED", "unit silent", "Troubleshooting:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"PROGRAM\n", true},
		{"  PROGRAM  \n", true},
		{"program\n", false},
		{"", false},
		{"PROGRAM", true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got := ConfirmProgramming(strings.NewReader(tt.input), &out, 42, 300)
		if got != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "Unit 42") {
			t.Errorf("warning box missing unit:\n%s", out.String())
		}
	}
}

func TestStreamMonitorCountsPages(t *testing.T) {
	var m tea.Model = NewStreamMonitor("Streaming units 1,3", nil)
	if !strings.Contains(m.View(), "waiting for pages") {
		t.Errorf("empty monitor should say it is waiting:\n%s", m.View())
	}

	now := time.Now()
	for _, unit := range []uint8{3, 1, 3, 3} {
		m, _ = m.Update(PageMsg{Unit: unit, At: now})
	}
	mon := m.(StreamMonitor)
	if got := mon.Pages(3); got != 3 {
		t.Errorf("Pages(3) = %d, want 3", got)
	}
	if got := mon.Pages(1); got != 1 {
		t.Errorf("Pages(1) = %d, want 1", got)
	}
	if got := mon.Pages(2); got != 0 {
		t.Errorf("Pages(2) = %d, want 0", got)
	}

	view := mon.View()
	one, three := strings.Index(view, "Unit 1"), strings.Index(view, "Unit 3")
	if one < 0 || three < 0 || one > three {
		t.Errorf("units should be listed in order:\n%s", view)
	}
}

func TestStreamMonitorQuitCancels(t *testing.T) {
	cancelled := false
	m := NewStreamMonitor("Raw stream", func() { cancelled = true })

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if !cancelled {
		t.Error("q should cancel the stream")
	}
	if cmd == nil {
		t.Fatal("q should return tea.Quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit the program")
	}
	if strings.Contains(next.View(), "press q") {
		t.Error("stopped monitor still shows the key hint")
	}
}

func TestStreamMonitorStop(t *testing.T) {
	m := NewStreamMonitor("Raw stream", nil)
	_, cmd := m.Update(stopMsg{})
	if cmd == nil {
		t.Fatal("stop should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("stop should quit the program")
	}
}
