package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/muurk/lorahub/internal/ota"
)

// Programming phases as shown to the user.
var programSteps = []string{
	"Waiting for unit",
	"Entering programming mode",
	"Announcing image",
	"Sending chunks",
	"Verifying image",
}

// stepOf maps a session state to its phase.
func stepOf(s ota.State) int {
	switch s {
	case ota.StateAwaitPresence:
		return 1
	case ota.StateRequestSent, ota.StateAwaitReady, ota.StateGotReady:
		return 2
	case ota.StateStartSent, ota.StateAwaitStartAck:
		return 3
	case ota.StateTransferring:
		return 4
	case ota.StateAwaitResult, ota.StateRetransmitting:
		return 5
	}
	return 0
}

// ProgramRunner prints the header, live progress and result of a
// programming session. Its Event method is the programmer's Progress
// callback.
type ProgramRunner struct {
	out      io.Writer
	width    int
	header   *Header
	progress *Progress

	mu    sync.Mutex
	step  int
	round int
	live  bool // a \r-terminated line is on screen
}

// NewProgramRunner creates a runner writing to w (os.Stdout when nil).
func NewProgramRunner(w io.Writer, command string, params ...Param) *ProgramRunner {
	if w == nil {
		w = os.Stdout
	}
	width := GetTerminalWidth()
	return &ProgramRunner{
		out:      w,
		width:    width,
		header:   NewHeader("Firmware update", command, params...).SetWidth(width),
		progress: NewProgress("", programSteps...).SetWidth(width),
	}
}

// SetWidth overrides the detected terminal width.
func (r *ProgramRunner) SetWidth(width int) *ProgramRunner {
	r.width = width
	r.header.SetWidth(width)
	r.progress.SetWidth(width)
	return r
}

// Begin prints the header.
func (r *ProgramRunner) Begin() {
	_, _ = fmt.Fprintln(r.out, r.header.Render())
	_, _ = fmt.Fprintln(r.out)
}

// Event updates the display from a programmer progress event.
func (r *ProgramRunner) Event(ev ota.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.State == ota.StateRetransmitting && ev.Chunk == 0 {
		r.round++
	}
	step := stepOf(ev.State)
	if ev.State == ota.StateRetransmitting {
		// resends count toward the transfer phase
		step = 4
	}
	if step == 0 {
		return
	}

	if step != r.step {
		if r.step != 0 {
			r.progress.CompleteStep(r.step, r.progress.Steps[r.step-1].Message)
			r.printStep(r.step, true)
		}
		r.step = step
		r.progress.StartStep(step, "")
	}

	if ev.Total > 0 {
		r.progress.SetPercent(float64(ev.Chunk) / float64(ev.Total))
		msg := fmt.Sprintf("%d/%d", ev.Chunk, ev.Total)
		if r.round > 0 {
			msg = fmt.Sprintf("round %d, %s", r.round, msg)
		}
		r.progress.UpdateStep(step, StepRunning, msg)
		r.printLive()
		return
	}
	if r.round > 0 && step == 4 {
		r.progress.UpdateStep(step, StepRunning, fmt.Sprintf("round %d", r.round))
	}
	r.printStep(step, false)
}

// Finish prints the last step and the result box for res and err.
func (r *ProgramRunner) Finish(res *ota.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.step != 0 {
		if err != nil {
			r.progress.FailStep(r.step, r.progress.Steps[r.step-1].Message)
		} else {
			r.progress.CompleteStep(r.step, r.progress.Steps[r.step-1].Message)
		}
		r.printStep(r.step, true)
	}
	_, _ = fmt.Fprintln(r.out)

	if err != nil {
		result := NewFailureResult("Firmware update failed", err, programTroubleshooting)
		if res != nil {
			result.AddDetail("State", res.State.String())
			result.AddDetail("Rounds", fmt.Sprintf("%d", res.Rounds))
		}
		_, _ = fmt.Fprintln(r.out, result.SetWidth(r.width).Render())
		return
	}

	result := NewSuccessResult(fmt.Sprintf("%s programmed", res.Target),
		Param{"Chunks", fmt.Sprintf("%d", res.Chunks)},
		Param{"Resent", fmt.Sprintf("%d in %d round(s)", res.Resent, res.Rounds)},
		Param{"RSSI", fmt.Sprintf("%d dBm", res.RSSI)},
		Param{"Duration", res.Duration.Round(time.Millisecond).String()},
	)
	_, _ = fmt.Fprintln(r.out, result.SetWidth(r.width).Render())
}

var programTroubleshooting = []string{
	"Check the unit is powered and within range (acclogger check)",
	"Retry closer to the hub or with a higher tx_power",
	"Raise presence_timeout_ms if the unit wakes rarely",
	"Run with --log-level debug to see every frame",
}

func (r *ProgramRunner) printStep(n int, final bool) {
	line := r.progress.RenderStep(r.progress.Steps[n-1])
	if r.live {
		_, _ = fmt.Fprint(r.out, "\r\033[K")
		r.live = false
	}
	if final {
		_, _ = fmt.Fprintln(r.out, line)
		return
	}
	_, _ = fmt.Fprint(r.out, line+"\r")
	r.live = true
}

func (r *ProgramRunner) printLive() {
	_, _ = fmt.Fprint(r.out, "\r\033[K"+r.progress.RenderBar()+"  "+StepNoteStyle.Render(r.progress.Steps[r.step-1].Message)+"\r")
	r.live = true
}
