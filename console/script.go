package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/scottjcrouch/ScootNES/controller"
)

// ScriptStep holds one set of buttons for a number of frames.
type ScriptStep struct {
	Frames  int
	Buttons [8]bool
}

// ParseScript reads an input script: one "<frames> <BUTTON+BUTTON|NONE>"
// entry per line. Blank lines and lines starting with # are skipped.
func ParseScript(r io.Reader) ([]ScriptStep, error) {
	var steps []ScriptStep
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: want \"<frames> <buttons>\", got %q", lineNo, line)
		}
		frames, err := strconv.Atoi(parts[0])
		if err != nil || frames <= 0 {
			return nil, fmt.Errorf("line %d: invalid frame count %q", lineNo, parts[0])
		}
		buttons, err := controller.ParseButtons(parts[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		steps = append(steps, ScriptStep{Frames: frames, Buttons: buttons})
	}
	return steps, scanner.Err()
}

// Recorder writes the buttons held each frame as an input script,
// collapsing runs of identical input into one line.
type Recorder struct {
	w       io.Writer
	last    [8]bool
	held    int
	started bool
}

// NewRecorder returns a Recorder writing to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: w}
}

// Record notes the buttons held for one frame.
func (r *Recorder) Record(buttons [8]bool) error {
	if r.started && buttons == r.last {
		r.held++
		return nil
	}
	err := r.Flush()
	r.last, r.held, r.started = buttons, 1, true
	return err
}

// Flush writes the pending run.
func (r *Recorder) Flush() error {
	if r.held == 0 {
		return nil
	}
	_, err := fmt.Fprintf(r.w, "%d %s\n", r.held, controller.FormatButtons(r.last))
	r.held = 0
	return err
}
