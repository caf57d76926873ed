package notify

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// TerminalDispatcher prints alerts to a terminal. It backs --log-only runs.
type TerminalDispatcher struct {
	out   io.Writer
	now   func() time.Time
	title *color.Color
	text  *color.Color
	dim   *color.Color
}

// NewTerminalDispatcher writes to out, or to color.Output when out is nil.
func NewTerminalDispatcher(out io.Writer) *TerminalDispatcher {
	if out == nil {
		out = color.Output
	}
	return &TerminalDispatcher{
		out:   out,
		now:   time.Now,
		title: color.New(color.FgYellow, color.Bold),
		text:  color.New(color.FgWhite),
		dim:   color.New(color.Faint),
	}
}

// Name returns the channel name.
func (t *TerminalDispatcher) Name() string {
	return "terminal"
}

// Configured is always true.
func (t *TerminalDispatcher) Configured() bool {
	return true
}

// Send prints the subject. The HTML body is summarised by size only.
func (t *TerminalDispatcher) Send(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(t.out, "%s %s\n    %s\n",
		t.title.Sprintf("[%s] 🔔 ALERT", t.now().Format("15:04:05")),
		t.text.Sprint(subject),
		t.dim.Sprintf("(%d byte message body)", len(body)),
	)
	return err
}
