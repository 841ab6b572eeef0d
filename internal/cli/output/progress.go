package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// ProgressBar draws a single-line step counter, redrawn in place.
type ProgressBar struct {
	w       io.Writer
	title   string
	total   int
	current int
	width   int
	mu      sync.Mutex
}

// NewProgressBar creates a progress bar for total steps. A non-positive
// total draws a plain counter.
func NewProgressBar(w io.Writer, title string, total int) *ProgressBar {
	return &ProgressBar{
		w:     w,
		title: title,
		total: total,
		width: 30,
	}
}

// Increment advances the bar by n steps and appends note to the line.
func (p *ProgressBar) Increment(n int, note string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current += n
	p.render(note)
}

// Finish ends the line.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.render("")
	fmt.Fprintln(p.w)
}

func (p *ProgressBar) render(note string) {
	if p.total <= 0 {
		fmt.Fprintf(p.w, "\r%s %d%s", p.title, p.current, suffix(note))
		return
	}

	percent := float64(p.current) / float64(p.total)
	if percent > 1 {
		percent = 1
	}
	filled := int(float64(p.width) * percent)
	bar := strings.Repeat("#", filled) + strings.Repeat("-", p.width-filled)

	fmt.Fprintf(p.w, "\r%s [%s] %3.0f%% (%d/%d)%s",
		p.title, bar, percent*100, p.current, p.total, suffix(note))
}

func suffix(note string) string {
	if note == "" {
		return ""
	}
	return " " + note
}
