package console

import (
	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
)

// ProgressBar reports download progress. On a terminal it draws a pterm
// progress bar; otherwise it prints one line when the download starts.
type ProgressBar struct {
	// console is where the bar is drawn.
	console *Console
	// bar is the running bar, nil when idle or not interactive.
	bar *pterm.ProgressbarPrinter
}

// Progress returns a progress reporter bound to the console.
func (c *Console) Progress() *ProgressBar {
	return &ProgressBar{console: c}
}

// Start begins a bar for total bytes.
func (p *ProgressBar) Start(title string, total int64) {
	if !p.console.interactive {
		p.console.Info("%s (%s)", title, humanize.IBytes(uint64(max(total, 0))))
		return
	}

	bar, err := pterm.DefaultProgressbar.
		WithTitle(title).
		WithTotal(int(total)).
		WithShowCount(false).
		WithRemoveWhenDone(true).
		WithWriter(p.console.out).
		Start()
	if err != nil {
		return
	}

	p.bar = bar
}

// Add advances the bar by n bytes.
func (p *ProgressBar) Add(n int) {
	if p.bar != nil {
		p.bar.Add(n)
	}
}

// Stop finishes the bar.
func (p *ProgressBar) Stop() {
	if p.bar == nil {
		return
	}

	_, _ = p.bar.Stop()
	p.bar = nil
}
