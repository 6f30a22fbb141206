package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mvp-joe/declindex/internal/cache"
	"github.com/schollz/progressbar/v3"
)

// indexProgress reports parsing progress with a progress bar. The bar is
// only drawn once the first file is parsed, so cache hits stay silent.
type indexProgress struct {
	out       io.Writer
	quiet     bool
	startTime time.Time

	mu    sync.Mutex
	total int
	bar   *progressbar.ProgressBar
}

func newIndexProgress(out io.Writer, quiet bool) *indexProgress {
	return &indexProgress{out: out, quiet: quiet, startTime: time.Now()}
}

// SetTotal sets the number of files a rebuild will parse.
func (p *indexProgress) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

// OnFile is called for every parsed file, from any goroutine.
func (p *indexProgress) OnFile(string) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		p.bar = progressbar.NewOptions(p.total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription("Parsing files"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files/s"),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(p.out)
			}),
		)
	}
	_ = p.bar.Add(1)
}

// Done finishes the bar and prints a summary.
func (p *indexProgress) Done(projectID string, nodes int, src cache.Source) {
	p.mu.Lock()
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
	p.mu.Unlock()
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "✓ %s: %s names (%s) in %.1fs\n",
		projectID, formatNumber(nodes), describeSource(src), time.Since(p.startTime).Seconds())
}

func describeSource(src cache.Source) string {
	switch src {
	case cache.SourceMemory:
		return "in memory"
	case cache.SourcePersisted:
		return "from cache"
	case cache.SourceRebuilt:
		return "rebuilt"
	default:
		return string(src)
	}
}

// formatNumber formats n with thousands separators.
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := fmt.Sprintf("%d", n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}

// truncate truncates a string to the specified length
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
