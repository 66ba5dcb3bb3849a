package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// writerIsTTY reports whether w is a terminal. Writers without a file
// descriptor, such as *bytes.Buffer, never are.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

const defaultBarWidth = 40

// ProgressBar draws "[=====>     ]  45% description". On a terminal it
// redraws in place; elsewhere it prints a single line when complete.
type ProgressBar struct {
	mu          sync.Mutex
	w           io.Writer
	tty         bool
	total       int
	current     int
	width       int
	description string
}

// NewProgress returns a progress bar over total steps writing to w.
func NewProgress(w io.Writer, total int, description string) *ProgressBar {
	return &ProgressBar{
		w:           w,
		tty:         writerIsTTY(w),
		total:       total,
		width:       defaultBarWidth,
		description: description,
	}
}

// Increment advances the bar by one step.
func (p *ProgressBar) Increment() {
	p.IncrementBy(1)
}

// IncrementBy advances the bar by n steps, clamped to the total.
func (p *ProgressBar) IncrementBy(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set(p.current + n)
}

// Finish fills the bar and ends the line.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty {
		p.current = p.total
		p.render()
		fmt.Fprintln(p.w)
		return
	}
	if p.current != p.total {
		p.set(p.total)
	}
}

func (p *ProgressBar) set(n int) {
	if n > p.total {
		n = p.total
	}
	p.current = n
	p.render()
}

// String returns the bar without any line control characters.
func (p *ProgressBar) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.line()
}

func (p *ProgressBar) line() string {
	percent, filled := 0, 0
	if p.total > 0 {
		percent = p.current * 100 / p.total
		filled = p.current * p.width / p.total
	}

	var bar strings.Builder
	bar.WriteByte('[')
	switch {
	case filled <= 0:
	case filled >= p.width:
		bar.WriteString(strings.Repeat("=", p.width))
	default:
		bar.WriteString(strings.Repeat("=", filled-1))
		bar.WriteByte('>')
	}
	if filled < p.width {
		bar.WriteString(strings.Repeat(" ", p.width-max(filled, 0)))
	}
	bar.WriteByte(']')

	return fmt.Sprintf("%s %3d%% %s", bar.String(), percent, p.description)
}

// render must be called with the lock held.
func (p *ProgressBar) render() {
	if p.tty {
		fmt.Fprintf(p.w, "\r%s", p.line())
		return
	}
	if p.current == p.total && p.total > 0 {
		fmt.Fprintln(p.w, p.line())
	}
}

// Spinner shows an animated indicator for work of unknown length, such as
// an rsync snapshot. Off a terminal it prints the message once.
type Spinner struct {
	mu      sync.Mutex
	w       io.Writer
	tty     bool
	message string
	frames  []string
	start   time.Time
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewSpinner returns a stopped spinner writing to w.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:       w,
		tty:     writerIsTTY(w),
		message: message,
		frames:  []string{"|", "/", "-", "\\"},
	}
}

// Start begins the animation. Starting a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.start = time.Now()

	if !s.tty {
		fmt.Fprintf(s.w, "%s...\n", s.message)
		return
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.animate(s.stop, s.done)
}

func (s *Spinner) animate(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			elapsed := time.Since(s.start).Truncate(time.Second)
			fmt.Fprintf(s.w, "\r%s  %s (%s)", s.frames[i%len(s.frames)], s.message, elapsed)
			s.mu.Unlock()
		}
	}
}

// Update replaces the message while the spinner runs.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Stop ends the animation and clears the line. Stopping twice is safe.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done

	s.mu.Lock()
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", len(s.message)+16))
	s.mu.Unlock()
}

// StopWithMessage stops the spinner and prints a final line.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, message)
}
