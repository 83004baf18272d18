package progress

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

const defaultTermWidth = 80

type State interface {
	String() string
}

// Progress redraws its states in place on w until stopped.
type Progress struct {
	mu sync.Mutex
	// buffer output to minimize flickering on all terminals
	w *bufio.Writer

	pos     int
	states  []State
	stopped bool

	done chan struct{}
	wg   sync.WaitGroup
}

func NewProgress(w io.Writer) *Progress {
	p := &Progress{w: bufio.NewWriter(w), done: make(chan struct{})}

	p.wg.Add(1)
	go p.start()
	return p
}

// stop ends the render loop and draws the final frame. It reports
// whether this call did the stopping.
func (p *Progress) stop() bool {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, state := range p.states {
		if spinner, ok := state.(*Spinner); ok {
			spinner.Stop()
		}
	}
	p.render()
	return true
}

// StopAndClear ends rendering and erases every line drawn so far. It
// reports whether this call did the stopping.
func (p *Progress) StopAndClear() bool {
	stopped := p.stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	if stopped {
		// clear all progress lines
		for i := 0; i < p.pos-1; i++ {
			fmt.Fprint(p.w, "\033[A")
		}

		fmt.Fprint(p.w, "\033[2K", "\033[1G")
	}

	// show cursor
	fmt.Fprint(p.w, "\033[?25h")
	p.w.Flush()
	return stopped
}

func (p *Progress) Add(state State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.states = append(p.states, state)
}

// render must be called with p.mu held.
func (p *Progress) render() {
	termWidth, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || termWidth <= 0 {
		termWidth = defaultTermWidth
	}

	for i := 0; i < p.pos-1; i++ {
		fmt.Fprint(p.w, "\033[A")
	}

	fmt.Fprint(p.w, "\033[1G")

	for i, state := range p.states {
		line := []rune(state.String())
		if len(line) > termWidth-1 {
			line = line[:termWidth-1]
		}

		fmt.Fprint(p.w, string(line), "\033[K")
		if i < len(p.states)-1 {
			fmt.Fprint(p.w, "\n")
		}
	}

	p.pos = len(p.states)
	p.w.Flush()
}

func (p *Progress) start() {
	defer p.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	// hide cursor
	p.mu.Lock()
	fmt.Fprint(p.w, "\033[?25l")
	p.mu.Unlock()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.mu.Lock()
			p.render()
			p.mu.Unlock()
		}
	}
}
