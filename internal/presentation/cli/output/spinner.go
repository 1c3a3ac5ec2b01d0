package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// Spinner animates a message on a terminal until stopped.
type Spinner struct {
	w       io.Writer
	message string
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// StartSpinner starts drawing message on w.
func StartSpinner(w io.Writer, message string) *Spinner {
	s := &Spinner{w: w, message: message, done: make(chan struct{})}
	s.wg.Add(1)
	go s.spin()
	return s
}

// Stop ends the animation and clears the line. It is safe to call twice.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		_, _ = fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", displayWidth(s.message)+2))
	})
}

func (s *Spinner) spin() {
	defer s.wg.Done()

	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			frame := spinnerFrames[i%len(spinnerFrames)]
			_, _ = fmt.Fprintf(s.w, "\r%s%s%s %s", ColorCyan, frame, ColorReset, s.message)
		}
	}
}
