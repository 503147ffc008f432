package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// LineSpinner animates a single status line outside a bubbletea program,
// for the short blocking steps before and after the live view.
type LineSpinner struct {
	out     io.Writer
	message string
	spinner spinner.Spinner

	mu   sync.Mutex
	done chan struct{}
	stop sync.Once
	wg   sync.WaitGroup
}

func newLineSpinner(message string, s spinner.Spinner) *LineSpinner {
	return &LineSpinner{
		out:     Output,
		message: message,
		spinner: s,
		done:    make(chan struct{}),
	}
}

// NewConnectionSpinner is used while talking to the server.
func NewConnectionSpinner(message string) *LineSpinner {
	return newLineSpinner(message, spinner.Globe)
}

// NewWaitingSpinner is used while waiting on another participant.
func NewWaitingSpinner(message string) *LineSpinner {
	return newLineSpinner(message, spinner.Points)
}

func (s *LineSpinner) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.spinner.FPS)
		defer ticker.Stop()

		for i := 0; ; i++ {
			s.mu.Lock()
			frame := SpinnerStyle.Render(s.spinner.Frames[i%len(s.spinner.Frames)])
			fmt.Fprintf(s.out, "\r%s %s", frame, s.message)
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop clears the line. It is safe to call more than once.
func (s *LineSpinner) Stop() {
	s.stop.Do(func() {
		close(s.done)
		s.wg.Wait()
		fmt.Fprint(s.out, "\r\033[K")
	})
}

func (s *LineSpinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

func (s *LineSpinner) Success(message string) {
	s.Stop()
	fmt.Fprintf(s.out, "%s %s\n", SuccessStyle.Render(IconSuccess), message)
}

func (s *LineSpinner) Error(message string) {
	s.Stop()
	fmt.Fprintf(s.out, "%s %s\n", ErrorStyle.Render(IconError), message)
}

// RunConnectionSpinner starts a connection spinner and returns its stop function.
func RunConnectionSpinner(message string) func() {
	sp := NewConnectionSpinner(message)
	sp.Start()
	return sp.Stop
}
