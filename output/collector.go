package output

import (
	"errors"

	"github.com/spetersoncode/codison/event"
)

// ErrNoResponse is returned when a run produced no text.
var ErrNoResponse = errors.New("failed to generate model response")

// Collect consumes one run's events and returns its last FullText. A run
// that ends in an Error event returns that error.
func Collect(events <-chan event.Event) (string, error) {
	var (
		text   string
		runErr error
	)
	event.Drain(events, event.HandlerFuncs{
		FullText: func(e event.FullText) { text = e.Content },
		Error:    func(e event.Error) { runErr = e.Err },
	})
	if runErr != nil {
		return "", runErr
	}
	if text == "" {
		return "", ErrNoResponse
	}
	return text, nil
}
