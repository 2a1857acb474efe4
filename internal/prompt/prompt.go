// Package prompt models the confirm/cancel dialog shown before side effects
// the user has to approve, such as leaving for the payment page.
package prompt

import (
	"context"
	"errors"
	"fmt"
)

type Kind string

const (
	KindRedirect       Kind = "redirect"
	KindCancelCheckout Kind = "cancel_checkout"
)

type Prompt struct {
	Kind         Kind   `json:"kind"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	ConfirmLabel string `json:"confirmLabel"`
	CancelLabel  string `json:"cancelLabel"`
}

// Prompter asks the user to confirm p. A false answer means the user declined.
type Prompter interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// Func adapts a function to a Prompter.
type Func func(ctx context.Context, p Prompt) (bool, error)

func (f Func) Confirm(ctx context.Context, p Prompt) (bool, error) {
	return f(ctx, p)
}

// Answer is a Prompter with a fixed reply.
type Answer bool

func (a Answer) Confirm(context.Context, Prompt) (bool, error) {
	return bool(a), nil
}

var ErrUnanswered = errors.New("prompt requires an answer")

// RequiredError carries the prompt that still has to be shown to the user.
type RequiredError struct {
	Prompt Prompt
}

func (e *RequiredError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnanswered, e.Prompt.Kind)
}

func (e *RequiredError) Unwrap() error { return ErrUnanswered }

// Unanswered returns a Prompter that fails with *RequiredError for any prompt.
func Unanswered() Prompter {
	return Func(func(_ context.Context, p Prompt) (bool, error) {
		return false, &RequiredError{Prompt: p}
	})
}

// FromAnswer returns Answer(*answer), or Unanswered when answer is nil.
func FromAnswer(answer *bool) Prompter {
	if answer == nil {
		return Unanswered()
	}
	return Answer(*answer)
}
