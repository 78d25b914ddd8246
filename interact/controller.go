// Package interact runs the suggestion loop: ask the model, present the
// cleaned candidates, and act on one line of user input.
package interact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	chatcommand "github.com/mikhail-vlasenko/chat-command"
	"github.com/mikhail-vlasenko/chat-command/generate"
	"github.com/mikhail-vlasenko/chat-command/prompt"
	"github.com/mikhail-vlasenko/chat-command/session"
)

// RejectionText is recorded as the user turn when every suggestion is declined.
const RejectionText = "I do not want to execute any of these commands."

// ErrInterrupted is returned when input ends or the user presses Ctrl-C
// while a selection is being read.
var ErrInterrupted = errors.New("interrupted")

// Generator produces a raw model reply for a transcript.
type Generator interface {
	Generate(ctx context.Context, turns []chatcommand.Turn) (string, error)
}

// Saver persists a session transcript.
type Saver interface {
	Save(s *session.Session) error
}

// ResultSink receives the finalized command.
type ResultSink interface {
	Write(r chatcommand.Result) error
}

// Reader reads one line of user input after showing prompt.
type Reader interface {
	ReadLine(prompt string) (string, error)
}

// State is the terminal state of an interaction.
type State int

const (
	Presenting State = iota
	Finalized
	Aborted
)

func (s State) String() string {
	switch s {
	case Presenting:
		return "presenting"
	case Finalized:
		return "finalized"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// Outcome describes how an interaction ended. Suggestion and Result are set
// only when State is Finalized.
type Outcome struct {
	State      State
	Suggestion chatcommand.Suggestion
	Result     chatcommand.Result
	// Rounds is the number of model requests made.
	Rounds int
}

// Controller drives one interaction per process.
type Controller struct {
	builder *prompt.Builder
	gen     Generator
	store   Saver
	results ResultSink
	in      Reader
	out     io.Writer
}

// NewController creates a controller. Status lines and suggestion lists are
// written to out; selections are read from in.
func NewController(builder *prompt.Builder, gen Generator, store Saver, results ResultSink, in Reader, out io.Writer) *Controller {
	return &Controller{
		builder: builder,
		gen:     gen,
		store:   store,
		results: results,
		in:      in,
		out:     out,
	}
}

// Run requests suggestions for kind and loops until the user selects one or
// rejects them all. Input that is neither becomes the next request as
// AdditionalInstructions.
//
// The transcript is persisted only when the interaction is finalized or
// aborted; on finalization it is saved before the result is written. Errors
// leave both the stored transcript and the result untouched.
func (c *Controller) Run(ctx context.Context, s *session.Session, kind prompt.Kind) (Outcome, error) {
	rounds := 0
	for {
		if err := ctx.Err(); err != nil {
			return Outcome{State: Presenting, Rounds: rounds}, err
		}

		fmt.Fprintln(c.out, kind.Status())
		body, err := c.builder.Build(s, kind)
		if err != nil {
			return Outcome{State: Presenting, Rounds: rounds}, err
		}
		s.Append(chatcommand.RoleUser, body)
		slog.Debug("user turn", "session", s.ID, "body", body)

		rounds++
		raw, err := c.gen.Generate(ctx, s.Turns())
		if err != nil {
			return Outcome{State: Presenting, Rounds: rounds}, err
		}
		slog.Debug("model response", "session", s.ID, "raw", raw)

		suggestions, err := generate.ParseSuggestions(raw)
		if err != nil {
			return Outcome{State: Presenting, Rounds: rounds}, err
		}
		texts := make([]string, len(suggestions))
		for i, sg := range suggestions {
			texts[i] = sg.Text
		}
		s.Append(chatcommand.RoleAssistant, strings.Join(texts, "\n"))

		d, err := c.choose(suggestions)
		if err != nil {
			return Outcome{State: Presenting, Rounds: rounds}, err
		}

		switch d.action {
		case actionSelect:
			return c.finalize(s, d.suggestion, rounds)
		case actionReject:
			s.Append(chatcommand.RoleUser, RejectionText)
			if err := c.store.Save(s); err != nil {
				return Outcome{State: Presenting, Rounds: rounds}, err
			}
			slog.Info("suggestions rejected", "session", s.ID)
			return Outcome{State: Aborted, Rounds: rounds}, nil
		default:
			slog.Info("additional instructions", "session", s.ID, "text", d.text)
			kind = prompt.AdditionalInstructions{Text: d.text}
		}
	}
}

func (c *Controller) finalize(s *session.Session, sg chatcommand.Suggestion, rounds int) (Outcome, error) {
	res := chatcommand.NewResult(sg, s.ID)
	if err := c.store.Save(s); err != nil {
		return Outcome{State: Presenting, Rounds: rounds}, err
	}
	if err := c.results.Write(res); err != nil {
		return Outcome{State: Presenting, Rounds: rounds}, err
	}
	slog.Info("command selected", "session", s.ID, "command", res.Command, "context", res.ContextRequest)
	return Outcome{State: Finalized, Suggestion: sg, Result: res, Rounds: rounds}, nil
}

type action int

const (
	actionSelect action = iota
	actionReject
	actionInstruct
)

type decision struct {
	action     action
	suggestion chatcommand.Suggestion
	text       string
}

// choose presents suggestions and reads one line of input.
func (c *Controller) choose(suggestions []chatcommand.Suggestion) (decision, error) {
	if len(suggestions) > 1 {
		fmt.Fprintln(c.out, "ℹ️ Suggested commands:")
		for i, sg := range suggestions {
			fmt.Fprintf(c.out, "%d. %s\n", i+1, sg.Text)
		}
		input, err := c.in.ReadLine(fmt.Sprintf("❔ Enter your selection ([1]-%d/n/<new instructions>): ", len(suggestions)))
		if err != nil {
			return decision{}, err
		}
		return resolveSelection(suggestions, input), nil
	}

	fmt.Fprintf(c.out, "ℹ️ Suggested command: %s\n", suggestions[0].Text)
	input, err := c.in.ReadLine("❔ Execute? ([y]/n/<new instructions>): ")
	if err != nil {
		return decision{}, err
	}
	return resolveConfirmation(suggestions[0], input), nil
}

// resolveSelection maps input for a numbered list: "n" rejects, empty
// selects the first entry, an in-range 1-based index selects that entry and
// anything else is an instruction for the model.
func resolveSelection(suggestions []chatcommand.Suggestion, input string) decision {
	if strings.EqualFold(input, "n") {
		return decision{action: actionReject}
	}
	if input == "" {
		return decision{action: actionSelect, suggestion: suggestions[0]}
	}
	if n, err := strconv.Atoi(strings.TrimSpace(input)); err == nil && n >= 1 && n <= len(suggestions) {
		return decision{action: actionSelect, suggestion: suggestions[n-1]}
	}
	return decision{action: actionInstruct, text: input}
}

// resolveConfirmation maps input for a single suggestion: empty or "y"
// selects it, "n" rejects and anything else is an instruction.
func resolveConfirmation(sg chatcommand.Suggestion, input string) decision {
	switch {
	case input == "" || strings.EqualFold(input, "y"):
		return decision{action: actionSelect, suggestion: sg}
	case strings.EqualFold(input, "n"):
		return decision{action: actionReject}
	}
	return decision{action: actionInstruct, text: input}
}
