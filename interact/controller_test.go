package interact

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	chatcommand "github.com/mikhail-vlasenko/chat-command"
	"github.com/mikhail-vlasenko/chat-command/generate"
	"github.com/mikhail-vlasenko/chat-command/prompt"
	"github.com/mikhail-vlasenko/chat-command/session"
)

type stubGenerator struct {
	replies []string
	calls   [][]chatcommand.Turn
	err     error
}

func (g *stubGenerator) Generate(ctx context.Context, turns []chatcommand.Turn) (string, error) {
	g.calls = append(g.calls, turns)
	if g.err != nil {
		return "", g.err
	}
	if len(g.calls) > len(g.replies) {
		return "", errors.New("unexpected request")
	}
	return g.replies[len(g.calls)-1], nil
}

type stubSaver struct {
	saved [][]chatcommand.Turn
	order *[]string
}

func (s *stubSaver) Save(sess *session.Session) error {
	s.saved = append(s.saved, sess.Persisted())
	if s.order != nil {
		*s.order = append(*s.order, "save")
	}
	return nil
}

type stubSink struct {
	results []chatcommand.Result
	order   *[]string
}

func (s *stubSink) Write(r chatcommand.Result) error {
	s.results = append(s.results, r)
	if s.order != nil {
		*s.order = append(*s.order, "result")
	}
	return nil
}

// scriptedReader returns the given lines in order, then ErrInterrupted.
type scriptedReader struct {
	lines   []string
	prompts []string
}

func (r *scriptedReader) ReadLine(p string) (string, error) {
	r.prompts = append(r.prompts, p)
	if len(r.lines) == 0 {
		return "", ErrInterrupted
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

type harness struct {
	gen   *stubGenerator
	saver *stubSaver
	sink  *stubSink
	in    *scriptedReader
	out   *bytes.Buffer
	sess  *session.Session
	ctrl  *Controller
}

func newHarness(in prompt.Input, replies []string, input ...string) *harness {
	h := &harness{
		gen:   &stubGenerator{replies: replies},
		saver: &stubSaver{},
		sink:  &stubSink{},
		in:    &scriptedReader{lines: input},
		out:   &bytes.Buffer{},
		sess:  session.New(42, "system prompt", nil),
	}
	builder := prompt.NewBuilder(prompt.NewRequestContext(in), nil)
	h.ctrl = NewController(builder, h.gen, h.saver, h.sink, h.in, h.out)
	return h
}

func TestRunEndToEndFixCommand(t *testing.T) {
	h := newHarness(prompt.Input{
		LastCommand: "cd mxai",
		LastOutput:  "-bash: cd: mxai: No such file or directory",
	}, []string{"ls # for context\ncd Mxai"}, "1")

	outcome, err := h.ctrl.Run(context.Background(), h.sess, prompt.FixCommand{})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.State != Finalized {
		t.Fatalf("State = %v, want finalized", outcome.State)
	}

	sent := h.gen.calls[0]
	if sent[0].Role != chatcommand.RoleSystem {
		t.Errorf("expected system turn first, got %q", sent[0].Role)
	}
	body := sent[len(sent)-1].Content
	if !strings.Contains(body, "cd mxai") || !strings.Contains(body, "No such file or directory") {
		t.Errorf("prompt missing command or output: %q", body)
	}

	if len(h.sink.results) != 1 {
		t.Fatalf("expected one result, got %d", len(h.sink.results))
	}
	want := chatcommand.Result{Command: "ls", SessionID: 42, ContextRequest: true}
	if h.sink.results[0] != want {
		t.Errorf("result = %+v, want %+v", h.sink.results[0], want)
	}
	if got := h.sink.results[0].String(); got != "ls\n42\n1\n" {
		t.Errorf("result channel = %q", got)
	}

	if !strings.Contains(h.out.String(), "1. ls # for context\n2. cd Mxai\n") {
		t.Errorf("expected numbered list, got %q", h.out.String())
	}
	if !strings.Contains(h.in.prompts[0], "([1]-2/n/<new instructions>)") {
		t.Errorf("unexpected prompt %q", h.in.prompts[0])
	}

	if len(h.saver.saved) != 1 {
		t.Fatalf("expected one save, got %d", len(h.saver.saved))
	}
	persisted := h.saver.saved[0]
	if len(persisted) != 2 || persisted[1].Content != "ls # for context\ncd Mxai" {
		t.Errorf("unexpected persisted transcript %+v", persisted)
	}
}

func TestRunSelectionResolution(t *testing.T) {
	reply := "cmd1\ncmd2\ncmd3"
	tests := []struct {
		input string
		want  string
	}{
		{"", "cmd1"},
		{"1", "cmd1"},
		{"2", "cmd2"},
		{"3", "cmd3"},
		{" 2 ", "cmd2"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			h := newHarness(prompt.Input{LastCommand: "x"}, []string{reply}, tt.input)
			outcome, err := h.ctrl.Run(context.Background(), h.sess, prompt.FixCommand{})
			if err != nil {
				t.Fatal(err)
			}
			if outcome.Result.Command != tt.want {
				t.Errorf("input %q selected %q, want %q", tt.input, outcome.Result.Command, tt.want)
			}
		})
	}
}

func TestRunOutOfRangeBecomesInstructions(t *testing.T) {
	for _, input := range []string{"9", "0", "abc", "-1"} {
		t.Run(input, func(t *testing.T) {
			h := newHarness(prompt.Input{LastCommand: "x"}, []string{"cmd1\ncmd2\ncmd3", "cmd4"}, input, "y")
			outcome, err := h.ctrl.Run(context.Background(), h.sess, prompt.FixCommand{})
			if err != nil {
				t.Fatal(err)
			}
			if outcome.Rounds != 2 {
				t.Fatalf("Rounds = %d, want 2", outcome.Rounds)
			}
			second := h.gen.calls[1]
			body := second[len(second)-1].Content
			want := "Here are some additional instructions:\n" + input + "\n"
			if !strings.Contains(body, want) {
				t.Errorf("expected instructions %q in %q", input, body)
			}
			if outcome.Result.Command != "cmd4" {
				t.Errorf("selected %q, want cmd4", outcome.Result.Command)
			}
		})
	}
}

func TestRunRejectSingle(t *testing.T) {
	h := newHarness(prompt.Input{LastCommand: "x"}, []string{"rm -rf build"}, "n")
	outcome, err := h.ctrl.Run(context.Background(), h.sess, prompt.FixCommand{})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.State != Aborted {
		t.Fatalf("State = %v, want aborted", outcome.State)
	}
	if len(h.sink.results) != 0 {
		t.Error("result channel must not be written on rejection")
	}
	if len(h.saver.saved) != 1 {
		t.Fatalf("expected one save, got %d", len(h.saver.saved))
	}
	turns := h.saver.saved[0]
	if len(turns) != 3 {
		t.Fatalf("expected user, assistant, rejection turns, got %d", len(turns))
	}
	if turns[1].Role != chatcommand.RoleAssistant || turns[1].Content != "rm -rf build" {
		t.Errorf("unexpected assistant turn %+v", turns[1])
	}
	if turns[2].Role != chatcommand.RoleUser || turns[2].Content != RejectionText {
		t.Errorf("unexpected rejection turn %+v", turns[2])
	}
	if !strings.Contains(h.out.String(), "ℹ️ Suggested command: rm -rf build") {
		t.Errorf("expected single suggestion display, got %q", h.out.String())
	}
}

func TestRunRejectList(t *testing.T) {
	h := newHarness(prompt.Input{LastCommand: "x"}, []string{"a\nb"}, "N")
	outcome, err := h.ctrl.Run(context.Background(), h.sess, prompt.FixCommand{})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.State != Aborted {
		t.Errorf("State = %v, want aborted", outcome.State)
	}
}

func TestRunConfirmSingle(t *testing.T) {
	for _, input := range []string{"", "y", "Y"} {
		h := newHarness(prompt.Input{LastCommand: "x"}, []string{"make test # run the tests"}, input)
		outcome, err := h.ctrl.Run(context.Background(), h.sess, prompt.FixCommand{})
		if err != nil {
			t.Fatal(err)
		}
		if outcome.State != Finalized || outcome.Result.Command != "make test" {
			t.Errorf("input %q: outcome %+v", input, outcome)
		}
		if outcome.Result.ContextRequest {
			t.Errorf("input %q: unexpected context flag", input)
		}
	}
}

func TestRunFreeTextLoop(t *testing.T) {
	h := newHarness(prompt.Input{LastCommand: "git push", LastOutput: "rejected"},
		[]string{"git pull --rebase", "git push --force-with-lease", "git push origin HEAD"},
		"something safer", "no, keep history", "y")

	outcome, err := h.ctrl.Run(context.Background(), h.sess, prompt.FixCommand{})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Rounds != 3 || outcome.Result.Command != "git push origin HEAD" {
		t.Errorf("unexpected outcome %+v", outcome)
	}

	// intermediate rounds are persisted once, at the end
	if len(h.saver.saved) != 1 {
		t.Fatalf("expected one save, got %d", len(h.saver.saved))
	}
	turns := h.saver.saved[0]
	if len(turns) != 6 {
		t.Fatalf("expected 6 persisted turns, got %d", len(turns))
	}
	for i, turn := range turns {
		want := chatcommand.RoleUser
		if i%2 == 1 {
			want = chatcommand.RoleAssistant
		}
		if turn.Role != want {
			t.Errorf("turn %d role = %q, want %q", i, turn.Role, want)
		}
	}
	if strings.Contains(turns[2].Content, "git push") && strings.Contains(turns[2].Content, "rejected") {
		t.Errorf("additional instructions must not restate the shell context: %q", turns[2].Content)
	}
	if !strings.Contains(h.out.String(), "🤖 Considering the additional instructions...") {
		t.Errorf("expected status line, got %q", h.out.String())
	}
}

func TestRunNoSuggestionsPersistsNothing(t *testing.T) {
	h := newHarness(prompt.Input{LastCommand: "x"}, []string{"```\n```"})
	_, err := h.ctrl.Run(context.Background(), h.sess, prompt.FixCommand{})
	if !errors.Is(err, generate.ErrNoSuggestions) {
		t.Fatalf("expected ErrNoSuggestions, got %v", err)
	}
	if len(h.saver.saved) != 0 || len(h.sink.results) != 0 {
		t.Error("nothing may be persisted or written")
	}
	if last, _ := h.sess.Last(); last.Role != chatcommand.RoleUser {
		t.Errorf("expected no assistant turn appended, last role %q", last.Role)
	}
}

func TestRunInterrupted(t *testing.T) {
	h := newHarness(prompt.Input{LastCommand: "x"}, []string{"a\nb"})
	outcome, err := h.ctrl.Run(context.Background(), h.sess, prompt.FixCommand{})
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if outcome.State != Presenting {
		t.Errorf("State = %v", outcome.State)
	}
	if len(h.saver.saved) != 0 || len(h.sink.results) != 0 {
		t.Error("nothing may be persisted or written on interrupt")
	}
}

func TestRunGeneratorError(t *testing.T) {
	h := newHarness(prompt.Input{LastCommand: "x"}, nil)
	h.gen.err = &generate.APIError{StatusCode: 401, Body: "bad key"}

	_, err := h.ctrl.Run(context.Background(), h.sess, prompt.FixCommand{})
	var apiErr *generate.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if len(h.gen.calls) != 1 {
		t.Errorf("expected a single request, got %d", len(h.gen.calls))
	}
	if len(h.saver.saved) != 0 {
		t.Error("nothing may be persisted")
	}
}

func TestRunSavesBeforeResult(t *testing.T) {
	var order []string
	h := newHarness(prompt.Input{LastCommand: "x"}, []string{"ls"}, "")
	h.saver.order = &order
	h.sink.order = &order

	if _, err := h.ctrl.Run(context.Background(), h.sess, prompt.FixCommand{}); err != nil {
		t.Fatal(err)
	}
	if strings.Join(order, ",") != "save,result" {
		t.Errorf("order = %v, want save then result", order)
	}
}

func TestRunCancelledContext(t *testing.T) {
	h := newHarness(prompt.Input{LastCommand: "x"}, []string{"ls"}, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.ctrl.Run(ctx, h.sess, prompt.FixCommand{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(h.gen.calls) != 0 {
		t.Error("no request expected after cancellation")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Presenting, "presenting"},
		{Finalized, "finalized"},
		{Aborted, "aborted"},
		{State(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
