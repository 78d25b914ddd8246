package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	chatcommand "github.com/mikhail-vlasenko/chat-command"
	"github.com/mikhail-vlasenko/chat-command/dircontext"
	"github.com/mikhail-vlasenko/chat-command/generate"
	"github.com/mikhail-vlasenko/chat-command/interact"
	"github.com/mikhail-vlasenko/chat-command/prompt"
	"github.com/mikhail-vlasenko/chat-command/result"
	"github.com/mikhail-vlasenko/chat-command/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type suggestOptions struct {
	clipboard   bool
	withContext bool
	session     int64
	sessionSet  bool
	verbose     bool
}

func (o *suggestOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.SetInterspersed(false)
	f.BoolVarP(&o.clipboard, "clipboard", "c", false, "include clipboard content in the prompt")
	f.BoolVarP(&o.withContext, "with-context", "w", false, "the last command was a context request; continue the task")
	f.Int64VarP(&o.session, "session", "s", 0, "session id to continue (overrides $CHAT_COMMAND_CONV_ID)")
	f.BoolVar(&o.verbose, "verbose", false, "debug logging, mirrored to stderr")
}

// suggestArgs are the positional arguments passed by the shell wrapper.
// The optional fourth and fifth arguments are the 0/1 clipboard and
// with-context switches used by older wrappers.
type suggestArgs struct {
	lastCommand string
	lastOutput  string
	query       string
	clipboard   bool
	withContext bool
}

func parseSuggestArgs(args []string) (suggestArgs, error) {
	a := suggestArgs{lastCommand: args[0], lastOutput: args[1]}
	if len(args) > 2 {
		a.query = args[2]
		// wrappers pass a literal pair of quotes for "no query"
		if a.query == `""` {
			a.query = ""
		}
	}
	for i, dst := range []*bool{&a.clipboard, &a.withContext} {
		if len(args) <= 3+i {
			break
		}
		switch args[3+i] {
		case "0":
		case "1":
			*dst = true
		default:
			return a, fmt.Errorf("argument %d must be 0 or 1, got %q", 4+i, args[3+i])
		}
	}
	return a, nil
}

// selectKind picks the request: a context continuation first, then a
// free-text goal, otherwise a fix of the last command.
func selectKind(query string, withContext bool) prompt.Kind {
	switch {
	case withContext:
		return prompt.ReceivedContext{}
	case query != "":
		return prompt.SuggestFromText{Goal: query}
	}
	return prompt.FixCommand{}
}

// resolveSession returns the session id and whether the session is fresh.
// Priority: --session > $CHAT_COMMAND_CONV_ID > a new time-based id.
func resolveSession(flagID int64, flagSet bool) (int64, bool, error) {
	if flagSet {
		return flagID, false, nil
	}
	if v := strings.TrimSpace(os.Getenv("CHAT_COMMAND_CONV_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("invalid CHAT_COMMAND_CONV_ID %q: %w", v, err)
		}
		return id, false, nil
	}
	return time.Now().Unix(), true, nil
}

func runSuggest(ctx context.Context, opts *suggestOptions, args []string, stdin io.Reader, stdout io.Writer) error {
	a, err := parseSuggestArgs(args)
	if err != nil {
		return err
	}

	root, err := chatcommand.RootDir()
	if err != nil {
		return err
	}
	defer setupLogging(root, opts.verbose)()

	cfg, err := chatcommand.LoadConfig(root)
	if err != nil {
		return err
	}
	if err := chatcommand.CheckRequired(cfg); err != nil {
		return err
	}
	for _, w := range chatcommand.ValidateConfig(cfg) {
		slog.Warn("config", "warning", w)
	}

	id, fresh, err := resolveSession(opts.session, opts.sessionSet)
	if err != nil {
		return err
	}

	store := session.NewStore(root)
	history, err := store.Load(id, fresh)
	if err != nil {
		return fmt.Errorf("cannot continue session %d: %w", id, err)
	}
	system := prompt.SystemPrompt(prompt.LoadCustomPrompt(chatcommand.PromptPath(root)))
	sess := session.New(id, system, history)
	slog.Info("session", "id", id, "fresh", fresh, "history_turns", len(history))

	var clip *string
	if opts.clipboard || a.clipboard {
		fmt.Fprintln(stdout, "📋 Reading clipboard content.")
		text, err := clipboard.ReadAll()
		if err != nil {
			slog.Warn("failed to read clipboard", "error", err)
		} else {
			clip = &text
		}
	}

	rc := prompt.NewRequestContext(prompt.Input{
		LastCommand:      a.lastCommand,
		LastOutput:       a.lastOutput,
		PriorChatCommand: os.Getenv("CHAT_COMMAND_LAST_COMMAND"),
		PriorChatOutput:  os.Getenv("CHAT_COMMAND_LAST_OUTPUT"),
		Clipboard:        clip,
		Redact:           chatcommand.RedactCommandsEnabled(cfg),
	})

	var dir prompt.DirContext
	if chatcommand.IncludeDirectoryEnabled(cfg) {
		if cwd, err := os.Getwd(); err == nil {
			cache := dircontext.NewCache(chatcommand.DirContextPath(root))
			defer cache.Close()
			dir = cache.Gather(ctx, cwd)
			if err := cache.Save(); err != nil {
				slog.Warn("failed to save directory context", "error", err)
			}
		}
	}

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	reader, closeReader := newReader(stdin, stdout)
	defer closeReader()

	ctrl := interact.NewController(
		prompt.NewBuilder(rc, dir),
		gen,
		store,
		result.NewWriter(chatcommand.ResultPath(root)),
		reader,
		stdout,
	)
	outcome, err := ctrl.Run(ctx, sess, selectKind(a.query, opts.withContext || a.withContext))
	if err != nil {
		return err
	}
	slog.Info("interaction finished", "state", outcome.State, "rounds", outcome.Rounds)
	return nil
}

// newGenerator picks the backend for generation.api_type.
func newGenerator(cfg *chatcommand.Config) (interact.Generator, error) {
	opts := generate.Options{
		Endpoint:    chatcommand.ResolveEndpoint(cfg),
		APIKey:      chatcommand.ResolveAPIKey(cfg),
		Model:       chatcommand.ResolveModel(cfg),
		APIType:     cfg.Generation.APIType,
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
		Timeout:     chatcommand.RequestTimeout(cfg),
	}
	if opts.APIType == chatcommand.APITypeOpenAISDK {
		return generate.NewSDKGenerator(opts)
	}
	return generate.NewGenerator(opts), nil
}

// newReader reads selections from the terminal when there is one, and from
// stdin otherwise.
func newReader(stdin io.Reader, stdout io.Writer) (interact.Reader, func()) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		editor, err := interact.NewEditor()
		if err == nil {
			onSignal.add(editor.Restore)
			return editor, func() { editor.Close() }
		}
		slog.Warn("failed to open terminal, reading from stdin", "error", err)
	}
	return interact.NewLineReader(stdin, stdout), func() {}
}
