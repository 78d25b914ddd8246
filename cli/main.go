// Command chat-command turns the last shell command, its output or a
// free-text goal into shell command suggestions from a language model.
//
// It is meant to be called by a shell wrapper, which executes the chosen
// command written to $CHAT_COMMAND_PATH/command_to_execute.txt:
//
//	chat-command suggest [flags] <last-command> <last-output> [query]
//	chat-command history [session-id]
//	chat-command config
//
// Wrappers must always name the suggest subcommand. Without it the root
// command treats its first argument as the last shell command, so a last
// command of "history", "config" or "version" would run that subcommand
// instead of being fixed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mikhail-vlasenko/chat-command/generate"
	"github.com/mikhail-vlasenko/chat-command/interact"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A blocking terminal read cannot observe ctx, so the process exits here.
	// The result file is written atomically and is never left half-written.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		onSignal.run()
		fmt.Fprintln(os.Stderr)
		os.Exit(1)
	}()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// signalHooks run on SIGINT/SIGTERM, before the process exits without
// unwinding deferred calls.
type signalHooks struct {
	mu  sync.Mutex
	fns []func()
}

func (h *signalHooks) add(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fns = append(h.fns, fn)
}

func (h *signalHooks) run() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, fn := range h.fns {
		fn()
	}
}

var onSignal signalHooks

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	opts := &suggestOptions{}
	root := &cobra.Command{
		Use:   "chat-command [flags] <last-command> <last-output> [query]",
		Short: "Suggest shell commands with a language model",
		Long: `chat-command asks a language model to fix the last shell command or to
achieve a goal described in plain text, and lets you pick one of its
suggestions. Flags must come before the positional arguments, since the
captured output may itself start with a dash. Shell wrappers must call the
suggest subcommand explicitly: a last command named like a subcommand
would otherwise run that subcommand.`,
		Args:          cobra.RangeArgs(2, 5),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.sessionSet = cmd.Flags().Changed("session")
			return runSuggest(cmd.Context(), opts, args, stdin, stdout)
		},
	}
	opts.register(root)

	suggest := &cobra.Command{
		Use:   "suggest [flags] <last-command> <last-output> [query]",
		Short: "Suggest a command (the default action)",
		Args:  cobra.RangeArgs(2, 5),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.sessionSet = cmd.Flags().Changed("session")
			return runSuggest(cmd.Context(), opts, args, stdin, stdout)
		},
	}
	opts.register(suggest)

	root.AddCommand(suggest, newHistoryCmd(stdout), newConfigCmd(stdout), &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(stdout, "chat-command", Version)
		},
	})
	return root
}

// reportError prints the single diagnostic line for a failed run.
func reportError(w io.Writer, err error) {
	var apiErr *generate.APIError
	switch {
	case errors.Is(err, interact.ErrInterrupted):
		// the newline was already printed by the reader
	case errors.As(err, &apiErr):
		fmt.Fprintf(w, "❌ LLM request failed:\n %s\n", apiErr.Body)
	case errors.Is(err, generate.ErrNoSuggestions):
		fmt.Fprintln(w, "❌ The model did not return any command suggestions. Please try again.")
	default:
		fmt.Fprintf(w, "❌ %v\n", err)
	}
}
