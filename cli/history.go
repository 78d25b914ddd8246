package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	chatcommand "github.com/mikhail-vlasenko/chat-command"
	"github.com/mikhail-vlasenko/chat-command/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type historyExport struct {
	SessionID int64              `json:"session_id" toml:"session_id"`
	Turns     []chatcommand.Turn `json:"turns" toml:"turns"`
}

func newHistoryCmd(stdout io.Writer) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "Print the persisted turns of a session",
		Long: `Print the persisted turns of a session. Without an argument the
session in $CHAT_COMMAND_CONV_ID is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := chatcommand.RootDir()
			if err != nil {
				return err
			}
			id, err := historySessionID(args)
			if err != nil {
				return err
			}
			store := session.NewStore(root)
			if !store.Exists(id) {
				// a legacy pickle file is reported by Load
				if _, err := store.Load(id, false); err != nil {
					return err
				}
				fmt.Fprintln(stdout, "No chat history found.")
				return nil
			}
			turns, err := store.Load(id, false)
			if err != nil {
				return err
			}
			return printHistory(stdout, format, historyExport{SessionID: id, Turns: turns}, isTerminal(stdout))
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, toml or json")
	return cmd
}

func historySessionID(args []string) (int64, error) {
	v := os.Getenv("CHAT_COMMAND_CONV_ID")
	if len(args) == 1 {
		v = args[0]
	}
	if v == "" {
		return 0, fmt.Errorf("no session id given and CHAT_COMMAND_CONV_ID is not set")
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid session id %q: %w", v, err)
	}
	return id, nil
}

func printHistory(w io.Writer, format string, h historyExport, bold bool) error {
	switch format {
	case "text":
		for _, t := range h.Turns {
			header := string(t.Role) + ":"
			if bold {
				header = "\033[1m" + header + "\033[0m"
			}
			fmt.Fprintf(w, "%s\n%s\n\n", header, t.Content)
		}
		return nil
	case "toml":
		return toml.NewEncoder(w).Encode(h)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(h)
	}
	return fmt.Errorf("unknown format %q; use text, toml or json", format)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
