package main

import (
	"fmt"
	"io"

	chatcommand "github.com/mikhail-vlasenko/chat-command"
	"github.com/spf13/cobra"
)

const (
	bold      = "\033[1m"
	underline = "\033[4m"
	reset     = "\033[0m"
)

func newConfigCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show configuration help and the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			styled := isTerminal(stdout)
			fmt.Fprint(stdout, configHelp(styled))

			root, err := chatcommand.RootDir()
			if err != nil {
				fmt.Fprintf(stdout, "\n❌ %v\n", err)
				return nil
			}
			cfg, err := chatcommand.LoadConfig(root)
			if err != nil {
				return err
			}
			printEffectiveConfig(stdout, root, cfg, styled)
			return nil
		},
	}
}

func configHelp(styled bool) string {
	b, u, r := "", "", ""
	if styled {
		b, u, r = bold, underline, reset
	}
	return fmt.Sprintf(`⚙️ %[1]s%[2]sConfiguration Help:%[3]s

You can set the following environment variables in your shell configuration
file (e.g. ~/.bashrc) to be used by the chat command.
%[1]sEnvironment Variables:%[3]s
  - %[1]sCHAT_COMMAND_API_KEY%[3]s: the API key for the completion endpoint. If not set,
    %[1]sOPENAI_API_KEY%[3]s is used as a fallback.
  - %[1]sOPENAI_API_KEY%[3]s: alternative API key if %[1]sCHAT_COMMAND_API_KEY%[3]s is not set.
  - %[1]sCHAT_COMMAND_API_URL%[3]s: the completion endpoint. Defaults to
    "https://api.openai.com/v1/chat/completions".
  - %[1]sCHAT_COMMAND_MODEL%[3]s: the model used for completion. Defaults to "gpt-3.5-turbo".
  - %[1]sCHAT_COMMAND_PATH%[3]s: the directory for chat history, logs and the result file.
    Usually "~/.chat_command".
Other settings are read from config.json in that directory.
`, b, u, r)
}

func printEffectiveConfig(w io.Writer, root string, cfg *chatcommand.Config, styled bool) {
	b, r := "", ""
	if styled {
		b, r = bold, reset
	}
	fmt.Fprintf(w, "\n%sEffective configuration:%s\n", b, r)
	fmt.Fprintf(w, "  config file:       %s\n", chatcommand.ConfigPath(root))
	fmt.Fprintf(w, "  endpoint:          %s\n", chatcommand.ResolveEndpoint(cfg))
	fmt.Fprintf(w, "  api type:          %s\n", cfg.Generation.APIType)
	fmt.Fprintf(w, "  model:             %s\n", chatcommand.ResolveModel(cfg))
	fmt.Fprintf(w, "  api key:           %s\n", maskKey(chatcommand.ResolveAPIKey(cfg)))
	fmt.Fprintf(w, "  max tokens:        %d\n", cfg.Generation.MaxTokens)
	fmt.Fprintf(w, "  temperature:       %g\n", cfg.Generation.Temperature)
	fmt.Fprintf(w, "  request timeout:   %s\n", chatcommand.RequestTimeout(cfg))
	fmt.Fprintf(w, "  redact commands:   %t\n", chatcommand.RedactCommandsEnabled(cfg))
	fmt.Fprintf(w, "  include directory: %t\n", chatcommand.IncludeDirectoryEnabled(cfg))

	if warnings := chatcommand.ValidateConfig(cfg); len(warnings) > 0 {
		fmt.Fprintf(w, "\n%sWarnings:%s\n", b, r)
		for _, warn := range warnings {
			fmt.Fprintf(w, "  - %s\n", warn)
		}
	}
}

// maskKey keeps the first and last four characters of key.
func maskKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 8:
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
