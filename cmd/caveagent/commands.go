package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/martinemde/caveagent/agentloop"
)

func newParseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parse",
		Short: "Read player text on stdin and print the command it contains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			parsed, err := agentloop.ParseCommand(string(text))
			if err != nil {
				return err
			}
			if parsed == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no command")
				return nil
			}
			encoded, err := json.Marshal(parsed)
			if err != nil {
				return fmt.Errorf("encode command: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}
}

func newVersionCommand(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
			return nil
		},
	}
}

type scriptFile struct {
	Responses []string `toml:"responses"`
}

// loadScript reads scripted player responses from a TOML file of the form
// responses = ["...", "..."].
func loadScript(path string) ([]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat script file %q: %w", path, err)
	}
	var decoded scriptFile
	if _, err := toml.DecodeFile(path, &decoded); err != nil {
		return nil, fmt.Errorf("decode script file %q: %w", path, err)
	}
	if len(decoded.Responses) == 0 {
		return nil, fmt.Errorf("script file %q has no responses", path)
	}
	return decoded.Responses, nil
}
