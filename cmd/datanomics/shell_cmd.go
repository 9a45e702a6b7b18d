package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"datanomics/app"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive analysis session",
		Long: `Start an interactive analysis session. The last session is restored
from the durable cache when one exists.

Example:
  datanomics shell
  > upload macro.csv
  > clean remove-missing
  > vars
  > test stationarity
  > assign gdp_growth endogenous
  > run
  > report`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), cmd)
		},
	}
}

func runShell(ctx context.Context, cmd *cobra.Command) error {
	c, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	session := c.NewSession()
	defer session.Close()
	fmt.Fprintln(cmd.OutOrStdout(), session.Start(ctx))

	return repl(ctx, session, c.Config.Data.ExportDir, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// repl reads commands until quit, EOF or ctx is done
func repl(ctx context.Context, session *app.Controller, exportDir string, out, errOut io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt(session),
		HistoryFile:     historyFile(),
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdout:          out,
		Stderr:          errOut,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	go func() {
		<-ctx.Done()
		_ = rl.Close()
	}()

	sh := newShell(session, out, exportDir)
	fmt.Fprintln(out, "Type help for commands, quit to exit.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}

		quit, err := sh.exec(ctx, strings.TrimSpace(line))
		if err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
		}
		if quit {
			return nil
		}
		rl.SetPrompt(prompt(session))
	}
}

func prompt(session *app.Controller) string {
	return fmt.Sprintf("datanomics [%s]> ", session.Current())
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(home, ".datanomics")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}

func completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(shellCommands)+2)
	for name := range shellCommands {
		items = append(items, readline.PcItem(name))
	}
	items = append(items, readline.PcItem("quit"), readline.PcItem("exit"))
	return readline.NewPrefixCompleter(items...)
}
