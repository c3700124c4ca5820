package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"localrag/internal/workflow"
)

func newAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [QUESTION...]",
		Short: "Ask a question against the vector database",
		Long: `Send QUESTION to the backend and print the answer. The vector database must
already exist, for example from "localrag ingest".

Without a question an interactive prompt starts. Enter submits; .back or .quit
leaves.`,
		Example: `  localrag ask what does the ferry cost
  localrag ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(GetConfig(ctx), GetLogger(ctx))
			if err != nil {
				return err
			}
			defer a.store.Close()

			if len(args) > 0 {
				answer, err := a.ask(strings.Join(args, " "))
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), answer)
				return nil
			}
			return runAskREPL(cmd, a)
		},
	}
}

// ask runs one query without the navigation gate. A backend with no index
// answers 409, which surfaces as the generic query failure.
func (a *app) ask(question string) (string, error) {
	a.query.SetQuery(question)
	workflow.Run(a.query.Submit())
	if err := a.failure(); err != nil {
		return "", err
	}
	return a.store.Result(), nil
}

func runAskREPL(cmd *cobra.Command, a *app) error {
	historyFile := ""
	if dir, err := os.UserCacheDir(); err == nil {
		historyFile = filepath.Join(dir, "localrag", "ask_history")
		_ = os.MkdirAll(filepath.Dir(historyFile), 0o750)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ask> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize prompt: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, "Type a question and press Enter. .back or .quit to leave")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case ".back", ".quit", ".exit":
			a.query.GoBack()
			return nil
		}

		answer, err := a.ask(line)
		if err != nil {
			_, _ = fmt.Fprintln(out, err)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s\n\n", answer)
	}
}
