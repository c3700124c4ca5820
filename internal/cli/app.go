package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"localrag/internal/backend"
	"localrag/internal/config"
	"localrag/internal/intake"
	"localrag/internal/nav"
	"localrag/internal/query"
	"localrag/internal/workflow"
)

// app wires the workflow objects shared by the TUI and the headless commands.
type app struct {
	store  *workflow.Store
	gate   *nav.Gate
	intake *intake.Controller
	query  *query.Controller
	log    *slog.Logger
}

func newApp(cfg *config.AppConfig, logger *slog.Logger) (*app, error) {
	policy, err := cfg.Workflow.Policy()
	if err != nil {
		return nil, err
	}
	client := backend.NewClient(backend.Config{
		BaseURL:     cfg.Backend.URL,
		Timeout:     cfg.Backend.Timeout(),
		UploadField: cfg.Backend.UploadField,
		Logger:      logger,
	})
	store := workflow.NewStore(policy, logger)
	gate := nav.NewGate(logger)
	in := intake.New(store, client, gate, intake.Options{Accept: cfg.Intake.Accept, Logger: logger})
	q := query.New(store, client, gate, query.Options{SubmitKey: cfg.Query.SubmitKey, Logger: logger})
	gate.OnEnter(nav.ScreenIntake, in.Enter)

	logger.Debug("workflow ready", "backend", cfg.Backend.URL, "late_responses", policy)
	return &app{store: store, gate: gate, intake: in, query: q, log: logger}, nil
}

// stage places files into consecutive slots.
func (a *app) stage(files []string) error {
	paths, err := absPaths(files)
	if err != nil {
		return err
	}
	for i, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return fmt.Errorf("%s is a directory", p)
		}
		if i > 0 {
			if err := a.intake.AddSlot(); err != nil {
				return err
			}
		}
		if err := a.intake.SelectFile(i, p); err != nil {
			if errors.Is(err, intake.ErrUnsupportedFile) {
				return fmt.Errorf("%s: %s", p, a.store.Err())
			}
			return err
		}
	}
	return nil
}

// failure turns the store's displayed error into a command error.
func (a *app) failure() error {
	if msg := a.store.Err(); msg != "" {
		return errors.New(msg)
	}
	return nil
}
