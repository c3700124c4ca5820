package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"localrag/internal/devserver"
)

func newDevServerCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local development backend",
		Long: `Serve /upload-file, /set-columns, /create-vector-database and /query from an
in-process index. The embedder and vector store come from the devserver
section of the config file.`,
		Annotations: map[string]string{annotLogToStderr: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := GetConfig(cmd.Context())
			log := GetLogger(cmd.Context())
			if addr == "" {
				addr = cfg.DevServer.Addr
			}

			idx, err := devserver.NewIndex(cfg.DevServer, log)
			if err != nil {
				return err
			}
			srv := devserver.New(devserver.Options{
				Addr:        addr,
				TopK:        cfg.DevServer.TopK,
				UploadField: cfg.Backend.UploadField,
				Index:       idx,
				Logger:      log,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8000)")
	return cmd
}
