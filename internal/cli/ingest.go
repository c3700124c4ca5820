package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"localrag/internal/domain"
	"localrag/internal/intake"
	"localrag/internal/workflow"
)

type ingestOptions struct {
	content  []string
	metadata []string
}

func newIngestCommand() *cobra.Command {
	opts := &ingestOptions{}
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Upload files and create the vector database without the UI",
		Long: `Upload every FILE in one request, apply the column choices for the CSV
files and create the vector database.

CSV columns default to content. Use --content to list the content columns of a
file, or --metadata to list its metadata columns; every other column takes the
opposite role.`,
		Example: `  # Index a PDF
  localrag ingest notes.pdf

  # Index reviews, keeping Rating and Date as metadata
  localrag ingest reviews.csv --metadata reviews.csv=Rating,Date`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args, opts)
		},
	}
	cmd.Flags().StringArrayVar(&opts.content, "content", nil, "Content columns as FILE=col,col")
	cmd.Flags().StringArrayVar(&opts.metadata, "metadata", nil, "Metadata columns as FILE=col,col")
	return cmd
}

func runIngest(cmd *cobra.Command, files []string, opts *ingestOptions) error {
	content, err := parseColumnChoices(opts.content)
	if err != nil {
		return fmt.Errorf("--content: %w", err)
	}
	metadata, err := parseColumnChoices(opts.metadata)
	if err != nil {
		return fmt.Errorf("--metadata: %w", err)
	}

	ctx := cmd.Context()
	a, err := newApp(GetConfig(ctx), GetLogger(ctx))
	if err != nil {
		return err
	}
	defer a.store.Close()

	if err := a.stage(files); err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	workflow.Run(a.intake.Upload())
	if err := a.failure(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Uploaded %d file(s)\n", len(files))

	if a.intake.Phase() == intake.PhaseColumnSelection {
		if err := applyColumnChoices(a.intake, content, metadata); err != nil {
			return err
		}
		renderPartition(out, a.intake.Specs())
		workflow.Run(a.intake.CreateIndex())
		if err := a.failure(); err != nil {
			return err
		}
	} else if len(content)+len(metadata) > 0 {
		return fmt.Errorf("column choices given but no CSV file was uploaded")
	}

	_, _ = fmt.Fprintln(out, "Vector database created")
	return nil
}

// parseColumnChoices reads FILE=col,col values into a filename-keyed map.
func parseColumnChoices(values []string) (map[string][]string, error) {
	out := make(map[string][]string, len(values))
	for _, v := range values {
		name, cols, ok := strings.Cut(v, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("expected FILE=col,col, got %q", v)
		}
		for _, c := range strings.Split(cols, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out[name] = append(out[name], c)
			}
		}
		if _, seen := out[name]; !seen {
			out[name] = []string{}
		}
	}
	return out, nil
}

// applyColumnChoices toggles columns until every named file matches its
// requested split.
func applyColumnChoices(c *intake.Controller, content, metadata map[string][]string) error {
	known := make(map[string]*domain.ColumnSpec)
	for _, spec := range c.Specs() {
		known[spec.Filename] = spec
	}
	for name := range content {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("%s is not an uploaded CSV file", name)
		}
	}
	for name := range metadata {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("%s is not an uploaded CSV file", name)
		}
	}

	for _, spec := range c.Specs() {
		cols, hasContent := content[spec.Filename]
		meta, hasMeta := metadata[spec.Filename]
		if hasContent && hasMeta {
			return fmt.Errorf("%s: use either --content or --metadata, not both", spec.Filename)
		}
		if !hasContent && !hasMeta {
			continue
		}
		named := cols
		if hasMeta {
			named = meta
		}
		set := make(map[string]bool, len(named))
		for _, col := range named {
			if !spec.Has(col) {
				return fmt.Errorf("%s has no column %q", spec.Filename, col)
			}
			set[col] = true
		}
		for _, col := range spec.Columns() {
			want := set[col]
			if hasMeta {
				want = !want
			}
			if spec.IsContent(col) == want {
				continue
			}
			if err := c.ToggleColumn(spec.Filename, col); err != nil {
				return err
			}
		}
	}
	return nil
}

func renderPartition(w io.Writer, specs []*domain.ColumnSpec) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Column", "Role"})
	for _, spec := range specs {
		for _, col := range spec.Columns() {
			role := "metadata"
			if spec.IsContent(col) {
				role = "content"
			}
			t.AppendRow(table.Row{spec.Filename, col, role})
		}
	}
	t.Render()
}
