package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grepdb/pkg/logging"
	"github.com/ekaya-inc/grepdb/pkg/models"
	"github.com/ekaya-inc/grepdb/pkg/services"
)

// maxErrorLineLength bounds printed row errors, which may quote whole values.
const maxErrorLineLength = 240

type replaceFlags struct {
	scope     scopeFlags
	batchSize int
	dryRun    bool
}

func newReplaceCommand(a *app) *cobra.Command {
	var f replaceFlags

	cmd := &cobra.Command{
		Use:   "replace <term> <replacement>",
		Short: "Rewrite a literal term in every matching row",
		Long: "Replace a literal term in every text column of the selected tables. " +
			"PHP serialized values are rewritten with corrected length prefixes. " +
			"Rows are committed in batches; a value that would exceed its column length is left unchanged.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := f
			if !cmd.Flags().Changed("batch-size") {
				opts.batchSize = a.cfg.Replace.BatchSize
			}
			if !cmd.Flags().Changed("dry-run") {
				opts.dryRun = a.cfg.Replace.DryRun
			}
			return a.runReplace(cmd.Context(), args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVarP(&f.scope.table, "table", "t", "", "Only rewrite this table (table or database.table)")
	cmd.Flags().StringVar(&f.scope.schemaDump, "schema-dump", "", "Read the schema from a mysqldump file instead of the catalog")
	cmd.Flags().BoolVar(&f.scope.allDatabases, "all-databases", false, "Rewrite every database on the server")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", services.DefaultBatchSize, "Rows committed per transaction")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Report what would change without writing")
	return cmd
}

func (a *app) runReplace(ctx context.Context, search, replacement string, f replaceFlags) error {
	if f.batchSize < 1 {
		return fmt.Errorf("--batch-size must be at least 1, got %d", f.batchSize)
	}
	a.warnSuspiciousTerms([]string{"term", "replacement"}, []string{search, replacement})

	s, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	sc, err := a.resolveScope(ctx, s, f.scope)
	if err != nil {
		return err
	}

	svc := services.NewReplaceService(s.exec, nil,
		services.WithBatchSize(f.batchSize),
		services.WithDryRun(f.dryRun),
		services.WithRetry(a.retryConfig()),
		services.WithProgress(a.printProgress),
	)

	logger := a.logger.With(zap.Bool("dry_run", f.dryRun), zap.Int("batch_size", f.batchSize))

	var summaries []*models.DatabaseReplaceResult
	if sc.table != nil {
		it, err := svc.ReplaceTable(ctx, sc.table, search, replacement)
		if err != nil {
			return err
		}
		summary, err := a.drainReplace(ctx, it)
		if err != nil {
			return err
		}
		summaries = append(summaries, summary)
	} else {
		for _, db := range sc.databases {
			it, err := svc.ReplaceDatabase(ctx, db, search, replacement)
			if err != nil {
				return err
			}
			summary, err := a.drainReplace(ctx, it)
			if err != nil {
				return err
			}
			summaries = append(summaries, summary)
		}
	}

	rowsUpdated, replaced, errCount := 0, 0, 0
	for _, summary := range summaries {
		rowsUpdated += summary.RowsUpdated()
		replaced += summary.ReplacedCount()
		errCount += len(summary.Errors())
	}
	verb := "updated"
	if f.dryRun {
		verb = "would update"
	}
	a.printf("%s %d rows, %d replacements, %d errors\n", verb, rowsUpdated, replaced, errCount)

	logger.Info("replace complete",
		zap.Int("rows_updated", rowsUpdated),
		zap.Int("replacements", replaced),
		zap.Int("errors", errCount),
	)
	return nil
}

// drainReplace prints every row result and returns the iterator summary.
func (a *app) drainReplace(ctx context.Context, it *services.RowReplaceIterator) (*models.DatabaseReplaceResult, error) {
	defer it.Close()
	for it.Next(ctx) {
		if line := formatReplaceRow(it.Result()); line != "" {
			a.printf("%s\n", line)
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return it.Summary(), nil
}

func (a *app) printProgress(t models.TableReplaceResult) {
	state := "in progress"
	if t.Complete {
		state = "done"
	}
	a.printf("%s: %d rows scanned, %d updated, %d replacements (%s)\n",
		t.Table.Key(), t.RowsProcessed, t.RowsUpdated, t.ReplacedCount, state)
}

// formatReplaceRow renders a row that changed or failed. Unchanged rows
// without errors produce an empty string.
func formatReplaceRow(row *models.RowReplaceResult) string {
	errs := row.AllErrors()
	if row.Update == nil && len(errs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(row.Search.Table.Key())
	if row.Search.HasPrimaryKey() {
		b.WriteString(" pk=")
		b.WriteString(keyValues(row.Search))
	}
	if row.Update != nil {
		b.WriteString(" replaced=")
		b.WriteString(fmt.Sprint(row.ReplacedCount()))
		b.WriteString(" columns=")
		b.WriteString(strings.Join(row.Update.Assignments, ","))
	}
	for _, e := range errs {
		b.WriteString("\n  ")
		b.WriteString(logging.TruncateString(e, maxErrorLineLength))
	}
	return b.String()
}
