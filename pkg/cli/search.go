package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grepdb/pkg/models"
	"github.com/ekaya-inc/grepdb/pkg/services"
)

func newSearchCommand(a *app) *cobra.Command {
	var (
		scopeOpts scopeFlags
		count     bool
	)

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "List rows containing a literal term",
		Long: "Search every text column of the selected tables for a literal term. " +
			"Matching is case-insensitive, like the database's LIKE under a _ci collation.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSearch(cmd.Context(), args[0], scopeOpts, count)
		},
	}

	cmd.Flags().StringVarP(&scopeOpts.table, "table", "t", "", "Only search this table (table or database.table)")
	cmd.Flags().StringVar(&scopeOpts.schemaDump, "schema-dump", "", "Read the schema from a mysqldump file instead of the catalog")
	cmd.Flags().BoolVar(&scopeOpts.allDatabases, "all-databases", false, "Search every database on the server")
	cmd.Flags().BoolVar(&count, "count", false, "Print the number of candidate rows per table instead of the rows")
	return cmd
}

func (a *app) runSearch(ctx context.Context, term string, f scopeFlags, count bool) error {
	s, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	sc, err := a.resolveScope(ctx, s, f)
	if err != nil {
		return err
	}

	svc := services.NewSearchService(s.exec, services.WithSearchRetry(a.retryConfig()))

	if count {
		for _, table := range sc.tables() {
			n, err := svc.CountTable(ctx, table, term)
			if err != nil {
				return err
			}
			a.printf("%s count=%d\n", table.Key(), n)
		}
		return nil
	}

	var it *services.RowSearchIterator
	if sc.table != nil {
		it, err = svc.SearchTable(ctx, sc.table, term)
	} else {
		srv := models.NewServerMetadata(s.catalog.Host(), sc.databases)
		it, err = svc.SearchServer(ctx, srv, term)
	}
	if err != nil {
		return err
	}
	defer it.Close()

	rows := 0
	for it.Next(ctx) {
		a.printf("%s\n", formatSearchRow(it.Result()))
		rows++
	}
	if err := it.Err(); err != nil {
		return err
	}

	a.logger.Info("search complete", zap.Int("rows", rows))
	return nil
}

// tables lists every table in scope in discovery order.
func (sc *scope) tables() []*models.TableMetadata {
	if sc.table != nil {
		return []*models.TableMetadata{sc.table}
	}
	var out []*models.TableMetadata
	for _, db := range sc.databases {
		out = append(out, db.Tables()...)
	}
	return out
}

// formatSearchRow renders "db.table pk=<v> columns=a,b". The pk part is
// omitted for tables without a primary key.
func formatSearchRow(row *models.RowSearchResult) string {
	var b strings.Builder
	b.WriteString(row.Table.Key())
	if row.HasPrimaryKey() {
		b.WriteString(" pk=")
		b.WriteString(keyValues(row))
	}
	fields := row.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Column.ColumnName
	}
	b.WriteString(" columns=")
	b.WriteString(strings.Join(names, ","))
	return b.String()
}

func keyValues(row *models.RowSearchResult) string {
	keys := row.Keys()
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		if k.Value != nil {
			values = append(values, *k.Value)
		}
	}
	return strings.Join(values, ",")
}
