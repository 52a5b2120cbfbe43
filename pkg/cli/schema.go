package cli

import (
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/grepdb/pkg/models"
	"github.com/ekaya-inc/grepdb/pkg/sqldump"
)

// tableView is the YAML shape of one parsed table.
type tableView struct {
	Database   string                   `yaml:"database"`
	Table      string                   `yaml:"table"`
	Engine     string                   `yaml:"engine"`
	Charset    string                   `yaml:"charset"`
	Collation  string                   `yaml:"collation"`
	PrimaryKey []string                 `yaml:"primary_key,omitempty"`
	Columns    []*models.ColumnMetadata `yaml:"columns"`
}

func newSchemaCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <dump.sql>",
		Short: "Print the tables declared in a mysqldump file",
		Long:  "Parse the CREATE TABLE statements of a mysqldump file and print them as YAML. --database replaces the dump path as the database name.",
		Args:  cobra.ExactArgs(1),
		// The dump is read offline, so no config or connection is needed.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := sqldump.ReadAll(args[0])
			if err != nil {
				return err
			}
			if db := a.flags.database; db != "" {
				for i, t := range tables {
					tables[i] = t.WithDatabaseName(db)
				}
			}
			return writeSchema(a.out, tables)
		},
	}
}

func writeSchema(w io.Writer, tables []*models.TableMetadata) error {
	views := make([]tableView, len(tables))
	for i, t := range tables {
		v := tableView{
			Database:  t.DatabaseName,
			Table:     t.TableName,
			Engine:    t.Engine,
			Charset:   t.Charset,
			Collation: t.Collation,
			Columns:   t.Columns(),
		}
		for _, pk := range t.PrimaryKeyColumns() {
			v.PrimaryKey = append(v.PrimaryKey, pk.ColumnName)
		}
		views[i] = v
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(views); err != nil {
		return err
	}
	return enc.Close()
}
