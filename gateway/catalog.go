package gateway

import (
	"context"
	"fmt"
	"strings"
)

const (
	samplesCatalog   = "samples"
	catalogListLimit = HardRowCeiling

	unknownTableType   = "UNKNOWN"
	temporaryTableType = "TEMPORARY"

	detailSectionPrefix = "#"
)

// QueryRunner runs trusted SQL. *Gateway satisfies it.
type QueryRunner interface {
	RunQuery(ctx context.Context, text string, limit int) (*ResultSet, error)
}

// CatalogBrowser lists Unity Catalog objects.
type CatalogBrowser interface {
	ListCatalogs(ctx context.Context) ([]string, error)
	ListSchemas(ctx context.Context, catalog string) ([]string, error)
	ListTables(ctx context.Context, catalog string, schema string) ([]TableInfo, error)
	TableDetail(ctx context.Context, catalog string, schema string, table string) (*TableDetail, error)
}

// TableInfo is one entry of a schema listing.
type TableInfo struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Owner   string `json:"owner"`
	Comment string `json:"comment"`
}

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Comment  string `json:"comment"`
}

// TableDetail is a table with its columns.
type TableDetail struct {
	Name    string       `json:"name"`
	Type    string       `json:"type"`
	Format  string       `json:"format"`
	Owner   string       `json:"owner"`
	Comment string       `json:"comment"`
	Columns []ColumnInfo `json:"columns"`
}

// Catalog browses catalogs with SHOW and DESCRIBE statements over a QueryRunner.
// It serves drivers without a workspace API.
type Catalog struct {
	runner QueryRunner
}

// NewCatalog creates a statement-backed Catalog browser.
func NewCatalog(runner QueryRunner) *Catalog {
	return &Catalog{runner: runner}
}

// ListCatalogs returns the visible catalogs, with "samples" first when present.
func (c *Catalog) ListCatalogs(ctx context.Context) ([]string, error) {
	result, err := c.runner.RunQuery(ctx, "SHOW CATALOGS", catalogListLimit)
	if err != nil {
		return nil, err
	}
	return samplesFirst(stringColumn(result, "catalog")), nil
}

// ListSchemas returns the schemas of a catalog.
func (c *Catalog) ListSchemas(ctx context.Context, catalog string) ([]string, error) {
	if err := requireNames(catalog); err != nil {
		return nil, err
	}
	result, err := c.runner.RunQuery(ctx, "SHOW SCHEMAS IN "+quoteIdentifier(catalog), catalogListLimit)
	if err != nil {
		return nil, err
	}
	return stringColumn(result, "databaseName"), nil
}

// ListTables returns the tables of a schema. SHOW TABLES reports no owner or comment,
// and the type is only known for temporary views.
func (c *Catalog) ListTables(ctx context.Context, catalog string, schema string) ([]TableInfo, error) {
	if err := requireNames(catalog, schema); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SHOW TABLES IN %s.%s", quoteIdentifier(catalog), quoteIdentifier(schema))
	result, err := c.runner.RunQuery(ctx, query, catalogListLimit)
	if err != nil {
		return nil, err
	}
	tables := make([]TableInfo, 0, result.Count)
	for _, row := range result.Rows {
		name, _ := row["tableName"].Str()
		if name == "" {
			continue
		}
		tableType := unknownTableType
		if temporary, _ := row["isTemporary"].Boolean(); temporary {
			tableType = temporaryTableType
		}
		tables = append(tables, TableInfo{Name: name, Type: tableType})
	}
	return tables, nil
}

// TableDetail describes a table from DESCRIBE TABLE EXTENDED: the column rows come first,
// then a "# Detailed Table Information" section of key/value rows.
func (c *Catalog) TableDetail(ctx context.Context, catalog string, schema string, table string) (*TableDetail, error) {
	if err := requireNames(catalog, schema, table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("DESCRIBE TABLE EXTENDED %s.%s.%s", quoteIdentifier(catalog), quoteIdentifier(schema), quoteIdentifier(table))
	result, err := c.runner.RunQuery(ctx, query, catalogListLimit)
	if err != nil {
		return nil, err
	}

	detail := &TableDetail{Name: table, Columns: []ColumnInfo{}}
	inColumns := true
	for _, row := range result.Rows {
		name, _ := row["col_name"].Str()
		value, _ := row["data_type"].Str()
		comment, _ := row["comment"].Str()
		name = strings.TrimSpace(name)
		if name == "" || strings.HasPrefix(name, detailSectionPrefix) {
			inColumns = false
			continue
		}
		if inColumns {
			detail.Columns = append(detail.Columns, ColumnInfo{Name: name, Type: value, Nullable: true, Comment: comment})
			continue
		}
		switch name {
		case "Table":
			detail.Name = value
		case "Type":
			detail.Type = value
		case "Provider":
			detail.Format = strings.ToUpper(value)
		case "Owner":
			detail.Owner = value
		case "Comment":
			detail.Comment = value
		}
	}
	return detail, nil
}

func samplesFirst(names []string) []string {
	ordered := make([]string, 0, len(names))
	for _, name := range names {
		if name == samplesCatalog {
			ordered = append([]string{samplesCatalog}, ordered...)
			continue
		}
		ordered = append(ordered, name)
	}
	return ordered
}

func requireNames(names ...string) error {
	for _, name := range names {
		if name == "" {
			return newError(KindRejectedStatement, nil, "Catalog, schema and table names cannot be empty.")
		}
	}
	return nil
}

// stringColumn reads a named column, falling back to the first column.
func stringColumn(result *ResultSet, column string) []string {
	if result.GetColumnCount() == 0 || len(result.Rows) == 0 {
		return []string{}
	}
	if _, ok := result.Rows[0][column]; !ok {
		column = result.GetColumnName(0)
	}
	values := make([]string, 0, result.Count)
	for _, row := range result.Rows {
		if name, ok := row[column].Str(); ok && name != "" {
			values = append(values, name)
		}
	}
	return values
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
