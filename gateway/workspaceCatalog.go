package gateway

import (
	"context"
	"fmt"

	"github.com/databricks/databricks-sdk-go"
	ucapi "github.com/databricks/databricks-sdk-go/service/catalog"
	log "github.com/sirupsen/logrus"
)

type catalogLister interface {
	ListAll(ctx context.Context, request ucapi.ListCatalogsRequest) ([]ucapi.CatalogInfo, error)
}

type schemaLister interface {
	ListAll(ctx context.Context, request ucapi.ListSchemasRequest) ([]ucapi.SchemaInfo, error)
}

type tableReader interface {
	ListAll(ctx context.Context, request ucapi.ListTablesRequest) ([]ucapi.TableInfo, error)
	GetByFullName(ctx context.Context, fullName string) (*ucapi.TableInfo, error)
}

// workspaceCatalog browses Unity Catalog through the workspace API.
type workspaceCatalog struct {
	catalogs catalogLister
	schemas  schemaLister
	tables   tableReader
}

func newWorkspaceCatalog(client *databricks.WorkspaceClient) *workspaceCatalog {
	return &workspaceCatalog{
		catalogs: client.Catalogs,
		schemas:  client.Schemas,
		tables:   client.Tables,
	}
}

func (c *workspaceCatalog) ListCatalogs(ctx context.Context) ([]string, error) {
	catalogs, err := c.catalogs.ListAll(ctx, ucapi.ListCatalogsRequest{})
	if err != nil {
		return nil, catalogError("list catalogs", err)
	}
	names := make([]string, 0, len(catalogs))
	for _, catalog := range catalogs {
		if catalog.Name != "" {
			names = append(names, catalog.Name)
		}
	}
	return samplesFirst(names), nil
}

func (c *workspaceCatalog) ListSchemas(ctx context.Context, catalog string) ([]string, error) {
	if err := requireNames(catalog); err != nil {
		return nil, err
	}
	schemas, err := c.schemas.ListAll(ctx, ucapi.ListSchemasRequest{CatalogName: catalog})
	if err != nil {
		return nil, catalogError("list schemas of "+catalog, err)
	}
	names := make([]string, 0, len(schemas))
	for _, schema := range schemas {
		if schema.Name != "" {
			names = append(names, schema.Name)
		}
	}
	return names, nil
}

func (c *workspaceCatalog) ListTables(ctx context.Context, catalog string, schema string) ([]TableInfo, error) {
	if err := requireNames(catalog, schema); err != nil {
		return nil, err
	}
	tables, err := c.tables.ListAll(ctx, ucapi.ListTablesRequest{CatalogName: catalog, SchemaName: schema})
	if err != nil {
		return nil, catalogError(fmt.Sprintf("list tables of %s.%s", catalog, schema), err)
	}
	infos := make([]TableInfo, 0, len(tables))
	for _, table := range tables {
		if table.Name == "" {
			continue
		}
		tableType := string(table.TableType)
		if tableType == "" {
			tableType = unknownTableType
		}
		infos = append(infos, TableInfo{
			Name:    table.Name,
			Type:    tableType,
			Owner:   table.Owner,
			Comment: table.Comment,
		})
	}
	return infos, nil
}

func (c *workspaceCatalog) TableDetail(ctx context.Context, catalog string, schema string, table string) (*TableDetail, error) {
	if err := requireNames(catalog, schema, table); err != nil {
		return nil, err
	}
	fullName := fmt.Sprintf("%s.%s.%s", catalog, schema, table)
	info, err := c.tables.GetByFullName(ctx, fullName)
	if err != nil {
		return nil, catalogError("get table "+fullName, err)
	}
	detail := &TableDetail{
		Name:    info.Name,
		Type:    string(info.TableType),
		Format:  string(info.DataSourceFormat),
		Owner:   info.Owner,
		Comment: info.Comment,
		Columns: make([]ColumnInfo, 0, len(info.Columns)),
	}
	for _, column := range info.Columns {
		columnType := column.TypeText
		if columnType == "" {
			columnType = string(column.TypeName)
		}
		detail.Columns = append(detail.Columns, ColumnInfo{
			Name:     column.Name,
			Type:     columnType,
			Nullable: column.Nullable,
			Comment:  column.Comment,
		})
	}
	return detail, nil
}

func catalogError(action string, err error) error {
	log.Errorf("Unable to %s, Error: %v", action, err)
	return newError(KindExecutionFailed, err, "%s", err.Error())
}
