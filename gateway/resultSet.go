package gateway

// Row maps a column name to the cell value of one result row.
type Row map[string]Value

// ResultSet is the transport-neutral shape of a query result.
// Columns keep the statement's projection order; use it to iterate a Row in order.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
	Count   int      `json:"count"`
}

func newEmptyResultSet() *ResultSet {
	return &ResultSet{
		Columns: []string{},
		Rows:    []Row{},
		Count:   0,
	}
}

// GetRowCount returns how many rows in the ResultSet
func (r *ResultSet) GetRowCount() int {
	return len(r.Rows)
}

// GetColumnCount returns how many columns in the ResultSet
func (r *ResultSet) GetColumnCount() int {
	return len(r.Columns)
}

// GetColumnName returns column name given column index
func (r *ResultSet) GetColumnName(columnIndex int) string {
	return r.Columns[columnIndex]
}

// Get returns a ResultSet entry given row index and column index
func (r *ResultSet) Get(rowIndex int, columnIndex int) Value {
	return r.Rows[rowIndex][r.Columns[columnIndex]]
}

// Values returns the cells of a row in column order.
func (r *ResultSet) Values(rowIndex int) []Value {
	values := make([]Value, len(r.Columns))
	for i, column := range r.Columns {
		values[i] = r.Rows[rowIndex][column]
	}
	return values
}
