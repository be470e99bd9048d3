// Package codec serializes gateway result sets for transport: Arrow IPC streams
// for columnar consumers, plus payload compression.
package codec

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/ipc"
	"github.com/apache/arrow/go/v15/arrow/memory"

	"github.com/startreedata/warehouse-gateway/gateway"
)

// ArrowContentType is the media type of an Arrow IPC stream.
const ArrowContentType = "application/vnd.apache.arrow.stream"

// EncodeArrow writes the result set as a single-record Arrow IPC stream.
// Column types are inferred from the non-null cells: all ints -> int64, ints and
// floats -> float64, all bools -> bool, anything else -> utf8.
func EncodeArrow(result *gateway.ResultSet) ([]byte, error) {
	allocator := memory.NewGoAllocator()
	fields := make([]arrow.Field, len(result.Columns))
	for i, column := range result.Columns {
		fields[i] = arrow.Field{Name: column, Type: inferArrowType(result, column), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(allocator, schema)
	defer builder.Release()
	for rowIdx := range result.Rows {
		for colIdx, value := range result.Values(rowIdx) {
			if err := appendArrowValue(builder.Field(colIdx), value); err != nil {
				return nil, fmt.Errorf("column %s: %w", result.Columns[colIdx], err)
			}
		}
	}
	record := builder.NewRecord()
	defer record.Release()

	buf := &bytes.Buffer{}
	writer := ipc.NewWriter(buf, ipc.WithSchema(schema), ipc.WithAllocator(allocator))
	if err := writer.Write(record); err != nil {
		return nil, fmt.Errorf("failed to write arrow record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close arrow writer: %w", err)
	}
	return buf.Bytes(), nil
}

func inferArrowType(result *gateway.ResultSet, column string) arrow.DataType {
	seen := map[gateway.ValueKind]bool{}
	for _, row := range result.Rows {
		if kind := row[column].Kind(); kind != gateway.NullValue {
			seen[kind] = true
		}
	}
	switch {
	case len(seen) == 0:
		return arrow.BinaryTypes.String
	case len(seen) == 1 && seen[gateway.IntValue]:
		return arrow.PrimitiveTypes.Int64
	case len(seen) == 1 && seen[gateway.BoolValue]:
		return arrow.FixedWidthTypes.Boolean
	case (len(seen) == 1 && seen[gateway.FloatValue]) || (len(seen) == 2 && seen[gateway.IntValue] && seen[gateway.FloatValue]):
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

func appendArrowValue(builder array.Builder, value gateway.Value) error {
	if value.IsNull() {
		builder.AppendNull()
		return nil
	}
	switch b := builder.(type) {
	case *array.Int64Builder:
		v, _ := value.Int64()
		b.Append(v)
	case *array.Float64Builder:
		v, _ := value.Float64()
		b.Append(v)
	case *array.BooleanBuilder:
		v, _ := value.Boolean()
		b.Append(v)
	case *array.StringBuilder:
		b.Append(value.String())
	default:
		return fmt.Errorf("unsupported arrow builder %T", builder)
	}
	return nil
}

// DecodeArrow reads an Arrow IPC stream written by EncodeArrow back into a result set.
func DecodeArrow(payload []byte) (*gateway.ResultSet, error) {
	reader, err := ipc.NewReader(bytes.NewReader(payload), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("failed to read arrow payload: %w", err)
	}
	defer reader.Release()

	schema := reader.Schema()
	result := &gateway.ResultSet{Columns: make([]string, schema.NumFields()), Rows: []gateway.Row{}}
	for i, field := range schema.Fields() {
		result.Columns[i] = field.Name
	}
	for reader.Next() {
		record := reader.Record()
		for rowIdx := 0; rowIdx < int(record.NumRows()); rowIdx++ {
			row := make(gateway.Row, len(result.Columns))
			for colIdx, column := range result.Columns {
				value, err := readArrowValue(record.Column(colIdx), rowIdx)
				if err != nil {
					return nil, fmt.Errorf("column %s: %w", column, err)
				}
				row[column] = value
			}
			result.Rows = append(result.Rows, row)
		}
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read arrow record: %w", err)
	}
	result.Count = len(result.Rows)
	return result, nil
}

func readArrowValue(column arrow.Array, rowIdx int) (gateway.Value, error) {
	if column.IsNull(rowIdx) {
		return gateway.Null(), nil
	}
	switch c := column.(type) {
	case *array.Int64:
		return gateway.Int(c.Value(rowIdx)), nil
	case *array.Float64:
		return gateway.Float(c.Value(rowIdx)), nil
	case *array.Boolean:
		return gateway.Bool(c.Value(rowIdx)), nil
	case *array.String:
		return gateway.String(c.Value(rowIdx)), nil
	default:
		return gateway.Value{}, fmt.Errorf("unsupported arrow column type %s", column.DataType())
	}
}
