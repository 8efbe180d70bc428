package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/sqlpilot/sqlpilot/internal/sqlexec"
)

type ParquetEncodeResult struct {
	Data        []byte
	RecordCount int64
}

// resultRow flattens one result row. Cell values travel as a JSON object
// keyed by column name, which keeps the parquet schema independent of the
// shape of the query.
type resultRow struct {
	RowIndex int64  `parquet:"row_index"`
	RowJSON  string `parquet:"row_json"`
}

func EncodeResultToParquet(result sqlexec.Result) (ParquetEncodeResult, error) {
	if len(result.Columns) == 0 {
		return ParquetEncodeResult{}, fmt.Errorf("result columns are required")
	}

	rows := make([]resultRow, 0, len(result.Rows))
	for index, values := range result.Rows {
		cells := make(map[string]any, len(result.Columns))
		for i, column := range result.Columns {
			if i < len(values) {
				cells[column] = values[i]
			}
		}
		payload, err := json.Marshal(cells)
		if err != nil {
			return ParquetEncodeResult{}, fmt.Errorf("marshal row %d: %w", index, err)
		}
		rows = append(rows, resultRow{RowIndex: int64(index), RowJSON: string(payload)})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[resultRow](buf)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return ParquetEncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return ParquetEncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	return ParquetEncodeResult{
		Data:        buf.Bytes(),
		RecordCount: int64(len(rows)),
	}, nil
}
