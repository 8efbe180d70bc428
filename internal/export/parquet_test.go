package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/sqlpilot/sqlpilot/internal/sqlexec"
)

func TestEncodeResultToParquet(t *testing.T) {
	result := sqlexec.Result{
		Columns:  []string{"id", "name"},
		Rows:     [][]any{{int64(1), "boots"}, {int64(2), "socks"}},
		RowCount: 2,
		Duration: 7 * time.Millisecond,
	}

	encoded, err := EncodeResultToParquet(result)
	if err != nil {
		t.Fatalf("EncodeResultToParquet() error = %v", err)
	}
	if encoded.RecordCount != 2 {
		t.Fatalf("RecordCount = %d", encoded.RecordCount)
	}
	if len(encoded.Data) == 0 {
		t.Fatal("expected non-empty parquet payload")
	}

	reader := parquet.NewGenericReader[resultRow](bytes.NewReader(encoded.Data))
	defer func() { _ = reader.Close() }()
	rows := make([]resultRow, 2)
	count, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("reader.Read() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("read rows = %d", count)
	}
	if rows[0].RowIndex != 0 || rows[1].RowIndex != 1 {
		t.Fatalf("unexpected row indexes: %+v", rows)
	}

	var cells map[string]any
	if err := json.Unmarshal([]byte(rows[0].RowJSON), &cells); err != nil {
		t.Fatalf("row json decode failed: %v", err)
	}
	if cells["id"] != float64(1) || cells["name"] != "boots" {
		t.Fatalf("cells = %#v", cells)
	}
}

func TestEncodeResultToParquetEmptyRows(t *testing.T) {
	encoded, err := EncodeResultToParquet(sqlexec.Result{Columns: []string{"id"}})
	if err != nil {
		t.Fatalf("EncodeResultToParquet() error = %v", err)
	}
	if encoded.RecordCount != 0 {
		t.Fatalf("RecordCount = %d", encoded.RecordCount)
	}
	if len(encoded.Data) == 0 {
		t.Fatal("expected parquet footer even with no rows")
	}
}

func TestEncodeResultToParquetRequiresColumns(t *testing.T) {
	if _, err := EncodeResultToParquet(sqlexec.Result{}); err == nil {
		t.Fatal("expected error for result without columns")
	}
}
