package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sqlpilot/sqlpilot/internal/sqlexec"
	"github.com/sqlpilot/sqlpilot/internal/storage"
)

type Input struct {
	SessionID string
	Result    sqlexec.Result
}

type Info struct {
	Key         string
	RecordCount int64
	SizeBytes   int64
}

// Exporter archives a query result as a Parquet object.
type Exporter struct {
	Store storage.ObjectStore
}

func (e *Exporter) Export(ctx context.Context, in Input) (Info, error) {
	if e.Store == nil {
		return Info{}, fmt.Errorf("object store is required")
	}

	encoded, err := EncodeResultToParquet(in.Result)
	if err != nil {
		return Info{}, fmt.Errorf("encode result: %w", err)
	}

	key, err := storage.BuildExportPath(in.SessionID, time.Now().UTC(), uuid.NewString())
	if err != nil {
		return Info{}, fmt.Errorf("build export path: %w", err)
	}

	info, err := e.Store.Put(ctx, key, bytes.NewReader(encoded.Data), int64(len(encoded.Data)), storage.PutOptions{
		ContentType: "application/vnd.apache.parquet",
	})
	if err != nil {
		return Info{}, fmt.Errorf("upload export: %w", err)
	}

	return Info{
		Key:         info.Key,
		RecordCount: encoded.RecordCount,
		SizeBytes:   int64(len(encoded.Data)),
	}, nil
}
