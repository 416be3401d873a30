// Package export writes a tenant's active records to object storage as Parquet.
package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/sheetflow/pkg/batch/adapter/storage"
	"github.com/tigerroll/sheetflow/pkg/batch/core/application/usecase"
	"github.com/tigerroll/sheetflow/pkg/batch/core/domain/model"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/logger"
)

const contentType = "application/vnd.apache.parquet"

// Config holds exporter settings.
type Config struct {
	StorageRef  string
	Prefix      string
	Compression string // SNAPPY, GZIP or NONE
}

// Result describes one export.
type Result struct {
	ObjectName string
	Rows       int64
}

// Exporter writes the active view of one record kind to a single Parquet object.
type Exporter struct {
	records  usecase.RecordStore
	resolver storage.StorageConnectionResolver
	cfg      Config
	codec    parquet.CompressionCodec
}

// NewExporter validates cfg and creates an exporter.
func NewExporter(records usecase.RecordStore, resolver storage.StorageConnectionResolver, cfg Config) (*Exporter, error) {
	if cfg.StorageRef == "" {
		return nil, exception.NewSheetError("export", "exporter requires a storage connection name", nil, false, false)
	}
	codec, err := compressionCodec(cfg.Compression)
	if err != nil {
		return nil, exception.NewSheetError("export", fmt.Sprintf("invalid export compression '%s'", cfg.Compression), err, false, false)
	}
	return &Exporter{records: records, resolver: resolver, cfg: cfg, codec: codec}, nil
}

// ObjectName returns where the export of kind for batchID is stored.
func (e *Exporter) ObjectName(tenantID, kind, batchID string) string {
	return e.cfg.Prefix + path.Join(tenantID, kind, batchID+".parquet")
}

// ExportActive writes the tenant's active records of kind. Nothing is uploaded
// when the view is empty.
func (e *Exporter) ExportActive(ctx context.Context, tenantID, kind, batchID string) (Result, error) {
	const op = "Exporter.ExportActive"

	records, err := e.records.QueryActive(ctx, tenantID, kind, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(records) == 0 {
		logger.Infof("%s: tenant '%s' has no active '%s' records, skipping export.", op, tenantID, kind)
		return Result{}, nil
	}

	var data []byte
	if kind == model.RecordKindRaw {
		rows := make([]RawCellRow, 0, len(records))
		for _, r := range records {
			rows = append(rows, newRawCellRow(r.Raw))
		}
		data, err = encode(rows, new(RawCellRow), e.codec)
	} else {
		rows := make([]EntityRow, 0, len(records))
		for _, r := range records {
			row, convErr := newEntityRow(r.Entity)
			if convErr != nil {
				return Result{}, exception.NewSheetError("export", fmt.Sprintf("failed to encode attributes of '%s'", r.Entity.BusinessKey), convErr, false, false)
			}
			rows = append(rows, row)
		}
		data, err = encode(rows, new(EntityRow), e.codec)
	}
	if err != nil {
		return Result{}, exception.NewSheetError("export", fmt.Sprintf("failed to write Parquet for tenant '%s'", tenantID), err, false, false)
	}

	conn, err := e.resolver.ResolveStorageConnection(ctx, e.cfg.StorageRef)
	if err != nil {
		return Result{}, exception.NewSheetError("export", fmt.Sprintf("failed to resolve storage connection '%s'", e.cfg.StorageRef), err, false, true)
	}
	objectName := e.ObjectName(tenantID, kind, batchID)
	if err := conn.Upload(ctx, "", objectName, bytes.NewReader(data), contentType); err != nil {
		return Result{}, exception.NewSheetError("export", fmt.Sprintf("failed to upload '%s'", objectName), err, false, true)
	}

	logger.Infof("%s: exported %d '%s' records of tenant '%s' to %s.", op, len(records), kind, tenantID, objectName)
	return Result{ObjectName: objectName, Rows: int64(len(records))}, nil
}

// encode writes rows as one Parquet file held in memory.
func encode[T any](rows []T, prototype *T, codec parquet.CompressionCodec) (data []byte, err error) {
	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, prototype, 1)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = codec

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			return nil, err
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parquet writer panicked during WriteStop: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compressionCodec(name string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(name) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", name)
	}
}
