package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/tigerroll/sheetflow/pkg/batch/adapter/storage"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/sheetflow/pkg/batch/support/util/logger"
)

// ArchiveStage moves the input below the archive prefix.
type ArchiveStage struct {
	resolver       storage.StorageConnectionResolver
	incomingPrefix string
	archivePrefix  string
}

// NewArchiveStage creates the archive stage.
func NewArchiveStage(resolver storage.StorageConnectionResolver, incomingPrefix, archivePrefix string) *ArchiveStage {
	return &ArchiveStage{resolver: resolver, incomingPrefix: incomingPrefix, archivePrefix: archivePrefix}
}

func (s *ArchiveStage) Name() string { return StepArchive }

// ArchiveName returns where objectName is archived for batchID.
func (s *ArchiveStage) ArchiveName(objectName, batchID string) string {
	rel := strings.TrimPrefix(objectName, s.incomingPrefix)
	return s.archivePrefix + batchID + "/" + rel
}

func (s *ArchiveStage) Execute(ctx context.Context, in Input) (int64, error) {
	const op = "ArchiveStage.Execute"

	conn, err := s.resolver.ResolveStorageConnection(ctx, in.StorageRef)
	if err != nil {
		return 0, exception.NewSheetError("pipeline", fmt.Sprintf("%s: failed to resolve storage '%s'", op, in.StorageRef), err, false, true)
	}

	rc, err := conn.Download(ctx, "", in.ObjectName)
	if err != nil {
		return 0, exception.NewSheetError("pipeline", fmt.Sprintf("%s: failed to read '%s'", op, in.ObjectName), err, false, false)
	}
	target := s.ArchiveName(in.ObjectName, in.BatchID)
	uploadErr := conn.Upload(ctx, "", target, rc, "text/csv")
	rc.Close()
	if uploadErr != nil {
		return 0, exception.NewSheetError("pipeline", fmt.Sprintf("%s: failed to write '%s'", op, target), uploadErr, false, true)
	}

	if err := conn.DeleteObject(ctx, "", in.ObjectName); err != nil {
		return 0, exception.NewSheetError("pipeline", fmt.Sprintf("%s: archived to '%s' but failed to delete '%s'", op, target, in.ObjectName), err, false, true)
	}
	logger.Infof("%s: archived '%s' to '%s'.", op, in.ObjectName, target)
	return 1, nil
}

var _ Stage = (*ArchiveStage)(nil)
