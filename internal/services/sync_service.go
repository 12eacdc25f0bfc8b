package services

import (
	"context"
	"errors"
	"time"

	"github.com/t766/control/internal/clock"
	"github.com/t766/control/internal/events"
	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/models"
	"github.com/t766/control/internal/storage"
)

// SyncService records node submissions
type SyncService struct {
	logger  *logging.Logger
	store   storage.StatusStore
	emitter *events.Emitter
	clock   clock.Clock
	loc     *time.Location
}

// NewSyncService creates a new SyncService. Receipt timestamps are rendered in loc.
func NewSyncService(
	logger *logging.Logger,
	store storage.StatusStore,
	emitter *events.Emitter,
	clk clock.Clock,
	loc *time.Location,
) *SyncService {
	if emitter == nil {
		emitter = events.NewEmitter(nil, logger)
	}
	if clk == nil {
		clk = clock.Real()
	}
	if loc == nil {
		loc = time.Local
	}
	return &SyncService{
		logger:  logger,
		store:   store,
		emitter: emitter,
		clock:   clk,
		loc:     loc,
	}
}

// RecordSync validates a submission, stamps the receipt time and stores it.
// Returns the store key.
func (s *SyncService) RecordSync(ctx context.Context, req *models.SubmitRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", wrapServiceError(CodeInvalidRequest, err.Error(), err)
	}

	status := req.ToStatus(models.FormatTimestamp(s.clock.Now().In(s.loc)))

	key, err := s.store.Insert(&status)
	if err != nil {
		if errors.Is(err, storage.ErrRecordTooLarge) {
			s.logger.Warn("Rejected oversized sync report",
				"hostname", status.Hostname,
				"error", err)
			return "", wrapServiceError(CodePayloadTooLarge, err.Error(), err)
		}
		s.logger.Error("Failed to store sync report",
			"hostname", status.Hostname,
			"error", err)
		return "", wrapServiceError(CodeStorageError, "failed to store sync report", err)
	}

	s.logger.Info("Recorded sync report",
		"key", key,
		"status", string(status.Status),
		"exit_code", status.ExitCode,
		"checkins", len(status.CheckinLogs))

	s.emitter.Emit(ctx, &status, key)
	return key, nil
}
