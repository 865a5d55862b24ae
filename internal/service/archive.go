package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"leadharvest/internal/logger"
	"leadharvest/internal/storage"
)

// Archiver writes the raw dataset payload of finished run phases to object
// storage, keyed runs/{jobID}/{phase}.json. A nil store disables it.
type Archiver struct {
	store  storage.ObjectStorage
	logger *logger.Logger
}

// NewArchiver creates a new Archiver. Pass a nil store to disable archiving.
func NewArchiver(store storage.ObjectStorage, log *logger.Logger) *Archiver {
	return &Archiver{
		store:  store,
		logger: log,
	}
}

// Enabled reports whether the archiver has a storage backend.
func (a *Archiver) Enabled() bool {
	return a != nil && a.store != nil
}

// log returns a logger from context if available, otherwise returns the service logger
func (a *Archiver) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return a.logger
}

// runKey builds the object key of one archived phase.
func runKey(jobID, phase string) string {
	return fmt.Sprintf("runs/%s/%s.json", jobID, phase)
}

// ArchiveRun uploads a phase's raw dataset records as one JSON array. Upload
// failures are logged and swallowed: the archive never fails a job.
func (a *Archiver) ArchiveRun(ctx context.Context, jobID, phase string, records []json.RawMessage) {
	if !a.Enabled() || len(records) == 0 {
		return
	}

	payload, err := json.Marshal(records)
	if err != nil {
		a.log(ctx).WithError(err).Warn("failed to encode run archive")
		return
	}

	key := runKey(jobID, phase)
	if err := a.store.Upload(ctx, key, bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		a.log(ctx).WithError(err).WithField("key", key).Warn("failed to upload run archive")
		return
	}
	a.log(ctx).WithFields(logger.Fields{
		"key":             key,
		logger.FieldCount: len(records),
	}).Debug("Archived run payload")
}
