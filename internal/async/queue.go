// Package async runs file processing off the ingest path on a bounded
// worker queue.
package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is the smallest useful unit of queued work.
type Job struct {
	FileID      uuid.UUID
	Force       bool // enqueue even if the file was deduplicated
	SubmittedAt time.Time
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
