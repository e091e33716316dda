package handler

import (
	"github.com/use-agent/rcvscrap/jobs"
	"github.com/use-agent/rcvscrap/models"
)

// Jobs is the run slot the handlers drive; *jobs.Runner implements it.
type Jobs interface {
	Start(req jobs.Request) (jobs.Snapshot, error)
	Status() jobs.Snapshot
	Result() (*models.ExtractionResult, bool)
}
