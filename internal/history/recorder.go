package history

import (
	"context"
	"fmt"
	"time"

	"github.com/castleryder/dividend-harvest/internal/contracts"
)

// RunSaver stores one result set
type RunSaver interface {
	SaveRun(ctx context.Context, rs *contracts.ResultSet, strategyHash string) error
}

// Recorder saves every published result set, tagged with the strategy hash
type Recorder struct {
	saver        RunSaver
	strategyHash string
	timeout      time.Duration
}

// NewRecorder creates a history sink
func NewRecorder(saver RunSaver, strategyHash string) *Recorder {
	return &Recorder{
		saver:        saver,
		strategyHash: strategyHash,
		timeout:      10 * time.Second,
	}
}

// Name identifies the sink
func (r *Recorder) Name() string { return "history" }

// Publish stores the result set
func (r *Recorder) Publish(ctx context.Context, rs *contracts.ResultSet) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.saver.SaveRun(ctx, rs, r.strategyHash); err != nil {
		return fmt.Errorf("record run %s: %w", rs.RunID, err)
	}
	return nil
}
