package journal

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/alexanderramin/aicanvas/internal/generator"
)

const recordTimeout = 2 * time.Second

// Recorder writes generator events to a Store. Write failures are logged,
// never returned to the generation.
type Recorder struct {
	store *Store
	log   *zap.Logger
}

var _ generator.Observer = (*Recorder)(nil)

// NewRecorder returns an observer backed by store.
func NewRecorder(store *Store, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{store: store, log: log.Named("journal")}
}

func (r *Recorder) OnGenerate(e generator.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := r.store.Record(ctx, FromEvent(e)); err != nil {
		r.log.Warn("journal write failed", zap.String("generation_id", e.ID), zap.Error(err))
	}
}
