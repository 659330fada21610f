package service

import (
	"context"
	"time"

	"cdr.dev/slog/v3"

	"github.com/focusrank/focusrank/internal/models"
	"github.com/focusrank/focusrank/internal/rankings"
)

// lookupTimeout bounds one score lookup on the flush worker.
const lookupTimeout = 5 * time.Second

// ScoreFeeder forwards the stored scores of every resource touched by a
// batch into the rankings cache. Computing the scores is somebody else's
// job; the feeder only reads what is stored.
type ScoreFeeder struct {
	logger slog.Logger
	store  ScoreStore
	cache  *rankings.Cache
}

func NewScoreFeeder(logger slog.Logger, store ScoreStore, cache *rankings.Cache) *ScoreFeeder {
	return &ScoreFeeder{
		logger: logger.Named("feeder"),
		store:  store,
		cache:  cache,
	}
}

// HandleBatch is a dispatcher.Subscriber.
func (f *ScoreFeeder) HandleBatch(batch []models.Event) {
	if len(batch) == 0 {
		return
	}

	activity := f.cache.CurrentActivity()

	var uris []string
	apps := make(map[string]string)
	for _, e := range batch {
		if _, ok := apps[e.URI]; !ok {
			uris = append(uris, e.URI)
		}
		apps[e.URI] = e.Application
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	scores, err := f.store.ScoresFor(ctx, activity, uris)
	if err != nil {
		f.logger.Warn(ctx, "failed to look up scores",
			slog.F("activity", activity),
			slog.F("resources", len(uris)),
			slog.Error(err),
		)
		return
	}

	for _, uri := range uris {
		if score, ok := scores[uri]; ok {
			f.cache.Update(activity, apps[uri], uri, score)
		}
	}
}
