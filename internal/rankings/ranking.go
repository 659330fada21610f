package rankings

import (
	"slices"
	"sort"
	"sync"
)

// Result is one ranked resource.
type Result struct {
	URI   string  `json:"uri" yaml:"uri"`
	Score float64 `json:"score" yaml:"score"`
}

// ranking is the top-K list of a single activity.
type ranking struct {
	// emitMu keeps notifications in the order updates were accepted.
	emitMu sync.Mutex

	mu        sync.Mutex
	results   []Result
	threshold float64
}

// insert places (uri, score) into the list, keeping it sorted by
// descending score with at most limit entries. An existing entry for uri
// is replaced. Among equal scores the newest entry goes first.
// Returns false when the score does not beat the threshold. r.mu must be held.
func (r *ranking) insert(uri string, score float64, limit int) bool {
	if score <= r.threshold {
		return false
	}

	r.results = slices.DeleteFunc(r.results, func(res Result) bool {
		return res.URI == uri
	})

	i := sort.Search(len(r.results), func(i int) bool {
		return r.results[i].Score <= score
	})
	r.results = slices.Insert(r.results, i, Result{URI: uri, Score: score})

	if len(r.results) > limit {
		r.results = r.results[:limit]
	}

	if len(r.results) >= limit {
		r.threshold = r.results[len(r.results)-1].Score
	} else {
		r.threshold = 0
	}
	return true
}

// uris returns the ranked uris. r.mu must be held.
func (r *ranking) uris() []string {
	out := make([]string, len(r.results))
	for i, res := range r.results {
		out[i] = res.URI
	}
	return out
}
