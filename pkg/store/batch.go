package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/agentstation/goldrec/pkg/errors"
	"github.com/agentstation/goldrec/pkg/logging"
	"github.com/agentstation/goldrec/pkg/merge"
	"github.com/agentstation/goldrec/pkg/record"
)

// RecordError scopes a batch failure to one submitted record. Index is
// the record's position in the submitted slice; Key is empty when the
// failure happened before a key could be derived.
type RecordError struct {
	Index int
	Key   record.Key
	Err   error
}

// BatchResult reports the outcome of an AddBatch call. A batch is
// best-effort: failed records are reported here while the rest of the
// batch proceeds.
type BatchResult struct {
	BatchID  string
	Inserted int
	Merged   int
	Degraded []record.Key
	Errors   []RecordError
}

// OK reports whether every record in the batch was applied.
func (r *BatchResult) OK() bool {
	return len(r.Errors) == 0
}

// Err joins the per-record errors into one, or returns nil if the
// batch fully succeeded.
func (r *BatchResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Errors))
	for _, re := range r.Errors {
		errs = append(errs, re.Err)
	}
	return errors.Join(errs...)
}

// Add folds a single record into the store and returns a copy of the
// resulting golden record. If the key is new the record is inserted
// unchanged; otherwise the configured strategy reconciles it with the
// existing entry.
func (s *Store) Add(ctx context.Context, rec *record.Record) (*record.Record, error) {
	key, err := s.extractKey(rec)
	if err != nil {
		return nil, err
	}

	if _, _, err := s.processOne(ctx, ctx, key, rec); err != nil {
		return nil, err
	}

	stored, _ := s.Get(key)
	return stored, nil
}

// batchItem tracks a submitted record through grouping and dispatch.
type batchItem struct {
	index int
	rec   *record.Record
}

// AddBatch folds a slice of records into the store. Records are
// grouped by derived key, preserving submission order within each key.
// With a local merger every group is applied synchronously in input
// order. With an external merger, groups run concurrently on the
// worker pool while records for the same key are still chained
// sequentially; canceling ctx stops records that have not yet entered
// the pool, but synthesis calls already in flight run to completion so
// no partially merged state is abandoned.
func (s *Store) AddBatch(ctx context.Context, recs []*record.Record) *BatchResult {
	res := &BatchResult{BatchID: uuid.NewString()}
	ctx = logging.WithBatch(ctx, res.BatchID)
	log := logging.Ctx(ctx)
	log.Debug().Int("records", len(recs)).Str("strategy", s.merger.Name()).Msg("batch started")

	var order []record.Key
	groups := make(map[record.Key][]batchItem)
	for i, rec := range recs {
		key, err := s.extractKey(rec)
		if err != nil {
			res.Errors = append(res.Errors, RecordError{Index: i, Err: err})
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], batchItem{index: i, rec: rec})
	}

	if s.merger.External() {
		s.runBatchPooled(ctx, order, groups, res)
	} else {
		for _, key := range order {
			for _, it := range groups[key] {
				inserted, degraded, err := s.processOne(ctx, ctx, key, it.rec)
				res.observe(key, it.index, inserted, degraded, err)
			}
		}
	}

	sort.Slice(res.Errors, func(i, j int) bool { return res.Errors[i].Index < res.Errors[j].Index })
	sort.Slice(res.Degraded, func(i, j int) bool { return res.Degraded[i] < res.Degraded[j] })

	log.Debug().
		Int("inserted", res.Inserted).
		Int("merged", res.Merged).
		Int("degraded", len(res.Degraded)).
		Int("errors", len(res.Errors)).
		Msg("batch finished")
	return res
}

// runBatchPooled fans per-key chains out across goroutines. Admission
// to the synthesis client is bounded by the store semaphore, so at
// most MaxWorkers external calls are in flight regardless of how many
// chains are running.
func (s *Store) runBatchPooled(ctx context.Context, order []record.Key, groups map[record.Key][]batchItem, res *BatchResult) {
	// Detached from batch cancellation: an in-flight synthesis call
	// finishes and its result is applied even if ctx is canceled.
	mergeCtx := context.WithoutCancel(ctx)

	results := make(chan *BatchResult, len(order))
	var wg sync.WaitGroup
	for _, key := range order {
		wg.Add(1)
		go func(key record.Key, items []batchItem) {
			defer wg.Done()
			part := &BatchResult{}
			for _, it := range items {
				inserted, degraded, err := s.processOne(ctx, mergeCtx, key, it.rec)
				part.observe(key, it.index, inserted, degraded, err)
			}
			results <- part
		}(key, groups[key])
	}
	wg.Wait()
	close(results)

	for part := range results {
		res.Inserted += part.Inserted
		res.Merged += part.Merged
		res.Degraded = append(res.Degraded, part.Degraded...)
		res.Errors = append(res.Errors, part.Errors...)
	}
}

func (r *BatchResult) observe(key record.Key, index int, inserted, degraded bool, err error) {
	switch {
	case err != nil:
		r.Errors = append(r.Errors, RecordError{Index: index, Key: key, Err: err})
	case inserted:
		r.Inserted++
	default:
		r.Merged++
		if degraded {
			r.Degraded = append(r.Degraded, key)
		}
	}
}

// extractKey derives and sanity-checks the primary key for rec.
func (s *Store) extractKey(rec *record.Record) (record.Key, error) {
	if rec == nil {
		return "", errors.NewKeyExtractionError("record is nil", nil)
	}
	key, err := s.keyFunc(rec)
	if err != nil {
		var ke *errors.KeyExtractionError
		if errors.As(err, &ke) {
			return "", err
		}
		return "", errors.NewKeyExtractionError("key function failed", err)
	}
	if key == "" {
		return "", errors.NewKeyExtractionError("key function returned an empty key", nil)
	}
	return key, nil
}

// processOne folds one record into the store under the key's critical
// section. dispatchCtx gates admission to the rate limiter and worker
// pool; mergeCtx governs the synthesis call itself. Reports whether
// the record was inserted as a new entry and whether an LLM merge
// degraded to the field-merge fallback.
func (s *Store) processOne(dispatchCtx, mergeCtx context.Context, key record.Key, rec *record.Record) (inserted, degraded bool, err error) {
	kl := s.keyLock(key)
	kl.Lock()
	defer kl.Unlock()

	existing := s.existing(key)
	if existing == nil {
		stored := rec.Clone()
		s.apply(key, nil, stored)
		s.notifyAdd(key, stored)
		return true, false, nil
	}

	mergeCtx = logging.WithStrategy(logging.WithKey(mergeCtx, string(key)), s.merger.Name())
	outcome, err := s.mergeRecords(dispatchCtx, mergeCtx, existing, rec)
	if err != nil {
		return false, false, errors.NewMergeError(string(key), s.merger.Name(), err)
	}

	s.apply(key, existing, outcome.Record)
	s.notifyUpdate(key, existing, outcome.Record)
	return false, outcome.Degraded, nil
}

// mergeRecords runs the configured merger. External mergers first wait
// on the optional rate limiter and then take a worker-pool slot; both
// waits abort if dispatchCtx is canceled before the call starts.
func (s *Store) mergeRecords(dispatchCtx, mergeCtx context.Context, existing, incoming *record.Record) (*merge.Outcome, error) {
	if s.merger.External() {
		if s.limiter != nil {
			if err := s.limiter.Wait(dispatchCtx); err != nil {
				if dispatchCtx.Err() != nil {
					return nil, errors.Wrap(errors.ErrCanceled, "rate limiter wait aborted")
				}
				// Wait also fails when the limiter itself cannot admit
				// the request, e.g. a burst of zero.
				return nil, errors.Wrap(err, "rate limiter rejected the merge")
			}
		}
		if err := s.sem.Acquire(dispatchCtx, 1); err != nil {
			return nil, errors.Wrap(errors.ErrCanceled, "worker pool admission aborted")
		}
		defer s.sem.Release(1)
	}
	return s.merger.Merge(mergeCtx, existing, incoming)
}
