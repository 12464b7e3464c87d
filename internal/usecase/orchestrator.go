package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"telegram-media-courier/internal/domain"
	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/adapter"
	"telegram-media-courier/internal/domain/ports/repository"
	"telegram-media-courier/internal/infra/gateway"
	"telegram-media-courier/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ JobCanceller = (*Orchestrator)(nil)

// Orchestrator drives one submission from link to delivered files: expand
// into items, fetch each through the retrieval gateway into staging, deliver
// in sequence order through the delivery gateway, and keep the persisted job
// aggregate in step via the status fold.
//
// Item failures are absorbed into item state and never abort the job
// (partial-failure isolation). The orchestrator never retries an item; the
// retry budget lives inside the gateways.
type Orchestrator struct {
	jobs      repository.JobRepository
	items     repository.MediaItemRepository
	sessions  SessionUseCase
	retrieval *gateway.RetrievalGateway
	delivery  *gateway.DeliveryGateway
	staging   adapter.StagingStore
	tm        repository.TransactionManager
	// max concurrently fetching items per job; delivery order stays by
	// sequence index regardless.
	maxInFlight int
	log         *zerolog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
	folds   map[string]*sync.Mutex
}

func NewOrchestrator(
	jobs repository.JobRepository,
	items repository.MediaItemRepository,
	sessions SessionUseCase,
	retrieval *gateway.RetrievalGateway,
	delivery *gateway.DeliveryGateway,
	staging adapter.StagingStore,
	tm repository.TransactionManager,
	maxInFlight int,
	logger *zerolog.Logger,
) *Orchestrator {
	if maxInFlight <= 0 {
		maxInFlight = 2
	}
	orcLog := logger.With().Str("component", "Orchestrator").Logger()
	return &Orchestrator{
		jobs:        jobs,
		items:       items,
		sessions:    sessions,
		retrieval:   retrieval,
		delivery:    delivery,
		staging:     staging,
		tm:          tm,
		maxInFlight: maxInFlight,
		log:         &orcLog,
		running:     make(map[string]context.CancelFunc),
		folds:       make(map[string]*sync.Mutex),
	}
}

// CancelRunning aborts in-flight processing for a job. In-flight gateway
// calls finish; no new ones start.
func (o *Orchestrator) CancelRunning(jobID string) {
	o.mu.Lock()
	cancel := o.running[jobID]
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (o *Orchestrator) register(jobID string, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running[jobID] = cancel
	if o.folds[jobID] == nil {
		o.folds[jobID] = &sync.Mutex{}
	}
}

func (o *Orchestrator) unregister(jobID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, jobID)
	delete(o.folds, jobID)
}

func (o *Orchestrator) foldLock(jobID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l := o.folds[jobID]
	if l == nil {
		l = &sync.Mutex{}
		o.folds[jobID] = l
	}
	return l
}

// Run processes one claimed job to its terminal state and returns the final
// job row. deliverTo is the destination chat for the owner.
func (o *Orchestrator) Run(ctx context.Context, job *model.Job, deliverTo int64) (*model.Job, error) {
	ctx, cancel := context.WithCancel(ctx)
	o.register(job.ID, cancel)
	defer o.unregister(job.ID)
	defer cancel()

	log := o.log.With().Str("job_id", job.ID).Logger()
	log.Info().Str("source_url", job.SourceURL).Msg("processing job")

	// The claimed copy may already be stale: a cancel can land between the
	// processor's claim and this point, before CancelRunning has anything to
	// hit. Re-read the persisted row and honor a terminal status as-is.
	stored, err := o.jobs.FindByID(ctx, nil, job.ID)
	if err != nil {
		return nil, fmt.Errorf("reload job: %w", err)
	}
	if stored.Status.IsTerminal() {
		log.Info().Str("status", string(stored.Status)).Msg("job already terminal, nothing to run")
		return stored, nil
	}
	job = stored

	// Session selection happens before any gateway traffic so a missing
	// required session fails the job with zero external calls.
	sess, err := o.sessions.Select(ctx, job.OwnerID)
	if errors.Is(err, domain.ErrNoActiveSession) {
		sess = nil
		if o.retrieval.RequiresSession(job.SourceURL) {
			return o.failJob(ctx, job, "no active session: this content requires authentication, upload credentials first")
		}
	} else if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}

	media, fail := o.retrieval.Resolve(ctx, job.SourceURL, sess)
	if fail != nil {
		return o.failJob(ctx, job, fail.Message())
	}
	if len(media) == 0 {
		return o.failJob(ctx, job, "no content found: the post may be private or deleted")
	}

	items := make([]*model.MediaItem, len(media))
	for i, m := range media {
		it, err := model.NewMediaItem(job.ID, i, m.URL, m.Filename)
		if err != nil {
			return nil, err
		}
		if err := o.items.Save(ctx, nil, it); err != nil {
			return nil, fmt.Errorf("save item: %w", err)
		}
		items[i] = it
	}
	job.TotalItems = len(items)
	ok, err := o.jobs.SaveIfActive(ctx, nil, job)
	if err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	if !ok {
		// A cancel landed while the source was being resolved; settle the
		// just-created items and return the sticky row.
		return o.abort(job, items, nil, &log)
	}

	// Fetch phase: bounded parallelism. Each closed channel publishes the
	// item's writes to the delivery loop.
	sem := make(chan struct{}, o.maxInFlight)
	fetchDone := make([]chan struct{}, len(items))
	for i := range items {
		fetchDone[i] = make(chan struct{})
	}
	for i := range items {
		go func(i int) {
			defer close(fetchDone[i])
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			if ctx.Err() != nil {
				return
			}
			o.fetchOne(ctx, items[i], sess, &log)
		}(i)
	}

	// Delivery phase: strictly by sequence index.
	for i := range items {
		select {
		case <-ctx.Done():
			return o.abort(job, items, fetchDone, &log)
		case <-fetchDone[i]:
		}
		it := items[i]
		if it.FetchStatus != model.ItemFetchFetched {
			continue // fetch failed or never started; delivery stays skipped
		}
		o.deliverOne(ctx, it, deliverTo, &log)
		if ctx.Err() != nil {
			return o.abort(job, items, fetchDone, &log)
		}
	}

	final, err := o.foldAndSave(context.Background(), job.ID)
	if err != nil {
		return nil, err
	}
	if final.Status.IsTerminal() {
		metrics.IncJobFinished(string(final.Status))
		metrics.ObserveJobDuration(final.Duration().Seconds())
	}
	log.Info().Str("status", string(final.Status)).Dur("duration", final.Duration()).Msg("job finished")
	return final, nil
}

func (o *Orchestrator) fetchOne(ctx context.Context, it *model.MediaItem, sess *model.Session, log *zerolog.Logger) {
	it.MarkFetching()
	o.saveAndFold(ctx, it)

	key, size, fail := o.retrieval.FetchToStaging(ctx, it.JobID, adapter.RemoteMedia{
		URL:      it.RemoteURL,
		Filename: it.Filename,
	}, sess)
	if fail != nil {
		it.MarkFetchFailed(fail.Message())
		metrics.IncItemProcessed("fetch", "failed")
		log.Warn().Int("seq", it.Seq).Str("cause", fail.Message()).Msg("item fetch failed")
	} else {
		it.MarkFetched(key, size)
		metrics.IncItemProcessed("fetch", "ok")
	}
	o.saveAndFold(ctx, it)
}

func (o *Orchestrator) deliverOne(ctx context.Context, it *model.MediaItem, deliverTo int64, log *zerolog.Logger) {
	it.MarkSending()
	o.saveAndFold(ctx, it)

	stagingKey := it.StagingKey
	_, fail := o.delivery.Deliver(ctx, deliverTo, it)
	if fail != nil {
		it.MarkSendFailed(fail.Message())
		metrics.IncItemProcessed("deliver", "failed")
		log.Warn().Int("seq", it.Seq).Str("cause", fail.Message()).Msg("item delivery failed")
	} else {
		it.MarkSent()
		metrics.IncItemProcessed("deliver", "ok")
	}
	// Release exactly once per item, success or failure: staging resources
	// must never leak on any exit path.
	if err := o.staging.Release(ctx, stagingKey); err != nil {
		log.Warn().Err(err).Int("seq", it.Seq).Msg("staging release failed")
	}
	o.saveAndFold(ctx, it)
}

// saveAndFold persists the item and recomputes the job aggregate from all
// item states inside one transaction, serialized per job. Writes survive a
// cancelled run context; losing the fold would strand the job row.
func (o *Orchestrator) saveAndFold(ctx context.Context, it *model.MediaItem) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	lock := o.foldLock(it.JobID)
	lock.Lock()
	defer lock.Unlock()

	err := o.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := o.items.Save(ctx, tx, it); err != nil {
			return err
		}
		job, err := o.jobs.FindByID(ctx, tx, it.JobID)
		if err != nil {
			return err
		}
		if job.Status.IsTerminal() {
			return nil // cancellation is sticky; never fold over it
		}
		all, err := o.items.ListByJob(ctx, tx, it.JobID)
		if err != nil {
			return err
		}
		folded := model.FoldStatus(all)
		if folded == job.Status {
			return nil
		}
		job.Status = folded
		if folded.IsTerminal() {
			now := time.Now()
			job.CompletedAt = &now
		}
		// The guard re-checks status at write time; a cancel committed
		// between the read above and here simply makes this fold a no-op.
		_, err = o.jobs.SaveIfActive(ctx, tx, job)
		return err
	})
	if err != nil {
		o.log.Error().Err(err).Str("job_id", it.JobID).Msg("item fold persistence failed")
	}
}

// foldAndSave recomputes and persists the aggregate from stored items.
func (o *Orchestrator) foldAndSave(ctx context.Context, jobID string) (*model.Job, error) {
	lock := o.foldLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	var job *model.Job
	err := o.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		j, err := o.jobs.FindByID(ctx, tx, jobID)
		if err != nil {
			return err
		}
		job = j
		if j.Status.IsTerminal() {
			return nil
		}
		all, err := o.items.ListByJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		j.Status = model.FoldStatus(all)
		if j.Status.IsTerminal() && j.CompletedAt == nil {
			now := time.Now()
			j.CompletedAt = &now
		}
		ok, err := o.jobs.SaveIfActive(ctx, tx, j)
		if err != nil {
			return err
		}
		if !ok {
			// A terminal status beat the fold to the row; return it instead.
			cur, err := o.jobs.FindByID(ctx, tx, jobID)
			if err != nil {
				return err
			}
			job = cur
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// failJob resolves a job-level fatal condition: all remaining un-started
// items (none exist yet at this point) go straight to terminal and the job
// fails without further gateway calls.
func (o *Orchestrator) failJob(ctx context.Context, job *model.Job, cause string) (*model.Job, error) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	job.Status = model.JobStatusFailed
	job.Error = cause
	now := time.Now()
	job.CompletedAt = &now
	ok, err := o.jobs.SaveIfActive(ctx, nil, job)
	if err != nil {
		return nil, fmt.Errorf("save failed job: %w", err)
	}
	if !ok {
		return o.jobs.FindByID(ctx, nil, job.ID)
	}
	metrics.IncJobFinished(string(job.Status))
	o.log.Warn().Str("job_id", job.ID).Str("cause", cause).Msg("job failed")
	return job, nil
}

// abort handles a cancelled run: release staged content, push every
// non-terminal item to cancelled, and settle the job row. If the submitter
// cancelled, the sticky cancelled status is already persisted; otherwise
// (shutdown) the job resolves to interrupted.
func (o *Orchestrator) abort(job *model.Job, items []*model.MediaItem, fetchDone []chan struct{}, log *zerolog.Logger) (*model.Job, error) {
	// Fetch workers observe the cancelled context and exit; wait them out so
	// no goroutine still writes item state underneath us.
	for _, done := range fetchDone {
		<-done
	}
	ctx := context.Background()
	for _, it := range items {
		if it.StagingKey != "" && it.DeliveryStatus != model.ItemDeliverySent {
			if err := o.staging.Release(ctx, it.StagingKey); err != nil {
				log.Warn().Err(err).Int("seq", it.Seq).Msg("staging release failed during abort")
			}
			it.StagingKey = ""
		}
		if !it.IsTerminal() {
			it.MarkCancelled()
		}
		if err := o.items.Save(ctx, nil, it); err != nil {
			log.Error().Err(err).Int("seq", it.Seq).Msg("item save failed during abort")
		}
	}

	final, err := o.jobs.FindByID(ctx, nil, job.ID)
	if err != nil {
		return nil, err
	}
	if !final.Status.IsTerminal() {
		final.Status = model.JobStatusInterrupted
		final.Error = "processing interrupted"
		now := time.Now()
		final.CompletedAt = &now
		ok, err := o.jobs.SaveIfActive(ctx, nil, final)
		if err != nil {
			return nil, err
		}
		if !ok {
			if final, err = o.jobs.FindByID(ctx, nil, job.ID); err != nil {
				return nil, err
			}
		}
	}
	metrics.IncJobFinished(string(final.Status))
	log.Info().Str("status", string(final.Status)).Msg("job aborted")
	return final, nil
}
