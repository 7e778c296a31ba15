// Package orchestrator runs embedding jobs: it validates a placement,
// embeds with the primary strategy, falls back once when the source cannot
// be parsed, and commits the artifact to the document record.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/semaphore"

	"github.com/Xangel0s/docqr-Flex-sub000/errkind"
	"github.com/Xangel0s/docqr-Flex-sub000/inspect"
	"github.com/Xangel0s/docqr-Flex-sub000/lock"
	"github.com/Xangel0s/docqr-Flex-sub000/placement"
	"github.com/Xangel0s/docqr-Flex-sub000/stamp"
	"github.com/Xangel0s/docqr-Flex-sub000/storage"
	"github.com/Xangel0s/docqr-Flex-sub000/store"
)

// DefaultArtifactDir is where artifacts are written inside storage.
const DefaultArtifactDir = "artifacts"

// Request asks for an overlay to be embedded into a stored document.
type Request struct {
	DocumentID string
	Overlay    []byte
	Placement  placement.Canonical
	// Replacement is an optional pre-rendered page 1, used when the
	// original cannot be parsed.
	Replacement *stamp.Replacement
}

// Job is the orchestrator's private view of one request.
type Job struct {
	ID         string
	DocumentID string
	SourceRef  string
	Placement  placement.Canonical
	State      State
	Attempts   int
	ResultRef  string
	CreatedAt  time.Time
}

// EmbedResult is the outcome reported to callers.
type EmbedResult struct {
	Success     bool                 `json:"success"`
	ArtifactRef string               `json:"artifact_ref,omitempty"`
	Placement   *placement.Canonical `json:"placement,omitempty"`
	ErrorKind   errkind.Kind         `json:"error_kind,omitempty"`
	Message     string               `json:"message"`
	Hint        string               `json:"hint,omitempty"`
	JobID       string               `json:"job_id"`
	Strategy    stamp.Strategy       `json:"strategy,omitempty"`
}

// Deps are the collaborators of an Orchestrator. Storage, Store and Locker
// are required.
type Deps struct {
	Storage   storage.Storage
	Store     store.Store
	Locker    lock.Locker
	Inspector *inspect.Inspector
	Primary   stamp.Embedder
	Fallback  stamp.Embedder
}

// Options tune an Orchestrator.
type Options struct {
	// Workers bounds concurrent embeds. Defaults to 2.
	Workers int
	// JobTimeout bounds a single job, zero means no limit.
	JobTimeout  time.Duration
	ArtifactDir string
	Validator   placement.Validator
	Observer    Observer
	Logger      *log.Logger
	Clock       clockwork.Clock
}

// Orchestrator runs embedding jobs. It is safe for concurrent use.
type Orchestrator struct {
	storage   storage.Storage
	store     store.Store
	locker    lock.Locker
	inspector *inspect.Inspector
	primary   stamp.Embedder
	fallback  stamp.Embedder

	sem         *semaphore.Weighted
	jobTimeout  time.Duration
	artifactDir string
	validator   placement.Validator
	observer    Observer
	logger      *log.Logger
	clock       clockwork.Clock
}

// New creates an Orchestrator. Missing strategies are built from the
// inspector with default stamp options.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Storage == nil:
		return nil, errors.New("orchestrator: storage is required")
	case deps.Store == nil:
		return nil, errors.New("orchestrator: record store is required")
	case deps.Locker == nil:
		return nil, errors.New("orchestrator: locker is required")
	}

	o := &Orchestrator{
		storage:     deps.Storage,
		store:       deps.Store,
		locker:      deps.Locker,
		inspector:   deps.Inspector,
		primary:     deps.Primary,
		fallback:    deps.Fallback,
		jobTimeout:  opts.JobTimeout,
		artifactDir: opts.ArtifactDir,
		validator:   opts.Validator,
		observer:    opts.Observer,
		logger:      opts.Logger,
		clock:       opts.Clock,
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	if o.inspector == nil {
		o.inspector = inspect.New(inspect.WithLogger(o.logger))
	}
	if o.validator == (placement.Validator{}) {
		o.validator = placement.DefaultValidator()
	}
	stampOpts := stamp.DefaultOptions()
	stampOpts.Validator = o.validator
	stampOpts.Logger = o.logger
	if o.primary == nil {
		o.primary = stamp.NewPrimary(o.inspector, stampOpts)
	}
	if o.fallback == nil {
		o.fallback = stamp.NewFallback(o.inspector, nil, stampOpts)
	}
	if o.observer == nil {
		o.observer = NoopObserver{}
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}
	if o.artifactDir == "" {
		o.artifactDir = DefaultArtifactDir
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 2
	}
	o.sem = semaphore.NewWeighted(int64(workers))
	return o, nil
}

// RequestEmbed embeds overlay into document id at p.
func (o *Orchestrator) RequestEmbed(ctx context.Context, id string, overlay []byte, p placement.Canonical) EmbedResult {
	return o.Submit(ctx, Request{DocumentID: id, Overlay: overlay, Placement: p})
}

// Submit runs req to a terminal state and reports the outcome. A second
// request for a document with a job in flight is rejected as busy. If ctx
// ends first the job still runs to completion; only the wait is abandoned.
func (o *Orchestrator) Submit(ctx context.Context, req Request) EmbedResult {
	job := &Job{
		ID:         uuid.NewString(),
		DocumentID: req.DocumentID,
		Placement:  req.Placement,
		State:      Requested,
		CreatedAt:  o.clock.Now(),
	}
	logger := o.logger.With("job", job.ID, "document", job.DocumentID)

	if req.DocumentID == "" {
		return o.result(job, errkind.New(errkind.NotFound, "empty document id"))
	}
	unlock, ok, err := o.locker.TryLock(ctx, req.DocumentID)
	if err != nil {
		return o.result(job, errkind.Wrap(errkind.Internal, "acquire document lock", err))
	}
	if !ok {
		logger.Info("rejected, document busy")
		return o.result(job, errkind.New(errkind.Busy, errkind.MessageFor(errkind.Busy)))
	}

	done := make(chan EmbedResult, 1)
	go func() {
		defer unlock()
		done <- o.run(context.WithoutCancel(ctx), job, req, logger)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		logger.Warn("caller stopped waiting, job continues", "err", ctx.Err())
		return o.result(job, errkind.Wrap(errkind.Internal, "stopped waiting for the job", ctx.Err()))
	}
}

func (o *Orchestrator) transition(ctx context.Context, job *Job, to State, cause error, logger *log.Logger) {
	from := job.State
	job.State = to
	if cause != nil {
		logger.Info("job transition", "from", from, "to", to, "kind", errkind.Of(cause), "err", cause)
	} else {
		logger.Debug("job transition", "from", from, "to", to)
	}
	o.observer.OnTransition(ctx, Transition{
		JobID:      job.ID,
		DocumentID: job.DocumentID,
		From:       from,
		To:         to,
		Err:        cause,
		At:         o.clock.Now(),
	})
}

func (o *Orchestrator) run(ctx context.Context, job *Job, req Request, logger *log.Logger) EmbedResult {
	if o.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.jobTimeout)
		defer cancel()
	}

	fail := func(err error) EmbedResult {
		o.transition(ctx, job, Failed, err, logger)
		return o.result(job, err)
	}

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return fail(errkind.Wrap(errkind.Internal, "wait for an embedding worker", err))
	}
	defer o.sem.Release(1)

	rec, err := o.store.Get(ctx, job.DocumentID)
	if err != nil {
		return fail(err)
	}
	if rec.Deleted() {
		if err := o.store.Restore(ctx, job.DocumentID); err != nil {
			return fail(err)
		}
		logger.Info("restored soft-deleted document")
	}

	// Always from the original upload, never from a previous artifact.
	job.SourceRef = rec.SourcePath
	source, err := o.readOriginal(ctx, rec.SourcePath)
	if err != nil {
		return fail(err)
	}

	o.transition(ctx, job, Validating, nil, logger)
	page, err := o.bestKnownPage(ctx, source, req.Replacement, logger)
	if err != nil {
		return fail(err)
	}
	if err := o.validator.Validate(job.Placement, page); err != nil {
		return fail(err)
	}

	if err := o.store.SetStatus(ctx, job.DocumentID, store.StatusEmbedding); err != nil {
		return fail(err)
	}
	// A failed re-embed leaves the previous artifact current.
	settle := func() {
		status := store.StatusFailed
		if rec.ArtifactPath != "" {
			status = store.StatusEmbedded
		}
		if err := o.store.SetStatus(context.WithoutCancel(ctx), job.DocumentID, status); err != nil {
			logger.Warn("failed to reset document status", "err", err)
		}
	}

	sreq := stamp.Request{
		Source:      source,
		Overlay:     req.Overlay,
		Placement:   job.Placement,
		Replacement: req.Replacement,
	}

	o.transition(ctx, job, EmbeddingPrimary, nil, logger)
	job.Attempts++
	art, err := o.primary.Embed(ctx, sreq)
	if err != nil && errkind.Of(err).Retryable() {
		o.transition(ctx, job, EmbeddingFallback, err, logger)
		job.Attempts++
		art, err = o.fallback.Embed(ctx, sreq)
	}
	if err != nil {
		settle()
		return fail(err)
	}

	ref, err := o.commit(ctx, job, art, logger)
	if err != nil {
		settle()
		return fail(err)
	}
	job.ResultRef = ref
	o.transition(ctx, job, Committed, nil, logger)
	logger.Info("embedded", "artifact", ref, "strategy", art.Strategy, "attempts", job.Attempts)

	p := art.Placement
	return EmbedResult{
		Success:     true,
		ArtifactRef: ref,
		Placement:   &p,
		Message:     "embedded",
		JobID:       job.ID,
		Strategy:    art.Strategy,
	}
}

func (o *Orchestrator) readOriginal(ctx context.Context, p string) ([]byte, error) {
	if p == "" {
		return nil, errkind.New(errkind.OriginalLost, "document has no original source")
	}
	data, err := o.storage.Read(ctx, p)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, errkind.Wrap(errkind.OriginalLost, "original lost", err)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// bestKnownPage returns the page the placement is validated against: the
// original's when it can be inspected, else the replacement's, else the
// canonical page. Protected sources fail here.
func (o *Orchestrator) bestKnownPage(ctx context.Context, source []byte, rep *stamp.Replacement, logger *log.Logger) (placement.Page, error) {
	desc, err := o.inspector.Inspect(ctx, source)
	if err == nil {
		return desc.Page(), nil
	}
	if !inspect.IsUnsupportedEncoding(err) {
		return placement.Page{}, err
	}
	logger.Debug("original unreadable, validating against a substitute page", "err", err)

	if rep != nil {
		if len(rep.Image) > 0 {
			if page, err := rep.Page(); err == nil {
				return page, nil
			}
		}
		if len(rep.PDF) > 0 {
			if d, err := o.inspector.Inspect(ctx, rep.PDF); err == nil {
				return d.Page(), nil
			}
		}
	}
	return placement.CanonicalPage, nil
}

// commit writes the artifact under a fresh name, points the record at it,
// then removes the artifact it replaced.
func (o *Orchestrator) commit(ctx context.Context, job *Job, art *stamp.Artifact, logger *log.Logger) (string, error) {
	ref := path.Join(o.artifactDir, job.DocumentID, uuid.NewString()+".pdf")
	if err := o.storage.Write(ctx, ref, art.Data); err != nil {
		return "", err
	}

	prev, err := o.store.Commit(ctx, job.DocumentID, store.Commit{
		ArtifactPath: ref,
		Placement:    art.Placement,
		Digest:       art.Digest,
		Strategy:     string(art.Strategy),
	})
	if err != nil {
		if derr := o.storage.Delete(ctx, ref); derr != nil {
			logger.Warn("failed to remove uncommitted artifact", "artifact", ref, "err", derr)
		}
		return "", fmt.Errorf("commit artifact: %w", err)
	}

	if prev != "" && prev != ref {
		if err := o.storage.Delete(ctx, prev); err != nil {
			logger.Warn("failed to remove replaced artifact", "artifact", prev, "err", err)
		}
	}
	return ref, nil
}

func (o *Orchestrator) result(job *Job, err error) EmbedResult {
	kind := errkind.Of(err)
	msg := errkind.MessageFor(kind)
	var ve *placement.ValidationError
	var oe *stamp.OverlayError
	switch {
	case errors.As(err, &ve):
		msg = ve.Error()
	case errors.As(err, &oe):
		msg = "the overlay image could not be read"
	}
	return EmbedResult{
		ErrorKind: kind,
		Message:   msg,
		Hint:      errkind.HintFor(kind),
		JobID:     job.ID,
	}
}
