package plagiarism

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RishiKendai/cellguard/internal/metrics"
	"github.com/RishiKendai/cellguard/internal/models"
	"github.com/RishiKendai/cellguard/internal/observability"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// defaultFetchConcurrency bounds sibling fragment loads per check
const defaultFetchConcurrency = 8

var errPoolClosed = errors.New("worker pool closed")

// Service compares a document version against the other versions of its checkpoint.
type Service struct {
	cache      *FragmentCache
	relations  RelationRepository
	tokenizer  *Tokenizer
	pool       *WorkerPool
	status     StatusReporter
	fetchLimit int
}

// NewService wires the orchestrator. A nil status reporter discards progress.
func NewService(cache *FragmentCache, relations RelationRepository, tokenizer *Tokenizer, pool *WorkerPool, status StatusReporter) *Service {
	if status == nil {
		status = noopStatus{}
	}
	return &Service{
		cache:      cache,
		relations:  relations,
		tokenizer:  tokenizer,
		pool:       pool,
		status:     status,
		fetchLimit: defaultFetchConcurrency,
	}
}

// SetFetchConcurrency sets how many sibling versions a check loads at once.
// Values below 1 are ignored.
func (s *Service) SetFetchConcurrency(n int) {
	if n > 0 {
		s.fetchLimit = n
	}
}

// Cache exposes the fragment cache for pre-warming.
func (s *Service) Cache() *FragmentCache {
	return s.cache
}

// Tokenizer exposes the tokenizer used for comparisons.
func (s *Service) Tokenizer() *Tokenizer {
	return s.tokenizer
}

// preparedFragment is a target cell tokenized once per check
type preparedFragment struct {
	cellNumber int
	prepared   *Prepared
}

// siblingOutcome is what a ComparisonJob reports back for its slot
type siblingOutcome struct {
	index   int
	matches []models.ComparisonResult
	err     error
}

// ComparisonJob scores every target cell against every cell of one sibling
// version whose fragments are already loaded
type ComparisonJob struct {
	Index      int
	SiblingID  string
	Language   string
	Threshold  float64
	Target     []preparedFragment
	Fragments  []models.CodeFragment
	service    *Service
	requestCtx context.Context
	ResultChan chan<- siblingOutcome
}

// Execute executes the comparison job
func (j *ComparisonJob) Execute(ctx context.Context) error {
	outcome := siblingOutcome{index: j.Index}
	defer func() {
		// ResultChan is buffered for every sibling, so this never blocks
		j.ResultChan <- outcome
	}()

	// The request may have ended while the job sat in the queue
	if err := j.requestCtx.Err(); err != nil {
		outcome.err = err
		return nil
	}

	matches, err := j.service.compareSibling(j.SiblingID, j.Fragments, j.Language, j.Threshold, j.Target)
	outcome.matches = matches
	outcome.err = err
	if err != nil {
		return fmt.Errorf("failed to compare sibling %s: %w", j.SiblingID, err)
	}
	return nil
}

// Check compares the fragments of documentVersionID against all sibling versions
// sharing its checkpoint and returns the pairs whose aggregate similarity is
// strictly above threshold. When ctx ends mid-check the partial result is
// returned with Incomplete set, together with the context error.
func (s *Service) Check(ctx context.Context, documentVersionID, language string, threshold float64) (*models.CheckResult, error) {
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "Service.Check")
	span.SetAttributes(
		attribute.String("document_version_id", documentVersionID),
		attribute.String("language", language),
		attribute.Float64("threshold", threshold),
	)
	defer span.End()

	result, err := s.check(ctx, documentVersionID, language, threshold)

	outcome := "success"
	switch {
	case err != nil && result != nil && result.Incomplete:
		outcome = "incomplete"
	case err != nil:
		outcome = "error"
		span.RecordError(err)
		s.reportStep(context.WithoutCancel(ctx), documentVersionID, models.StepFailed)
	default:
		s.reportStep(ctx, documentVersionID, models.StepCompleted)
	}
	metrics.ChecksTotal.WithLabelValues(outcome).Inc()
	metrics.CheckDuration.Observe(time.Since(start).Seconds())

	return result, err
}

func (s *Service) check(ctx context.Context, documentVersionID, language string, threshold float64) (*models.CheckResult, error) {
	if !s.tokenizer.Supports(language) {
		return nil, &UnsupportedLanguageError{Language: language}
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}

	s.reportStep(ctx, documentVersionID, models.StepInitiated)
	s.reportStep(ctx, documentVersionID, models.StepCaching)

	targetFragments, err := s.cache.Ensure(ctx, documentVersionID)
	if err != nil {
		log.Error().Err(err).Str("documentVersionId", documentVersionID).Msg("Failed to load target fragments")
		return nil, fmt.Errorf("failed to load target fragments: %w", err)
	}

	target, err := s.prepareFragments(targetFragments, language)
	if err != nil {
		return nil, err
	}

	checkpointID, err := s.relations.CheckpointOf(ctx, documentVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve checkpoint: %w", err)
	}

	siblings, err := s.relations.SiblingVersions(ctx, checkpointID, documentVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sibling versions: %w", err)
	}

	result := &models.CheckResult{
		DocumentVersionID: documentVersionID,
		Language:          language,
		Threshold:         threshold,
		Matches:           []models.ComparisonResult{},
	}

	// Edge Case: no siblings in the checkpoint
	if len(siblings) == 0 {
		log.Info().
			Str("documentVersionId", documentVersionID).
			Str("checkpointId", checkpointID).
			Msg("No sibling versions to compare")
		return result, nil
	}

	s.reportStep(ctx, documentVersionID, models.StepComparing)

	outcomes, err := s.compareSiblings(ctx, siblings, language, threshold, target)

	for i, oc := range outcomes {
		switch {
		case oc == nil:
			result.Incomplete = true
		case oc.err != nil && (errors.Is(oc.err, context.Canceled) || errors.Is(oc.err, context.DeadlineExceeded)):
			result.Incomplete = true
		case oc.err != nil:
			// Sibling failures do not abort the check
			log.Warn().
				Err(oc.err).
				Str("documentVersionId", documentVersionID).
				Str("siblingId", siblings[i]).
				Msg("Skipping sibling version")
			metrics.SkippedSiblings.Inc()
			result.Skipped = append(result.Skipped, models.SkippedVersion{
				DocumentVersionID: siblings[i],
				Reason:            oc.err.Error(),
			})
		default:
			result.SiblingsCompared++
			result.Matches = append(result.Matches, oc.matches...)
		}
	}

	if err != nil {
		result.Incomplete = true
		return result, err
	}
	if result.Incomplete {
		return result, ctx.Err()
	}

	log.Debug().
		Str("documentVersionId", documentVersionID).
		Int("siblings", len(siblings)).
		Int("matches", len(result.Matches)).
		Msg("Check completed")

	return result, nil
}

// compareSiblings loads and scores every sibling and returns their outcomes in
// sibling order. Slots of siblings that never reported are nil.
func (s *Service) compareSiblings(
	ctx context.Context,
	siblings []string,
	language string,
	threshold float64,
	target []preparedFragment,
) ([]*siblingOutcome, error) {
	outcomes := make([]*siblingOutcome, len(siblings))
	// Every sibling reports exactly once, so sends never block
	resultChan := make(chan siblingOutcome, len(siblings))

	go s.dispatchSiblings(ctx, siblings, language, threshold, target, resultChan)

	for received := 0; received < len(siblings); received++ {
		select {
		case <-ctx.Done():
			drainOutcomes(resultChan, outcomes)
			return outcomes, ctx.Err()
		case <-s.pool.Done():
			drainOutcomes(resultChan, outcomes)
			return outcomes, errPoolClosed
		case oc := <-resultChan:
			outcomes[oc.index] = &oc
		}
	}

	return outcomes, nil
}

// dispatchSiblings ensures sibling fragments with at most fetchLimit loads in
// flight and hands each loaded sibling to the worker pool, which only scores.
func (s *Service) dispatchSiblings(
	ctx context.Context,
	siblings []string,
	language string,
	threshold float64,
	target []preparedFragment,
	resultChan chan<- siblingOutcome,
) {
	var g errgroup.Group
	g.SetLimit(s.fetchLimit)

	for i, siblingID := range siblings {
		if err := ctx.Err(); err != nil {
			resultChan <- siblingOutcome{index: i, err: err}
			continue
		}

		g.Go(func() error {
			// The slot may have freed up only after the check ended
			if err := ctx.Err(); err != nil {
				resultChan <- siblingOutcome{index: i, err: err}
				return nil
			}

			fragments, err := s.cache.Ensure(ctx, siblingID)
			if err != nil {
				resultChan <- siblingOutcome{index: i, err: err}
				return nil
			}

			job := &ComparisonJob{
				Index:      i,
				SiblingID:  siblingID,
				Language:   language,
				Threshold:  threshold,
				Target:     target,
				Fragments:  fragments,
				service:    s,
				requestCtx: ctx,
				ResultChan: resultChan,
			}
			if err := s.pool.Submit(ctx, job); err != nil {
				log.Error().Err(err).Str("siblingId", siblingID).Msg("Failed to submit job")
				resultChan <- siblingOutcome{index: i, err: err}
			}
			return nil
		})
	}

	_ = g.Wait()
}

// drainOutcomes keeps outcomes that were already delivered when the check stopped
func drainOutcomes(resultChan <-chan siblingOutcome, outcomes []*siblingOutcome) {
	for {
		select {
		case oc := <-resultChan:
			outcomes[oc.index] = &oc
		default:
			return
		}
	}
}

// compareSibling scores every target cell against the sibling's cells
func (s *Service) compareSibling(
	siblingID string,
	fragments []models.CodeFragment,
	language string,
	threshold float64,
	target []preparedFragment,
) ([]models.ComparisonResult, error) {
	sibling, err := s.prepareFragments(fragments, language)
	if err != nil {
		return nil, err
	}

	matches := make([]models.ComparisonResult, 0)
	for _, t := range target {
		for _, sf := range sibling {
			score := ScorePrepared(t.prepared, sf.prepared)
			metrics.PairComparisons.Inc()

			if score.Aggregate > threshold {
				matches = append(matches, models.ComparisonResult{
					CellNumber:          t.cellNumber,
					Similarity:          score.Aggregate,
					RelatedDocVersionID: siblingID,
				})
			}
		}
	}

	return matches, nil
}

func (s *Service) prepareFragments(fragments []models.CodeFragment, language string) ([]preparedFragment, error) {
	prepared := make([]preparedFragment, 0, len(fragments))
	for _, f := range fragments {
		tokens, err := s.tokenizer.Tokenize(f.Source, language)
		if err != nil {
			return nil, fmt.Errorf("failed to tokenize cell %d of %s: %w", f.CellNumber, f.DocumentVersionID, err)
		}
		prepared = append(prepared, preparedFragment{cellNumber: f.CellNumber, prepared: Prepare(tokens)})
	}
	return prepared, nil
}
