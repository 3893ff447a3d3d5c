// Package campaign coordinates one campaign generation cycle: a copy request
// and three staged image requests issued together, joined fail-fast, with a
// cosmetic progress sequence while they run.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"adforge/internal/domain"
	"adforge/internal/infra"
	"adforge/internal/metrics"
)

// Generator is the remote generation surface the orchestrator drives.
type Generator interface {
	GenerateCopy(ctx context.Context, brief string, ref *domain.ReferenceImage) (*domain.CopyPackage, error)
	EditImageBackground(ctx context.Context, img domain.ReferenceImage, environment string) (*domain.Image, error)
	GenerateStagedImage(ctx context.Context, prompt string, ref *domain.ReferenceImage) (*domain.Image, error)
}

// CredentialGate checks for and selects the API credential. Invalidate is
// called when the provider rejects the active credential.
type CredentialGate interface {
	HasSelected(ctx context.Context) (bool, error)
	Select(ctx context.Context, key string) error
	Invalidate()
}

// State is the orchestrator's lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// RetouchFailurePrefix precedes background edit failures in Status.LastError.
const RetouchFailurePrefix = "Creative Retouch Failed: "

// Options configures an Orchestrator.
type Options struct {
	Generator        Generator
	Gate             CredentialGate
	ProgressInterval time.Duration
	// OnProgress observes progress labels. It runs on the ticker goroutine and
	// never after the Run that started it has returned.
	OnProgress func(label string)
	Logger     *infra.Logger
}

// Status is a snapshot of the orchestrator's observable state.
type Status struct {
	State             State              `json:"state"`
	Stage             string             `json:"stage,omitempty"`
	RunID             string             `json:"run_id,omitempty"`
	CredentialPresent bool               `json:"credential_present"`
	HasReference      bool               `json:"has_reference"`
	CopyInFlight      bool               `json:"copy_in_flight"`
	ImagesInFlight    bool               `json:"images_in_flight"`
	Editing           bool               `json:"editing"`
	HasResult         bool               `json:"has_result"`
	LastError         string             `json:"last_error,omitempty"`
	LastErrorKind     domain.FailureKind `json:"last_error_kind,omitempty"`
}

// Orchestrator owns the credential flag, the working reference image and the
// state of the current cycle. Every field is mutated only by its methods,
// under mu.
type Orchestrator struct {
	gen        Generator
	gate       CredentialGate
	interval   time.Duration
	onProgress func(string)
	logger     zerolog.Logger

	mu             sync.Mutex
	state          State
	credential     bool
	reference      *domain.ReferenceImage
	stage          string
	runID          string
	copyInFlight   bool
	imagesInFlight bool
	editing        bool
	outcome        *domain.Outcome
	lastError      string
	lastErrorKind  domain.FailureKind
}

// New builds an Orchestrator. The credential flag starts unset; call
// RefreshCredential once at startup.
func New(opts Options) (*Orchestrator, error) {
	if opts.Generator == nil {
		return nil, errors.New("campaign: generator is required")
	}
	if opts.Gate == nil {
		return nil, errors.New("campaign: credential gate is required")
	}
	o := &Orchestrator{
		gen:        opts.Generator,
		gate:       opts.Gate,
		interval:   opts.ProgressInterval,
		onProgress: opts.OnProgress,
		logger:     zerolog.Nop(),
		state:      StateIdle,
	}
	if o.interval <= 0 {
		o.interval = DefaultProgressInterval
	}
	if opts.Logger != nil {
		o.logger = opts.Logger.With().Str("component", "campaign").Logger()
	}
	return o, nil
}

// RefreshCredential asks the gate whether a credential is selected and caches
// the answer.
func (o *Orchestrator) RefreshCredential(ctx context.Context) (bool, error) {
	ok, err := o.gate.HasSelected(ctx)
	if err != nil {
		return false, fmt.Errorf("check credential: %w", err)
	}
	o.mu.Lock()
	o.credential = ok
	o.mu.Unlock()
	return ok, nil
}

// SelectCredential hands key to the gate and marks the credential present.
func (o *Orchestrator) SelectCredential(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return domain.NewFailure(domain.KindInvalidRequest, "An API key is required.")
	}
	if err := o.gate.Select(ctx, key); err != nil {
		return err
	}
	o.mu.Lock()
	o.credential = true
	o.mu.Unlock()
	return nil
}

// CredentialPresent reports the cached credential flag.
func (o *Orchestrator) CredentialPresent() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.credential
}

// ForgetCredential clears the cached credential flag.
func (o *Orchestrator) ForgetCredential() {
	o.mu.Lock()
	o.credential = false
	o.mu.Unlock()
}

// SetReferenceImage replaces the working reference image.
func (o *Orchestrator) SetReferenceImage(img *domain.ReferenceImage) error {
	if img.IsZero() {
		return domain.NewFailure(domain.KindInvalidRequest, "The reference image is empty.")
	}
	o.mu.Lock()
	o.reference = cloneReference(img)
	o.mu.Unlock()
	return nil
}

// ReferenceImage returns a copy of the working reference image, or nil.
func (o *Orchestrator) ReferenceImage() *domain.ReferenceImage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return cloneReference(o.reference)
}

// ClearReferenceImage drops the working reference image.
func (o *Orchestrator) ClearReferenceImage() {
	o.mu.Lock()
	o.reference = nil
	o.mu.Unlock()
}

// Status returns a snapshot of the current state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		State:             o.state,
		Stage:             o.stage,
		RunID:             o.runID,
		CredentialPresent: o.credential,
		HasReference:      !o.reference.IsZero(),
		CopyInFlight:      o.copyInFlight,
		ImagesInFlight:    o.imagesInFlight,
		Editing:           o.editing,
		HasResult:         o.outcome != nil,
		LastError:         o.lastError,
		LastErrorKind:     o.lastErrorKind,
	}
}

// Result returns the last successful outcome, or nil.
func (o *Orchestrator) Result() *domain.Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcome
}

// Clear drops the last outcome and error and returns to Idle. It is rejected
// while a batch is running.
func (o *Orchestrator) Clear() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateRunning {
		return domain.NewFailure(domain.KindBusy, "A campaign is still being generated.")
	}
	o.state = StateIdle
	o.outcome = nil
	o.stage = ""
	o.lastError = ""
	o.lastErrorKind = ""
	return nil
}

// Run performs one campaign generation cycle. Preconditions are checked
// before any network call; then the copy call and the three staged image
// calls are issued together and the first failure ends the batch.
func (o *Orchestrator) Run(ctx context.Context, req domain.GenerationRequest) (*domain.Outcome, error) {
	o.mu.Lock()
	if f := o.checkRun(req); f != nil {
		o.mu.Unlock()
		metrics.ObserveCampaignRun(string(f.Kind), time.Time{})
		return nil, f
	}
	runID := uuid.NewString()
	started := time.Now()
	o.state = StateRunning
	o.runID = runID
	o.outcome = nil
	o.stage = ""
	o.lastError = ""
	o.lastErrorKind = ""
	o.copyInFlight = true
	o.imagesInFlight = true
	o.mu.Unlock()

	log := o.logger.With().Str("run_id", runID).Logger()
	log.Info().Bool("reference", req.HasReference()).Msg("campaign batch dispatched")

	ticker := startProgress(o.interval, func(label string) { o.advanceStage(runID, label) })
	outcome, err := o.dispatch(ctx, req, runID, started)
	ticker.stop()

	o.finish(outcome, err)

	if err != nil {
		f := domain.ToFailure(err)
		metrics.ObserveCampaignRun(string(f.Kind), started)
		log.Warn().Str("kind", string(f.Kind)).Bool("invalidate_credential", f.InvalidateCredential).Msg(f.Message)
		return nil, f
	}
	metrics.ObserveCampaignRun("success", started)
	log.Info().Dur("elapsed", outcome.FinishedAt.Sub(outcome.StartedAt)).Msg("campaign batch succeeded")
	return outcome, nil
}

// checkRun validates preconditions. Callers hold mu.
func (o *Orchestrator) checkRun(req domain.GenerationRequest) *domain.Failure {
	switch {
	case !o.credential:
		return domain.NewFailure(domain.KindNeedsCredential, "Select a Gemini API key to continue.")
	case strings.TrimSpace(req.Brief) == "":
		return domain.NewFailure(domain.KindInvalidRequest, "A product brief is required.")
	case !req.HasReference() && !req.ProceedWithoutImage:
		return domain.NewFailure(domain.KindNeedsConfirmation,
			"No reference image supplied. Generated imagery will be generic and cannot match your actual product. Confirm to proceed anyway.")
	case o.state == StateRunning:
		return domain.NewFailure(domain.KindBusy, "A campaign is already being generated.")
	}
	return nil
}

const copySlot = -1

type callResult struct {
	slot  int
	copy  *domain.CopyPackage
	image *domain.Image
	err   error
}

// dispatch fans out the four calls and joins them. The results channel is
// buffered for every call so stragglers never block after an early return.
func (o *Orchestrator) dispatch(ctx context.Context, req domain.GenerationRequest, runID string, started time.Time) (*domain.Outcome, error) {
	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ref *domain.ReferenceImage
	if req.HasReference() {
		ref = req.ReferenceImage
	}

	results := make(chan callResult, 1+len(domain.Variants))
	go func() {
		pkg, err := o.gen.GenerateCopy(batchCtx, req.Brief, ref)
		results <- callResult{slot: copySlot, copy: pkg, err: err}
	}()
	for i, v := range domain.Variants {
		prompt := variantPrompt(v, req.Brief, ref != nil)
		go func(slot int, prompt string) {
			img, err := o.gen.GenerateStagedImage(batchCtx, prompt, ref)
			results <- callResult{slot: slot, image: img, err: err}
		}(i, prompt)
	}

	var pkg *domain.CopyPackage
	images := make([]*domain.Image, len(domain.Variants))
	for pending := 1 + len(domain.Variants); pending > 0; pending-- {
		select {
		case <-ctx.Done():
			return nil, domain.ToFailure(ctx.Err())
		case res := <-results:
			if res.err != nil {
				o.logger.Debug().Str("run_id", runID).Str("call", slotName(res.slot)).Err(res.err).Msg("batch call failed")
				return nil, res.err
			}
			if res.slot == copySlot {
				if res.copy == nil {
					return nil, domain.NewFailure(domain.KindEmptyResponse, "Strategy engine returned an empty response.")
				}
				pkg = res.copy
				o.markCopyDone(runID)
				continue
			}
			if res.image == nil {
				return nil, domain.NewFailure(domain.KindNoImageReturned, "Creative synthesis returned no image data.")
			}
			images[res.slot] = res.image
		}
	}

	outcome := &domain.Outcome{
		RunID:      runID,
		Brief:      req.Brief,
		Generic:    ref == nil,
		Copy:       pkg,
		Images:     make([]domain.ImageVariant, 0, len(domain.Variants)),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	for i, v := range domain.Variants {
		outcome.Images = append(outcome.Images, v.Annotate(*images[i]))
	}
	return outcome, nil
}

// variantPrompt returns the scene prompt for v. Without a reference image the
// brief is appended so the generic shot still depicts the right product.
func variantPrompt(v domain.Variant, brief string, hasReference bool) string {
	if hasReference {
		return v.Prompt
	}
	return v.Prompt + ". Product: " + strings.TrimSpace(brief)
}

func slotName(slot int) string {
	if slot == copySlot {
		return "copy"
	}
	return string(domain.Variants[slot].Kind)
}

func (o *Orchestrator) advanceStage(runID, label string) {
	o.mu.Lock()
	if o.runID != runID || o.state != StateRunning {
		o.mu.Unlock()
		return
	}
	o.stage = label
	o.mu.Unlock()
	if o.onProgress != nil {
		o.onProgress(label)
	}
}

func (o *Orchestrator) markCopyDone(runID string) {
	o.mu.Lock()
	if o.runID == runID {
		o.copyInFlight = false
	}
	o.mu.Unlock()
}

// finish settles the cycle. The in-flight flags are cleared here exactly once.
func (o *Orchestrator) finish(outcome *domain.Outcome, err error) {
	o.mu.Lock()
	o.copyInFlight = false
	o.imagesInFlight = false
	o.stage = ""
	if err == nil {
		o.state = StateSucceeded
		o.outcome = outcome
		o.mu.Unlock()
		return
	}
	f := domain.ToFailure(err)
	o.state = StateFailed
	o.lastError = f.Message
	o.lastErrorKind = f.Kind
	if f.InvalidateCredential {
		o.credential = false
	}
	o.mu.Unlock()

	if f.InvalidateCredential {
		o.gate.Invalidate()
	}
}

// RunBackgroundEdit replaces the background of the working reference image.
// It runs independently of the batch and, on success, swaps the working image
// for the edited one.
func (o *Orchestrator) RunBackgroundEdit(ctx context.Context, environment string) (*domain.Image, error) {
	o.mu.Lock()
	var f *domain.Failure
	switch {
	case !o.credential:
		f = domain.NewFailure(domain.KindNeedsCredential, "Select a Gemini API key to continue.")
	case o.reference.IsZero():
		f = domain.NewFailure(domain.KindInvalidRequest, "Upload a reference image before retouching.")
	case strings.TrimSpace(environment) == "":
		f = domain.NewFailure(domain.KindInvalidRequest, "Describe the new environment for the retouch.")
	case o.editing:
		f = domain.NewFailure(domain.KindBusy, "A retouch is already in progress.")
	}
	if f != nil {
		o.mu.Unlock()
		metrics.ObserveRetouch(string(f.Kind))
		return nil, f
	}
	o.editing = true
	source := *cloneReference(o.reference)
	o.mu.Unlock()

	edited, err := o.gen.EditImageBackground(ctx, source, environment)
	if err == nil && edited == nil {
		err = domain.NewFailure(domain.KindNoImageReturned, "Image synthesis returned no image data.")
	}

	if err != nil {
		f := domain.ToFailure(err)
		o.mu.Lock()
		o.editing = false
		if f.InvalidateCredential {
			o.credential = false
		}
		o.lastError = RetouchFailurePrefix + f.Message
		o.lastErrorKind = f.Kind
		msg := o.lastError
		o.mu.Unlock()

		if f.InvalidateCredential {
			o.gate.Invalidate()
		}
		metrics.ObserveRetouch(string(f.Kind))
		o.logger.Warn().Str("kind", string(f.Kind)).Msg(msg)
		return nil, f
	}

	o.mu.Lock()
	o.editing = false
	o.reference = &domain.ReferenceImage{Data: edited.Data, MIMEType: edited.MIMEType}
	o.mu.Unlock()
	metrics.ObserveRetouch("success")
	o.logger.Info().Int("bytes", len(edited.Data)).Msg("reference image retouched")
	return edited, nil
}

func cloneReference(img *domain.ReferenceImage) *domain.ReferenceImage {
	if img.IsZero() {
		return nil
	}
	data := make([]byte, len(img.Data))
	copy(data, img.Data)
	return &domain.ReferenceImage{Data: data, MIMEType: img.MIMEType}
}
