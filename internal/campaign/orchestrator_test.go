package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"adforge/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeGate struct {
	mu          sync.Mutex
	selected    bool
	key         string
	invalidated int
}

func (g *fakeGate) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selected = false
	g.invalidated++
}

func (g *fakeGate) HasSelected(context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.selected, nil
}

func (g *fakeGate) Select(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selected = true
	g.key = key
	return nil
}

type stagedCall struct {
	prompt string
	ref    *domain.ReferenceImage
}

type fakeGenerator struct {
	copyFn   func(ctx context.Context, brief string, ref *domain.ReferenceImage) (*domain.CopyPackage, error)
	stagedFn func(ctx context.Context, prompt string, ref *domain.ReferenceImage) (*domain.Image, error)
	editFn   func(ctx context.Context, img domain.ReferenceImage, env string) (*domain.Image, error)

	mu        sync.Mutex
	copyCalls int
	copyRefs  []*domain.ReferenceImage
	staged    []stagedCall
	editCalls int
}

func (f *fakeGenerator) GenerateCopy(ctx context.Context, brief string, ref *domain.ReferenceImage) (*domain.CopyPackage, error) {
	f.mu.Lock()
	f.copyCalls++
	f.copyRefs = append(f.copyRefs, ref)
	f.mu.Unlock()
	if f.copyFn != nil {
		return f.copyFn(ctx, brief, ref)
	}
	return fullCopyPackage(), nil
}

func (f *fakeGenerator) GenerateStagedImage(ctx context.Context, prompt string, ref *domain.ReferenceImage) (*domain.Image, error) {
	f.mu.Lock()
	f.staged = append(f.staged, stagedCall{prompt: prompt, ref: ref})
	f.mu.Unlock()
	if f.stagedFn != nil {
		return f.stagedFn(ctx, prompt, ref)
	}
	return imageFor(prompt), nil
}

func (f *fakeGenerator) EditImageBackground(ctx context.Context, img domain.ReferenceImage, env string) (*domain.Image, error) {
	f.mu.Lock()
	f.editCalls++
	f.mu.Unlock()
	if f.editFn != nil {
		return f.editFn(ctx, img, env)
	}
	return &domain.Image{Data: []byte("edited:" + env), MIMEType: "image/png"}, nil
}

func (f *fakeGenerator) calls() (copyCalls, stagedCalls, editCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.copyCalls, len(f.staged), f.editCalls
}

func imageFor(prompt string) *domain.Image {
	return &domain.Image{Data: []byte(prompt), MIMEType: "image/png"}
}

func fullCopyPackage() *domain.CopyPackage {
	pkg := &domain.CopyPackage{Assumptions: []string{"calm evenings"}}
	for _, m := range domain.Mechanisms {
		pkg.Hooks = append(pkg.Hooks, domain.Hook{MechanismType: string(m), Text: "hook"})
	}
	for _, f := range domain.Frameworks {
		pkg.PrimaryTexts = append(pkg.PrimaryTexts, domain.PrimaryText{Framework: string(f), Content: "body"})
	}
	pkg.ShortForms = []domain.ShortForm{{Content: "a"}, {Content: "b"}}
	for _, a := range domain.HeadlineAngles {
		pkg.Headlines = append(pkg.Headlines, domain.Headline{Angle: string(a), Text: "headline"})
	}
	pkg.Descriptions = []domain.Description{{Text: "1"}, {Text: "2"}, {Text: "3"}}
	pkg.CTARecommendations = domain.CTARecommendation{
		Primary:        domain.CTAOption{Button: "Shop Now", Rationale: "intent"},
		Secondary:      domain.CTAOption{Button: "Learn More", Rationale: "education"},
		FunnelGuidance: "retarget",
	}
	return pkg
}

func referenceImage() *domain.ReferenceImage {
	return &domain.ReferenceImage{Data: []byte("lavender-bottle"), MIMEType: "image/png"}
}

func newOrchestrator(t *testing.T, gen Generator, credential bool, opts ...func(*Options)) *Orchestrator {
	t.Helper()
	o := Options{
		Generator:        gen,
		Gate:             &fakeGate{selected: credential},
		ProgressInterval: time.Hour,
	}
	for _, fn := range opts {
		fn(&o)
	}
	orch, err := New(o)
	require.NoError(t, err)
	_, err = orch.RefreshCredential(context.Background())
	require.NoError(t, err)
	return orch
}

func requireKind(t *testing.T, err error, kind domain.FailureKind) *domain.Failure {
	t.Helper()
	require.Error(t, err)
	f, ok := domain.AsFailure(err)
	require.True(t, ok, "expected *domain.Failure, got %T: %v", err, err)
	require.Equal(t, kind, f.Kind, "message: %s", f.Message)
	return f
}

const lavenderBrief = "Lavender linen spray, 200ml glass bottle"

func TestRunNeedsCredentialWithoutNetworkCall(t *testing.T) {
	gen := &fakeGenerator{}
	orch := newOrchestrator(t, gen, false)

	for _, req := range []domain.GenerationRequest{
		{Brief: lavenderBrief, ReferenceImage: referenceImage()},
		{Brief: lavenderBrief, ProceedWithoutImage: true},
		{Brief: ""},
	} {
		out, err := orch.Run(context.Background(), req)
		assert.Nil(t, out)
		requireKind(t, err, domain.KindNeedsCredential)
	}

	c, s, e := gen.calls()
	assert.Zero(t, c+s+e, "no provider call expected")
	assert.Equal(t, StateIdle, orch.Status().State)
}

func TestSelectCredentialEnablesRun(t *testing.T) {
	gen := &fakeGenerator{}
	gate := &fakeGate{}
	orch, err := New(Options{Generator: gen, Gate: gate, ProgressInterval: time.Hour})
	require.NoError(t, err)

	_, err = orch.Run(context.Background(), domain.GenerationRequest{Brief: lavenderBrief, ReferenceImage: referenceImage()})
	requireKind(t, err, domain.KindNeedsCredential)

	requireKind(t, orch.SelectCredential(context.Background(), " "), domain.KindInvalidRequest)
	require.NoError(t, orch.SelectCredential(context.Background(), "key-1"))
	assert.Equal(t, "key-1", gate.key)
	assert.True(t, orch.CredentialPresent())

	_, err = orch.Run(context.Background(), domain.GenerationRequest{Brief: lavenderBrief, ReferenceImage: referenceImage()})
	require.NoError(t, err)
}

func TestRunRejectsBlankBrief(t *testing.T) {
	gen := &fakeGenerator{}
	orch := newOrchestrator(t, gen, true)

	_, err := orch.Run(context.Background(), domain.GenerationRequest{Brief: "   ", ReferenceImage: referenceImage()})
	requireKind(t, err, domain.KindInvalidRequest)
	c, s, _ := gen.calls()
	assert.Zero(t, c+s)
}

func TestRunNeedsConfirmationThenGenericMode(t *testing.T) {
	gen := &fakeGenerator{}
	orch := newOrchestrator(t, gen, true)

	req := domain.GenerationRequest{Brief: lavenderBrief}
	out, err := orch.Run(context.Background(), req)
	assert.Nil(t, out)
	requireKind(t, err, domain.KindNeedsConfirmation)
	c, s, _ := gen.calls()
	require.Zero(t, c+s, "confirmation must be requested before any network call")

	req.ProceedWithoutImage = true
	out, err = orch.Run(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, out.Generic)

	c, s, _ = gen.calls()
	assert.Equal(t, 1, c)
	require.Equal(t, 3, s)
	gen.mu.Lock()
	defer gen.mu.Unlock()
	assert.Nil(t, gen.copyRefs[0])
	for _, call := range gen.staged {
		assert.Nil(t, call.ref, "generic mode must not send a reference image")
		assert.Contains(t, call.prompt, lavenderBrief)
	}
}

func TestRunLavenderScenarioSucceeds(t *testing.T) {
	// Completion order is the reverse of the variant table.
	delays := map[string]time.Duration{
		domain.Variants[0].Prompt: 60 * time.Millisecond,
		domain.Variants[1].Prompt: 30 * time.Millisecond,
		domain.Variants[2].Prompt: 0,
	}
	gen := &fakeGenerator{
		stagedFn: func(ctx context.Context, prompt string, ref *domain.ReferenceImage) (*domain.Image, error) {
			select {
			case <-time.After(delays[prompt]):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return imageFor(prompt), nil
		},
	}
	orch := newOrchestrator(t, gen, true)

	ref := referenceImage()
	out, err := orch.Run(context.Background(), domain.GenerationRequest{Brief: lavenderBrief, ReferenceImage: ref})
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.False(t, out.Generic)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, lavenderBrief, out.Brief)
	require.NotNil(t, out.Copy)
	assert.Len(t, out.Copy.Hooks, 8)
	assert.Len(t, out.Copy.PrimaryTexts, 3)
	assert.Len(t, out.Copy.ShortForms, 2)
	assert.Len(t, out.Copy.Headlines, 5)
	assert.Len(t, out.Copy.Descriptions, 3)

	require.Len(t, out.Images, 3)
	wantKinds := []domain.VariantKind{domain.VariantStagingA, domain.VariantStagingB, domain.VariantActiveUse}
	for i, img := range out.Images {
		assert.Equal(t, wantKinds[i], img.Kind)
		assert.Equal(t, domain.Variants[i].Label, img.Label)
		assert.Equal(t, []byte(domain.Variants[i].Prompt), img.Image.Data, "image %d out of order", i)
	}

	c, s, _ := gen.calls()
	assert.Equal(t, 1, c)
	assert.Equal(t, 3, s)
	gen.mu.Lock()
	for _, call := range gen.staged {
		assert.Equal(t, ref.Data, call.ref.Data, "every image call shares the reference")
	}
	gen.mu.Unlock()

	st := orch.Status()
	assert.Equal(t, StateSucceeded, st.State)
	assert.False(t, st.CopyInFlight)
	assert.False(t, st.ImagesInFlight)
	assert.True(t, st.HasResult)
	assert.Equal(t, out, orch.Result())
}

func TestRunFailsFastAndDiscardsStragglers(t *testing.T) {
	var stragglersCanceled atomic.Int32
	slow := func(ctx context.Context) error {
		select {
		case <-time.After(5 * time.Second):
			return nil
		case <-ctx.Done():
			stragglersCanceled.Add(1)
			return ctx.Err()
		}
	}
	gen := &fakeGenerator{
		copyFn: func(ctx context.Context, brief string, ref *domain.ReferenceImage) (*domain.CopyPackage, error) {
			if err := slow(ctx); err != nil {
				return nil, err
			}
			return fullCopyPackage(), nil
		},
		stagedFn: func(ctx context.Context, prompt string, ref *domain.ReferenceImage) (*domain.Image, error) {
			if prompt == domain.Variants[1].Prompt {
				return nil, domain.NewFailure(domain.KindNoImageReturned, "Creative synthesis returned no image data.")
			}
			if err := slow(ctx); err != nil {
				return nil, err
			}
			return imageFor(prompt), nil
		},
	}
	orch := newOrchestrator(t, gen, true)

	start := time.Now()
	out, err := orch.Run(context.Background(), domain.GenerationRequest{Brief: lavenderBrief, ReferenceImage: referenceImage()})
	elapsed := time.Since(start)

	assert.Nil(t, out)
	f := requireKind(t, err, domain.KindNoImageReturned)
	assert.Equal(t, "Creative synthesis returned no image data.", f.Message)
	assert.Less(t, elapsed, time.Second, "failure must surface before the slow calls resolve")

	st := orch.Status()
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, f.Message, st.LastError)
	assert.False(t, st.ImagesInFlight)
	assert.False(t, st.CopyInFlight)
	assert.Nil(t, orch.Result())
	assert.True(t, st.CredentialPresent, "ordinary failures keep the credential")

	require.Eventually(t, func() bool { return stragglersCanceled.Load() == 3 }, time.Second, 5*time.Millisecond)
}

func TestRunCredentialRejectionClearsFlag(t *testing.T) {
	gen := &fakeGenerator{
		copyFn: func(ctx context.Context, brief string, ref *domain.ReferenceImage) (*domain.CopyPackage, error) {
			return nil, &domain.Failure{
				Kind:                 domain.KindCredentialRejected,
				Message:              "Requested entity was not found.",
				InvalidateCredential: true,
			}
		},
	}
	gate := &fakeGate{selected: true}
	orch := newOrchestrator(t, gen, true, func(o *Options) { o.Gate = gate })

	_, err := orch.Run(context.Background(), domain.GenerationRequest{Brief: lavenderBrief, ReferenceImage: referenceImage()})
	f := requireKind(t, err, domain.KindCredentialRejected)
	assert.True(t, f.InvalidateCredential)
	assert.False(t, orch.CredentialPresent())
	assert.False(t, orch.Status().CredentialPresent)
	assert.Equal(t, 1, gate.invalidated)

	present, err := orch.RefreshCredential(context.Background())
	require.NoError(t, err)
	assert.False(t, present, "a refresh must not revive the rejected credential")

	before, _, _ := gen.calls()
	_, err = orch.Run(context.Background(), domain.GenerationRequest{Brief: lavenderBrief, ReferenceImage: referenceImage()})
	requireKind(t, err, domain.KindNeedsCredential)
	after, _, _ := gen.calls()
	assert.Equal(t, before, after, "stale credential must not be retried")
}

func TestRunNewCycleDiscardsPreviousOutcome(t *testing.T) {
	var fail atomic.Bool
	gen := &fakeGenerator{
		copyFn: func(ctx context.Context, brief string, ref *domain.ReferenceImage) (*domain.CopyPackage, error) {
			if fail.Load() {
				return nil, errors.New("socket hang up")
			}
			return fullCopyPackage(), nil
		},
	}
	orch := newOrchestrator(t, gen, true)
	req := domain.GenerationRequest{Brief: lavenderBrief, ReferenceImage: referenceImage()}

	first, err := orch.Run(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, orch.Result())

	fail.Store(true)
	_, err = orch.Run(context.Background(), req)
	f := requireKind(t, err, domain.KindProviderError)
	assert.Equal(t, "socket hang up", f.Message)
	assert.Nil(t, orch.Result())
	assert.NotEqual(t, first.RunID, orch.Status().RunID)
}

func TestRunRejectsConcurrentBatch(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	gen := &fakeGenerator{
		copyFn: func(ctx context.Context, brief string, ref *domain.ReferenceImage) (*domain.CopyPackage, error) {
			entered <- struct{}{}
			<-release
			return fullCopyPackage(), nil
		},
	}
	orch := newOrchestrator(t, gen, true)
	req := domain.GenerationRequest{Brief: lavenderBrief, ReferenceImage: referenceImage()}

	done := make(chan error, 1)
	go func() {
		_, err := orch.Run(context.Background(), req)
		done <- err
	}()
	<-entered

	_, err := orch.Run(context.Background(), req)
	requireKind(t, err, domain.KindBusy)
	requireKind(t, orch.Clear(), domain.KindBusy)

	close(release)
	require.NoError(t, <-done)
	require.NoError(t, orch.Clear())
	assert.Equal(t, StateIdle, orch.Status().State)
	assert.Nil(t, orch.Result())
}

func TestCopyFlagClearsIndependentlyOfImages(t *testing.T) {
	release := make(chan struct{})
	gen := &fakeGenerator{
		stagedFn: func(ctx context.Context, prompt string, ref *domain.ReferenceImage) (*domain.Image, error) {
			<-release
			return imageFor(prompt), nil
		},
	}
	orch := newOrchestrator(t, gen, true)

	done := make(chan error, 1)
	go func() {
		_, err := orch.Run(context.Background(), domain.GenerationRequest{Brief: lavenderBrief, ReferenceImage: referenceImage()})
		done <- err
	}()

	require.Eventually(t, func() bool {
		st := orch.Status()
		return st.State == StateRunning && !st.CopyInFlight && st.ImagesInFlight
	}, time.Second, 2*time.Millisecond)

	close(release)
	require.NoError(t, <-done)
	st := orch.Status()
	assert.False(t, st.ImagesInFlight)
	assert.False(t, st.CopyInFlight)
}

func TestRunCanceledByCaller(t *testing.T) {
	gen := &fakeGenerator{
		stagedFn: func(ctx context.Context, prompt string, ref *domain.ReferenceImage) (*domain.Image, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	orch := newOrchestrator(t, gen, true)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := orch.Run(ctx, domain.GenerationRequest{Brief: lavenderBrief, ReferenceImage: referenceImage()})
	requireKind(t, err, domain.KindCanceled)
	assert.Equal(t, StateFailed, orch.Status().State)
}

func TestProgressLabelsStopWhenBatchSettles(t *testing.T) {
	var mu sync.Mutex
	var labels []string
	gen := &fakeGenerator{
		stagedFn: func(ctx context.Context, prompt string, ref *domain.ReferenceImage) (*domain.Image, error) {
			time.Sleep(25 * time.Millisecond)
			return imageFor(prompt), nil
		},
	}
	orch := newOrchestrator(t, gen, true, func(o *Options) {
		o.ProgressInterval = 5 * time.Millisecond
		o.OnProgress = func(label string) {
			mu.Lock()
			labels = append(labels, label)
			mu.Unlock()
		}
	})
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(labels)
	}

	for cycle := 0; cycle < 3; cycle++ {
		before := count()
		_, err := orch.Run(context.Background(), domain.GenerationRequest{Brief: lavenderBrief, ReferenceImage: referenceImage()})
		require.NoError(t, err)
		settled := count()
		assert.Greater(t, settled, before, "cycle %d emitted no progress", cycle)
		assert.LessOrEqual(t, settled-before, len(ProgressLabels))

		time.Sleep(40 * time.Millisecond)
		assert.Equal(t, settled, count(), "label emitted after cycle %d settled", cycle)
		assert.Empty(t, orch.Status().Stage)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, ProgressLabels[0], labels[0])
}

func TestProgressTickerStopIsIdempotent(t *testing.T) {
	var emitted atomic.Int32
	p := startProgress(time.Millisecond, func(string) { emitted.Add(1) })
	require.Eventually(t, func() bool { return emitted.Load() == int32(len(ProgressLabels)) }, time.Second, time.Millisecond)
	p.stop()
	p.stop()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, int32(len(ProgressLabels)), emitted.Load(), "sequence plays once then goes quiet")
}

func TestRunBackgroundEdit(t *testing.T) {
	t.Run("requires credential", func(t *testing.T) {
		gen := &fakeGenerator{}
		orch := newOrchestrator(t, gen, false)
		require.NoError(t, orch.SetReferenceImage(referenceImage()))
		_, err := orch.RunBackgroundEdit(context.Background(), "marble bathroom")
		requireKind(t, err, domain.KindNeedsCredential)
		_, _, e := gen.calls()
		assert.Zero(t, e)
	})

	t.Run("requires image and environment", func(t *testing.T) {
		gen := &fakeGenerator{}
		orch := newOrchestrator(t, gen, true)
		_, err := orch.RunBackgroundEdit(context.Background(), "marble bathroom")
		requireKind(t, err, domain.KindInvalidRequest)
		require.NoError(t, orch.SetReferenceImage(referenceImage()))
		_, err = orch.RunBackgroundEdit(context.Background(), "  ")
		requireKind(t, err, domain.KindInvalidRequest)
		_, _, e := gen.calls()
		assert.Zero(t, e)
	})

	t.Run("replaces working image", func(t *testing.T) {
		gen := &fakeGenerator{}
		orch := newOrchestrator(t, gen, true)
		require.NoError(t, orch.SetReferenceImage(referenceImage()))

		img, err := orch.RunBackgroundEdit(context.Background(), "sunlit linen closet")
		require.NoError(t, err)
		assert.Equal(t, []byte("edited:sunlit linen closet"), img.Data)

		ref := orch.ReferenceImage()
		require.NotNil(t, ref)
		assert.Equal(t, img.Data, ref.Data)
		assert.Equal(t, "image/png", ref.MIMEType)
		assert.False(t, orch.Status().Editing)
	})

	t.Run("failure is prefixed and rejection clears credential", func(t *testing.T) {
		gen := &fakeGenerator{
			editFn: func(ctx context.Context, img domain.ReferenceImage, env string) (*domain.Image, error) {
				return nil, &domain.Failure{Kind: domain.KindCredentialRejected, Message: "Requested entity was not found.", InvalidateCredential: true}
			},
		}
		gate := &fakeGate{selected: true}
		orch := newOrchestrator(t, gen, true, func(o *Options) { o.Gate = gate })
		original := referenceImage()
		require.NoError(t, orch.SetReferenceImage(original))

		_, err := orch.RunBackgroundEdit(context.Background(), "beach")
		requireKind(t, err, domain.KindCredentialRejected)
		assert.Equal(t, 1, gate.invalidated)

		st := orch.Status()
		assert.Equal(t, RetouchFailurePrefix+"Requested entity was not found.", st.LastError)
		assert.False(t, st.CredentialPresent)
		assert.False(t, st.Editing)
		assert.Equal(t, original.Data, orch.ReferenceImage().Data, "failed edit keeps the working image")
	})
}

func TestRunBackgroundEditRunsAlongsideBatch(t *testing.T) {
	release := make(chan struct{})
	gen := &fakeGenerator{
		copyFn: func(ctx context.Context, brief string, ref *domain.ReferenceImage) (*domain.CopyPackage, error) {
			<-release
			return fullCopyPackage(), nil
		},
	}
	orch := newOrchestrator(t, gen, true)
	require.NoError(t, orch.SetReferenceImage(referenceImage()))

	done := make(chan error, 1)
	go func() {
		_, err := orch.Run(context.Background(), domain.GenerationRequest{Brief: lavenderBrief, ReferenceImage: orch.ReferenceImage()})
		done <- err
	}()
	require.Eventually(t, func() bool { return orch.Status().State == StateRunning }, time.Second, time.Millisecond)

	_, err := orch.RunBackgroundEdit(context.Background(), "forest floor")
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
}

func TestReferenceImageIsCopied(t *testing.T) {
	orch := newOrchestrator(t, &fakeGenerator{}, true)
	requireKind(t, orch.SetReferenceImage(&domain.ReferenceImage{}), domain.KindInvalidRequest)

	src := referenceImage()
	require.NoError(t, orch.SetReferenceImage(src))
	src.Data[0] = 'X'
	got := orch.ReferenceImage()
	assert.True(t, strings.HasPrefix(string(got.Data), "lavender"))

	orch.ClearReferenceImage()
	assert.Nil(t, orch.ReferenceImage())
	assert.False(t, orch.Status().HasReference)
}

func TestVariantPrompt(t *testing.T) {
	v := domain.Variants[0]
	assert.Equal(t, v.Prompt, variantPrompt(v, lavenderBrief, true))
	assert.Equal(t, fmt.Sprintf("%s. Product: %s", v.Prompt, lavenderBrief), variantPrompt(v, " "+lavenderBrief+" ", false))
}
