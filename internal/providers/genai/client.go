package genai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	sdk "google.golang.org/genai"

	"adforge/internal/domain"
	"adforge/internal/infra"
	"adforge/internal/media"
	"adforge/internal/metrics"
)

const (
	DefaultTextModel      = "gemini-3-pro-preview"
	DefaultImageModel     = "gemini-3-pro-image-preview"
	DefaultThinkingBudget = 4000
	DefaultAspectRatio    = "1:1"
	DefaultImageSize      = "2K"

	// Reference images are always declared as JPEG when embedded.
	outboundImageMIME = "image/jpeg"
	fallbackImageMIME = "image/png"
	jsonMIME          = "application/json"

	credentialRejectedMarker = "Requested entity was not found"

	opCopy    = "copy"
	opRetouch = "retouch"
	opStaged  = "staged_image"
)

// KeySource yields the API key to use for the next call.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticKey is a KeySource that always returns the same key.
type StaticKey string

func (k StaticKey) APIKey(context.Context) (string, error) {
	return string(k), nil
}

// Options controls how the Gemini client is configured.
type Options struct {
	Keys           KeySource
	TextModel      string
	ImageModel     string
	BaseURL        string
	HTTPClient     *http.Client
	ThinkingBudget int
	AspectRatio    string
	ImageSize      string
	// TranscodeJPEG re-encodes reference images to JPEG before embedding so
	// the declared MIME type matches the bytes.
	TranscodeJPEG bool
	Logger        *infra.Logger
}

// Client is the remote generation facade over the Gemini API. It exposes
// copy generation, background replacement and staged image synthesis.
type Client struct {
	keys           KeySource
	textModel      string
	imageModel     string
	baseURL        string
	httpClient     *http.Client
	thinkingBudget int32
	aspectRatio    string
	imageSize      string
	transcodeJPEG  bool
	logger         zerolog.Logger

	mu        sync.Mutex
	clientKey string
	client    *sdk.Client
}

// NewClient constructs a Client with defaults applied.
func NewClient(opts Options) (*Client, error) {
	if opts.Keys == nil {
		return nil, errors.New("genai: key source is required")
	}
	c := &Client{
		keys:           opts.Keys,
		textModel:      coalesce(opts.TextModel, DefaultTextModel),
		imageModel:     coalesce(opts.ImageModel, DefaultImageModel),
		baseURL:        strings.TrimSpace(opts.BaseURL),
		httpClient:     opts.HTTPClient,
		thinkingBudget: int32(opts.ThinkingBudget),
		aspectRatio:    coalesce(opts.AspectRatio, DefaultAspectRatio),
		imageSize:      coalesce(opts.ImageSize, DefaultImageSize),
		transcodeJPEG:  opts.TranscodeJPEG,
		logger:         zerolog.Nop(),
	}
	if opts.ThinkingBudget <= 0 {
		c.thinkingBudget = DefaultThinkingBudget
	}
	if opts.Logger != nil {
		c.logger = opts.Logger.With().Str("component", "genai").Logger()
	}
	return c, nil
}

// GenerateCopy asks the text model for a CopyPackage describing brief. The
// reference image, when present, is attached after the brief.
func (c *Client) GenerateCopy(ctx context.Context, brief string, ref *domain.ReferenceImage) (*domain.CopyPackage, error) {
	started := time.Now()
	pkg, err := c.generateCopy(ctx, brief, ref)
	c.observe(opCopy, c.textModel, started, err)
	return pkg, err
}

func (c *Client) generateCopy(ctx context.Context, brief string, ref *domain.ReferenceImage) (*domain.CopyPackage, error) {
	if strings.TrimSpace(brief) == "" {
		return nil, domain.NewFailure(domain.KindInvalidRequest, "A product brief is required.")
	}
	client, err := c.sdkClient(ctx)
	if err != nil {
		return nil, err
	}

	parts := []*sdk.Part{sdk.NewPartFromText(brief)}
	if !ref.IsZero() {
		part, err := c.imagePart(*ref)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	budget := c.thinkingBudget
	cfg := &sdk.GenerateContentConfig{
		SystemInstruction: sdk.NewContentFromText(copyStrategistInstruction, sdk.RoleUser),
		ResponseMIMEType:  jsonMIME,
		ResponseSchema:    copySchema(),
		ThinkingConfig:    &sdk.ThinkingConfig{ThinkingBudget: &budget},
	}

	resp, err := client.Models.GenerateContent(ctx, c.textModel, []*sdk.Content{sdk.NewContentFromParts(parts, sdk.RoleUser)}, cfg)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	if resp == nil {
		return nil, domain.NewFailure(domain.KindEmptyResponse, "Strategy engine returned an empty response.")
	}
	return decodeCopyPackage(resp.Text())
}

// EditImageBackground replaces the background of img with environment while
// keeping the product intact.
func (c *Client) EditImageBackground(ctx context.Context, img domain.ReferenceImage, environment string) (*domain.Image, error) {
	started := time.Now()
	out, err := c.editImageBackground(ctx, img, environment)
	c.observe(opRetouch, c.imageModel, started, err)
	return out, err
}

func (c *Client) editImageBackground(ctx context.Context, img domain.ReferenceImage, environment string) (*domain.Image, error) {
	if img.IsZero() {
		return nil, domain.NewFailure(domain.KindInvalidRequest, "A reference image is required for retouching.")
	}
	if strings.TrimSpace(environment) == "" {
		return nil, domain.NewFailure(domain.KindInvalidRequest, "Describe the new environment for the retouch.")
	}
	part, err := c.imagePart(img)
	if err != nil {
		return nil, err
	}
	parts := []*sdk.Part{part, sdk.NewPartFromText(retouchPrompt(environment))}
	return c.generateImage(ctx, parts, "Image synthesis returned no image data.")
}

// GenerateStagedImage renders one staged scene. With a reference image the
// product is replicated under the brand-integrity instruction; without one a
// generic commercial shot is requested.
func (c *Client) GenerateStagedImage(ctx context.Context, prompt string, ref *domain.ReferenceImage) (*domain.Image, error) {
	started := time.Now()
	out, err := c.generateStagedImage(ctx, prompt, ref)
	c.observe(opStaged, c.imageModel, started, err)
	return out, err
}

func (c *Client) generateStagedImage(ctx context.Context, prompt string, ref *domain.ReferenceImage) (*domain.Image, error) {
	var parts []*sdk.Part
	if !ref.IsZero() {
		part, err := c.imagePart(*ref)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part, sdk.NewPartFromText(stagedPrompt(prompt)))
	} else {
		parts = append(parts, sdk.NewPartFromText(genericPrompt(prompt)))
	}
	return c.generateImage(ctx, parts, "Creative synthesis returned no image data.")
}

func (c *Client) generateImage(ctx context.Context, parts []*sdk.Part, missingMessage string) (*domain.Image, error) {
	client, err := c.sdkClient(ctx)
	if err != nil {
		return nil, err
	}
	cfg := &sdk.GenerateContentConfig{
		ImageConfig: &sdk.ImageConfig{
			AspectRatio: c.aspectRatio,
			ImageSize:   c.imageSize,
		},
	}
	resp, err := client.Models.GenerateContent(ctx, c.imageModel, []*sdk.Content{sdk.NewContentFromParts(parts, sdk.RoleUser)}, cfg)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	img := firstInlineImage(resp)
	if img == nil {
		return nil, domain.NewFailure(domain.KindNoImageReturned, missingMessage)
	}
	return img, nil
}

func (c *Client) imagePart(img domain.ReferenceImage) (*sdk.Part, error) {
	data := img.Data
	if c.transcodeJPEG {
		converted, err := media.ToJPEG(data)
		if err != nil {
			return nil, domain.WrapFailure(domain.KindInvalidRequest, err, "The reference image could not be converted to JPEG.")
		}
		data = converted
	}
	return sdk.NewPartFromBytes(data, outboundImageMIME), nil
}

// sdkClient returns an SDK client bound to the current key, rebuilding it
// when the key changes.
func (c *Client) sdkClient(ctx context.Context) (*sdk.Client, error) {
	key, err := c.keys.APIKey(ctx)
	if err != nil {
		if f, ok := domain.AsFailure(err); ok {
			return nil, f
		}
		return nil, domain.WrapFailure(domain.KindNeedsCredential, err, "Select a Gemini API key to continue.")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.NewFailure(domain.KindNeedsCredential, "Select a Gemini API key to continue.")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && c.clientKey == key {
		return c.client, nil
	}

	cc := &sdk.ClientConfig{
		APIKey:     key,
		Backend:    sdk.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if c.baseURL != "" {
		cc.HTTPOptions = sdk.HTTPOptions{BaseURL: c.baseURL}
	}
	client, err := sdk.NewClient(ctx, cc)
	if err != nil {
		return nil, domain.WrapFailure(domain.KindProviderError, err, "")
	}
	c.client = client
	c.clientKey = key
	return client, nil
}

func (c *Client) observe(op, model string, started time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	metrics.ObserveProviderCall(op, outcome, started)

	evt := c.logger.Debug()
	if err != nil {
		evt = c.logger.Warn().Err(err)
	}
	evt.Str("operation", op).
		Str("model", model).
		Str("outcome", outcome).
		Dur("elapsed", time.Since(started)).
		Msg("gemini call finished")
}

// firstInlineImage returns the first inline image part across all candidates.
func firstInlineImage(resp *sdk.GenerateContentResponse) *domain.Image {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = fallbackImageMIME
			}
			return &domain.Image{Data: part.InlineData.Data, MIMEType: mime}
		}
	}
	return nil
}

// classifyProviderError maps SDK and transport errors onto failure kinds.
// Rejected credentials additionally ask the caller to forget the key.
func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}
	if f, ok := domain.AsFailure(err); ok {
		return f
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ToFailure(err)
	}

	message := err.Error()
	var apiErr sdk.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		message = apiErr.Message
	}
	if strings.Contains(err.Error(), credentialRejectedMarker) {
		return &domain.Failure{
			Kind:                 domain.KindCredentialRejected,
			Message:              message,
			InvalidateCredential: true,
			Err:                  err,
		}
	}
	return domain.WrapFailure(domain.KindProviderError, err, message)
}

func coalesce(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}
