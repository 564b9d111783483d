package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kingrea/claims-workbench/internal/claims"
)

const (
	// DefaultAnthropicModel is used when no model is configured.
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	defaultMaxTokens      = 2048
)

const assessmentSystemPrompt = `You are a vehicle damage assessor for an insurance claims desk.
Inspect the photos and reply with a single JSON object and nothing else, shaped as:
{"damaged_parts":[{"part_id":"rear_bumper","part_label":"Rear Bumper","severity":"minor|moderate|severe","confidence":0.0,"estimated_cost_min":0,"estimated_cost_max":0,"repair_action":"repair|replace|refinish"}],
"overall_confidence":0.0,
"recommendation":{"code":"FAST_TRACK_REVIEW|STANDARD_REVIEW|MANUAL_REVIEW|REQUEST_MORE_PHOTOS","text":""},
"flags":[],"image_quality":[],"fraud_risk_score":0.0}
Costs are integer US cents. Confidence and fraud_risk_score are within [0,1].`

// MessageCreator is the slice of the Anthropic SDK the assessor needs.
// *sdk.MessageService satisfies it.
type MessageCreator interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicConfig configures the Anthropic vision backend.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
	// MinInterval spaces consecutive requests; zero disables throttling.
	MinInterval time.Duration
}

// Anthropic assesses claims by sending photos to the Messages API.
type Anthropic struct {
	messages  MessageCreator
	model     string
	maxTokens int64
	limiter   *rate.Limiter
	logger    *zap.Logger
	clock     func() time.Time
}

// NewAnthropic creates an assessor backed by the official SDK client.
func NewAnthropic(cfg AnthropicConfig, logger *zap.Logger) (*Anthropic, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, eris.New("inference: anthropic api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(cfg.APIKey))
	return NewAnthropicWithClient(&client.Messages, cfg, logger), nil
}

// NewAnthropicWithClient wires an assessor to an existing message client.
func NewAnthropicWithClient(messages MessageCreator, cfg AnthropicConfig, logger *zap.Logger) *Anthropic {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Anthropic{
		messages:  messages,
		model:     model,
		maxTokens: maxTokens,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
		clock:     time.Now,
	}
}

// Assess sends the claim description and photos and decodes the JSON reply.
func (a *Anthropic) Assess(ctx context.Context, req Request) (claims.Assessment, error) {
	if len(req.Uploads) == 0 {
		return claims.Assessment{}, &Error{Op: "anthropic assess", Err: errors.New("no photo content supplied")}
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return claims.Assessment{}, Wrap("anthropic throttle", err)
	}

	blocks := make([]sdk.ContentBlockParamUnion, 0, len(req.Uploads)+1)
	blocks = append(blocks, sdk.NewTextBlock(describeClaim(req)))
	for _, upload := range req.Uploads {
		encoded := base64.StdEncoding.EncodeToString(upload.Data)
		blocks = append(blocks, sdk.NewImageBlockBase64(upload.DetectMIME(), encoded))
	}

	started := a.clock()
	msg, err := a.messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []sdk.TextBlockParam{{Text: assessmentSystemPrompt}},
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
	})
	if err != nil {
		return claims.Assessment{}, &Error{Op: "anthropic create message", Retryable: transientAPIError(err), Err: err}
	}
	elapsed := a.clock().Sub(started)

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	assessment, err := DecodeAssessment(text.String())
	if err != nil {
		return claims.Assessment{}, &Error{Op: "anthropic decode", Err: err}
	}
	assessment.Meta = &claims.AssessmentMeta{
		ModelVersion:     string(msg.Model),
		ProcessingTimeMS: elapsed.Milliseconds(),
		Timestamp:        started.UTC(),
	}
	a.logger.Info("anthropic assessment complete",
		zap.String("claim_id", req.Claim.ID),
		zap.Int("parts", len(assessment.DamagedParts)),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
		zap.Duration("elapsed", elapsed),
	)
	return assessment, nil
}

// transientAPIError reports whether a Messages API failure may succeed on
// retry. API errors count only for timeouts, throttling and server faults;
// anything without a status (transport failures) is retried.
func transientAPIError(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return isTransientStatus(apiErr.StatusCode)
	}
	return true
}

func isTransientStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	}
	return false
}

func describeClaim(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Policy: %s\n", req.Claim.PolicyNumber)
	if name := strings.TrimSpace(req.Claim.Name); name != "" {
		fmt.Fprintf(&b, "Claimant: %s\n", name)
	}
	if desc := strings.TrimSpace(req.Claim.Description); desc != "" {
		fmt.Fprintf(&b, "Incident: %s\n", desc)
	}
	fmt.Fprintf(&b, "Photos attached: %d", len(req.Uploads))
	return b.String()
}

// DecodeAssessment parses a model reply into an assessment. Markdown code
// fences and text around the JSON object are ignored. Totals are recomputed
// from the parts and a cost breakdown is derived when absent.
func DecodeAssessment(reply string) (claims.Assessment, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return claims.Assessment{}, eris.New("reply contains no JSON object")
	}
	var a claims.Assessment
	if err := json.Unmarshal([]byte(reply[start:end+1]), &a); err != nil {
		return claims.Assessment{}, eris.Wrap(err, "decode assessment json")
	}
	for i, part := range a.DamagedParts {
		if err := part.Validate(); err != nil {
			return claims.Assessment{}, eris.Wrapf(err, "damaged_parts[%d]", i)
		}
	}
	if a.Flags == nil {
		a.Flags = []string{}
	}
	if len(a.CostBreakdown) == 0 && len(a.DamagedParts) > 0 {
		a.CostBreakdown = make([]claims.CostBreakdownEntry, len(a.DamagedParts))
		for i, part := range a.DamagedParts {
			a.CostBreakdown[i] = claims.BreakdownFor(part)
		}
	}
	a.Recompute()
	return a, nil
}
