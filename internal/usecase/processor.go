package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vessel-trajectory-service/internal/config"
	"vessel-trajectory-service/internal/domain"
	"vessel-trajectory-service/internal/domain/model"
	"vessel-trajectory-service/internal/domain/ports/adapter"
)

// JobProcessor is the per-kind work contract: structural validation, the
// admission-time price, the remote computation, and folding the result back
// into the stored payload. Process is a single round trip; redelivery on
// failure is the queue's concern.
type JobProcessor interface {
	Kind() model.JobKind
	Validate(payload json.RawMessage) error
	Price(payload json.RawMessage) (int64, error)
	Process(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
	MergeResult(payload, result json.RawMessage) (json.RawMessage, error)
}

// ProcessorRegistry selects a processor by payload kind. Payload variants are
// a tagged union; adding a kind means registering one more processor here.
type ProcessorRegistry struct {
	procs map[model.JobKind]JobProcessor
}

func NewProcessorRegistry(procs ...JobProcessor) *ProcessorRegistry {
	r := &ProcessorRegistry{procs: make(map[model.JobKind]JobProcessor, len(procs))}
	for _, p := range procs {
		r.procs[p.Kind()] = p
	}
	return r
}

func (r *ProcessorRegistry) Get(kind model.JobKind) (JobProcessor, error) {
	p, ok := r.procs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownJobKind, kind)
	}
	return p, nil
}

// Compile-time check
var _ JobProcessor = (*sessionJobProcessor)(nil)

type sessionJobProcessor struct {
	predictor adapter.PredictorAdapter
	pricing   config.PricingConfig
}

func NewSessionJobProcessor(predictor adapter.PredictorAdapter, pricing config.PricingConfig) *sessionJobProcessor {
	return &sessionJobProcessor{predictor: predictor, pricing: pricing}
}

func (p *sessionJobProcessor) Kind() model.JobKind { return model.JobKindTrajectorySession }

// rawPoint and rawSession use pointer fields so a missing key is
// distinguishable from a zero value.
type rawPoint struct {
	PointID   *int     `json:"point_id"`
	Lat       *float64 `json:"lat"`
	Long      *float64 `json:"long"`
	Speed     *float64 `json:"speed"`
	Timestamp *string  `json:"timestamp"`
}

type rawSession struct {
	SessionID   *string    `json:"session_id"`
	VesselID    *string    `json:"vessel_id"`
	NPred       *int       `json:"n_pred"`
	GivenPoints []rawPoint `json:"given_points"`
}

// Validate fails closed: any missing or malformed field rejects the payload.
func (p *sessionJobProcessor) Validate(payload json.RawMessage) error {
	var s rawSession
	if err := json.Unmarshal(payload, &s); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if s.SessionID == nil || *s.SessionID == "" {
		return fmt.Errorf("%w: missing session_id", domain.ErrInvalidPayload)
	}
	if s.VesselID == nil || *s.VesselID == "" {
		return fmt.Errorf("%w: missing vessel_id", domain.ErrInvalidPayload)
	}
	if s.NPred == nil || *s.NPred < 1 {
		return fmt.Errorf("%w: n_pred must be >= 1", domain.ErrInvalidPayload)
	}
	if len(s.GivenPoints) < model.MinGivenPoints {
		return fmt.Errorf("%w: at least %d given points required", domain.ErrInvalidPayload, model.MinGivenPoints)
	}
	for i, pt := range s.GivenPoints {
		if pt.PointID == nil {
			return fmt.Errorf("%w: given_points[%d] missing point_id", domain.ErrInvalidPayload, i)
		}
		if pt.Lat == nil || pt.Long == nil {
			return fmt.Errorf("%w: given_points[%d] missing coordinates", domain.ErrInvalidPayload, i)
		}
		if pt.Timestamp == nil {
			return fmt.Errorf("%w: given_points[%d] missing timestamp", domain.ErrInvalidPayload, i)
		}
		if _, err := time.Parse(time.RFC3339, *pt.Timestamp); err != nil {
			return fmt.Errorf("%w: given_points[%d] timestamp not parsable: %v", domain.ErrInvalidPayload, i, err)
		}
	}
	return nil
}

// Price is a pure function of n_pred: the first BasePoints forecast points at
// the base rate, extra points at the extended rate plus a one-off surcharge.
// It runs exactly once, at admission; the result is stored on the job.
func (p *sessionJobProcessor) Price(payload json.RawMessage) (int64, error) {
	var s struct {
		NPred int `json:"n_pred"`
	}
	if err := json.Unmarshal(payload, &s); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	n := int64(s.NPred)
	base := int64(p.pricing.BasePoints)
	if n <= base {
		return n * p.pricing.BaseRateMicros, nil
	}
	return (n-base)*p.pricing.ExtendedRateMicros + p.pricing.ExtendedSurchargeMicros, nil
}

func (p *sessionJobProcessor) Process(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var sess model.TrajectorySession
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	points, err := p.predictor.Predict(ctx, &sess)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		PredPoints []model.Point `json:"pred_points"`
	}{PredPoints: points})
}

func (p *sessionJobProcessor) MergeResult(payload, result json.RawMessage) (json.RawMessage, error) {
	var sess model.TrajectorySession
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("merge payload: %w", err)
	}
	var res struct {
		PredPoints []model.Point `json:"pred_points"`
	}
	if err := json.Unmarshal(result, &res); err != nil {
		return nil, fmt.Errorf("merge result: %w", err)
	}
	sess.PredPoints = res.PredPoints
	return json.Marshal(&sess)
}
