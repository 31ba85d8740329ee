package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"vessel-trajectory-service/internal/config"
	"vessel-trajectory-service/internal/domain"
	"vessel-trajectory-service/internal/domain/model"
	"vessel-trajectory-service/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var _ adapter.PredictorAdapter = (*HTTPPredictor)(nil)

// HTTPPredictor calls the remote trajectory compute endpoint. One request,
// one response; retries are the queue's redelivery policy, not ours. The
// client timeout bounds the call so a hung predictor surfaces as a failure
// instead of a stuck job.
type HTTPPredictor struct {
	url    string
	client *http.Client
	log    *zerolog.Logger
}

func NewHTTPPredictor(cfg config.PredictorConfig, logger *zerolog.Logger) *HTTPPredictor {
	return &HTTPPredictor{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger,
	}
}

type predictRequest struct {
	GivenPoints []model.Point `json:"given_points"`
	NPred       int           `json:"n_pred"`
}

type predictResponse struct {
	PredPoints []model.Point `json:"pred_points"`
}

func (p *HTTPPredictor) Predict(ctx context.Context, session *model.TrajectorySession) ([]model.Point, error) {
	body, err := json.Marshal(predictRequest{GivenPoints: session.GivenPoints, NPred: session.NPred})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: predictor returned %s", domain.ErrTransport, resp.Status)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode prediction: %v", domain.ErrTransport, err)
	}
	if len(out.PredPoints) == 0 {
		return nil, fmt.Errorf("%w: predictor returned no points", domain.ErrTransport)
	}

	p.log.Debug().Str("session_id", session.SessionID).
		Int("pred_points", len(out.PredPoints)).Msg("prediction received")
	return out.PredPoints, nil
}
