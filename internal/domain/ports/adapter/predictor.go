package adapter

import (
	"context"

	"vessel-trajectory-service/internal/domain/model"
)

// PredictorAdapter is the port for the remote trajectory compute endpoint.
// Predict is a single round trip with no internal retry; redelivery policy
// belongs to the queue, not to this contract.
type PredictorAdapter interface {
	Predict(ctx context.Context, session *model.TrajectorySession) ([]model.Point, error)
}
