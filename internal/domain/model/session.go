package model

import "time"

// Point is one geographical sample on a vessel track. Speed is optional in
// submitted payloads.
type Point struct {
	PointID   int       `json:"point_id"`
	Lat       float64   `json:"lat"`
	Long      float64   `json:"long"`
	Speed     float64   `json:"speed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TrajectorySession is the payload of a trajectory_session job: the observed
// track plus the requested number of forecast points. PredPoints is filled in
// by the predictor when the job completes.
type TrajectorySession struct {
	SessionID   string  `json:"session_id"`
	VesselID    string  `json:"vessel_id"`
	NPred       int     `json:"n_pred"`
	GivenPoints []Point `json:"given_points"`
	PredPoints  []Point `json:"pred_points,omitempty"`
}

// MinGivenPoints is the smallest track the predictor can extrapolate from.
const MinGivenPoints = 2
