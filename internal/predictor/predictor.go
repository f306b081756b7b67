// Package predictor is the boundary to the external session-duration
// recommender. The rest of the application only sees the Recommender
// interface and the ErrUnavailable sentinel; a broken or missing predictor
// must never block equipment usage.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gym-access-backend/internal/model"
)

// ErrUnavailable is returned whenever a recommendation cannot be produced,
// regardless of the underlying cause (network error, bad response, model
// not loaded on the remote side). Callers fall back to the machine's base
// duration.
var ErrUnavailable = errors.New("predictor: recommendation unavailable")

// Ratios is the user's trailing-24h body-part usage split. Both values are
// zero when the user has no completed sessions in the window.
type Ratios struct {
	Upper float64 `json:"upper_ratio"`
	Lower float64 `json:"lower_ratio"`
}

// Recommender produces a raw minute recommendation for a walk-up session.
// The returned value is unclamped; the caller bounds and rounds it.
type Recommender interface {
	Recommend(ctx context.Context, profile *model.UserProfile, machineModelID int, ratios Ratios) (float64, error)
}

// HTTPRecommender calls the recommendation service over HTTP.
type HTTPRecommender struct {
	url    string
	client *http.Client
}

// NewHTTPRecommender creates a recommender client with a bounded timeout so
// a stalled predictor cannot delay session starts past the deadline.
func NewHTTPRecommender(url string, timeout time.Duration) *HTTPRecommender {
	return &HTTPRecommender{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// request mirrors the feature layout the remote model was trained with.
type request struct {
	Age        int     `json:"age"`
	Gender     string  `json:"gender"`
	HeightCm   float64 `json:"height"`
	WeightKg   float64 `json:"weight"`
	Goal       string  `json:"goal"`
	Experience string  `json:"career"`
	UpperRatio float64 `json:"upper_ratio"`
	LowerRatio float64 `json:"lower_ratio"`
	Machine    int     `json:"machine"`
}

type response struct {
	Minutes float64 `json:"minutes"`
}

// Recommend posts the profile and usage ratios to the prediction service.
// Every failure mode collapses into ErrUnavailable.
func (r *HTTPRecommender) Recommend(ctx context.Context, profile *model.UserProfile, machineModelID int, ratios Ratios) (float64, error) {
	if r.url == "" || profile == nil {
		return 0, ErrUnavailable
	}

	body, err := json.Marshal(request{
		Age:        profile.Age,
		Gender:     profile.Gender,
		HeightCm:   profile.HeightCm,
		WeightKg:   profile.WeightKg,
		Goal:       profile.FitnessGoal,
		Experience: string(profile.ExperienceLevel),
		UpperRatio: ratios.Upper,
		LowerRatio: ratios.Lower,
		Machine:    machineModelID,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if out.Minutes <= 0 {
		return 0, fmt.Errorf("%w: non-positive recommendation %.2f", ErrUnavailable, out.Minutes)
	}
	return out.Minutes, nil
}
