package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	apperrors "lodgic/pkg/errors"
	"lodgic/pkg/model"
)

// UnitsClient fetches unit constraint metadata from the units service. The
// reservations service uses it when the unit directory is deployed separately;
// with a shared database it reads the Units collection directly instead.
type UnitsClient struct {
	baseURL string
	http    *http.Client
}

func NewUnitsClient(baseURL string, timeout time.Duration) *UnitsClient {
	return &UnitsClient{
		baseURL: baseURL,
		http:    NewHTTPClient(timeout),
	}
}

type unitEnvelope struct {
	Data *model.Unit `json:"data"`
}

func (c *UnitsClient) GetUnit(ctx context.Context, id string) (*model.Unit, error) {
	endpoint := fmt.Sprintf("%s/api/v1/units/id/%s", c.baseURL, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.Internal("Failed to build units request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Unavailable("Units service is unreachable")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, apperrors.NotFoundWithID("Unit", id)
	default:
		return nil, apperrors.Unavailable(fmt.Sprintf("Units service returned status %d", resp.StatusCode))
	}

	var envelope unitEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, apperrors.Internal("Failed to decode units response", err)
	}
	if envelope.Data == nil {
		return nil, apperrors.NotFoundWithID("Unit", id)
	}

	return envelope.Data, nil
}
