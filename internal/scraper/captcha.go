package scraper

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
)

// Solver is the captcha oracle: it receives the challenge image and returns
// the predicted code. The model behind it is opaque to the pipeline.
type Solver interface {
	Solve(ctx context.Context, image []byte) (string, error)
}

// HTTPSolver calls the external captcha model service.
type HTTPSolver struct {
	client *resty.Client
	url    string
}

// NewHTTPSolver creates a solver client for the given service endpoint.
func NewHTTPSolver(url string, timeout time.Duration) *HTTPSolver {
	return &HTTPSolver{
		client: resty.New().SetTimeout(timeout),
		url:    url,
	}
}

func (s *HTTPSolver) Solve(ctx context.Context, image []byte) (string, error) {
	var out struct {
		Code string `json:"code"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "image/png").
		SetBody(image).
		SetResult(&out).
		Post(s.url)
	if err != nil {
		return "", eris.Wrap(err, "captcha: solve request")
	}
	if resp.IsError() {
		return "", eris.Errorf("captcha: solver returned status %d", resp.StatusCode())
	}
	if out.Code == "" {
		return "", eris.New("captcha: solver returned empty code")
	}
	return out.Code, nil
}
