package fhir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Publisher delivers FHIR projections to an external FHIR endpoint.
// Create is POST {base}/{resourceType}, update is PUT
// {base}/{resourceType}/{id}. Callers treat delivery as best effort
// and must not roll back local state when it fails.
type Publisher struct {
	baseURL    string
	httpClient *http.Client
}

// PublisherOption customizes a Publisher.
type PublisherOption func(*Publisher)

// WithHTTPClient overrides the HTTP client used for deliveries.
func WithHTTPClient(c *http.Client) PublisherOption {
	return func(p *Publisher) {
		p.httpClient = c
	}
}

// NewPublisher creates a publisher targeting the given FHIR base URL.
func NewPublisher(baseURL string, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishNew delivers a newly created resource.
func (p *Publisher) PublishNew(ctx context.Context, resource map[string]interface{}) error {
	resourceType, _, err := resourceCoords(resource)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/%s", p.baseURL, resourceType)
	return p.deliver(ctx, http.MethodPost, url, resource)
}

// PublishUpdate delivers a new version of an existing resource.
func (p *Publisher) PublishUpdate(ctx context.Context, resource map[string]interface{}) error {
	resourceType, id, err := resourceCoords(resource)
	if err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("fhir: resource %s has no id", resourceType)
	}
	url := fmt.Sprintf("%s/%s/%s", p.baseURL, resourceType, id)
	return p.deliver(ctx, http.MethodPut, url, resource)
}

func (p *Publisher) deliver(ctx context.Context, method, url string, resource map[string]interface{}) error {
	payload, err := json.Marshal(resource)
	if err != nil {
		return fmt.Errorf("fhir: marshal resource: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("fhir: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/fhir+json")
	req.Header.Set("Accept", "application/fhir+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fhir: deliver %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	// Drain at most 1KB so the error carries some server context.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fhir: deliver %s %s: status %d: %s", method, url, resp.StatusCode, string(body))
	}
	return nil
}

func resourceCoords(resource map[string]interface{}) (resourceType, id string, err error) {
	resourceType, _ = resource["resourceType"].(string)
	if resourceType == "" {
		return "", "", fmt.Errorf("fhir: resource has no resourceType")
	}
	id, _ = resource["id"].(string)
	return resourceType, id, nil
}
