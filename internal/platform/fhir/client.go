package fhir

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ehr/priorauth/internal/platform/result"
)

// SearchClient is the status source consumed by the encounter poller and the
// clinical data aggregator.
type SearchClient interface {
	Search(ctx context.Context, resourceType string, query map[string]string) result.Result[*Bundle]
}

// Client performs FHIR REST searches against a remote server.
type Client struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
}

// NewClient creates a Client for baseURL. A nil TokenSource sends requests
// without an Authorization header.
func NewClient(baseURL string, tokens TokenSource) *Client {
	if tokens == nil {
		tokens = StaticTokenSource("")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Search issues GET {base}/{resourceType}?{query} and decodes the searchset.
func (c *Client) Search(ctx context.Context, resourceType string, query map[string]string) result.Result[*Bundle] {
	if resourceType == "" {
		return result.Fail[*Bundle](result.ValidationError("fhir.search", "resource type is required"))
	}

	tok := c.tokens.Token(ctx)
	if tok.IsFailure() {
		return result.Fail[*Bundle](tok.Err())
	}

	values := url.Values{}
	for k, v := range query {
		values.Set(k, v)
	}
	u := c.baseURL + "/" + resourceType
	if len(values) > 0 {
		u += "?" + values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return result.Fail[*Bundle](result.UnexpectedError("fhir.request", "build search request", err))
	}
	req.Header.Set("Accept", "application/fhir+json")
	if t := tok.Value(); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return result.Fail[*Bundle](result.InfrastructureError("fhir.unreachable",
			fmt.Sprintf("search %s failed", resourceType), err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return result.Fail[*Bundle](result.NewError(result.FromHTTPStatus(resp.StatusCode), "fhir.status",
			fmt.Sprintf("search %s returned status %d", resourceType, resp.StatusCode)))
	}

	var bundle Bundle
	if err := json.NewDecoder(resp.Body).Decode(&bundle); err != nil {
		return result.Fail[*Bundle](result.InfrastructureError("fhir.decode", "decode search bundle", err))
	}
	if bundle.ResourceType != "Bundle" {
		return result.Fail[*Bundle](result.ValidationError("fhir.decode",
			fmt.Sprintf("expected Bundle, got %q", bundle.ResourceType)))
	}
	return result.Ok(&bundle)
}
