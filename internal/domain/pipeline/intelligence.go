package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ehr/priorauth/internal/platform/result"
)

type AnalyzeRequest struct {
	PatientID     string        `json:"patient_id"`
	ProcedureCode string        `json:"procedure_code"`
	ClinicalData  *ClinicalData `json:"clinical_data"`
}

// Analysis is the part of the analysis service's response the pipeline acts
// on. Recommendation is nil when the service omitted it.
type Analysis struct {
	Recommendation  *string  `json:"recommendation"`
	ConfidenceScore float64  `json:"confidence_score"`
	ClinicalSummary string   `json:"clinical_summary"`
	DiagnosisCodes  []string `json:"diagnosis_codes"`
	PolicyID        *string  `json:"policy_id"`
}

type Analyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) result.Result[*Analysis]
}

// IntelligenceClient calls the clinical analysis service.
type IntelligenceClient struct {
	baseURL string
	client  *http.Client
}

func NewIntelligenceClient(baseURL string) *IntelligenceClient {
	return &IntelligenceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Analyze posts to {base}/analyze.
func (c *IntelligenceClient) Analyze(ctx context.Context, req AnalyzeRequest) result.Result[*Analysis] {
	body, err := json.Marshal(req)
	if err != nil {
		return result.Fail[*Analysis](result.UnexpectedError("intelligence.encode", "encode analyze request", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return result.Fail[*Analysis](result.UnexpectedError("intelligence.request", "build analyze request", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return result.Fail[*Analysis](result.InfrastructureError("intelligence.unreachable", "analysis service unreachable", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return result.Fail[*Analysis](result.NewError(result.FromHTTPStatus(resp.StatusCode), "intelligence.status",
			fmt.Sprintf("analysis service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))))
	}

	var a Analysis
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		return result.Fail[*Analysis](result.Wrap(result.Validation, "intelligence.decode", "malformed analysis response", err))
	}
	return result.Ok(&a)
}
