package fhir

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ehr/priorauth/internal/platform/result"
)

const clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// TokenSource acquires bearer tokens for the FHIR server. Failures are
// reported as Results so the poller can treat them as transient.
type TokenSource interface {
	Token(ctx context.Context) result.Result[string]
}

// StaticTokenSource returns a fixed token. An empty token disables the
// Authorization header entirely.
type StaticTokenSource string

func (s StaticTokenSource) Token(_ context.Context) result.Result[string] {
	return result.Ok(string(s))
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// ClientCredentialsTokenSource implements the SMART Backend Services
// client_credentials grant using a signed JWT client assertion. Tokens are
// cached until shortly before they expire.
type ClientCredentialsTokenSource struct {
	TokenURL   string
	ClientID   string
	SigningKey []byte
	Scope      string

	client *http.Client
	now    func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewClientCredentialsTokenSource creates a token source posting to tokenURL.
func NewClientCredentialsTokenSource(tokenURL, clientID string, signingKey []byte) *ClientCredentialsTokenSource {
	return &ClientCredentialsTokenSource{
		TokenURL:   tokenURL,
		ClientID:   clientID,
		SigningKey: signingKey,
		Scope:      "system/Encounter.read system/Condition.read system/Observation.read system/Procedure.read",
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

// refreshSkew is how long before expiry a cached token is considered stale.
const refreshSkew = 30 * time.Second

func (s *ClientCredentialsTokenSource) Token(ctx context.Context) result.Result[string] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Add(refreshSkew).Before(s.expiresAt) {
		return result.Ok(s.token)
	}

	assertion, err := s.assertion()
	if err != nil {
		return result.Fail[string](result.UnexpectedError("token.assertion", "sign client assertion", err))
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_assertion_type", clientAssertionType)
	form.Set("client_assertion", assertion)
	if s.Scope != "" {
		form.Set("scope", s.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return result.Fail[string](result.UnexpectedError("token.request", "build token request", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return result.Fail[string](result.InfrastructureError("token.unreachable", "token endpoint unreachable", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result.Fail[string](result.NewError(result.FromHTTPStatus(resp.StatusCode), "token.rejected",
			fmt.Sprintf("token endpoint returned status %d", resp.StatusCode)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return result.Fail[string](result.InfrastructureError("token.decode", "decode token response", err))
	}
	if tr.AccessToken == "" {
		return result.Fail[string](result.InfrastructureError("token.empty", "token response has no access_token", nil))
	}

	s.token = tr.AccessToken
	s.expiresAt = s.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return result.Ok(s.token)
}

func (s *ClientCredentialsTokenSource) assertion() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.ClientID,
		Subject:   s.ClientID,
		Audience:  jwt.ClaimStrings{s.TokenURL},
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.SigningKey)
}
