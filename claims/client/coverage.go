package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/mitchellh/mapstructure"
	"github.com/pborman/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medassure/claims-engine/claims/constants"
	claimerrors "github.com/medassure/claims-engine/claims/errors"
	"github.com/medassure/claims-engine/conf"
	"github.com/medassure/claims-engine/log"
)

// APIClient is the capability the pipeline needs from the coverage
// verification service: one verify call per claim plus the claimant's prior
// claim history.
type APIClient interface {
	VerifyCoverage(ctx context.Context, req CoverageRequest) (*CoverageResponse, error)
	GetClaimHistory(ctx context.Context, policyNumber, patientName string) (*ClaimHistoryResponse, error)
}

type CoverageRequest struct {
	PolicyNumber string `json:"policy_number"`
	PatientName  string `json:"patient_name"`
	PatientAge   int    `json:"patient_age,omitempty"`
}

// CoverageResponse is the tolerantly-decoded shape of the verification
// payload. Monetary fields stay strings here; the verifier converts them and
// degrades per field when conversion fails.
type CoverageResponse struct {
	Covered            bool   `mapstructure:"covered"`
	PolicyStatus       string `mapstructure:"policy_status"`
	Insurer            string `mapstructure:"insurer"`
	Product            string `mapstructure:"product"`
	PolicyVersion      int    `mapstructure:"policy_version"`
	SumInsured         string `mapstructure:"sum_insured"`
	BalanceSumInsured  string `mapstructure:"balance_sum_insured"`
	RoomRentLimit      string `mapstructure:"room_rent_limit"`
	CoPaymentPercent   string `mapstructure:"co_payment_percent"`
	Deductible         string `mapstructure:"deductible"`
	PreExistingCovered bool   `mapstructure:"pre_existing_covered"`
}

type PastClaimResponse struct {
	ID             string `mapstructure:"id"`
	Date           string `mapstructure:"date"`
	ClaimedAmount  string `mapstructure:"claimed_amount"`
	ApprovedAmount string `mapstructure:"approved_amount"`
	Status         string `mapstructure:"status"`
}

type ClaimHistoryResponse struct {
	TotalClaims int                 `mapstructure:"total_claims"`
	Claims      []PastClaimResponse `mapstructure:"claims"`
}

type Config struct {
	BaseURL   string `conf:"COVERAGE_API_URL"`
	TimeoutMS int    `conf:"COVERAGE_TIMEOUT_MS" conf_default:"5000"`
	Retries   int    `conf:"COVERAGE_RETRIES" conf_default:"3"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := conf.Checkout(cfg); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("invalid config, COVERAGE_API_URL must be set")
	}
	return cfg, nil
}

// CoverageAPIClient is the live adapter for the external coverage service.
type CoverageAPIClient struct {
	baseURL    string
	httpClient *retryablehttp.Client
	logger     logrus.FieldLogger
}

var _ APIClient = &CoverageAPIClient{}

func NewCoverageAPIClient() (*CoverageAPIClient, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewCoverageAPIClientWithConfig(cfg), nil
}

func NewCoverageAPIClientWithConfig(cfg *Config) *CoverageAPIClient {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.Retries
	client.Logger = nil
	// Surface the final response after exhausted retries so non-200 statuses
	// map to UnexpectedStatusCodeError instead of a generic giving-up error.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	// The per-request timeout bounds every attempt, retries included, so a
	// downed verification service cannot stall the pipeline.
	client.HTTPClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond

	return &CoverageAPIClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: client,
		logger:     log.Coverage,
	}
}

func (c *CoverageAPIClient) VerifyCoverage(ctx context.Context, covReq CoverageRequest) (*CoverageResponse, error) {
	body, err := json.Marshal(covReq)
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, c.baseURL+"/coverage/verify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &CoverageResponse{}
	if err := decodePayload(raw, result); err != nil {
		return nil, fmt.Errorf("malformed coverage response: %w", err)
	}
	return result, nil
}

func (c *CoverageAPIClient) GetClaimHistory(ctx context.Context, policyNumber, patientName string) (*ClaimHistoryResponse, error) {
	params := url.Values{}
	params.Set("policy_number", policyNumber)
	params.Set("patient_name", patientName)

	req, err := retryablehttp.NewRequest(http.MethodGet, c.baseURL+"/claims/history?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	raw, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &ClaimHistoryResponse{}
	if err := decodePayload(raw, result); err != nil {
		return nil, fmt.Errorf("malformed claim history response: %w", err)
	}
	return result, nil
}

func (c *CoverageAPIClient) do(ctx context.Context, req *retryablehttp.Request) ([]byte, error) {
	reqID := uuid.NewRandom()
	addRequestHeaders(req, reqID)
	req.Request = req.Request.WithContext(ctx)

	resp, err := c.httpClient.Do(req)
	c.logRequest(req, resp, reqID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &claimerrors.UnexpectedStatusCodeError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("coverage service returned %s for %s", resp.Status, req.URL.Path),
		}
	}
	return data, nil
}

// decodePayload runs the raw JSON through a weakly-typed mapstructure decode
// so numeric, string, and boolean representations from the service all land
// in the response struct. Unknown fields are dropped, missing fields keep
// their zero value.
func decodePayload(raw []byte, out interface{}) error {
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(payload)
}

func addRequestHeaders(req *retryablehttp.Request, reqID uuid.UUID) {
	req.Header.Set("X-Request-Id", reqID.String())
	req.Header.Set("X-Request-Timestamp", time.Now().UTC().Format(time.RFC3339))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "claims-engine/"+constants.Version)
}

func (c *CoverageAPIClient) logRequest(req *retryablehttp.Request, resp *http.Response, reqID uuid.UUID) {
	c.logger.WithFields(logrus.Fields{
		"request_id": reqID.String(),
		"uri":        req.URL.String(),
	}).Infoln("coverage service request")

	if resp != nil {
		c.logger.WithFields(logrus.Fields{
			"request_id":     reqID.String(),
			"resp_code":      resp.StatusCode,
			"content_length": resp.ContentLength,
		}).Infoln("coverage service response")
	}
}
