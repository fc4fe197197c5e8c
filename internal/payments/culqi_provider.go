package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m2l-store/api/internal/platform/textutil"
)

const (
	culqiChargesURL = "https://api.culqi.com/v2/charges"

	culqiTestKeyPrefix = "sk_test_"

	defaultCulqiTimeout = 30 * time.Second
)

// CulqiProviderConfig configures the CulqiProvider.
type CulqiProviderConfig struct {
	// SecretKey is the merchant's private API key. Keys prefixed sk_test_
	// route charges to the gateway's test environment.
	SecretKey string
	// BaseURL overrides the charges endpoint, primarily for tests.
	BaseURL    string
	HTTPClient *http.Client
	Logger     GatewayLogger
	Clock      func() time.Time
}

// CulqiProvider implements CardCharger against the Culqi charges API.
type CulqiProvider struct {
	secretKey string
	baseURL   string
	client    *http.Client
	logger    GatewayLogger
	clock     func() time.Time
}

// NewCulqiProvider constructs a Culqi-backed card charger.
func NewCulqiProvider(cfg CulqiProviderConfig) (*CulqiProvider, error) {
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errors.New("culqi: secret key is required")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = culqiChargesURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultCulqiTimeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &CulqiProvider{
		secretKey: secretKey,
		baseURL:   baseURL,
		client:    client,
		logger:    logger,
		clock:     clock,
	}, nil
}

var _ CardCharger = (*CulqiProvider)(nil)

// Environment reports which gateway environment the configured key targets.
func (p *CulqiProvider) Environment() string {
	if p == nil {
		return ""
	}
	if strings.HasPrefix(p.secretKey, culqiTestKeyPrefix) {
		return "test"
	}
	return "prod"
}

type culqiChargePayload struct {
	Amount       int64             `json:"amount"`
	CurrencyCode string            `json:"currency_code"`
	Email        string            `json:"email"`
	SourceID     string            `json:"source_id"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type culqiChargeResponse struct {
	Object          string `json:"object"`
	ID              string `json:"id"`
	ChargeID        string `json:"charge_id"`
	Type            string `json:"type"`
	Code            string `json:"code"`
	DeclineCode     string `json:"decline_code"`
	UserMessage     string `json:"user_message"`
	MerchantMessage string `json:"merchant_message"`
}

// Charge executes a synchronous card charge. Declines come back as a
// ChargeResult with OK false; only transport and protocol failures error.
func (p *CulqiProvider) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if p == nil {
		return ChargeResult{}, errors.New("culqi: provider is nil")
	}
	if req.Amount <= 0 {
		return ChargeResult{}, errors.New("culqi: amount must be positive")
	}
	if strings.TrimSpace(req.SourceID) == "" {
		return ChargeResult{}, errors.New("culqi: source id is required")
	}

	metadata := textutil.NormalizeStringMap(req.Metadata)
	if metadata == nil {
		metadata = make(map[string]string, 1)
	}
	if req.OrderID != "" {
		metadata["order_id"] = req.OrderID
	}

	payload := culqiChargePayload{
		Amount:       req.Amount,
		CurrencyCode: strings.ToUpper(strings.TrimSpace(req.CurrencyCode)),
		Email:        strings.TrimSpace(req.Email),
		SourceID:     strings.TrimSpace(req.SourceID),
		Description:  strings.TrimSpace(req.Description),
		Metadata:     metadata,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("culqi: encode charge: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return ChargeResult{}, fmt.Errorf("culqi: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Culqi-Environment", p.Environment())
	if req.OrderID != "" {
		httpReq.Header.Set("Idempotency-Key", "order_"+req.OrderID)
	}

	start := p.clock()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("culqi: charge request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ChargeResult{}, fmt.Errorf("culqi: read response: %w", err)
	}

	var decoded culqiChargeResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return ChargeResult{}, fmt.Errorf("culqi: decode response (status %d): %w", resp.StatusCode, err)
	}

	rawMap := map[string]any{}
	_ = json.Unmarshal(raw, &rawMap)

	elapsed := p.clock().Sub(start)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && decoded.Object != "error" {
		p.logger(ctx, "payments.culqi.charge.succeeded", map[string]any{
			"chargeId": decoded.ID,
			"orderId":  req.OrderID,
			"latency":  elapsed.String(),
		})
		return ChargeResult{OK: true, ChargeID: decoded.ID, Raw: rawMap}, nil
	}

	// 4xx with an error object is a decline verdict, not a failure of ours.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		code := decoded.DeclineCode
		if code == "" {
			code = decoded.Code
		}
		chargeID := decoded.ChargeID
		if chargeID == "" {
			chargeID = decoded.ID
		}
		p.logger(ctx, "payments.culqi.charge.declined", map[string]any{
			"orderId": req.OrderID,
			"code":    code,
			"latency": elapsed.String(),
		})
		return ChargeResult{
			OK:              false,
			ChargeID:        chargeID,
			Code:            code,
			UserMessage:     decoded.UserMessage,
			MerchantMessage: decoded.MerchantMessage,
			Raw:             rawMap,
		}, nil
	}

	return ChargeResult{}, fmt.Errorf("culqi: charge failed with status %d: %s", resp.StatusCode, decoded.MerchantMessage)
}
