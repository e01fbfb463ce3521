package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brightpath-edu/ms-go-billing/app/entity"
)

type StripeConfig struct {
	SecretKey   string
	BaseURL     string
	HTTPTimeout time.Duration
}

type StripeGateway struct {
	cfg    StripeConfig
	client *http.Client
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.stripe.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &StripeGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, guardian *entity.Guardian) (string, error) {
	if strings.TrimSpace(g.cfg.SecretKey) == "" {
		return "", errors.New("stripe secret key is not configured")
	}

	values := url.Values{}
	values.Set("name", guardian.FullName())
	values.Set("email", strings.TrimSpace(guardian.Email))
	values.Set("metadata[guardian_id]", strconv.FormatUint(guardian.ID, 10))

	body, err := g.postForm(ctx, "/v1/customers", values)
	if err != nil {
		return "", err
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}
	customerID := strings.TrimSpace(payload.ID)
	if customerID == "" {
		return "", errors.New("stripe customer id missing")
	}
	return customerID, nil
}

func (g *StripeGateway) ValidateCustomer(ctx context.Context, customerID string) (bool, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return false, nil
	}

	path := "/v1/customers/" + url.PathEscape(customerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+path, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return false, &Error{Path: path, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 400 {
		return false, &Error{StatusCode: resp.StatusCode, Path: path, Message: string(body)}
	}

	var payload struct {
		ID      string `json:"id"`
		Deleted bool   `json:"deleted"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, err
	}
	return payload.ID != "" && !payload.Deleted, nil
}

func (g *StripeGateway) ChargeOffSession(ctx context.Context, input *ChargeInput) (*ChargeResult, error) {
	if strings.TrimSpace(g.cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is not configured")
	}

	values := url.Values{}
	values.Set("amount", strconv.FormatInt(input.AmountMinorUnits, 10))
	values.Set("currency", strings.ToLower(input.Currency))
	values.Set("customer", input.CustomerID)
	values.Set("payment_method", input.PaymentMethodID)
	values.Set("off_session", "true")
	values.Set("confirm", "true")
	for k, v := range input.Metadata {
		values.Set("metadata["+k+"]", v)
	}

	body, err := g.postForm(ctx, "/v1/payment_intents", values)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	return &ChargeResult{
		Status:     strings.TrimSpace(payload.Status),
		ExternalID: strings.TrimSpace(payload.ID),
	}, nil
}

func (g *StripeGateway) CreateInvoice(ctx context.Context, input *InvoiceInput) (*Invoice, error) {
	if strings.TrimSpace(g.cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is not configured")
	}

	invoiceValues := url.Values{}
	invoiceValues.Set("customer", input.CustomerID)
	invoiceValues.Set("auto_advance", "true")
	if input.AutoCollect {
		invoiceValues.Set("collection_method", "charge_automatically")
	} else {
		invoiceValues.Set("collection_method", "send_invoice")
		invoiceValues.Set("days_until_due", strconv.Itoa(input.DaysUntilDue))
	}
	for k, v := range input.Metadata {
		invoiceValues.Set("metadata["+k+"]", v)
	}

	invoiceResp, err := g.postForm(ctx, "/v1/invoices", invoiceValues)
	if err != nil {
		return nil, err
	}
	var invoice struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(invoiceResp, &invoice); err != nil {
		return nil, err
	}
	invoiceID := strings.TrimSpace(invoice.ID)
	if invoiceID == "" {
		return nil, errors.New("stripe invoice id missing")
	}

	for _, item := range input.LineItems {
		itemValues := url.Values{}
		itemValues.Set("customer", input.CustomerID)
		itemValues.Set("invoice", invoiceID)
		itemValues.Set("amount", strconv.FormatInt(item.AmountMinorUnits, 10))
		itemValues.Set("currency", strings.ToLower(input.Currency))
		itemValues.Set("description", item.Description)
		if _, err := g.postForm(ctx, "/v1/invoiceitems", itemValues); err != nil {
			return nil, err
		}
	}

	finalizeResp, err := g.postForm(ctx, "/v1/invoices/"+url.PathEscape(invoiceID)+"/finalize", url.Values{})
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		AmountDue        int64  `json:"amount_due"`
		HostedInvoiceURL string `json:"hosted_invoice_url"`
		DueDate          int64  `json:"due_date"`
	}
	if err := json.Unmarshal(finalizeResp, &payload); err != nil {
		return nil, err
	}

	result := &Invoice{
		ID:        strings.TrimSpace(payload.ID),
		Status:    strings.TrimSpace(payload.Status),
		AmountDue: payload.AmountDue,
		HostedURL: strings.TrimSpace(payload.HostedInvoiceURL),
	}
	if payload.DueDate > 0 {
		due := time.Unix(payload.DueDate, 0).UTC()
		result.DueDate = &due
	}
	return result, nil
}

func (g *StripeGateway) postForm(ctx context.Context, path string, values url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &Error{Path: path, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &Error{StatusCode: resp.StatusCode, Path: path, Message: string(body)}
	}

	return body, nil
}
