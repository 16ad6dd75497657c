package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Hold is a reserved-but-not-captured amount on the learner's payment
// instrument. ClientSecret is handed to the frontend to complete the
// payment gesture.
type Hold struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	AmountCents  int64  `json:"amount"`
	Currency     string `json:"currency"`
}

type Receipt struct {
	ID          string `json:"id"`
	AmountCents int64  `json:"amount"`
	Currency    string `json:"currency"`
}

// Client talks to the payment processor's REST API. Authentication is the
// secret key as basic-auth username with an empty password. Every mutating
// call carries an Idempotency-Key header so ambiguous retries are safe.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateHold requests a deferred-capture authorization. Funds are reserved
// but nothing is transferred until Capture.
func (c *Client) CreateHold(ctx context.Context, amountCents int64, currency, bookingToken, idemKey string) (*Hold, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", currency)
	form.Set("capture_method", "manual")
	form.Set("metadata[booking_token]", bookingToken)

	var hold Hold
	if err := c.post(ctx, "/v1/holds", form, idemKey, &hold); err != nil {
		return nil, err
	}
	return &hold, nil
}

// Capture converts the hold into an actual transfer of the given amount.
func (c *Client) Capture(ctx context.Context, holdRef string, amountCents int64, idemKey string) (*Receipt, error) {
	form := url.Values{}
	form.Set("amount_to_capture", strconv.FormatInt(amountCents, 10))

	var receipt Receipt
	if err := c.post(ctx, "/v1/holds/"+holdRef+"/capture", form, idemKey, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Release cancels an uncaptured hold, freeing the reserved funds.
func (c *Client) Release(ctx context.Context, holdRef, idemKey string) error {
	return c.post(ctx, "/v1/holds/"+holdRef+"/release", url.Values{}, idemKey, nil)
}

// Refund returns a captured amount to the learner.
func (c *Client) Refund(ctx context.Context, holdRef string, amountCents int64, idemKey string) (*Receipt, error) {
	form := url.Values{}
	form.Set("hold", holdRef)
	form.Set("amount", strconv.FormatInt(amountCents, 10))

	var receipt Receipt
	if err := c.post(ctx, "/v1/refunds", form, idemKey, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values, idemKey string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	req.SetBasicAuth(c.secretKey, "")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("processor %s failed: %s (%d)", path, string(body), res.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse processor response: %w", err)
	}
	return nil
}
