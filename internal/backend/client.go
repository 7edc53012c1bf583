package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Endpoint paths relative to the backend base URL.
const (
	pathDevices = "/dispositivos"
	pathDevice  = "/dispositivos/{id}"
)

// DefaultTimeout bounds every request when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// Client talks to the device backend's REST API.
//
// Requests are never retried here: the device reconciliation loop polls
// on a fixed period and a failed call is simply tried again next period.
//
// Thread Safety:
//   - All methods are safe for concurrent use; one Client serves every
//     device in the fleet.
type Client struct {
	http    *resty.Client
	baseURL string
}

// NewClient creates a backend client for baseURL.
//
// Parameters:
//   - baseURL: Backend root, e.g. "http://localhost:5000"
//   - timeout: Per-request timeout (DefaultTimeout if zero)
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: rc, baseURL: baseURL}
}

// BaseURL returns the backend root this client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListDevices fetches every device record the backend knows about.
func (c *Client) ListDevices(ctx context.Context) ([]DeviceRecord, error) {
	var records []DeviceRecord
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&records).
		Get(pathDevices)
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return records, nil
}

// GetDevice fetches one device record including its configuration document.
func (c *Client) GetDevice(ctx context.Context, id DeviceID) (*DeviceRecord, error) {
	var record DeviceRecord
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id.String()).
		SetResult(&record).
		Get(pathDevice)
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	if record.Config == nil {
		record.Config = map[string]any{}
	}
	return &record, nil
}

// UpdateDevice writes a configuration update for one device.
//
// Only a 2xx status counts as success.
func (c *Client) UpdateDevice(ctx context.Context, id DeviceID, update DeviceUpdate) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id.String()).
		SetBody(update).
		Put(pathDevice)
	return checkResponse(resp, err)
}

// FindBySerial resolves a serial number to its backend identifier by
// listing all devices.
//
// Returns:
//   - DeviceID: The matching identifier
//   - error: ErrDeviceNotFound if no record carries the serial, or a
//     request error
func (c *Client) FindBySerial(ctx context.Context, serial string) (DeviceID, error) {
	records, err := c.ListDevices(ctx)
	if err != nil {
		return "", err
	}
	for _, r := range records {
		if r.Serial == serial && r.ID != "" {
			return r.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrDeviceNotFound, serial)
}

// checkResponse folds transport errors and non-2xx statuses into one error.
func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: %s %s returned %d",
			ErrUnexpectedStatus, resp.Request.Method, resp.Request.URL, resp.StatusCode())
	}
	return nil
}
