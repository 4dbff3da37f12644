package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/markusressel/fan2pwm/internal/model"
	"github.com/markusressel/fan2pwm/internal/state"
)

const defaultTimeout = 10 * time.Second

// ApiError is returned for every non 2xx response
type ApiError struct {
	StatusCode int
	Name       string `json:"name"`
	Message    string `json:"message"`
}

func (e *ApiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// ModeResponse is returned by the override and auto commands
type ModeResponse struct {
	Ok       bool                `json:"ok"`
	Mode     state.Mode          `json:"mode"`
	Override state.OverrideState `json:"override"`
}

// Client talks to the REST api of a running daemon
type Client struct {
	base string
	h    *http.Client
}

func New(base string) *Client {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		base: strings.TrimSuffix(base, "/"),
		h:    &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) Status(ctx context.Context) (result state.Snapshot, err error) {
	err = c.do(ctx, http.MethodGet, "/status/", nil, &result)
	return result, err
}

// Override pins the duty, a nil timeout keeps it until Auto is called
func (c *Client) Override(ctx context.Context, duty int, timeout *time.Duration) (result ModeResponse, err error) {
	body := map[string]interface{}{"duty_percent": duty}
	if timeout != nil {
		body["timeout_s"] = int(timeout.Seconds())
	}
	err = c.do(ctx, http.MethodPost, "/control/override/", body, &result)
	return result, err
}

func (c *Client) Auto(ctx context.Context) (result ModeResponse, err error) {
	err = c.do(ctx, http.MethodPost, "/control/auto/", nil, &result)
	return result, err
}

func (c *Client) Sensors(ctx context.Context) (result []model.Sensor, err error) {
	err = c.do(ctx, http.MethodGet, "/sensors/", nil, &result)
	return result, err
}

func (c *Client) Curves(ctx context.Context, sensorId int64) (result []model.Curve, err error) {
	err = c.do(ctx, http.MethodGet, "/sensors/"+formatId(sensorId)+"/curves/", nil, &result)
	return result, err
}

// CurvePoints returns the points of a curve in °C
func (c *Client) CurvePoints(ctx context.Context, curveId int64) (result []model.CurvePoint, err error) {
	err = c.do(ctx, http.MethodGet, "/curves/"+formatId(curveId)+"/points/", nil, &result)
	return result, err
}

func (c *Client) Events(ctx context.Context, limit int) (result []model.Event, err error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	err = c.do(ctx, http.MethodGet, "/events/?"+query.Encode(), nil, &result)
	return result, err
}

// Backup downloads a snapshot of the database into w
func (c *Client) Backup(ctx context.Context, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, http.MethodGet, "/db/backup/", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(w, resp.Body)
}

func (c *Client) do(ctx context.Context, method string, path string, body interface{}, target interface{}) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// send executes the request, turning non 2xx responses into an ApiError
func (c *Client) send(ctx context.Context, method string, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.h.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		apiErr := &ApiError{StatusCode: resp.StatusCode}
		b, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(b, apiErr)
		return nil, apiErr
	}
	return resp, nil
}

func formatId(id int64) string {
	return strconv.FormatInt(id, 10)
}
