package homeassistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"hubgate/internal/domain"
	"hubgate/internal/metrics"
)

const DefaultTimeout = 5 * time.Second

// metadataTemplate renders area, device and label names for every entity in
// one round trip.
const metadataTemplate = `{% set ns = namespace(result=[]) %}
{% for s in states %}
  {% set item = {
    "entity_id": s.entity_id,
    "area_name": area_name(s.entity_id),
    "device_id": device_id(s.entity_id),
    "labels": (labels(s.entity_id) | map('label_name') | list)
  } %}
  {% set ns.result = ns.result + [item] %}
{% endfor %}
{{ ns.result | tojson }}`

// Client talks to any number of hubs; the base URL and token travel with
// each call in a domain.HubHandle. It never retries.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) FetchAllStates(ctx context.Context, h domain.HubHandle) ([]domain.RawDeviceState, error) {
	body, err := c.doRequest(ctx, h, stateRead("states"), http.MethodGet, "/api/states", nil)
	if err != nil {
		return nil, err
	}

	var states []domain.RawDeviceState
	if err := json.Unmarshal(body, &states); err != nil {
		return nil, domain.WrapError(domain.KindServer, "The hub sent device data we could not read. Please try again.", err)
	}
	return states, nil
}

func (c *Client) FetchState(ctx context.Context, h domain.HubHandle, entityID string) (*domain.RawDeviceState, error) {
	path := "/api/states/" + url.PathEscape(entityID)
	body, err := c.doRequest(ctx, h, stateRead("state"), http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var state domain.RawDeviceState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, domain.WrapError(domain.KindServer, "The hub sent device data we could not read. Please try again.", err)
	}
	return &state, nil
}

// FetchMetadata renders the registry template. Callers treat failures as
// missing metadata.
func (c *Client) FetchMetadata(ctx context.Context, h domain.HubHandle) ([]domain.DeviceMetadata, error) {
	payload, err := json.Marshal(map[string]string{"template": metadataTemplate})
	if err != nil {
		return nil, fmt.Errorf("marshaling template: %w", err)
	}

	body, err := c.doRequest(ctx, h, templateRender, http.MethodPost, "/api/template", payload)
	if err != nil {
		return nil, err
	}

	var meta []domain.DeviceMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("parsing template output: %w", err)
	}
	return meta, nil
}

func (c *Client) InvokeService(ctx context.Context, h domain.HubHandle, call domain.ServiceCall) error {
	data := call.Data
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling service data: %w", err)
	}

	path := fmt.Sprintf("/api/services/%s/%s", url.PathEscape(call.Domain), url.PathEscape(call.Service))
	_, err = c.doRequest(ctx, h, serviceCall, http.MethodPost, path, payload)
	return err
}

// Probe reports whether the hub answers at all within timeout. Any HTTP
// status counts as reachable.
func (c *Client) Probe(ctx context.Context, h domain.HubHandle, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := c.newRequest(ctx, h, http.MethodGet, "/api/", nil)
	if err != nil {
		metrics.HubRequests.WithLabelValues("probe", "error").Inc()
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("hub probe failed", "base_url", h.BaseURL, "error", err)
		metrics.HubRequests.WithLabelValues("probe", "error").Inc()
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	metrics.HubRequests.WithLabelValues("probe", "ok").Inc()
	return true
}

// CameraSnapshotURL is a still image URL the UI can load directly; ts busts
// image caches.
func CameraSnapshotURL(h domain.HubHandle, entityID string, at time.Time) string {
	return fmt.Sprintf("%s/api/camera_proxy/%s?token=%s&ts=%d",
		strings.TrimRight(h.BaseURL, "/"),
		url.PathEscape(entityID),
		url.QueryEscape(h.Token),
		at.Unix(),
	)
}

// endpoint describes how one kind of hub call is judged and reported.
type endpoint struct {
	operation string
	action    string
	ok        func(code int) bool
	echoBody  bool
}

func okOnly(code int) bool     { return code == http.StatusOK }
func anySuccess(code int) bool { return code >= 200 && code < 300 }

func stateRead(operation string) endpoint {
	return endpoint{operation: operation, action: "complete that request", ok: okOnly, echoBody: true}
}

var (
	templateRender = endpoint{operation: "template", action: "prepare that data", ok: okOnly, echoBody: true}
	serviceCall    = endpoint{operation: "service", action: "apply that action", ok: anySuccess}
)

func (c *Client) newRequest(ctx context.Context, h domain.HubHandle, method, path string, body []byte) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(h.BaseURL, "/")+path, bodyReader)
	if err != nil {
		return nil, domain.WrapError(domain.KindInvalidInput, "The hub URL is not valid. Check it in Settings.", err)
	}

	req.Header.Set("Authorization", "Bearer "+h.Token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) doRequest(ctx context.Context, h domain.HubHandle, ep endpoint, method, path string, body []byte) ([]byte, error) {
	req, err := c.newRequest(ctx, h, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.HubRequests.WithLabelValues(ep.operation, "network_error").Inc()
		return nil, describeNetworkFailure(h.BaseURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.HubRequests.WithLabelValues(ep.operation, "network_error").Inc()
		return nil, describeNetworkFailure(h.BaseURL, err)
	}

	if !ep.ok(resp.StatusCode) {
		metrics.HubRequests.WithLabelValues(ep.operation, "server_error").Inc()
		return nil, serverFailure(ep, resp.StatusCode, string(respBody))
	}

	metrics.HubRequests.WithLabelValues(ep.operation, "ok").Inc()
	return respBody, nil
}

func serverFailure(ep endpoint, status int, body string) error {
	detail := strings.TrimSpace(body)
	if detail == "" || !ep.echoBody {
		detail = "Please try again."
	}
	message := fmt.Sprintf("The hub could not %s (%d). %s", ep.action, status, detail)
	return domain.ServerError(status, body, message)
}

// describeNetworkFailure adds configuration hints for the usual causes of an
// unreachable hub.
func describeNetworkFailure(base string, err error) error {
	var hints []string
	if u, perr := url.Parse(base); perr == nil {
		if strings.HasSuffix(strings.ToLower(u.Hostname()), ".local") {
			hints = append(hints, "Phones often cannot resolve .local hostnames. Update the hub URL to use the IP address (e.g., http://192.168.1.10:8123) in Settings.")
		}
		if u.Scheme == "http" {
			hints = append(hints, "Make sure you are on the same Wi-Fi as the hub and that plain HTTP traffic is allowed.")
		}
	}

	reason := err.Error()
	var uerr *url.Error
	if errors.As(err, &uerr) {
		reason = uerr.Err.Error()
	}

	hintText := ""
	if len(hints) > 0 {
		hintText = " " + strings.Join(hints, " ")
	}

	return domain.WrapError(domain.KindNetwork, fmt.Sprintf("Hub network issue: %s.%s Please try again.", reason, hintText), err)
}
