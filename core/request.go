package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/kidnextdoor65/coresky/customTypes"
)

const (
	transportErrorStatus = 503
	proxyAuthStatus      = 407
)

var cloudflareMarkers = []string{
	"used Cloudflare to restrict access</title>",
	"<title>Just a moment...</title>",
	"<title>Attention Required! ",
}

func doRequest(client *fasthttp.Client,
	url string,
	method string,
	payload interface{},
	headers map[string]string,
	timeout time.Duration) ([]byte, int, error) {

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.Header.SetMethod(strings.ToUpper(method))
	req.SetRequestURI(url)

	if payload != nil {
		jsonData, err := json.Marshal(payload)

		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(jsonData)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := client.DoTimeout(req, resp, timeout); err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}

	respBody := make([]byte, len(resp.Body()))
	copy(respBody, resp.Body())

	return respBody, resp.StatusCode(), nil
}

// callResult is the outcome of one API call. Failed is set for transport
// errors and non-2xx answers; Code and Message come from the JSON envelope.
type callResult struct {
	Failed     bool
	StatusCode int
	Code       int
	Message    string
	Debug      json.RawMessage
	Body       []byte
	Cloudflare bool
}

func (r callResult) ok() bool {
	return !r.Failed && r.Code == 200
}

// status is the HTTP status for failed calls and the envelope code otherwise.
func (r callResult) status() int {
	if r.Failed {
		return r.StatusCode
	}
	return r.Code
}

func (r callResult) errorMessage() string {
	if r.Message != "" {
		return r.Message
	}
	if len(r.Body) > 0 {
		return string(r.Body)
	}
	return "unknown error"
}

func (r callResult) describe() string {
	return fmt.Sprintf("Code: %d, Msg: %s", r.status(), r.errorMessage())
}

func isCloudflarePage(body []byte) bool {
	text := string(body)
	for _, marker := range cloudflareMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func isProxyAuthTransportError(err error) bool {
	text := err.Error()
	return strings.Contains(text, "407") || strings.Contains(text, "Proxy Authentication Required")
}

func parseCallResult(body []byte, statusCode int, err error) callResult {
	if err != nil {
		status := transportErrorStatus
		if isProxyAuthTransportError(err) {
			status = proxyAuthStatus
		}
		return callResult{Failed: true, StatusCode: status, Message: err.Error()}
	}

	result := callResult{StatusCode: statusCode, Body: body}

	if isCloudflarePage(body) {
		result.Failed = true
		result.Cloudflare = true
		result.Message = "blocked by Cloudflare"
		return result
	}

	var envelope customTypes.ApiResponse
	parseErr := json.Unmarshal(body, &envelope)
	if parseErr == nil {
		result.Code = envelope.Code
		result.Message = envelope.Message
		result.Debug = envelope.Debug
	}

	if statusCode < 200 || statusCode >= 300 {
		result.Failed = true
		if result.Message == "" {
			result.Message = fmt.Sprintf("request failed with status code %d", statusCode)
		}
		return result
	}

	if parseErr != nil {
		result.Failed = true
		result.Message = fmt.Sprintf("failed to parse JSON response: %s", parseErr)
	}

	return result
}

// decodeDebug unmarshals the envelope "debug" field into out.
func (r callResult) decodeDebug(out interface{}) error {
	if len(r.Debug) == 0 || string(r.Debug) == "null" {
		return fmt.Errorf("response has no data")
	}
	return json.Unmarshal(r.Debug, out)
}
