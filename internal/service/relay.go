package service

import (
	"encoding/json"
	"net/http"

	"calc-gateway/internal/model"
)

const defaultContentType = "application/json"

// hopByHopResponseHeaders describe the backend connection, not the payload,
// and are not relayed.
var hopByHopResponseHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Connection",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// errorBody is the JSON shape of every gateway-generated error response.
type errorBody struct {
	Error             string   `json:"error"`
	Service           string   `json:"service"`
	AvailableServices []string `json:"available_services,omitempty"`
}

// Relay converts a backend result into the caller's response. Backend status
// codes, including 4xx and 5xx, are relayed as-is; only transport failures
// become gateway errors.
func Relay(serviceName string, res *model.BackendResult) *model.ProxyResponse {
	switch res.Kind {
	case model.ResultOK:
		header := res.Header.Clone()
		if header == nil {
			header = make(http.Header)
		}
		for _, h := range hopByHopResponseHeaders {
			header.Del(h)
		}
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", defaultContentType)
		}
		return &model.ProxyResponse{
			StatusCode: res.StatusCode,
			Header:     header,
			Body:       res.Body,
		}
	case model.ResultUnreachable:
		return RelayError(&GatewayError{Kind: KindBackendUnreachable, Service: serviceName, Cause: res.Err})
	default:
		return RelayError(&GatewayError{Kind: KindBackendProtocolError, Service: serviceName, Cause: res.Err})
	}
}

// RelayError renders a GatewayError as a JSON response. Cause is never included.
func RelayError(gerr *GatewayError) *model.ProxyResponse {
	body := errorBody{
		Error:   gerr.Message(),
		Service: gerr.Service,
	}
	if gerr.Kind == KindUnknownService {
		body.AvailableServices = gerr.Known
	}

	// errorBody holds only strings; Marshal cannot fail.
	data, _ := json.Marshal(body)

	header := make(http.Header)
	header.Set("Content-Type", defaultContentType)
	return &model.ProxyResponse{
		StatusCode: gerr.StatusCode(),
		Header:     header,
		Body:       data,
	}
}
