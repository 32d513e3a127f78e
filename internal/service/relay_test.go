package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"calc-gateway/internal/model"
)

func TestRelay_OKPassesThrough(t *testing.T) {
	res := &model.BackendResult{
		Kind:       model.ResultOK,
		StatusCode: http.StatusCreated,
		Header: http.Header{
			"Content-Type": {"text/plain; charset=utf-8"},
			"X-Result-Id":  {"42"},
			"Set-Cookie":   {"a=1", "b=2"},
		},
		Body: []byte("created"),
	}

	resp := Relay("history", res)

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q, want %q", got, "text/plain; charset=utf-8")
	}
	if got := resp.Header.Get("X-Result-Id"); got != "42" {
		t.Errorf("X-Result-Id = %q, want %q", got, "42")
	}
	if got := resp.Header.Values("Set-Cookie"); len(got) != 2 {
		t.Errorf("Set-Cookie = %v, want 2 values", got)
	}
	if string(resp.Body) != "created" {
		t.Errorf("body = %q, want %q", resp.Body, "created")
	}
}

func TestRelay_DefaultsContentType(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
	}{
		{"nil header", nil},
		{"no content type", http.Header{"X-Other": {"1"}}},
		{"empty content type", http.Header{"Content-Type": {""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Relay("calculate", &model.BackendResult{
				Kind:       model.ResultOK,
				StatusCode: http.StatusOK,
				Header:     tt.header,
				Body:       []byte(`{"result":5}`),
			})
			if got := resp.Header.Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %q, want %q", got, "application/json")
			}
		})
	}
}

func TestRelay_BackendErrorStatusIsData(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusBadGateway} {
		resp := Relay("calculate", &model.BackendResult{
			Kind:       model.ResultOK,
			StatusCode: status,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       []byte(`{"detail":"Division by zero"}`),
		})
		if resp.StatusCode != status {
			t.Errorf("status = %d, want %d", resp.StatusCode, status)
		}
		if string(resp.Body) != `{"detail":"Division by zero"}` {
			t.Errorf("body = %q, want backend body", resp.Body)
		}
	}
}

func TestRelay_StripsHopByHopHeaders(t *testing.T) {
	res := &model.BackendResult{
		Kind:       model.ResultOK,
		StatusCode: http.StatusOK,
		Header: http.Header{
			"Connection":        {"keep-alive"},
			"Keep-Alive":        {"timeout=5"},
			"Transfer-Encoding": {"chunked"},
			"Upgrade":           {"h2c"},
			"X-Keep":            {"yes"},
		},
	}

	resp := Relay("login", res)

	for _, h := range []string{"Connection", "Keep-Alive", "Transfer-Encoding", "Upgrade"} {
		if got := resp.Header.Get(h); got != "" {
			t.Errorf("%s = %q, want stripped", h, got)
		}
	}
	if got := resp.Header.Get("X-Keep"); got != "yes" {
		t.Errorf("X-Keep = %q, want %q", got, "yes")
	}
	if got := res.Header.Get("Connection"); got != "keep-alive" {
		t.Error("relay must not modify the backend header")
	}
}

func TestRelay_Failures(t *testing.T) {
	tests := []struct {
		name       string
		kind       model.ResultKind
		wantStatus int
		wantMsg    string
	}{
		{"unreachable", model.ResultUnreachable, http.StatusServiceUnavailable, "Cannot connect to the calculate service. Is it running?"},
		{"protocol error", model.ResultProtocolError, http.StatusInternalServerError, "Internal error communicating with calculate service."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Relay("calculate", &model.BackendResult{
				Kind: tt.kind,
				Err:  errors.New("dial tcp 10.0.0.7:8002: secret internal detail"),
			})

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if got := resp.Header.Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %q, want %q", got, "application/json")
			}

			var body map[string]any
			if err := json.Unmarshal(resp.Body, &body); err != nil {
				t.Fatalf("invalid JSON body: %v", err)
			}
			if body["error"] != tt.wantMsg {
				t.Errorf("error = %q, want %q", body["error"], tt.wantMsg)
			}
			if body["service"] != "calculate" {
				t.Errorf("service = %q, want %q", body["service"], "calculate")
			}
			if _, ok := body["available_services"]; ok {
				t.Error("available_services should only appear for unknown services")
			}
		})
	}
}

func TestRelayError_UnknownService(t *testing.T) {
	resp := RelayError(&GatewayError{
		Kind:    KindUnknownService,
		Service: "payments",
		Known:   []string{"calculate", "history", "login"},
	})

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	var body struct {
		Error             string   `json:"error"`
		Service           string   `json:"service"`
		AvailableServices []string `json:"available_services"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Error != "Service 'payments' not found. Available services: calculate, history, login" {
		t.Errorf("error = %q", body.Error)
	}
	if body.Service != "payments" {
		t.Errorf("service = %q, want %q", body.Service, "payments")
	}
	if len(body.AvailableServices) != 3 {
		t.Errorf("available_services = %v, want 3 entries", body.AvailableServices)
	}
}
