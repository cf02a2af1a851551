package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alimkdd/retry-engine/internal/domain"
	"github.com/go-resty/resty/v2"
)

func TestSimulatorChargeMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		errorType  domain.ErrorType
		wantCode   string
		wantStatus int
	}{
		{name: "network timeout", errorType: domain.ErrorTypeNetworkTimeout, wantCode: "NETWORK_TIMEOUT", wantStatus: http.StatusRequestTimeout},
		{name: "gateway busy", errorType: domain.ErrorTypeGatewayBusy, wantCode: "GATEWAY_BUSY", wantStatus: http.StatusServiceUnavailable},
		{name: "rate limit", errorType: domain.ErrorTypeRateLimitExceeded, wantCode: "RATE_LIMIT_EXCEEDED", wantStatus: http.StatusTooManyRequests},
		{name: "temporary server error", errorType: domain.ErrorTypeTemporaryServerError, wantCode: "TEMPORARY_SERVER_ERROR", wantStatus: http.StatusInternalServerError},
		{name: "card declined", errorType: domain.ErrorTypeCardDeclined, wantCode: "CARD_DECLINED", wantStatus: http.StatusPaymentRequired},
		{name: "unclassified", errorType: domain.ErrorTypeNone, wantCode: "UNKNOWN", wantStatus: http.StatusInternalServerError},
	}

	sim := &Simulator{}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := sim.Charge(context.Background(), domain.TransactionAttempt{ID: 1, ErrorType: tt.errorType})
			if err != nil {
				t.Fatalf("Charge() error = %v", err)
			}
			if resp.Success {
				t.Fatal("simulated charge should not succeed")
			}
			if resp.ErrorCode != tt.wantCode {
				t.Fatalf("ErrorCode = %s, want %s", resp.ErrorCode, tt.wantCode)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("StatusCode = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestSimulatorConfirmStatus(t *testing.T) {
	t.Parallel()

	sim := &Simulator{}
	ok, err := sim.ConfirmStatus(context.Background(), 42)
	if err != nil {
		t.Fatalf("ConfirmStatus() error = %v", err)
	}
	if !ok {
		t.Fatal("simulated confirmation should report success")
	}
}

func TestSimulatorChargeHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := NewSimulator()
	if _, err := sim.Charge(ctx, domain.TransactionAttempt{ID: 1}); err == nil {
		t.Fatal("Charge() should fail on canceled context")
	}
}

func TestHTTPGatewayCharge(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/charges" {
			t.Fatalf("path = %s, want /charges", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["transactionId"] != float64(42) {
			t.Fatalf("transactionId = %v, want 42", req["transactionId"])
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":      false,
			"errorCode":    "GATEWAY_BUSY",
			"errorMessage": "busy",
		})
	}))
	t.Cleanup(server.Close)

	gw, err := NewHTTPGatewayWithClient(server.URL, resty.New())
	if err != nil {
		t.Fatalf("NewHTTPGatewayWithClient() error = %v", err)
	}

	resp, err := gw.Charge(context.Background(), domain.TransactionAttempt{ID: 42, UserID: 7, AttemptNumber: 1})
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if resp.Success {
		t.Fatal("charge should not be successful")
	}
	if resp.ErrorCode != "GATEWAY_BUSY" {
		t.Fatalf("ErrorCode = %s, want GATEWAY_BUSY", resp.ErrorCode)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("StatusCode = %d, want 503", resp.StatusCode)
	}
}

func TestHTTPGatewayConfirmStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/charges/42/status" {
			t.Fatalf("path = %s, want /charges/42/status", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	t.Cleanup(server.Close)

	gw, err := NewHTTPGatewayWithClient(server.URL, resty.New())
	if err != nil {
		t.Fatalf("NewHTTPGatewayWithClient() error = %v", err)
	}

	ok, err := gw.ConfirmStatus(context.Background(), 42)
	if err != nil {
		t.Fatalf("ConfirmStatus() error = %v", err)
	}
	if !ok {
		t.Fatal("ConfirmStatus() should report success")
	}
}

func TestNewHTTPGatewayValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewHTTPGateway(""); err == nil {
		t.Fatal("empty base url should be rejected")
	}
	if _, err := NewHTTPGateway("not a url"); err == nil {
		t.Fatal("invalid base url should be rejected")
	}
	if _, err := NewHTTPGatewayWithClient("https://gateway.example", nil); err == nil {
		t.Fatal("nil client should be rejected")
	}
}
