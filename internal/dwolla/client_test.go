package dwolla

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
)

// newTestServer serves /token and hands every other request to handler.
func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var tokenCalls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			atomic.AddInt32(&tokenCalls, 1)
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"access_token":"test-token","token_type":"bearer","expires_in":3600}`)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		if got := r.Header.Get("Content-Type"); got != halContentType {
			t.Errorf("Content-Type = %q", got)
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), Config{
		Key:         "key",
		Secret:      "secret",
		Environment: "sandbox",
		BaseURL:     srv.URL,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client, &tokenCalls
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		env     string
		want    string
		wantErr bool
	}{
		{"sandbox", sandboxBaseURL, false},
		{"production", productionBaseURL, false},
		{"", "", true},
		{"staging", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			got, err := BaseURL(tt.env)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEnvironment) {
					t.Errorf("Expected ErrInvalidEnvironment, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("BaseURL(%q) = %q, %v", tt.env, got, err)
			}
		})
	}
}

func TestNewClient_InvalidEnvironment(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Environment: "dev", BaseURL: "http://localhost"})
	if !errors.Is(err, ErrInvalidEnvironment) {
		t.Errorf("Expected ErrInvalidEnvironment, got %v", err)
	}
}

func TestCreateTransfer(t *testing.T) {
	var body transferBody
	client, tokenCalls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transfers" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Idempotency-Key"); got != "job-1" {
			t.Errorf("Idempotency-Key = %q, want job-1", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.Header().Set("Location", "https://api-sandbox.dwolla.com/transfers/abc")
		w.WriteHeader(http.StatusCreated)
	})

	location, err := client.CreateTransfer(context.Background(), TransferParams{
		SourceFundingSourceURL:      "https://api-sandbox.dwolla.com/funding-sources/src",
		DestinationFundingSourceURL: "https://api-sandbox.dwolla.com/funding-sources/dst",
		Amount:                      decimal.RequireFromString("12.5"),
		IdempotencyKey:              "job-1",
	})
	if err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	if location != "https://api-sandbox.dwolla.com/transfers/abc" {
		t.Errorf("location = %q", location)
	}
	if body.Amount.Currency != "USD" || body.Amount.Value != "12.50" {
		t.Errorf("Unexpected amount: %+v", body.Amount)
	}
	if body.Links["source"].Href != "https://api-sandbox.dwolla.com/funding-sources/src" ||
		body.Links["destination"].Href != "https://api-sandbox.dwolla.com/funding-sources/dst" {
		t.Errorf("Unexpected links: %+v", body.Links)
	}
	if atomic.LoadInt32(tokenCalls) != 1 {
		t.Errorf("Expected 1 token request, got %d", atomic.LoadInt32(tokenCalls))
	}
}

func TestCreateTransfer_InvalidParams(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request expected for invalid params")
	})

	tests := []struct {
		name   string
		params TransferParams
	}{
		{"missing source", TransferParams{DestinationFundingSourceURL: "d", Amount: decimal.NewFromInt(1)}},
		{"missing destination", TransferParams{SourceFundingSourceURL: "s", Amount: decimal.NewFromInt(1)}},
		{"zero amount", TransferParams{SourceFundingSourceURL: "s", DestinationFundingSourceURL: "d"}},
		{"negative amount", TransferParams{SourceFundingSourceURL: "s", DestinationFundingSourceURL: "d", Amount: decimal.NewFromInt(-5)}},
		{"sub-cent amount", TransferParams{SourceFundingSourceURL: "s", DestinationFundingSourceURL: "d", Amount: decimal.RequireFromString("0.004")}},
		{"fractional cent", TransferParams{SourceFundingSourceURL: "s", DestinationFundingSourceURL: "d", Amount: decimal.RequireFromString("10.005")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.CreateTransfer(context.Background(), tt.params)
			if !errors.Is(err, ErrInvalidTransfer) {
				t.Errorf("Expected ErrInvalidTransfer, got %v", err)
			}
		})
	}
}

func TestCreateTransfer_MissingLocation(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	_, err := client.CreateTransfer(context.Background(), TransferParams{
		SourceFundingSourceURL:      "s",
		DestinationFundingSourceURL: "d",
		Amount:                      decimal.NewFromInt(1),
	})
	if !errors.Is(err, ErrMissingLocation) {
		t.Errorf("Expected ErrMissingLocation, got %v", err)
	}
}

func TestCreateTransfer_APIError(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", halContentType)
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"code":"ValidationError","message":"Insufficient funds."}`)
	})

	_, err := client.CreateTransfer(context.Background(), TransferParams{
		SourceFundingSourceURL:      "s",
		DestinationFundingSourceURL: "d",
		Amount:                      decimal.NewFromInt(1),
	})
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("Expected ErrUnexpectedStatus, got %v", err)
	}
	if !strings.Contains(err.Error(), "ValidationError") {
		t.Errorf("Expected API error code in message, got %v", err)
	}
}

func TestCreateCustomer(t *testing.T) {
	var got NewCustomerParams
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/customers" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Location", "https://api-sandbox.dwolla.com/customers/c1")
		w.WriteHeader(http.StatusCreated)
	})

	location, err := client.CreateCustomer(context.Background(), NewCustomerParams{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
	})
	if err != nil {
		t.Fatalf("CreateCustomer failed: %v", err)
	}
	if location != "https://api-sandbox.dwolla.com/customers/c1" {
		t.Errorf("location = %q", location)
	}
	if got.Type != "personal" || got.Email != "ada@example.com" {
		t.Errorf("Unexpected body: %+v", got)
	}
}

func TestAddFundingSource(t *testing.T) {
	var fs fundingSourceBody
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/on-demand-authorizations":
			w.Header().Set("Content-Type", halContentType)
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, `{"_links":{"self":{"href":"https://api-sandbox.dwolla.com/on-demand-authorizations/o1"}},"bodyText":"I agree"}`)
		case "/customers/c1/funding-sources":
			json.NewDecoder(r.Body).Decode(&fs)
			w.Header().Set("Location", "https://api-sandbox.dwolla.com/funding-sources/f1")
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	location, err := client.AddFundingSource(context.Background(), AddFundingSourceParams{
		CustomerID:     "c1",
		ProcessorToken: "processor-sandbox-1",
		BankName:       "Plaid Checking",
	})
	if err != nil {
		t.Fatalf("AddFundingSource failed: %v", err)
	}

	if location != "https://api-sandbox.dwolla.com/funding-sources/f1" {
		t.Errorf("location = %q", location)
	}
	if fs.Name != "Plaid Checking" || fs.PlaidToken != "processor-sandbox-1" {
		t.Errorf("Unexpected funding source body: %+v", fs)
	}
	if fs.Links["self"].Href != "https://api-sandbox.dwolla.com/on-demand-authorizations/o1" {
		t.Errorf("Expected authorization links to be attached, got %+v", fs.Links)
	}
}

func TestAddFundingSource_AuthorizationFails(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/on-demand-authorizations" {
			t.Errorf("Funding source must not be created when authorization fails")
		}
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.AddFundingSource(context.Background(), AddFundingSourceParams{
		CustomerID:     "c1",
		ProcessorToken: "p",
		BankName:       "b",
	})
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("Expected ErrUnexpectedStatus, got %v", err)
	}
}
