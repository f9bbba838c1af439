package endpoint

import (
	"errors"
	"testing"
)

func TestResolve_AllRegistered(t *testing.T) {
	tests := []struct {
		name          string
		endpoint      Endpoint
		wantOperation string
	}{
		{
			name:          "currency usd quote",
			endpoint:      CurrencyUSDQuote,
			wantOperation: "vamdatabridges_currency-usdindirectquotation_get",
		},
		{
			name:          "economic data list",
			endpoint:      EconomicDataList,
			wantOperation: "vamdatabridges_economicdata-indicatorlist_get",
		},
		{
			name:          "economic data values",
			endpoint:      EconomicDataValues,
			wantOperation: "vamdatabridges_economicdata_get",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Resolve(tt.endpoint)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.endpoint, err)
			}
			if d.Operation != tt.wantOperation {
				t.Errorf("Operation = %q, want %q", d.Operation, tt.wantOperation)
			}
			if len(d.Params) == 0 {
				t.Error("Params should not be empty")
			}
			if !d.AcceptsParam("page") {
				t.Error("every endpoint should accept the page parameter")
			}
		})
	}
}

func TestResolve_Unknown(t *testing.T) {
	_, err := Resolve(Endpoint("market_prices"))
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, ErrUnknownEndpoint) {
		t.Errorf("Expected ErrUnknownEndpoint, got %v", err)
	}
}

func TestFromOperation(t *testing.T) {
	e, err := FromOperation("vamdatabridges_economicdata_get")
	if err != nil {
		t.Fatalf("FromOperation error = %v", err)
	}
	if e != EconomicDataValues {
		t.Errorf("FromOperation = %q, want %q", e, EconomicDataValues)
	}
}

func TestFromOperation_Unknown(t *testing.T) {
	_, err := FromOperation("vamdatabridges_commodities_get")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, ErrUnknownEndpoint) {
		t.Errorf("Expected ErrUnknownEndpoint, got %v", err)
	}
}

func TestAcceptsParam(t *testing.T) {
	d, err := Resolve(EconomicDataValues)
	if err != nil {
		t.Fatal(err)
	}

	if !d.AcceptsParam("start_date") {
		t.Error("economic data values should accept start_date")
	}
	if d.AcceptsParam("currency_name") {
		t.Error("economic data values should not accept currency_name")
	}
}

func TestAll(t *testing.T) {
	endpoints := All()
	if len(endpoints) != 3 {
		t.Fatalf("All() returned %d endpoints, want 3", len(endpoints))
	}
	for _, e := range endpoints {
		if _, err := Resolve(e); err != nil {
			t.Errorf("All() returned unresolvable endpoint %q", e)
		}
	}
}
