// Package endpoint defines the registry of Data Bridges endpoints the client
// can fetch. Each endpoint maps a stable identifier to its remote operation
// name and the query parameters that operation accepts.
package endpoint

import (
	"errors"
	"fmt"
)

// ErrUnknownEndpoint is returned when an identifier is not in the registry.
var ErrUnknownEndpoint = errors.New("unknown endpoint")

// Endpoint identifies a single Data Bridges data-retrieval operation.
type Endpoint string

const (
	// CurrencyUSDQuote retrieves USD indirect quotations per currency.
	CurrencyUSDQuote Endpoint = "currency_usd_quote"

	// EconomicDataList retrieves the list of available economic indicators.
	EconomicDataList Endpoint = "economic_data_list"

	// EconomicDataValues retrieves time-series values for one economic indicator.
	EconomicDataValues Endpoint = "economic_data_values"
)

// Descriptor holds the remote-side metadata for one endpoint.
type Descriptor struct {
	// Operation is the remote operation name invoked on the transport.
	Operation string

	// Params lists the query parameters the operation accepts, in the order
	// the upstream API documents them.
	Params []string

	// Docs points at the upstream reference for the operation.
	Docs string
}

// AcceptsParam reports whether the operation accepts the given parameter name.
func (d Descriptor) AcceptsParam(name string) bool {
	for _, p := range d.Params {
		if p == name {
			return true
		}
	}
	return false
}

// registry is the closed set of supported endpoints. Defined once, never
// mutated after init.
var registry = map[Endpoint]Descriptor{
	CurrencyUSDQuote: {
		Operation: "vamdatabridges_currency-usdindirectquotation_get",
		Params:    []string{"country_iso3", "currency_name", "page", "page_size", "env", "format"},
		Docs:      "https://github.com/WFP-VAM/DataBridgesAPI",
	},
	EconomicDataList: {
		Operation: "vamdatabridges_economicdata-indicatorlist_get",
		Params:    []string{"page", "page_size", "indicator_name", "iso3", "env", "format"},
		Docs:      "https://github.com/WFP-VAM/DataBridgesAPI",
	},
	EconomicDataValues: {
		Operation: "vamdatabridges_economicdata_get",
		Params:    []string{"indicator_name", "page", "page_size", "iso3", "start_date", "end_date", "env", "format"},
		Docs:      "https://github.com/WFP-VAM/DataBridgesAPI",
	},
}

// Resolve looks up the descriptor for an endpoint identifier.
func Resolve(e Endpoint) (Descriptor, error) {
	d, ok := registry[e]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownEndpoint, e)
	}
	return d, nil
}

// FromOperation returns the endpoint whose descriptor carries the given remote
// operation name.
func FromOperation(operation string) (Endpoint, error) {
	for e, d := range registry {
		if d.Operation == operation {
			return e, nil
		}
	}
	return "", fmt.Errorf("%w: no endpoint with operation %q", ErrUnknownEndpoint, operation)
}

// All returns every registered endpoint identifier. Order is not specified.
func All() []Endpoint {
	endpoints := make([]Endpoint, 0, len(registry))
	for e := range registry {
		endpoints = append(endpoints, e)
	}
	return endpoints
}
