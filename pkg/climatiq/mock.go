package climatiq

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// MockSource is the source identifier stamped on factors produced by the
// deterministic mock, so downstream consumers can always tell them apart
// from live database results.
const MockSource = "deterministic-mock"

// MockClient generates deterministic emission factors seeded by the query
// string. It stands in for the live database when it is unreachable or
// unconfigured: repeated queries for the same name return identical values,
// and every result is clearly flagged via MockSource.
type MockClient struct{}

// NewMockClient creates a deterministic mock factor source.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// categoryRanges bounds the generated kg CO2e value per category so mock
// factors stay plausible for their domain.
var categoryRanges = map[string]struct{ min, max float64 }{
	"ingredient": {0.1, 5.0},
	"packaging":  {0.3, 8.0},
	"energy":     {0.05, 1.2},
	"transport":  {0.01, 0.5},
	"waste":      {0.02, 2.0},
}

var defaultRange = struct{ min, max float64 }{0.1, 4.0}

// Search never fails: it derives a stable factor from the query name.
func (m *MockClient) Search(_ context.Context, req SearchRequest) (*Factor, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(req.Query))))
	seed := h.Sum64()

	rng, ok := categoryRanges[strings.ToLower(req.Category)]
	if !ok {
		rng = defaultRange
	}

	// Map the hash onto [min, max) with three decimal places of spread.
	span := rng.max - rng.min
	value := rng.min + float64(seed%100000)/100000*span

	return &Factor{
		ActivityID:   fmt.Sprintf("mock-%x", seed),
		Name:         req.Query,
		Source:       MockSource,
		Unit:         "kg CO2e/kg",
		FactorKgCO2e: value,
	}, nil
}
