package idhash

import (
	"crypto/sha256"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
)

// ComputeParamSetID computes a deterministic identifier for one grid combination.
// Formula: SHA256(strategy_type|p1,p2,...) with shortest float formatting.
// Returns base58-encoded hash.
func ComputeParamSetID(strategyType string, params []float64) string {
	data := strategyType + "|" + formatParams(params)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

// formatParams joins params using the shortest representation that round-trips.
func formatParams(params []float64) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = strconv.FormatFloat(p, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
