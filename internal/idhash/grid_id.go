package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"backtest-lab/internal/domain"
)

// ComputeGridID computes a deterministic grid_id using SHA256.
// Formula: SHA256(symbol|strategy_type|cost_pct|start:stop:step;...)
// Returns hex-encoded hash (64 characters). Runs sharing a grid_id searched
// the same space and are directly comparable.
func ComputeGridID(symbol, strategyType string, costPct float64, ranges []domain.ParamRange) string {
	axes := make([]string, len(ranges))
	for i, r := range ranges {
		axes[i] = formatParams([]float64{r.Start, r.Stop, r.Step})
		axes[i] = strings.ReplaceAll(axes[i], ",", ":")
	}

	data := fmt.Sprintf("%s|%s|%s|%s",
		symbol,
		strategyType,
		strconv.FormatFloat(costPct, 'g', -1, 64),
		strings.Join(axes, ";"),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
