package game

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Risk is the volatility level used by plinko and lane-hop.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// ParseRisk parses a risk level, case-insensitively.
func ParseRisk(s string) (Risk, error) {
	switch Risk(strings.ToLower(strings.TrimSpace(s))) {
	case RiskLow:
		return RiskLow, nil
	case RiskMedium:
		return RiskMedium, nil
	case RiskHigh:
		return RiskHigh, nil
	}
	return "", fmt.Errorf("%w: unknown risk level %q", ErrInvalidConfiguration, s)
}

// ExtractInt reads an integer parameter. Floats with a fractional part and
// strings that are not whole numbers do not count.
func ExtractInt(params map[string]any, key string) (int, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}

	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		if val != math.Trunc(val) {
			return 0, false
		}
		return int(val), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		return n, err == nil
	default:
		return 0, false
	}
}

// IntParam reads an integer parameter, falling back to def when absent.
// A present value that is not an integer is rejected.
func IntParam(params map[string]any, key string, def int) (int, error) {
	if _, present := params[key]; !present {
		return def, nil
	}
	v, ok := ExtractInt(params, key)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidConfiguration, key, params[key])
	}
	return v, nil
}

// ExtractString reads a string parameter.
func ExtractString(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ExtractRisk reads a risk parameter, falling back to def when absent.
func ExtractRisk(params map[string]any, key string, def Risk) (Risk, error) {
	v, present := params[key]
	if !present {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a risk level, got %v", ErrInvalidConfiguration, key, v)
	}
	if s == "" {
		return def, nil
	}
	return ParseRisk(s)
}

// Payout returns bet × multiplier rounded to cents.
func Payout(bet decimal.Decimal, multiplier float64) decimal.Decimal {
	return bet.Mul(decimal.NewFromFloat(multiplier)).Round(2)
}

// ValidateBet rejects non-positive bets.
func ValidateBet(bet decimal.Decimal) error {
	if !bet.IsPositive() {
		return fmt.Errorf("%w: bet amount must be positive", ErrInvalidConfiguration)
	}
	return nil
}
