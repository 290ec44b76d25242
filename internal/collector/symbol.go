package collector

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/newthinker/momentum/internal/core"
)

// Common quote currencies in order of priority for detection
var quoteCurrencies = []string{"USDT", "BUSD", "USDC", "USD", "EUR", "BTC", "ETH", "BNB"}

var validSymbol = regexp.MustCompile(`^[A-Za-z0-9]{2,20}$`)

// NormalizeSymbol converts pair spellings such as "btc/usdt", "BTC-USDT" or
// "BTC" into the exchange form "BTCUSDT", appending defaultQuote when the
// input has no recognizable quote currency.
func NormalizeSymbol(input string, defaultQuote string) string {
	if input == "" {
		return ""
	}

	s := strings.ToUpper(input)
	s = strings.NewReplacer("-", "", "/", "", "_", "").Replace(s)

	// the symbol must keep a base currency in front of the quote
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return s
		}
	}
	return s + strings.ToUpper(defaultQuote)
}

// ParseSymbol splits a normalized symbol: "BTCUSDT" -> ("BTC", "USDT").
func ParseSymbol(symbol string) (base, quote string) {
	s := strings.ToUpper(symbol)

	for _, q := range quoteCurrencies {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return strings.TrimSuffix(s, q), q
		}
	}

	if len(s) > 4 {
		return s[:len(s)-4], s[len(s)-4:]
	}
	return s, ""
}

// FormatDisplay converts "BTCUSDT" to "BTC/USDT".
func FormatDisplay(symbol string) string {
	base, quote := ParseSymbol(symbol)
	if quote == "" {
		return base
	}
	return base + "/" + quote
}

// ValidateSymbol checks a trading pair has a usable format.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("symbol cannot be empty"))
	}
	s := strings.NewReplacer("-", "", "/", "", "_", "").Replace(symbol)
	if !validSymbol.MatchString(s) {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("invalid symbol format: %s", symbol))
	}
	return nil
}
