// Package parse extracts the structured buy/sell quote and analysis
// prefix an agent embedded in its free-text oracle response.
package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	buyTagPattern  = regexp.MustCompile(`<buy>\s*\$?\s*([0-9.]+)\s*</buy>`)
	sellTagPattern = regexp.MustCompile(`<sell>\s*\$?\s*([0-9.]+)\s*</sell>`)
)

// Quote is an agent's parsed spread for one auction, before clamping.
type Quote struct {
	Analysis  string
	BuyPrice  float64
	HasSell   bool
	SellPrice float64
}

// ParseAuctionResponse extracts the analysis prefix and buy price from an
// auction-mode response (update_id=0), where no sell tag is requested. It
// returns ok=false if the buy tag is absent.
func ParseAuctionResponse(text string) (Quote, bool) {
	buyMatch := buyTagPattern.FindStringSubmatchIndex(text)
	if buyMatch == nil {
		return Quote{}, false
	}
	buyPrice, ok := parseFloat(text[buyMatch[2]:buyMatch[3]])
	if !ok {
		return Quote{}, false
	}
	return Quote{
		Analysis: strings.TrimSpace(text[:buyMatch[0]]),
		BuyPrice: buyPrice,
	}, true
}

// ParseTradingResponse extracts the analysis prefix, buy price, and sell
// price from a trading-mode response (update_id>0). It returns ok=false if
// either tag is absent.
func ParseTradingResponse(text string) (Quote, bool) {
	buyMatch := buyTagPattern.FindStringSubmatchIndex(text)
	if buyMatch == nil {
		return Quote{}, false
	}
	sellMatch := sellTagPattern.FindStringSubmatch(text)
	if sellMatch == nil {
		return Quote{}, false
	}
	buyPrice, ok := parseFloat(text[buyMatch[2]:buyMatch[3]])
	if !ok {
		return Quote{}, false
	}
	sellPrice, ok := parseFloat(sellMatch[1])
	if !ok {
		return Quote{}, false
	}
	return Quote{
		Analysis:  strings.TrimSpace(text[:buyMatch[0]]),
		BuyPrice:  buyPrice,
		HasSell:   true,
		SellPrice: sellPrice,
	}, true
}

// ClampBuyPrice caps a raw buy price to [0, cashBalance], logging a
// warning when the raw value exceeded available cash.
func ClampBuyPrice(rawBuyPrice, cashBalance float64) float64 {
	if rawBuyPrice < 0 {
		return 0
	}
	if rawBuyPrice > cashBalance {
		log.Warn().
			Float64("raw_buy_price", rawBuyPrice).
			Float64("cash_balance", cashBalance).
			Msg("agent buy price exceeded cash balance, clamping")
		return cashBalance
	}
	return rawBuyPrice
}

func parseFloat(s string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
