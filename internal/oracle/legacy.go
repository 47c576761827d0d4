package oracle

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// legacyPricePattern matches the XML-ish price tag the legacy estimator
// asked the oracle to emit.
var legacyPricePattern = regexp.MustCompile(`<price>([\d.]+)</price>`)

const legacyBasePricePrompt = `What would be a fair base price in USD for an accountability agent service that helps track goals and predictions?
Consider the value provided and market rates.
Reply with ONLY an XML tag with the price like this: <price>X.XX</price>`

// EstimateLegacyBasePrice is the pre-auction price estimator from an
// earlier iteration of this service: it asks a fixed provider for three
// independent price quotes and averages the ones that parse. The auction's
// discovered market price has superseded it. Nothing in the current
// pipeline calls this; it is kept only as a documented deprecation.
//
// Deprecated: use the auction-discovered market price instead.
func EstimateLegacyBasePrice(ctx context.Context, client Client) (float64, error) {
	const samples = 3
	provider := ProviderHint{Order: []string{"openai"}, AllowFallbacks: false}

	var prices []float64
	for i := 0; i < samples; i++ {
		text, ok := client.Ask(ctx, []Message{{Role: "user", Content: legacyBasePricePrompt}}, WithProvider(provider))
		if !ok {
			continue
		}
		match := legacyPricePattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		price, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		prices = append(prices, price)
	}

	if len(prices) == 0 {
		return 0, fmt.Errorf("legacy base price estimator: no oracle sample parsed")
	}

	var sum float64
	for _, p := range prices {
		sum += p
	}
	return sum / float64(len(prices)), nil
}
