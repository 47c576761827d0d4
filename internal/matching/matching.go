// Package matching implements the two-stage clearing algorithm: a
// continuous double auction, with a uniform-price auction fallback for a
// goal's initial seeding event. Both stages are pure functions of the
// spreads collected for one auction; neither touches persistence.
package matching

import (
	"math"
	"sort"

	"github.com/mochiyaki/accountability-market/internal/model"
)

// priceStep is the increment used while scanning for the Stage-2 clearing
// price.
const priceStep = 0.05

// Clear runs Stage 1 against spreads, falling back to Stage 2 only when
// Stage 1 produced nothing and this is an initial-auction event
// (updateID == 0). It returns unsettled trades: the caller (settlement)
// assigns ids and persists.
func Clear(spreads []*model.AgentSpread, updateID int64) []*model.Trade {
	trades := continuousDoubleAuction(spreads)
	if len(trades) == 0 && updateID == 0 {
		trades = uniformPriceAuction(spreads)
	}
	return trades
}

type order struct {
	agentID int64
	price   float64
}

// continuousDoubleAuction sorts bids descending and asks ascending (ties
// broken by ascending agent id) and walks both lists, emitting a trade at
// the ask price whenever the best bid still crosses the best ask.
func continuousDoubleAuction(spreads []*model.AgentSpread) []*model.Trade {
	buys := buyOrders(spreads)
	sells := sellOrders(spreads)

	var trades []*model.Trade
	i, j := 0, 0
	for i < len(buys) && j < len(sells) && buys[i].price >= sells[j].price {
		trades = append(trades, &model.Trade{
			BuyerID:  buys[i].agentID,
			SellerID: sells[j].agentID,
			Price:    sells[j].price,
			Quantity: model.TradeQuantity,
		})
		i++
		j++
	}
	return trades
}

// uniformPriceAuction searches for the single clearing price that
// maximizes crossed volume, scanning from lowest_sell down to
// highest_buy-0.01 in priceStep increments. It is a no-op if the best bid
// already crosses the best ask (Stage 1 would have matched).
func uniformPriceAuction(spreads []*model.AgentSpread) []*model.Trade {
	buys := buyOrders(spreads)
	sells := sellOrders(spreads)
	if len(buys) == 0 || len(sells) == 0 {
		return nil
	}

	highestBuy := buys[0].price
	lowestSell := sells[0].price
	if highestBuy >= lowestSell {
		return nil
	}

	bestPrice := 0.0
	bestVolume := -1
	// Each candidate is derived from the step count and rounded to cents,
	// so float drift from repeated subtraction cannot skip a price such as
	// 40.00 that a bid sits exactly on.
	for k := 0; ; k++ {
		p := math.Round((lowestSell-float64(k)*priceStep)*100) / 100
		if p < highestBuy-0.01 {
			break
		}
		volume := clearedVolume(buys, sells, p)
		if volume > bestVolume {
			bestVolume = volume
			bestPrice = p
		}
	}

	if bestVolume <= 0 {
		return nil
	}

	trades := make([]*model.Trade, 0, bestVolume)
	for k := 0; k < bestVolume; k++ {
		trades = append(trades, &model.Trade{
			BuyerID:  buys[k].agentID,
			SellerID: sells[k].agentID,
			Price:    bestPrice,
			Quantity: model.TradeQuantity,
		})
	}
	return trades
}

// clearedVolume returns min(B(p), S(p)) at candidate price p. B(p) counts
// bids at or above p. S(p) counts asks at or above p rather than at or
// below: within the scan band (p never exceeds lowest_sell, by
// construction of the range this is called over), every submitted ask
// already sits at or above p, so S(p) is effectively "how much supply was
// offered at all" rather than "how much supply clears at p" — this
// fallback only runs when nothing crossed, so the asks are never going to
// be satisfied at the discovered price; S(p) measures available sellers,
// not willing ones.
func clearedVolume(buys, sells []order, p float64) int {
	b := 0
	for _, o := range buys {
		if o.price >= p {
			b++
		}
	}
	s := 0
	for _, o := range sells {
		if o.price >= p {
			s++
		}
	}
	if b < s {
		return b
	}
	return s
}

func buyOrders(spreads []*model.AgentSpread) []order {
	var out []order
	for _, s := range spreads {
		if s.WantsBuy() {
			out = append(out, order{agentID: s.AgentID, price: *s.BuyPrice})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].price != out[j].price {
			return out[i].price > out[j].price
		}
		return out[i].agentID < out[j].agentID
	})
	return out
}

func sellOrders(spreads []*model.AgentSpread) []order {
	var out []order
	for _, s := range spreads {
		if s.WantsSell() {
			out = append(out, order{agentID: s.AgentID, price: *s.SellPrice})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].price != out[j].price {
			return out[i].price < out[j].price
		}
		return out[i].agentID < out[j].agentID
	})
	return out
}
