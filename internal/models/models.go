// Package models provides domain models for the trading terminal core.
package models

import (
	"time"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderStatus represents the lifecycle state of an order. Transitions are
// authoritative on the remote store; the core only mirrors them.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IPOStatus represents the subscription state of an IPO candidate.
type IPOStatus string

const (
	IPOStatusSubscribe IPOStatus = "SUBSCRIBE"
	IPOStatusPending   IPOStatus = "PENDING"
	IPOStatusListed    IPOStatus = "LISTED"
)

// MarketSession identifies the current phase of the A-share trading day.
type MarketSession string

const (
	SessionClosed      MarketSession = "CLOSED"
	SessionCallAuction MarketSession = "CALL_AUCTION"
	SessionMorning     MarketSession = "MORNING"
	SessionLunchBreak  MarketSession = "LUNCH_BREAK"
	SessionAfternoon   MarketSession = "AFTERNOON"
)

// Trading reports whether continuous trading is running in this session.
func (s MarketSession) Trading() bool {
	return s == SessionMorning || s == SessionAfternoon
}

// PricePoint is one sample of an instrument's short intraday history.
type PricePoint struct {
	Timestamp time.Time
	Value     float64
	Volume    int64
}

// Instrument is a tradable security's live quote plus a short synthetic
// price history. Identity is Code. The whole value is replaced on each
// successful poll cycle; nothing patches it in place.
type Instrument struct {
	Code          string
	DisplayName   string
	Price         float64
	ChangePercent float64
	ChangeAmount  float64
	Volume        int64
	High          float64
	Low           float64
	Open          float64
	PrevClose     float64
	PriceHistory  []PricePoint
}

// IndexQuote is a market index snapshot. Same lifecycle as Instrument but
// drawn from a disjoint code set.
type IndexQuote struct {
	Code          string
	DisplayName   string
	Value         float64
	ChangePercent float64
	ChangeAmount  float64
}

// IndicatorPoint is one derived MACD sample, parallel to a PricePoint.
// Recomputed from PriceHistory on every access, never cached.
type IndicatorPoint struct {
	Timestamp time.Time
	Value     float64
	EMA12     float64
	EMA26     float64
	DIF       float64
	DEA       float64
	MACD      float64
}

// OrderBookLevel is a single synthesized depth level.
type OrderBookLevel struct {
	Price  float64
	Volume int64
}

// OrderBook is a synthesized 5-level ladder. Asks[0] and Bids[0] are the
// touch levels; only those are stable enough to price against.
type OrderBook struct {
	Asks []OrderBookLevel
	Bids []OrderBookLevel
}

// BestAsk returns the touch ask, or fallback when the ladder is empty.
func (b OrderBook) BestAsk(fallback float64) float64 {
	if len(b.Asks) == 0 {
		return fallback
	}
	return b.Asks[0].Price
}

// BestBid returns the touch bid, or fallback when the ladder is empty.
func (b OrderBook) BestBid(fallback float64) float64 {
	if len(b.Bids) == 0 {
		return fallback
	}
	return b.Bids[0].Price
}

// BlockTrade is a synthetic off-exchange trade derived from live prices.
// Exactly one is produced per poll cycle and replaces the prior one.
type BlockTrade struct {
	ID              string
	InstrumentCode  string
	InstrumentName  string
	Price           float64
	VolumeLots      int64 // ten-thousand-share lots
	Amount          float64
	DiscountPercent float64
	Side            OrderSide
	Time            time.Time
}

// IPOCandidate is a synthetic new-listing entry derived from live prices.
type IPOCandidate struct {
	Name                string
	Code                string
	IssuePrice          float64
	PERatio             float64
	SubscriptionCapLots float64
	Date                time.Time
	Status              IPOStatus
}

// Order mirrors a remote-store order row. Owned by the remote store; the
// core submits insert intents and reads query results.
type Order struct {
	ID             string
	InstrumentCode string
	InstrumentName string
	Side           OrderSide
	Price          float64
	Quantity       int64
	Status         OrderStatus
	CreatedAt      time.Time
}

// OrderIntent is a proposed order prior to slippage evaluation.
type OrderIntent struct {
	InstrumentCode string
	InstrumentName string
	Side           OrderSide
	Price          float64
	Quantity       int64
}

// Position mirrors a remote-store holding. MarketValue and UnrealizedPnL
// are derived by joining against the live instrument price and are filled
// in per access, never persisted.
type Position struct {
	InstrumentCode string
	InstrumentName string
	Quantity       int64
	AverageCost    float64

	MarketValue   float64
	UnrealizedPnL float64
}

// Valued returns a copy of the position with derived fields computed
// against the given live price.
func (p Position) Valued(lastPrice float64) Position {
	p.MarketValue = lastPrice * float64(p.Quantity)
	p.UnrealizedPnL = (lastPrice - p.AverageCost) * float64(p.Quantity)
	return p
}

// NewsItem mirrors one row of the remote news collection.
type NewsItem struct {
	ID     string
	Title  string
	Time   time.Time
	URL    string
	Source string
	Type   string // news, notice, report
}

// Profile mirrors the remote profile row for the signed-in user. Only the
// fields the trading core consumes are carried.
type Profile struct {
	UserID      string
	Name        string
	CashBalance float64
}

// User is the opaque identity supplied by the identity provider.
type User struct {
	ID    string
	Email string
	Name  string
}
