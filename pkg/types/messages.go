package types

// PriceLevel is a wire-format order book level; the CLOB sends prices and
// sizes as strings.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// SubscribeFrame is the frame sent after connecting a stream.
type SubscribeFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Market  string `json:"market,omitempty"`
}

// MarketFrame is one inbound frame on the public market stream.
// Type "book" carries bids/asks; type "trade" carries price/size/side.
type MarketFrame struct {
	Type   string       `json:"type"`
	Market string       `json:"market"` // token id
	Bids   []PriceLevel `json:"bids,omitempty"`
	Asks   []PriceLevel `json:"asks,omitempty"`
	Price  string       `json:"price,omitempty"`
	Size   string       `json:"size,omitempty"`
	Side   string       `json:"side,omitempty"`
}

// UserFrame is one inbound frame on the private account stream.
// Type is one of "fill", "order", "cancel".
type UserFrame struct {
	Type    string `json:"type"`
	OrderID string `json:"order_id"`
	Market  string `json:"market"` // token id
	Side    string `json:"side"`
	Price   string `json:"price"`
	Size    string `json:"size"`
}
