package exchange

import "strconv"

// Binance futures payloads carry numbers as strings; fields stay strings
// here and are parsed at the point of use.

type AccountInfo struct {
	Assets    []AssetBalance    `json:"assets"`
	Positions []AccountPosition `json:"positions"`
}

type AssetBalance struct {
	Asset            string `json:"asset"`
	WalletBalance    string `json:"walletBalance"`
	AvailableBalance string `json:"availableBalance"`
}

type AccountPosition struct {
	Symbol      string `json:"symbol"`
	PositionAmt string `json:"positionAmt"`
	EntryPrice  string `json:"entryPrice"`
	UpdateTime  int64  `json:"updateTime"`
}

// Amt returns the signed position amount (>0 long, <0 short).
func (p AccountPosition) Amt() float64 {
	v, _ := strconv.ParseFloat(p.PositionAmt, 64)
	return v
}

// Entry returns the average entry price.
func (p AccountPosition) Entry() float64 {
	v, _ := strconv.ParseFloat(p.EntryPrice, 64)
	return v
}

type Order struct {
	OrderID       int64  `json:"orderId"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	ClientOrderID string `json:"clientOrderId"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	UpdateTime    int64  `json:"updateTime"`
}

type Fill struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"orderId"`
	Symbol      string `json:"symbol"`
	Price       string `json:"price"`
	Qty         string `json:"qty"`
	RealizedPnl string `json:"realizedPnl"`
	Commission  string `json:"commission"`
	Time        int64  `json:"time"`
}

func (f Fill) PriceF() float64 {
	v, _ := strconv.ParseFloat(f.Price, 64)
	return v
}

func (f Fill) QtyF() float64 {
	v, _ := strconv.ParseFloat(f.Qty, 64)
	return v
}

func (f Fill) RealizedPnlF() float64 {
	v, _ := strconv.ParseFloat(f.RealizedPnl, 64)
	return v
}

func (f Fill) CommissionF() float64 {
	v, _ := strconv.ParseFloat(f.Commission, 64)
	return v
}

type Income struct {
	Symbol     string `json:"symbol"`
	IncomeType string `json:"incomeType"`
	Income     string `json:"income"`
	Time       int64  `json:"time"`
}

func (i Income) IncomeF() float64 {
	v, _ := strconv.ParseFloat(i.Income, 64)
	return v
}

type SymbolInfo struct {
	Symbol  string         `json:"symbol"`
	Filters []SymbolFilter `json:"filters"`
}

type SymbolFilter struct {
	FilterType string `json:"filterType"`
	TickSize   string `json:"tickSize"`
	StepSize   string `json:"stepSize"`
}

type exchangeInfo struct {
	Symbols []SymbolInfo `json:"symbols"`
}

type apiErrorPayload struct {
	Code int64  `json:"code"`
	Msg  string `json:"msg"`
}

// Kline is one OHLCV bar as returned by /fapi/v1/klines, already converted
// out of Binance's positional-array encoding.
type Kline struct {
	OpenTime  int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime int64
}
