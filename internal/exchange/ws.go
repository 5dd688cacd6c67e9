package exchange

import (
	"context"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	mainnetStreamURL = "wss://fstream.binance.com/ws"
	testnetStreamURL = "wss://stream.binancefuture.com/ws"

	wsReadTimeout     = 90 * time.Second
	wsReconnectMax    = 30 * time.Second
	markPriceInterval = "@markPrice@1s"
)

// MarkTick is one mark-price update for the traded symbol.
type MarkTick struct {
	Symbol string
	Price  float64
	Time   time.Time
}

type markPricePayload struct {
	Event  string `json:"e"`
	Time   int64  `json:"E"`
	Symbol string `json:"s"`
	Price  string `json:"p"`
}

// MarkPriceStream follows the <symbol>@markPrice stream, reconnecting
// with doubling backoff. It feeds observers only; trading state never
// depends on it.
type MarkPriceStream struct {
	url    string
	symbol string
	dialer *websocket.Dialer
	log    *zap.Logger
}

func NewMarkPriceStream(symbol string, testnet bool, log *zap.Logger) *MarkPriceStream {
	base := mainnetStreamURL
	if testnet {
		base = testnetStreamURL
	}
	return &MarkPriceStream{
		url:    base + "/" + strings.ToLower(symbol) + markPriceInterval,
		symbol: symbol,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    log.Named("MarkPriceStream"),
	}
}

// Run blocks until ctx is cancelled, delivering ticks to onTick and
// connection-state changes to onState. Both callbacks may be nil.
func (s *MarkPriceStream) Run(ctx context.Context, onTick func(MarkTick), onState func(connected bool)) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		err := s.stream(ctx, onTick, onState)
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("mark price stream disconnected",
			zap.Error(err),
			zap.Duration("reconnect_in", backoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > wsReconnectMax {
			backoff = wsReconnectMax
		}
	}
}

func (s *MarkPriceStream) stream(ctx context.Context, onTick func(MarkTick), onState func(connected bool)) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if onState != nil {
		onState(true)
		defer onState(false)
	}
	s.log.Info("mark price stream connected", zap.String("symbol", s.symbol))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var payload markPricePayload
		if err := sonic.Unmarshal(msg, &payload); err != nil {
			s.log.Warn("skipping malformed stream payload", zap.Error(err))
			continue
		}
		if payload.Event != "markPriceUpdate" {
			continue
		}
		if onTick != nil {
			onTick(MarkTick{
				Symbol: payload.Symbol,
				Price:  anyToFloat(payload.Price),
				Time:   time.UnixMilli(payload.Time),
			})
		}
	}
}
