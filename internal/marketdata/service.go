package marketdata

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"scalp_bot/internal/exchange"
	"scalp_bot/internal/models"
)

// Data-integrity failures: the cycle treats these as "not ready", skips
// trading actions and retries next minute.
var (
	ErrEmptyResponse = errors.New("klines response is empty")
	ErrNotContiguous = errors.New("missing or unordered candles detected")
)

type KlineFetcher interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]exchange.Kline, error)
}

// Service fetches and normalizes closed candles. A candle counts as
// closed only when its close time is older than now minus the safety
// margin; a still-forming last candle is dropped, never returned.
type Service struct {
	client       KlineFetcher
	safetyMargin time.Duration
	log          *zap.Logger
	now          func() time.Time
}

func NewService(client KlineFetcher, safetyMargin time.Duration, log *zap.Logger) *Service {
	return &Service{
		client:       client,
		safetyMargin: safetyMargin,
		log:          log.Named("MarketData"),
		now:          time.Now,
	}
}

// FetchClosedKlines returns a validated series of closed candles for the
// interval, oldest first.
func (s *Service) FetchClosedKlines(ctx context.Context, symbol string, interval models.Interval, limit int) (*models.Series, error) {
	raw, err := s.client.GetKlines(ctx, symbol, string(interval), limit)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s klines for %s", interval, symbol)
	}
	series, err := s.normalize(raw, interval)
	if err != nil {
		return nil, err
	}
	s.log.Debug("fetched closed klines",
		zap.String("symbol", symbol),
		zap.String("interval", string(interval)),
		zap.Int("count", series.Len()))
	return series, nil
}

func (s *Service) normalize(klines []exchange.Kline, interval models.Interval) (*models.Series, error) {
	if len(klines) == 0 {
		return nil, ErrEmptyResponse
	}

	intervalMs := interval.Duration().Milliseconds()
	for i := 1; i < len(klines); i++ {
		if klines[i].OpenTime != klines[i-1].OpenTime+intervalMs {
			return nil, ErrNotContiguous
		}
	}

	// Exclude the still-forming candle, if present.
	nowMs := s.now().UnixMilli()
	n := len(klines)
	if klines[n-1].CloseTime >= nowMs-s.safetyMargin.Milliseconds() {
		n--
		s.log.Debug("dropping forming candle", zap.String("interval", string(interval)))
	}
	if n == 0 {
		// Nothing closed yet; the cycle treats this like any other
		// not-ready response instead of seeing an empty series.
		return nil, ErrEmptyResponse
	}

	series := &models.Series{
		Open:      make([]float64, 0, n),
		High:      make([]float64, 0, n),
		Low:       make([]float64, 0, n),
		Close:     make([]float64, 0, n),
		Volume:    make([]float64, 0, n),
		Timestamp: make([]int64, 0, n),
	}
	for _, k := range klines[:n] {
		series.Open = append(series.Open, k.Open)
		series.High = append(series.High, k.High)
		series.Low = append(series.Low, k.Low)
		series.Close = append(series.Close, k.Close)
		series.Volume = append(series.Volume, k.Volume)
		series.Timestamp = append(series.Timestamp, k.CloseTime)
	}
	return series, nil
}
