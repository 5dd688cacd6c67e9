package strategy

import "scalp_bot/internal/models"

// Strategy turns a market-data snapshot into a signal. Implementations
// are stateless between cycles: the decision depends only on the data
// passed in.
type Strategy interface {
	Name() string
	GenerateSignal(data models.MarketData) models.Signal
}
