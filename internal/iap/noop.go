package iap

import (
	"context"
	"errors"

	"tictacthrow/internal/domain"
)

// ErrUnavailable - в этой сборке нет магазина платформы
var ErrUnavailable = errors.New("iap: purchases are not available in this build")

// NoopProvider - провайдер для сборок без платежей (dev, CI).
// Любая покупка честно отказывает, кошелек не трогается.
type NoopProvider struct{}

func (NoopProvider) Name() string { return "noop" }

func (NoopProvider) Purchase(context.Context, domain.CoinPack) (Receipt, error) {
	return Receipt{}, ErrUnavailable
}
