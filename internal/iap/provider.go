// Package iap - слой покупок. Конкретный провайдер платежей выбирается
// на этапе сборки и передается явно: никаких глобальных менеджеров и
// поиска реализации в рантайме.
package iap

import (
	"context"
	"fmt"
	"log/slog"

	"tictacthrow/internal/domain"
	"tictacthrow/internal/logger"
)

// Receipt - подтверждение покупки от платежного провайдера
type Receipt struct {
	Provider string
	Token    string
	PackCode string
}

// PaymentProvider - интерфейс-способность магазина платформы.
// Реализация на каждую платформу своя; выбор - на этапе сборки.
type PaymentProvider interface {
	Name() string
	Purchase(ctx context.Context, pack domain.CoinPack) (Receipt, error)
}

// Granter зачисляет верифицированную покупку на кошелек
// (реализуется api.Client)
type Granter interface {
	GrantCoinPack(ctx context.Context, coinPackCode string) (domain.Wallet, error)
}

// Service связывает провайдера платформы с сервером: покупка у
// провайдера, затем зачисление пакета через бэкенд
type Service struct {
	provider PaymentProvider
	granter  Granter
	log      *slog.Logger
}

func NewService(provider PaymentProvider, granter Granter) *Service {
	return &Service{
		provider: provider,
		granter:  granter,
		log:      logger.Component("iap"),
	}
}

// BuyCoinPack проводит покупку пакета монет. Зачисление идет только
// после успешного ответа провайдера; чек логируется для разбора
// несошедшихся платежей.
func (s *Service) BuyCoinPack(ctx context.Context, pack domain.CoinPack) (domain.Wallet, error) {
	receipt, err := s.provider.Purchase(ctx, pack)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("iap: purchase %s: %w", pack.Code, err)
	}
	s.log.Info("purchase completed", "provider", receipt.Provider, "pack", pack.Code)

	wallet, err := s.granter.GrantCoinPack(ctx, pack.Code)
	if err != nil {
		// деньги списаны, пакет не зачислен - чек нужен для саппорта
		s.log.Error("grant failed after purchase", "pack", pack.Code, "token", receipt.Token, "error", err)
		return domain.Wallet{}, fmt.Errorf("iap: grant %s: %w", pack.Code, err)
	}
	return wallet, nil
}
