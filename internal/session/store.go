// Package session - ядро синхронизации матча: хранилище состояния,
// стейт-машина переходов и политика согласования двух каналов доставки.
package session

import (
	"errors"
	"sync"

	"tictacthrow/internal/domain"
)

var (
	// ErrNoActiveRoom - переход требует привязанной комнаты
	ErrNoActiveRoom = errors.New("session: no active room")
	// ErrRoomMismatch - запись привязана к другой комнате
	ErrRoomMismatch = errors.New("session: room id mismatch")
	// ErrStatusRegress - статус комнаты не двигается назад
	ErrStatusRegress = errors.New("session: status would regress")
)

// statusRank задает порядок waiting -> in_progress -> finished.
// Неизвестный статус получает ранг -1 и никогда не применяется.
func statusRank(status string) int {
	switch status {
	case domain.StatusWaiting:
		return 0
	case domain.StatusInProgress:
		return 1
	case domain.StatusFinished:
		return 2
	default:
		return -1
	}
}

// Store владеет единственной записью Session. Мутации проходят через
// переходы ниже; каждый переход атомарен - при отказе запись не меняется.
type Store struct {
	mu sync.RWMutex
	s  domain.Session
}

func NewStore() *Store { return &Store{} }

// Current возвращает read-only снимок
func (st *Store) Current() domain.Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.Snapshot()
}

// Reset очищает запись целиком
func (st *Store) Reset() {
	st.mu.Lock()
	st.s.Reset()
	st.mu.Unlock()
}

// BindRoom привязывает сессию к комнате. roomId назначается один раз;
// повторная привязка к той же комнате - no-op, к другой - отказ.
func (st *Store) BindRoom(roomID int, status string) error {
	if roomID <= 0 {
		return ErrRoomMismatch
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.s.Active() && st.s.RoomID != roomID {
		return ErrRoomMismatch
	}
	if !st.s.Active() {
		st.s.RoomID = roomID
		st.s.Status = domain.StatusWaiting
	}
	return st.advanceStatusLocked(status)
}

func (st *Store) advanceStatusLocked(status string) error {
	next := statusRank(status)
	if next < 0 {
		return nil // незнакомый статус игнорируем, не ломая запись
	}
	if next < statusRank(st.s.Status) {
		return ErrStatusRegress
	}
	st.s.Status = status
	return nil
}

// AdvanceStatus двигает статус вперед по жизненному циклу комнаты
func (st *Store) AdvanceStatus(roomID int, status string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.checkRoomLocked(roomID); err != nil {
		return err
	}
	return st.advanceStatusLocked(status)
}

func (st *Store) checkRoomLocked(roomID int) error {
	if !st.s.Active() {
		return ErrNoActiveRoom
	}
	if roomID != st.s.RoomID {
		return ErrRoomMismatch
	}
	return nil
}

// MergeRoster заполняет места ростера и выводит символ локального
// игрока. Слоты с nil не затирают уже известных игроков: сервер может
// прислать неполный состав.
func (st *Store) MergeRoster(roomID int, p1, p2 *domain.PlayerSlot, localPlayerID int) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.checkRoomLocked(roomID); err != nil {
		return err
	}

	if p1 != nil {
		slot := *p1
		st.s.Player1 = &slot
	}
	if p2 != nil {
		slot := *p2
		st.s.Player2 = &slot
	}
	if st.s.LocalSymbol == domain.SymbolNone && localPlayerID != 0 {
		if slot := st.s.SlotFor(localPlayerID); slot != nil {
			st.s.LocalSymbol = slot.Symbol
		}
	}
	return nil
}

// SetLocalSymbol кэширует символ, известный вне ростера
// (создатель комнаты всегда X)
func (st *Store) SetLocalSymbol(roomID int, sym domain.Symbol) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.checkRoomLocked(roomID); err != nil {
		return err
	}
	if st.s.LocalSymbol == domain.SymbolNone {
		st.s.LocalSymbol = sym
	}
	return nil
}

// ApplyBoard заменяет доску и владельца хода целиком: событие несет
// полный снимок, поклеточного слияния нет. Партия считается идущей.
func (st *Store) ApplyBoard(roomID int, board domain.Board, turnPlayerID int) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.checkRoomLocked(roomID); err != nil {
		return err
	}
	if err := st.advanceStatusLocked(domain.StatusInProgress); err != nil {
		return err
	}
	st.s.Board = board
	st.s.TurnPlayerID = turnPlayerID
	return nil
}

// SetTurn обновляет владельца хода, не трогая доску
func (st *Store) SetTurn(roomID, turnPlayerID int) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.checkRoomLocked(roomID); err != nil {
		return err
	}
	st.s.TurnPlayerID = turnPlayerID
	return nil
}

// Finish фиксирует исход. Доска из финального события применяется,
// только если она не беднее текущей - дубликаты и гонки самокорректируются.
func (st *Store) Finish(roomID int, board *domain.Board, result string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.checkRoomLocked(roomID); err != nil {
		return err
	}
	if err := st.advanceStatusLocked(domain.StatusFinished); err != nil {
		return err
	}
	if board != nil && board.MoveCount() >= st.s.Board.MoveCount() {
		st.s.Board = *board
	}
	st.s.Result = result
	st.s.TurnPlayerID = 0
	return nil
}
