package session

import (
	"context"
	"time"

	"tictacthrow/internal/api"
	"tictacthrow/internal/domain"
)

// RoomFetcher - резервный запрос-ответный канал состояния комнаты
// (реализуется api.Client)
type RoomFetcher interface {
	RoomSnapshot(ctx context.Context, roomID int) (api.RoomState, error)
}

const refreshTimeout = 5 * time.Second

// Refresh догоняет состояние комнаты через резервный канал. Нужен
// только пока событийный канал не подтвержден: внутри активной комнаты
// с живой подпиской машина его не вызывает сама, кроме как после
// переподключения.
//
// Приоритет событийного канала: push-события комнаты строго упорядочены
// транспортом, а снимок - point-in-time и может отстать от уже летящих
// событий. Поэтому доска и владелец хода из снимка применяются, только
// если (а) после отправки запроса не было применено ни одного
// push-события и (б) доска снимка не беднее текущей по числу ходов.
// Ростер и результат, которых у нас нет, применяются всегда.
func (m *Machine) Refresh(ctx context.Context) error {
	s := m.store.Current()
	if !s.Active() {
		return ErrNoActiveRoom
	}

	requestedAt := time.Now()
	state, err := m.rooms.RoomSnapshot(ctx, s.RoomID)
	if err != nil {
		m.log.Warn("room refresh failed", "room_id", s.RoomID, "error", err)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applySnapshotLocked(state, requestedAt)
}

func (m *Machine) refreshAsync(roomID int) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	requestedAt := time.Now()
	state, err := m.rooms.RoomSnapshot(ctx, roomID)
	if err != nil {
		m.log.Warn("room refresh failed", "room_id", roomID, "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.applySnapshotLocked(state, requestedAt)
}

func (m *Machine) applySnapshotLocked(state api.RoomState, requestedAt time.Time) error {
	s := m.store.Current()
	if !s.Active() || s.RoomID != state.RoomID {
		// сессию сбросили или сменили комнату, пока летел запрос
		m.log.Debug("stale refresh dropped", "room_id", state.RoomID, "active", s.RoomID)
		return ErrRoomMismatch
	}

	// ростер и результат снимок несет авторитетно: их пишет только
	// сервер, гонок с push-событиями по этим полям не бывает
	localID := m.auth.CurrentPlayerID()
	_ = m.store.MergeRoster(state.RoomID, roomSlot(state.Players.Player1), roomSlot(state.Players.Player2), localID)
	if err := m.store.AdvanceStatus(state.RoomID, state.Status); err != nil {
		m.log.Debug("refresh status ignored", "status", state.Status, "error", err)
	}

	pushedSince := m.lastPush.After(requestedAt)
	snapshotBoard := domain.BoardFromStrings(state.Board)
	current := m.store.Current()

	if !pushedSince && snapshotBoard.MoveCount() >= current.Board.MoveCount() {
		switch state.Status {
		case domain.StatusFinished:
			b := snapshotBoard
			_ = m.store.Finish(state.RoomID, &b, state.Result)
		case domain.StatusInProgress:
			_ = m.store.ApplyBoard(state.RoomID, snapshotBoard, state.CurrentTurnPlayerID)
		}
	} else {
		m.log.Debug("refresh board discarded", "room_id", state.RoomID,
			"pushed_since", pushedSince, "snapshot_moves", snapshotBoard.MoveCount())
		// даже при отброшенной доске финал комнаты терять нельзя
		if state.Status == domain.StatusFinished {
			_ = m.store.Finish(state.RoomID, nil, state.Result)
		}
	}

	switch m.store.Current().Status {
	case domain.StatusFinished:
		if inRoomPhase(m.phase) {
			m.phase = PhaseFinished
		}
	case domain.StatusInProgress:
		if m.phase == PhaseMatchmaking || m.phase == PhaseWaitingForOpponent {
			m.phase = PhaseInGame
		}
	}
	m.publishLocked()
	return nil
}

func roomSlot(p *api.RoomPlayer) *domain.PlayerSlot {
	if p == nil {
		return nil
	}
	return &domain.PlayerSlot{
		ID:       p.ID,
		Symbol:   domain.Symbol(p.Symbol),
		Nickname: p.Nickname,
	}
}
