// Package game - чистый слой правил. Победителя считает сервер;
// клиенту нужна только проверка допустимости хода.
package game

import "tictacthrow/internal/domain"

// CanMove повторяет guard перехода RequestMove: клетка в границах,
// партия идет, ход принадлежит локальному игроку, клетка свободна.
// UI использует тот же предикат для подсветки клеток.
func CanMove(s domain.Session, cellIndex, localPlayerID int) bool {
	return RejectReason(s, cellIndex, localPlayerID) == ""
}

// RejectReason возвращает диагностику отказа ("" - ход допустим).
// Нужна только для логов: guard-отказы не показываются пользователю.
func RejectReason(s domain.Session, cellIndex, localPlayerID int) string {
	if cellIndex < 0 || cellIndex >= domain.BoardSize {
		return "cell index out of range"
	}
	if s.Status != domain.StatusInProgress {
		return "game not in progress"
	}
	if localPlayerID == 0 || s.TurnPlayerID != localPlayerID {
		return "not local player's turn"
	}
	if !s.Board.CellEmpty(cellIndex) {
		return "cell already taken"
	}
	return ""
}
