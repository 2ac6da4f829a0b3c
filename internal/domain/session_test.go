package domain

import "testing"

// boundSession возвращает сессию значением, как это делает Store.Current:
// методы чтения обязаны работать на неадресуемом возврате
func boundSession() Session {
	return Session{
		RoomID:       7,
		Status:       StatusInProgress,
		TurnPlayerID: 1,
		Player1:      &PlayerSlot{ID: 1, Symbol: SymbolX, Nickname: "alice"},
		Player2:      &PlayerSlot{ID: 2, Symbol: SymbolO, Nickname: "bob"},
		LocalSymbol:  SymbolX,
	}
}

func TestReadMethodsOnValueReturn(t *testing.T) {
	if !boundSession().Active() {
		t.Error("Active() on a returned value = false, want true")
	}
	if (Session{}).Active() {
		t.Error("empty session reports active")
	}
	if slot := boundSession().SlotFor(2); slot == nil || slot.Symbol != SymbolO {
		t.Errorf("SlotFor(2) = %+v", slot)
	}
	if slot := boundSession().SlotFor(99); slot != nil {
		t.Errorf("SlotFor(99) = %+v, want nil", slot)
	}
	if snap := boundSession().Snapshot(); snap.RoomID != 7 || snap.Player1 == nil {
		t.Errorf("Snapshot() = %+v", snap)
	}
}

func TestSnapshotCopiesRosterPointers(t *testing.T) {
	s := boundSession()
	snap := s.Snapshot()
	snap.Player1.Nickname = "mallory"
	if s.Player1.Nickname != "alice" {
		t.Error("snapshot shares roster memory with the source")
	}
}

func TestResetClearsInPlace(t *testing.T) {
	s := boundSession()
	s.Board[0] = SymbolX
	s.Reset()
	if s.Active() || s.Player1 != nil || s.Board.MoveCount() != 0 || s.LocalSymbol != SymbolNone {
		t.Errorf("residual state after reset: %+v", s)
	}
}

func TestBoardFromStrings(t *testing.T) {
	b := BoardFromStrings([]string{"X", "", "O", "", "", "", "", "", "", "X"})
	if b[0] != SymbolX || b[2] != SymbolO || b[1] != SymbolNone {
		t.Errorf("board = %+v", b)
	}
	if got := b.MoveCount(); got != 2 {
		t.Errorf("MoveCount = %d, want 2", got)
	}
	// короткий срез дополняется пустыми клетками
	short := BoardFromStrings([]string{"X"})
	if short.MoveCount() != 1 {
		t.Errorf("short board = %+v", short)
	}
}
