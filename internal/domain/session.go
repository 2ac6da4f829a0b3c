package domain

// Symbol - значок игрока на доске. Пустая строка означает свободную клетку.
type Symbol string

const (
	SymbolNone Symbol = ""
	SymbolX    Symbol = "X"
	SymbolO    Symbol = "O"
)

// статусы комнаты, как их сообщает сервер
const (
	StatusWaiting    = "waiting"
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
)

// результаты завершенной партии
const (
	ResultX    = "X"
	ResultO    = "O"
	ResultDraw = "draw"
	ResultNone = ""
)

// BoardSize - число клеток; доска всегда 3x3
const BoardSize = 9

// Board хранится массивом, а не срезом: копия значения дает
// моментальный снимок без разделяемой памяти.
type Board [BoardSize]Symbol

// MoveCount возвращает число занятых клеток. Используется политикой
// согласования как монотонный счетчик ходов.
func (b Board) MoveCount() int {
	n := 0
	for _, c := range b {
		if c != SymbolNone {
			n++
		}
	}
	return n
}

func (b Board) CellEmpty(i int) bool {
	return i >= 0 && i < BoardSize && b[i] == SymbolNone
}

// BoardFromStrings переводит доску из проводного формата (срез строк,
// null/"" - пустая клетка). Лишние элементы отбрасываются.
func BoardFromStrings(cells []string) Board {
	var b Board
	for i := 0; i < len(cells) && i < BoardSize; i++ {
		switch cells[i] {
		case string(SymbolX):
			b[i] = SymbolX
		case string(SymbolO):
			b[i] = SymbolO
		}
	}
	return b
}

// PlayerSlot - место игрока в комнате
type PlayerSlot struct {
	ID       int
	Symbol   Symbol
	Nickname string
}

// Session - единственная изменяемая запись текущего матча.
// Мутируется только переходами стейт-машины; наружу отдается копией.
type Session struct {
	RoomID int
	Status string
	Board  Board
	// id игрока, которому принадлежит ход; 0 - неизвестно
	TurnPlayerID int
	Player1      *PlayerSlot
	Player2      *PlayerSlot
	// символ локального игрока, кэшируется при первом совпадении ростера
	LocalSymbol Symbol
	Result      string
}

// Active сообщает, привязана ли сессия к комнате
func (s Session) Active() bool { return s.RoomID > 0 }

// Reset возвращает сессию в пустое состояние. Вызывается при выходе
// в лобби и при логауте, чтобы ничего не протекло в следующую комнату.
func (s *Session) Reset() {
	*s = Session{}
}

// SlotFor возвращает место ростера с данным id игрока
func (s Session) SlotFor(playerID int) *PlayerSlot {
	if s.Player1 != nil && s.Player1.ID == playerID {
		return s.Player1
	}
	if s.Player2 != nil && s.Player2.ID == playerID {
		return s.Player2
	}
	return nil
}

// Snapshot - read-only копия для UI. Указатели ростера дублируются,
// чтобы получатель не мог изменить внутреннее состояние.
func (s Session) Snapshot() Session {
	out := s
	if s.Player1 != nil {
		p := *s.Player1
		out.Player1 = &p
	}
	if s.Player2 != nil {
		p := *s.Player2
		out.Player2 = &p
	}
	return out
}
