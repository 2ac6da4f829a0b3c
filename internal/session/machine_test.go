package session

import (
	"context"
	"sync"
	"testing"

	"tictacthrow/internal/api"
	"tictacthrow/internal/domain"
	"tictacthrow/internal/protocol"
	"tictacthrow/internal/ws"
)

type fakeTransport struct {
	mu      sync.Mutex
	emitted []string
	events  chan ws.Event
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan ws.Event, 16)}
}

func (f *fakeTransport) Emit(op string, payload any) error {
	f.mu.Lock()
	f.emitted = append(f.emitted, op)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Events() <-chan ws.Event { return f.events }

func (f *fakeTransport) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.emitted...)
}

func (f *fakeTransport) countOf(op string) int {
	n := 0
	for _, e := range f.ops() {
		if e == op {
			n++
		}
	}
	return n
}

type fakeAuth struct {
	id     int
	authed bool
}

func (f *fakeAuth) IsAuthenticated() bool { return f.authed }

func (f *fakeAuth) CurrentPlayerID() int { return f.id }

func (f *fakeAuth) CurrentPlayerName() string { return "tester" }

func (f *fakeAuth) Logout() { f.authed = false }

type fakeRooms struct {
	state   api.RoomState
	err     error
	onFetch func()
}

func (f *fakeRooms) RoomSnapshot(_ context.Context, roomID int) (api.RoomState, error) {
	if f.onFetch != nil {
		f.onFetch()
	}
	return f.state, f.err
}

type capture struct {
	mu     sync.Mutex
	errors []string
}

func (c *capture) hooks() Hooks {
	return Hooks{
		OnError: func(msg string) {
			c.mu.Lock()
			c.errors = append(c.errors, msg)
			c.mu.Unlock()
		},
	}
}

// newTestMachine собирает машину в лобби с живым соединением
func newTestMachine(t *testing.T, localID int) (*Machine, *fakeTransport, *capture) {
	t.Helper()
	tr := newFakeTransport()
	rec := &capture{}
	m := NewMachine(tr, &fakeAuth{id: localID, authed: true}, &fakeRooms{}, rec.hooks())
	m.HandleEvent(ws.Event{Name: ws.EventConnected})
	m.AuthSucceeded()
	if m.Phase() != PhaseLobby {
		t.Fatalf("setup: phase = %q, want lobby", m.Phase())
	}
	return m, tr, rec
}

func handle(m *Machine, name, payload string) {
	m.HandleEvent(ws.Event{Name: name, Data: []byte(payload)})
}

func TestFriendlyRoomHappyPath(t *testing.T) {
	m, tr, _ := newTestMachine(t, 1)

	m.OpenFriendlyRoomSetup()
	m.CreateRoom()
	if got := tr.countOf(protocol.OpRoomCreate); got != 1 {
		t.Fatalf("room:create emitted %d times, want 1", got)
	}
	if m.Phase() != PhaseFriendlyRoomSetup {
		t.Errorf("phase = %q before server reply", m.Phase())
	}

	handle(m, protocol.EvtRoomCreateSuccess, `{"roomId":42,"status":"waiting"}`)
	if m.Phase() != PhaseWaitingForOpponent {
		t.Errorf("phase = %q, want waiting_for_opponent", m.Phase())
	}
	s := m.Current()
	if s.RoomID != 42 || s.LocalSymbol != domain.SymbolX {
		t.Errorf("room=%d symbol=%q, want 42/X", s.RoomID, s.LocalSymbol)
	}
	if tr.countOf(protocol.OpSubscribeRoom) != 1 {
		t.Error("created room was not subscribed")
	}

	handle(m, protocol.EvtRoomJoined, `{"roomId":42,"status":"in_progress","player1":{"id":1,"symbol":"X","nickname":"me"},"player2":{"id":2,"symbol":"O","nickname":"rival"},"currentTurnPlayerId":1}`)
	if m.Phase() != PhaseInGame {
		t.Errorf("phase = %q, want in_game", m.Phase())
	}
	s = m.Current()
	if s.LocalSymbol != domain.SymbolX || s.TurnPlayerID != 1 {
		t.Errorf("symbol=%q turn=%d", s.LocalSymbol, s.TurnPlayerID)
	}
	if s.Player2 == nil || s.Player2.Nickname != "rival" {
		t.Errorf("roster not merged: %+v", s.Player2)
	}
}

func TestBoardUpdateIdempotent(t *testing.T) {
	m, _, _ := newTestMachine(t, 1)
	m.OpenFriendlyRoomSetup()
	m.CreateRoom()
	handle(m, protocol.EvtRoomCreateSuccess, `{"roomId":7,"status":"waiting"}`)

	move := `{"roomId":7,"board":["X","","","","O","","","",""],"currentTurnPlayerId":1}`
	handle(m, protocol.EvtRoomMove, move)
	first := m.Current()

	handle(m, protocol.EvtRoomMove, move)
	second := m.Current()

	if first.Board != second.Board || first.TurnPlayerID != second.TurnPlayerID || first.Status != second.Status {
		t.Errorf("duplicate event changed session: %+v vs %+v", first, second)
	}
	if m.Phase() != PhaseInGame {
		t.Errorf("phase = %q, want in_game", m.Phase())
	}
}

func TestStaleRoomEventsDropped(t *testing.T) {
	m, _, _ := newTestMachine(t, 1)
	m.OpenFriendlyRoomSetup()
	m.CreateRoom()
	handle(m, protocol.EvtRoomCreateSuccess, `{"roomId":7,"status":"waiting"}`)
	before := m.Current()
	phase := m.Phase()

	handle(m, protocol.EvtRoomMove, `{"roomId":99,"board":["O","O","O","","","","","",""],"currentTurnPlayerId":5}`)
	handle(m, protocol.EvtRoomFinished, `{"roomId":99,"board":[],"result":"O"}`)
	handle(m, protocol.EvtRoomJoined, `{"roomId":99,"status":"in_progress"}`)

	after := m.Current()
	if after.RoomID != before.RoomID || after.Board != before.Board || after.Status != before.Status || after.Result != before.Result {
		t.Errorf("stale-room event mutated session: %+v", after)
	}
	if m.Phase() != phase {
		t.Errorf("phase changed to %q", m.Phase())
	}
}

func TestMoveRejectedOutOfTurn(t *testing.T) {
	m, tr, rec := newTestMachine(t, 1)
	m.OpenFriendlyRoomSetup()
	m.CreateRoom()
	handle(m, protocol.EvtRoomCreateSuccess, `{"roomId":7,"status":"waiting"}`)
	handle(m, protocol.EvtRoomMove, `{"roomId":7,"board":["","","","","","","","",""],"currentTurnPlayerId":2}`)
	before := m.Current()

	m.Move(0)

	if got := tr.countOf(protocol.OpGameMove); got != 0 {
		t.Errorf("game:move emitted %d times out of turn", got)
	}
	if after := m.Current(); after.Board != before.Board {
		t.Error("session changed by rejected move")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errors) != 0 {
		t.Errorf("guard rejection surfaced to user: %v", rec.errors)
	}
}

func TestMoveEmittedOnOwnTurn(t *testing.T) {
	m, tr, _ := newTestMachine(t, 1)
	m.OpenFriendlyRoomSetup()
	m.CreateRoom()
	handle(m, protocol.EvtRoomCreateSuccess, `{"roomId":7,"status":"waiting"}`)
	handle(m, protocol.EvtRoomMove, `{"roomId":7,"board":["","","","","","","","",""],"currentTurnPlayerId":1}`)

	m.Move(4)
	if got := tr.countOf(protocol.OpGameMove); got != 1 {
		t.Fatalf("game:move emitted %d times, want 1", got)
	}
	// доска не меняется оптимистично: ее пишет только room:move
	if got := m.Current().Board.MoveCount(); got != 0 {
		t.Errorf("board mutated optimistically: %d moves", got)
	}

	// вторая попытка при ходе в полете отклоняется локально
	m.Move(5)
	if got := tr.countOf(protocol.OpGameMove); got != 1 {
		t.Errorf("duplicate in-flight move emitted, total %d", got)
	}

	// подтверждение закрывает операцию, следующий ход разрешен
	handle(m, protocol.EvtGameMoveSuccess, `{"roomId":7,"cellIndex":4}`)
	m.Move(5)
	if got := tr.countOf(protocol.OpGameMove); got != 2 {
		t.Errorf("move after ack emitted %d times total, want 2", got)
	}
}

func TestFinishViaEvent(t *testing.T) {
	m, _, _ := newTestMachine(t, 1)
	m.OpenFriendlyRoomSetup()
	m.CreateRoom()
	handle(m, protocol.EvtRoomCreateSuccess, `{"roomId":7,"status":"waiting"}`)
	handle(m, protocol.EvtRoomMove, `{"roomId":7,"board":["X","X","","O","O","","","",""],"currentTurnPlayerId":1}`)

	handle(m, protocol.EvtRoomFinished, `{"roomId":7,"board":["X","X","X","O","O","","","",""],"result":"X"}`)

	if m.Phase() != PhaseFinished {
		t.Errorf("phase = %q, want finished", m.Phase())
	}
	s := m.Current()
	if s.Status != domain.StatusFinished || s.Result != domain.ResultX {
		t.Errorf("status=%q result=%q", s.Status, s.Result)
	}
	if s.Board[2] != domain.SymbolX {
		t.Errorf("final board not applied: %+v", s.Board)
	}
}

func TestMatchmakingWaitingThenBoardUpdate(t *testing.T) {
	m, tr, _ := newTestMachine(t, 5)

	m.QueueMatchmaking()
	if m.Phase() != PhaseMatchmaking {
		t.Fatalf("phase = %q, want matchmaking", m.Phase())
	}
	if tr.countOf(protocol.OpQueue) != 1 {
		t.Fatal("matchmaking:queue not emitted")
	}

	handle(m, protocol.EvtQueueSuccess, `{"mode":"waiting","roomId":9,"status":"waiting"}`)
	if m.Phase() != PhaseMatchmaking {
		t.Errorf("phase = %q, must stay matchmaking while waiting", m.Phase())
	}
	if got := m.Current().RoomID; got != 9 {
		t.Errorf("RoomID = %d, want 9", got)
	}

	// первый же room:move доказывает старт партии; фаза идет в in_game,
	// минуя ожидание дружеской комнаты
	handle(m, protocol.EvtRoomMove, `{"roomId":9,"board":["","","","","","","","",""],"currentTurnPlayerId":5}`)
	if m.Phase() != PhaseInGame {
		t.Errorf("phase = %q, want in_game", m.Phase())
	}
}

func TestMatchmakingMatchedSnakeCaseRoom(t *testing.T) {
	m, _, _ := newTestMachine(t, 2)
	m.QueueMatchmaking()

	handle(m, protocol.EvtMatched, `{"mode":"matched","roomId":0,"status":"in_progress","room":{"room_id":17,"player1_id":1,"player2_id":2,"player1_symbol":"X","player2_symbol":"O","status":"in_progress","current_turn_player_id":1}}`)

	if m.Phase() != PhaseInGame {
		t.Fatalf("phase = %q, want in_game", m.Phase())
	}
	s := m.Current()
	if s.RoomID != 17 || s.LocalSymbol != domain.SymbolO || s.TurnPlayerID != 1 {
		t.Errorf("room=%d symbol=%q turn=%d", s.RoomID, s.LocalSymbol, s.TurnPlayerID)
	}
	// доска до первого room:move остается пустой
	if s.Board.MoveCount() != 0 {
		t.Errorf("board not empty after match: %+v", s.Board)
	}
}

// подтверждение матча может прийти после первого room:move той же
// комнаты; оно все равно принимается - без него ростер и символ
// локального игрока не узнать
func TestMatchedAfterBoardUpdateKeepsRoster(t *testing.T) {
	m, _, _ := newTestMachine(t, 2)
	m.QueueMatchmaking()
	handle(m, protocol.EvtQueueSuccess, `{"mode":"waiting","roomId":9,"status":"waiting"}`)
	handle(m, protocol.EvtRoomMove, `{"roomId":9,"board":["X","","","","","","","",""],"currentTurnPlayerId":2}`)
	if m.Phase() != PhaseInGame {
		t.Fatalf("phase = %q, want in_game", m.Phase())
	}

	handle(m, protocol.EvtMatched, `{"mode":"matched","roomId":0,"status":"in_progress","room":{"room_id":9,"player1_id":1,"player2_id":2,"player1_symbol":"X","player2_symbol":"O","status":"in_progress","current_turn_player_id":2}}`)

	s := m.Current()
	if s.LocalSymbol != domain.SymbolO {
		t.Errorf("LocalSymbol = %q, want O (matched event dropped, roster lost)", s.LocalSymbol)
	}
	if s.Player1 == nil || s.Player2 == nil {
		t.Fatalf("roster not merged: p1=%+v p2=%+v", s.Player1, s.Player2)
	}
	// доска из push-события переживает позднее подтверждение
	if s.Board.MoveCount() != 1 || s.Board[0] != domain.SymbolX {
		t.Errorf("board lost: %+v", s.Board)
	}
	if m.Phase() != PhaseInGame {
		t.Errorf("phase = %q, want in_game", m.Phase())
	}

	// подтверждение чужой комнаты при активной сессии отбрасывается
	handle(m, protocol.EvtMatched, `{"mode":"matched","roomId":55,"status":"in_progress","room":{"room_id":55,"player1_id":8,"player2_id":9,"player1_symbol":"X","player2_symbol":"O","status":"in_progress","current_turn_player_id":8}}`)
	if got := m.Current().RoomID; got != 9 {
		t.Errorf("foreign matched event rebound session to %d", got)
	}
}

func TestMatchedAfterCancelDropped(t *testing.T) {
	m, _, _ := newTestMachine(t, 2)
	m.QueueMatchmaking()
	m.CancelMatchmaking()
	handle(m, protocol.EvtCancelSuccess, `{}`)

	handle(m, protocol.EvtMatched, `{"mode":"matched","roomId":9,"status":"in_progress","room":{"room_id":9,"player1_id":1,"player2_id":2,"player1_symbol":"X","player2_symbol":"O","status":"in_progress","current_turn_player_id":2}}`)

	if m.Current().Active() {
		t.Error("matched event revived a canceled session")
	}
	if m.Phase() != PhaseLobby {
		t.Errorf("phase = %q, want lobby", m.Phase())
	}
}

func TestMatchmakingCancel(t *testing.T) {
	m, tr, _ := newTestMachine(t, 1)
	m.QueueMatchmaking()
	handle(m, protocol.EvtQueueSuccess, `{"mode":"waiting","roomId":9,"status":"waiting"}`)

	m.CancelMatchmaking()
	if tr.countOf(protocol.OpCancel) != 1 {
		t.Fatal("matchmaking:cancel not emitted")
	}
	handle(m, protocol.EvtCancelSuccess, `{}`)

	if m.Phase() != PhaseLobby {
		t.Errorf("phase = %q, want lobby", m.Phase())
	}
	if m.Current().Active() {
		t.Error("session still bound after cancel")
	}
}

func TestQueueErrorNotEnoughHearts(t *testing.T) {
	m, _, rec := newTestMachine(t, 1)
	m.QueueMatchmaking()

	handle(m, protocol.EvtQueueError, `{"error":"not_enough_hearts","hearts":0}`)

	if m.Phase() != PhaseLobby {
		t.Errorf("phase = %q, want lobby after queue error", m.Phase())
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errors) != 1 || rec.errors[0] != "not enough hearts to play" {
		t.Errorf("errors = %v", rec.errors)
	}
}

func TestLeaveToLobbyFullReset(t *testing.T) {
	m, tr, _ := newTestMachine(t, 1)
	m.OpenFriendlyRoomSetup()
	m.CreateRoom()
	handle(m, protocol.EvtRoomCreateSuccess, `{"roomId":7,"status":"waiting"}`)
	handle(m, protocol.EvtRoomMove, `{"roomId":7,"board":["X","","","","","","","",""],"currentTurnPlayerId":2}`)

	m.LeaveToLobby()

	s := m.Current()
	if s.RoomID != 0 || s.Board.MoveCount() != 0 || s.LocalSymbol != domain.SymbolNone || s.Result != domain.ResultNone {
		t.Errorf("residual state after leave: %+v", s)
	}
	if tr.countOf(protocol.OpUnsubscribeRoom) != 1 {
		t.Error("room not unsubscribed on leave")
	}
	// выход из партии ведет в лобби
	if m.Phase() != PhaseLobby {
		t.Errorf("phase = %q, want lobby", m.Phase())
	}

	// событие старой комнаты после сброса отбрасывается
	handle(m, protocol.EvtRoomMove, `{"roomId":7,"board":["X","O","","","","","","",""],"currentTurnPlayerId":1}`)
	if m.Current().Active() {
		t.Error("stale event revived the session")
	}
}

func TestLeaveFromWaitingReturnsToRoomSetup(t *testing.T) {
	m, _, _ := newTestMachine(t, 1)
	m.OpenFriendlyRoomSetup()
	m.CreateRoom()
	handle(m, protocol.EvtRoomCreateSuccess, `{"roomId":7,"status":"waiting"}`)

	m.LeaveToLobby()
	if m.Phase() != PhaseFriendlyRoomSetup {
		t.Errorf("phase = %q, want friendly_room_setup", m.Phase())
	}
}

func TestJoinRoomValidation(t *testing.T) {
	m, tr, rec := newTestMachine(t, 1)
	m.OpenJoinCode()

	m.JoinRoom(-3)
	if len(tr.ops()) != 0 {
		t.Errorf("invalid room id reached transport: %v", tr.ops())
	}
	rec.mu.Lock()
	got := append([]string(nil), rec.errors...)
	rec.mu.Unlock()
	if len(got) != 1 || got[0] != "Room ID must be a positive number" {
		t.Errorf("errors = %v", got)
	}
}

func TestIntentErrorKeepsPhase(t *testing.T) {
	m, _, rec := newTestMachine(t, 1)
	m.OpenJoinCode()
	m.JoinRoom(42)

	handle(m, protocol.EvtRoomJoinError, `{"error":"room is full"}`)

	if m.Phase() != PhaseAwaitingJoinCode {
		t.Errorf("phase = %q, want awaiting_join_code", m.Phase())
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errors) != 1 || rec.errors[0] != "room is full" {
		t.Errorf("errors = %v", rec.errors)
	}
}

func TestMalformedEventDropped(t *testing.T) {
	m, _, _ := newTestMachine(t, 1)
	m.OpenFriendlyRoomSetup()
	m.CreateRoom()
	handle(m, protocol.EvtRoomCreateSuccess, `{"roomId":7,"status":"waiting"}`)
	before := m.Current()

	handle(m, protocol.EvtRoomMove, `{"roomId":7,"board":`)
	handle(m, protocol.EvtRoomMove, `[]`)
	handle(m, protocol.EvtRoomFinished, `[{"roomId":7},{"roomId":7}]`)

	if after := m.Current(); after.Board != before.Board || after.Status != before.Status {
		t.Errorf("malformed event mutated session: %+v", after)
	}
}

func TestArrayWrappedEventAccepted(t *testing.T) {
	m, _, _ := newTestMachine(t, 1)
	m.OpenFriendlyRoomSetup()
	m.CreateRoom()
	handle(m, protocol.EvtRoomCreateSuccess, `[{"roomId":7,"status":"waiting"}]`)

	if got := m.Current().RoomID; got != 7 {
		t.Errorf("RoomID = %d, want 7", got)
	}
}

func TestPanelsReturnToLobby(t *testing.T) {
	m, _, _ := newTestMachine(t, 1)

	m.OpenPanel(PhaseLeaderboard)
	if m.Phase() != PhaseLeaderboard {
		t.Fatalf("phase = %q", m.Phase())
	}
	// панели не держат состояние сессии
	if m.Current().Active() {
		t.Error("panel created session state")
	}
	m.ClosePanel()
	if m.Phase() != PhaseLobby {
		t.Errorf("phase = %q, want lobby", m.Phase())
	}

	// панель недоступна не из лобби
	m.QueueMatchmaking()
	m.OpenPanel(PhaseStore)
	if m.Phase() != PhaseMatchmaking {
		t.Errorf("panel opened from %q", m.Phase())
	}
}

func TestLogoutResetsToAuthChoice(t *testing.T) {
	m, _, _ := newTestMachine(t, 1)
	m.OpenFriendlyRoomSetup()
	m.CreateRoom()
	handle(m, protocol.EvtRoomCreateSuccess, `{"roomId":7,"status":"waiting"}`)

	m.Logout()

	if m.Phase() != PhaseAuthChoice {
		t.Errorf("phase = %q, want auth_choice", m.Phase())
	}
	if m.Current().Active() {
		t.Error("session survived logout")
	}
}
