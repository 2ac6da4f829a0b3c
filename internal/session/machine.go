package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tictacthrow/internal/domain"
	"tictacthrow/internal/game"
	"tictacthrow/internal/logger"
	"tictacthrow/internal/protocol"
	"tictacthrow/internal/ws"
)

// Phase - жизненный цикл сессии с точки зрения UI. Не путать с
// domain.Session.Status: статус комнаты сообщает сервер, фазу ведет машина.
type Phase string

const (
	PhaseAuthChoice         Phase = "auth_choice"
	PhaseAuthForm           Phase = "auth_form"
	PhaseLobby              Phase = "lobby"
	PhaseFriendlyRoomSetup  Phase = "friendly_room_setup"
	PhaseAwaitingJoinCode   Phase = "awaiting_join_code"
	PhaseWaitingForOpponent Phase = "waiting_for_opponent"
	PhaseMatchmaking        Phase = "matchmaking"
	PhaseInGame             Phase = "in_game"
	PhaseFinished           Phase = "finished"
)

// Оверлейные панели. Доступны только из лобби и не держат состояние
// сессии: закрытие всегда возвращает в лобби.
const (
	PhaseLeaderboard Phase = "panel_leaderboard"
	PhaseStats       Phase = "panel_stats"
	PhaseStore       Phase = "panel_store"
	PhaseWallet      Phase = "panel_wallet"
)

func isPanel(p Phase) bool {
	switch p {
	case PhaseLeaderboard, PhaseStats, PhaseStore, PhaseWallet:
		return true
	}
	return false
}

// inRoomPhase - фазы, в которых LeaveToLobby сбрасывает сессию
func inRoomPhase(p Phase) bool {
	switch p {
	case PhaseAwaitingJoinCode, PhaseWaitingForOpponent, PhaseMatchmaking, PhaseInGame, PhaseFinished:
		return true
	}
	return false
}

// intentTimeout - сколько исходящая операция считается "в полете",
// если сервер не ответил ни успехом, ни ошибкой
const intentTimeout = 10 * time.Second

// Transport - исходящий канал машины. Реализуется ws.Client.
// Состояние соединения машина ведет сама по transport:connected и
// transport:disconnected из того же канала событий: так оно всегда
// согласовано с порядком доставки.
type Transport interface {
	Emit(event string, payload any) error
	Events() <-chan ws.Event
}

// Auth - коллаборатор аутентификации (реализуется api.Client)
type Auth interface {
	IsAuthenticated() bool
	CurrentPlayerID() int
	CurrentPlayerName() string
	Logout()
}

// Hooks - выходы машины к UI-коллаборатору. Вызываются на цикле
// сессии; повторный вход в машину из хука приведет к дедлоку.
type Hooks struct {
	// OnSnapshot получает копию сессии после каждой принятой мутации
	OnSnapshot func(s domain.Session, phase Phase)
	// OnError получает строку для показа пользователю
	OnError func(msg string)
	// OnConnectionChange сообщает о разрыве/восстановлении транспорта.
	// Сессию не трогает: индикатор чисто информационный.
	OnConnectionChange func(connected bool)
}

// Machine - контроллер сессии: единственная точка, где входящие
// события и намерения пользователя превращаются в переходы Store.
// Все мутации сериализуются одним мьютексом; пампы транспорта никогда
// не трогают Store напрямую.
type Machine struct {
	mu        sync.Mutex
	store     *Store
	transport Transport
	auth      Auth
	rooms     RoomFetcher
	hooks     Hooks
	log       *slog.Logger

	phase     Phase
	connected bool
	inFlight  map[string]*time.Timer
	// lastPush - момент последнего примененного push-события активной
	// комнаты; опора политики согласования (см. reconcile.go)
	lastPush time.Time
}

func NewMachine(transport Transport, auth Auth, rooms RoomFetcher, hooks Hooks) *Machine {
	return &Machine{
		store:     NewStore(),
		transport: transport,
		auth:      auth,
		rooms:     rooms,
		hooks:     hooks,
		log:       logger.Component("session"),
		phase:     PhaseAuthChoice,
		inFlight:  make(map[string]*time.Timer),
	}
}

// Current возвращает снимок сессии
func (m *Machine) Current() domain.Session { return m.store.Current() }

func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Run качает события транспорта до отмены контекста или закрытия
// канала. Единственный потребитель Events(): так все мутации сессии
// проходят через один логический поток.
func (m *Machine) Run(ctx context.Context) {
	events := m.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.HandleEvent(ev)
		}
	}
}

// ---- уведомления ----

func (m *Machine) publishLocked() {
	if m.hooks.OnSnapshot != nil {
		m.hooks.OnSnapshot(m.store.Current(), m.phase)
	}
}

func (m *Machine) reportError(msg string) {
	if m.hooks.OnError != nil {
		m.hooks.OnError(msg)
	}
}

// ---- учет операций в полете ----

// beginIntent регистрирует исходящую операцию. Повторное намерение при
// живой операции отклоняется локально - идемпотентность на уровне
// намерений, не транспорта.
func (m *Machine) beginIntent(op string) bool {
	if _, busy := m.inFlight[op]; busy {
		m.log.Debug("intent already in flight", "op", op)
		return false
	}
	m.inFlight[op] = time.AfterFunc(intentTimeout, func() {
		m.mu.Lock()
		_, still := m.inFlight[op]
		delete(m.inFlight, op)
		m.mu.Unlock()
		if still {
			m.log.Warn("intent timed out", "op", op)
			m.reportError("request timed out, try again")
		}
	})
	return true
}

func (m *Machine) endIntent(op string) {
	if t, ok := m.inFlight[op]; ok {
		t.Stop()
		delete(m.inFlight, op)
	}
}

func (m *Machine) clearIntents() {
	for op, t := range m.inFlight {
		t.Stop()
		delete(m.inFlight, op)
	}
}

// ---- намерения пользователя ----

// AuthSucceeded переводит машину в лобби после входа
func (m *Machine) AuthSucceeded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseAuthChoice && m.phase != PhaseAuthForm {
		return
	}
	m.phase = PhaseLobby
	m.publishLocked()
}

// OpenAuthForm показывает форму входа/регистрации
func (m *Machine) OpenAuthForm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseAuthChoice {
		m.phase = PhaseAuthForm
		m.publishLocked()
	}
}

// OpenFriendlyRoomSetup - экран создания дружеской комнаты
func (m *Machine) OpenFriendlyRoomSetup() {
	m.setPhaseFromLobby(PhaseFriendlyRoomSetup)
}

// OpenJoinCode - экран ввода кода комнаты
func (m *Machine) OpenJoinCode() {
	m.setPhaseFromLobby(PhaseAwaitingJoinCode)
}

// OpenPanel открывает оверлейную панель. Панели доступны только из лобби.
func (m *Machine) OpenPanel(p Phase) {
	if !isPanel(p) {
		return
	}
	m.setPhaseFromLobby(p)
}

// ClosePanel возвращает из панели в лобби
func (m *Machine) ClosePanel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if isPanel(m.phase) {
		m.phase = PhaseLobby
		m.publishLocked()
	}
}

func (m *Machine) setPhaseFromLobby(p Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseLobby {
		m.log.Debug("phase change rejected", "from", m.phase, "to", p)
		return
	}
	m.phase = p
	m.publishLocked()
}

// CreateRoom отправляет room:create. Фаза не меняется до ответа сервера.
func (m *Machine) CreateRoom() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseFriendlyRoomSetup {
		m.log.Debug("create room rejected", "phase", m.phase)
		return
	}
	if !m.guardOnlineLocked() {
		return
	}
	if !m.beginIntent(protocol.OpRoomCreate) {
		return
	}
	m.emitLocked(protocol.OpRoomCreate, nil)
}

// JoinRoom отправляет room:join с кодом комнаты
func (m *Machine) JoinRoom(roomID int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseAwaitingJoinCode {
		m.log.Debug("join room rejected", "phase", m.phase)
		return
	}
	if roomID <= 0 {
		m.reportError("Room ID must be a positive number")
		return
	}
	if !m.guardOnlineLocked() {
		return
	}
	if !m.beginIntent(protocol.OpRoomJoin) {
		return
	}
	m.emitLocked(protocol.OpRoomJoin, protocol.JoinRoomRequest{RoomID: roomID})
}

// QueueMatchmaking ставит игрока в очередь подбора. Фаза меняется
// сразу: пользователь видит экран поиска, не дожидаясь подтверждения.
func (m *Machine) QueueMatchmaking() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseLobby {
		m.log.Debug("queue rejected", "phase", m.phase)
		return
	}
	if !m.guardOnlineLocked() {
		return
	}
	if !m.beginIntent(protocol.OpQueue) {
		return
	}
	m.phase = PhaseMatchmaking
	m.emitLocked(protocol.OpQueue, nil)
	m.publishLocked()
}

// CancelMatchmaking просит сервер убрать игрока из очереди
func (m *Machine) CancelMatchmaking() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseMatchmaking {
		return
	}
	if !m.beginIntent(protocol.OpCancel) {
		return
	}
	m.emitLocked(protocol.OpCancel, nil)
}

// Move отправляет ход. Отказ guard-а не показывается пользователю:
// он возможен только из-за устаревшей отрисовки. Ход не применяется
// к доске оптимистично - доску пишет только room:move.
func (m *Machine) Move(cellIndex int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseInGame {
		m.log.Debug("move rejected", "phase", m.phase)
		return
	}
	s := m.store.Current()
	if reason := game.RejectReason(s, cellIndex, m.auth.CurrentPlayerID()); reason != "" {
		m.log.Debug("move rejected", "cell", cellIndex, "reason", reason)
		return
	}
	if !m.connected {
		m.reportError("no connection, wait for reconnect")
		return
	}
	if !m.beginIntent(protocol.OpGameMove) {
		return
	}
	m.emitLocked(protocol.OpGameMove, protocol.MoveRequest{RoomID: s.RoomID, CellIndex: cellIndex})
}

// LeaveToLobby сбрасывает сессию целиком: ничего из старой комнаты не
// протекает в следующую. Из состояний дружеской комнаты возврат идет
// на ее экран, из остальных - в лобби.
func (m *Machine) LeaveToLobby() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !inRoomPhase(m.phase) {
		return
	}
	from := m.phase
	s := m.store.Current()
	if s.Active() && m.connected {
		m.emitLocked(protocol.OpUnsubscribeRoom, protocol.JoinRoomRequest{RoomID: s.RoomID})
	}
	m.clearIntents()
	m.store.Reset()
	m.lastPush = time.Time{}

	switch from {
	case PhaseAwaitingJoinCode, PhaseWaitingForOpponent:
		m.phase = PhaseFriendlyRoomSetup
	default:
		m.phase = PhaseLobby
	}
	m.log.Info("left to lobby", "from", from)
	m.publishLocked()
}

// Logout сбрасывает сессию и аутентификацию
func (m *Machine) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearIntents()
	m.store.Reset()
	m.lastPush = time.Time{}
	m.auth.Logout()
	m.phase = PhaseAuthChoice
	m.log.Info("logged out")
	m.publishLocked()
}

func (m *Machine) guardOnlineLocked() bool {
	if !m.auth.IsAuthenticated() {
		m.reportError("Please login first")
		return false
	}
	if !m.connected {
		m.reportError("no connection, wait for reconnect")
		return false
	}
	return true
}

func (m *Machine) emitLocked(op string, payload any) {
	if err := m.transport.Emit(op, payload); err != nil {
		m.endIntent(op)
		m.log.Error("emit failed", "op", op, "error", err)
		m.reportError("failed to send request, try again")
	}
}

// ---- входящие события ----

// HandleEvent применяет одно событие к сессии. Любой сбой декодирования
// приводит к отбрасыванию события; мутации в рамках одного события
// атомарны на уровне переходов Store.
func (m *Machine) HandleEvent(ev ws.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Name {
	case ws.EventConnected:
		m.onConnected()
	case ws.EventDisconnected:
		m.onDisconnected()
	case protocol.EvtRoomCreateSuccess:
		m.onRoomCreated(ev.Data)
	case protocol.EvtRoomCreateError:
		m.onIntentError(protocol.OpRoomCreate, ev.Data)
	case protocol.EvtRoomJoinSuccess:
		m.endIntent(protocol.OpRoomJoin)
		m.onRoomJoin(ev.Data, true)
	case protocol.EvtRoomJoined:
		m.onRoomJoin(ev.Data, false)
	case protocol.EvtRoomJoinError:
		m.onIntentError(protocol.OpRoomJoin, ev.Data)
	case protocol.EvtRoomMove:
		m.onRoomMove(ev.Data)
	case protocol.EvtRoomFinished:
		m.onRoomFinished(ev.Data)
	case protocol.EvtGameMoveSuccess:
		m.onMoveAck(ev.Data)
	case protocol.EvtGameMoveError:
		m.onIntentError(protocol.OpGameMove, ev.Data)
	case protocol.EvtQueueSuccess:
		m.onQueueSuccess(ev.Data)
	case protocol.EvtQueueError:
		m.onQueueError(ev.Data)
	case protocol.EvtMatched, protocol.EvtBotAdded:
		m.onMatched(ev.Data)
	case protocol.EvtCancelSuccess:
		m.onCancelSuccess()
	case protocol.EvtCancelError:
		m.onIntentError(protocol.OpCancel, ev.Data)
	default:
		m.log.Debug("unhandled event", "event", ev.Name)
	}
}

func (m *Machine) onConnected() {
	m.connected = true
	m.log.Info("transport connected")
	if m.hooks.OnConnectionChange != nil {
		m.hooks.OnConnectionChange(true)
	}
	// после переподключения часть событий комнаты могла пропасть:
	// переподписываемся и догоняем состояние резервным каналом
	if s := m.store.Current(); s.Active() {
		m.emitLocked(protocol.OpSubscribeRoom, protocol.JoinRoomRequest{RoomID: s.RoomID})
		go m.refreshAsync(s.RoomID)
	}
}

func (m *Machine) onDisconnected() {
	m.connected = false
	m.clearIntents()
	m.log.Warn("transport disconnected")
	if m.hooks.OnConnectionChange != nil {
		m.hooks.OnConnectionChange(false)
	}
}

func (m *Machine) onRoomCreated(raw []byte) {
	m.endIntent(protocol.OpRoomCreate)
	p, err := protocol.Decode[protocol.RoomCreateSuccess](raw)
	if err != nil {
		m.dropEvent(protocol.EvtRoomCreateSuccess, err)
		return
	}
	if err := m.store.BindRoom(p.RoomID, domain.StatusWaiting); err != nil {
		m.log.Warn("room create ignored", "room_id", p.RoomID, "error", err)
		return
	}
	// создатель комнаты по соглашению всегда играет X
	_ = m.store.SetLocalSymbol(p.RoomID, domain.SymbolX)
	m.emitLocked(protocol.OpSubscribeRoom, protocol.JoinRoomRequest{RoomID: p.RoomID})
	m.phase = PhaseWaitingForOpponent
	m.log.Info("room created", "room_id", p.RoomID)
	m.publishLocked()
}

// onRoomJoin обслуживает и ответ room:join:success, и broadcast
// room:joined: полезная нагрузка одинаковая
func (m *Machine) onRoomJoin(raw []byte, isJoinReply bool) {
	p, err := protocol.Decode[protocol.RoomJoin](raw)
	if err != nil {
		m.dropEvent(protocol.EvtRoomJoined, err)
		return
	}
	s := m.store.Current()
	if s.Active() && s.RoomID != p.RoomID {
		m.log.Debug("stale room event dropped", "event", protocol.EvtRoomJoined, "room_id", p.RoomID, "active", s.RoomID)
		return
	}
	if err := m.store.BindRoom(p.RoomID, p.Status); err != nil {
		m.log.Warn("room join ignored", "room_id", p.RoomID, "error", err)
		return
	}
	if isJoinReply {
		m.emitLocked(protocol.OpSubscribeRoom, protocol.JoinRoomRequest{RoomID: p.RoomID})
	}

	localID := m.auth.CurrentPlayerID()
	_ = m.store.MergeRoster(p.RoomID, slotFromPayload(p.Player1), slotFromPayload(p.Player2), localID)
	if m.store.Current().LocalSymbol == domain.SymbolNone {
		// ни один слот не совпал с локальным игроком; не фатально,
		// но указывает на рассинхронизацию ростера
		m.log.Warn("local player not found in roster", "room_id", p.RoomID, "player_id", localID)
	}
	if p.CurrentTurnPlayerID != 0 {
		_ = m.store.SetTurn(p.RoomID, p.CurrentTurnPlayerID)
	}
	m.markPush()

	switch {
	case p.Status == domain.StatusInProgress:
		m.phase = PhaseInGame
	case m.phase == PhaseMatchmaking:
		// матч найден, но партия еще не началась: остаемся на экране
		// подбора, не регрессируя в ожидание дружеской комнаты
	default:
		m.phase = PhaseWaitingForOpponent
	}
	m.log.Info("room joined", "room_id", p.RoomID, "status", p.Status)
	m.publishLocked()
}

func (m *Machine) onRoomMove(raw []byte) {
	p, err := protocol.Decode[protocol.RoomMove](raw)
	if err != nil {
		m.dropEvent(protocol.EvtRoomMove, err)
		return
	}
	s := m.store.Current()
	if !s.Active() || s.RoomID != p.RoomID {
		m.log.Debug("stale room event dropped", "event", protocol.EvtRoomMove, "room_id", p.RoomID, "active", s.RoomID)
		return
	}
	if err := m.store.ApplyBoard(p.RoomID, domain.BoardFromStrings(p.Board), p.CurrentTurnPlayerID); err != nil {
		m.log.Warn("board update rejected", "room_id", p.RoomID, "error", err)
		return
	}
	m.markPush()

	// само событие доказывает, что партия началась, даже если
	// подтверждение матча потерялось или пришло со status=waiting
	if m.phase == PhaseMatchmaking || m.phase == PhaseWaitingForOpponent {
		m.phase = PhaseInGame
	}
	m.publishLocked()
}

func (m *Machine) onRoomFinished(raw []byte) {
	p, err := protocol.Decode[protocol.RoomFinished](raw)
	if err != nil {
		m.dropEvent(protocol.EvtRoomFinished, err)
		return
	}
	s := m.store.Current()
	if !s.Active() || s.RoomID != p.RoomID {
		m.log.Debug("stale room event dropped", "event", protocol.EvtRoomFinished, "room_id", p.RoomID, "active", s.RoomID)
		return
	}
	var board *domain.Board
	if p.Board != nil {
		b := domain.BoardFromStrings(p.Board)
		board = &b
	}
	if err := m.store.Finish(p.RoomID, board, p.Result); err != nil {
		m.log.Warn("finish rejected", "room_id", p.RoomID, "error", err)
		return
	}
	m.markPush()
	m.clearIntents()
	m.phase = PhaseFinished
	m.log.Info("room finished", "room_id", p.RoomID, "result", p.Result)
	m.publishLocked()
}

func (m *Machine) onMoveAck(raw []byte) {
	m.endIntent(protocol.OpGameMove)
	p, err := protocol.Decode[protocol.GameMoveSuccess](raw)
	if err != nil {
		m.dropEvent(protocol.EvtGameMoveSuccess, err)
		return
	}
	// подтверждение не пишет доску: ее обновит room:move
	m.log.Debug("move acknowledged", "room_id", p.RoomID, "cell", p.CellIndex)
}

func (m *Machine) onQueueSuccess(raw []byte) {
	m.endIntent(protocol.OpQueue)
	p, err := protocol.Decode[protocol.MatchmakingQueue](raw)
	if err != nil {
		m.dropEvent(protocol.EvtQueueSuccess, err)
		return
	}
	if m.phase != PhaseMatchmaking {
		// ответ очереди после отмены или выхода; комната больше не наша
		m.log.Debug("late queue reply dropped", "room_id", p.RoomID)
		return
	}
	if err := m.store.BindRoom(p.RoomID, p.Status); err != nil {
		m.log.Warn("queue room ignored", "room_id", p.RoomID, "error", err)
		return
	}
	m.emitLocked(protocol.OpSubscribeRoom, protocol.JoinRoomRequest{RoomID: p.RoomID})

	if p.Mode == protocol.QueueModeMatched {
		localID := m.auth.CurrentPlayerID()
		_ = m.store.MergeRoster(p.RoomID, slotFromPayload(p.Player1), slotFromPayload(p.Player2), localID)
		if p.CurrentTurnPlayerID != nil && *p.CurrentTurnPlayerID != 0 {
			_ = m.store.SetTurn(p.RoomID, *p.CurrentTurnPlayerID)
		}
		m.markPush()
		if p.Status == domain.StatusInProgress {
			// доска на этот момент неизвестна и остается пустой до
			// первого room:move; резервный запрос здесь не делается,
			// чтобы не обогнать событийный канал
			m.phase = PhaseInGame
		}
	}
	m.log.Info("matchmaking queued", "mode", p.Mode, "room_id", p.RoomID)
	m.publishLocked()
}

func (m *Machine) onQueueError(raw []byte) {
	m.endIntent(protocol.OpQueue)
	p, err := protocol.Decode[protocol.QueueError](raw)
	if err != nil {
		m.dropEvent(protocol.EvtQueueError, err)
		return
	}
	if p.Error == protocol.ErrNotEnoughHearts {
		m.reportError("not enough hearts to play")
	} else {
		m.reportError("matchmaking failed: " + p.Error)
	}
	// очередь так и не встала: возвращаем пользователя в лобби
	if m.phase == PhaseMatchmaking {
		m.phase = PhaseLobby
		m.publishLocked()
	}
	m.log.Warn("matchmaking queue error", "error", p.Error)
}

func (m *Machine) onMatched(raw []byte) {
	m.endIntent(protocol.OpQueue)
	p, err := protocol.Decode[protocol.MatchmakingMatched](raw)
	if err != nil {
		m.dropEvent(protocol.EvtMatched, err)
		return
	}
	roomID := p.EffectiveRoomID()
	s := m.store.Current()
	if s.Active() {
		// room:move мог уже перевести фазу в in_game; подтверждение
		// матча той же комнаты все равно нужно - оно несет ростер
		if s.RoomID != roomID {
			m.log.Debug("stale room event dropped", "event", protocol.EvtMatched, "room_id", roomID, "active", s.RoomID)
			return
		}
	} else if m.phase != PhaseMatchmaking {
		// сессии нет и подбор не идет: событие пережило отмену или выход
		m.log.Debug("late match event dropped", "room_id", roomID)
		return
	}
	status := p.Status
	if status == "" && p.Room != nil {
		status = p.Room.Status
	}
	if err := m.store.BindRoom(roomID, status); err != nil {
		m.log.Warn("matched room ignored", "room_id", roomID, "error", err)
		return
	}
	m.emitLocked(protocol.OpSubscribeRoom, protocol.JoinRoomRequest{RoomID: roomID})

	if p.Room != nil {
		localID := m.auth.CurrentPlayerID()
		p1 := &domain.PlayerSlot{ID: p.Room.Player1ID, Symbol: domain.Symbol(p.Room.Player1Symbol)}
		p2 := &domain.PlayerSlot{ID: p.Room.Player2ID, Symbol: domain.Symbol(p.Room.Player2Symbol)}
		_ = m.store.MergeRoster(roomID, p1, p2, localID)
		if p.Room.CurrentTurnPlayerID != 0 {
			_ = m.store.SetTurn(roomID, p.Room.CurrentTurnPlayerID)
		}
	}
	m.markPush()

	if m.store.Current().Status == domain.StatusInProgress {
		m.phase = PhaseInGame
	}
	m.log.Info("matched", "room_id", roomID, "bot", p.IsBot)
	m.publishLocked()
}

func (m *Machine) onCancelSuccess() {
	m.endIntent(protocol.OpCancel)
	if m.phase != PhaseMatchmaking {
		return
	}
	m.store.Reset()
	m.lastPush = time.Time{}
	m.phase = PhaseLobby
	m.log.Info("matchmaking canceled")
	m.publishLocked()
}

// onIntentError закрывает операцию и показывает текст ошибки.
// Фаза не меняется: пользователь остается где был и может повторить.
func (m *Machine) onIntentError(op string, raw []byte) {
	m.endIntent(op)
	p, err := protocol.Decode[protocol.ErrorPayload](raw)
	if err != nil {
		m.dropEvent(op+":error", err)
		m.reportError("request failed")
		return
	}
	m.log.Warn("server rejected request", "op", op, "error", p.Error)
	m.reportError(p.Error)
}

func (m *Machine) dropEvent(event string, err error) {
	m.log.Warn("event dropped", "event", event, "error", err)
}

// markPush фиксирует момент применения push-события активной комнаты
func (m *Machine) markPush() { m.lastPush = time.Now() }

func slotFromPayload(p *protocol.PlayerPayload) *domain.PlayerSlot {
	if p == nil {
		return nil
	}
	return &domain.PlayerSlot{
		ID:       p.ID,
		Symbol:   domain.Symbol(p.Symbol),
		Nickname: p.Nickname,
	}
}
