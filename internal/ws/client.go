// Package ws - транспортный адаптер: постоянное событийное соединение
// с сервером. Не знает игровой семантики; наружу отдает именованные
// события одним каналом, внутрь принимает именованные операции.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tictacthrow/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
	readLimit  = 8192

	reconnectAttempts = 5
	reconnectDelay    = time.Second
)

var (
	ErrClosed       = errors.New("ws: client closed")
	ErrBackpressure = errors.New("ws: send queue full")
	ErrNotConnected = errors.New("ws: not connected")
)

// Envelope - кадр канала: имя события плюс произвольная нагрузка
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event - входящее событие, как его видит сессионный цикл
type Event struct {
	Name string
	Data json.RawMessage
}

// синтетические события самого транспорта; сессия получает их тем же
// каналом, что и серверные, поэтому порядок относительно них сохранен
const (
	EventConnected    = "transport:connected"
	EventDisconnected = "transport:disconnected"
)

// Client владеет одним соединением. Все входящие кадры сериализуются
// в канал events: это единственный путь доставки, что дает сессии
// однопоточную мутацию без дополнительных блокировок.
type Client struct {
	url   string
	token string
	id    string
	log   *slog.Logger

	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
	up   bool

	send   chan []byte
	events chan Event

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewClient принимает базовый URL сервера (http/https/ws/wss) и токен.
// Путь /ws добавляется, если его нет.
func NewClient(rawURL, token string) *Client {
	return &Client{
		url:    socketURL(rawURL),
		token:  token,
		id:     uuid.NewString(),
		log:    logger.Component("ws"),
		dialer: websocket.DefaultDialer,
		send:   make(chan []byte, 64),
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
}

func socketURL(raw string) string {
	s := raw
	s = strings.Replace(s, "http://", "ws://", 1)
	s = strings.Replace(s, "https://", "wss://", 1)
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String()
}

// Events - единственный канал входящих событий. Закрывается после Close.
func (c *Client) Events() <-chan Event { return c.events }

// ConnectionID - идентификатор для корреляции логов
func (c *Client) ConnectionID() string { return c.id }

// Connect устанавливает соединение и запускает пампы.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("ws connect: %w", err)
	}
	c.setConn(conn)

	c.wg.Add(2)
	go c.writePump()
	go c.readPump()

	// закрываем канал событий только когда оба пампа завершились
	go func() {
		c.wg.Wait()
		close(c.events)
	}()

	c.log.Info("connected", "url", c.url, "conn_id", c.id)
	c.deliver(Event{Name: EventConnected})
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.up = true
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
}

func (c *Client) markDown() {
	c.mu.Lock()
	c.up = false
	c.mu.Unlock()
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// IsConnected отражает последнее известное состояние соединения: false
// с момента обрыва и на все время передоговора
func (c *Client) IsConnected() bool {
	select {
	case <-c.done:
		return false
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

// Emit ставит операцию в очередь отправки. Fire-and-forget: ответ
// приходит отдельным входящим событием, здесь его никто не ждет.
func (c *Client) Emit(event string, payload any) error {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("ws emit %s: %w", event, err)
		}
		env.Data = data
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("ws emit %s: %w", event, err)
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- frame:
		emitsSent.WithLabelValues(event).Inc()
		return nil
	default:
		// медленная сеть: не блокируем вызывающего
		return ErrBackpressure
	}
}

func (c *Client) readPump() {
	defer c.wg.Done()

	for {
		conn := c.current()
		if conn == nil {
			return
		}
		conn.SetReadLimit(readLimit)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			c.handleFrame(msg)
		}

		select {
		case <-c.done:
			return
		default:
		}

		c.markDown()
		c.log.Warn("connection lost, re-dialing", "conn_id", c.id)
		c.deliver(Event{Name: EventDisconnected})
		if !c.redial() {
			c.Close()
			return
		}
		reconnects.Inc()
		c.deliver(Event{Name: EventConnected})
	}
}

// redial - ограниченное число попыток с паузой; порядок событий в рамках
// комнаты сервер восстанавливает по подписке после реконнекта
func (c *Client) redial() bool {
	for attempt := 1; attempt <= reconnectAttempts; attempt++ {
		select {
		case <-c.done:
			return false
		case <-time.After(reconnectDelay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		conn, err := c.dial(ctx)
		cancel()
		if err != nil {
			c.log.Warn("re-dial failed", "attempt", attempt, "error", err)
			continue
		}
		c.setConn(conn)
		c.log.Info("reconnected", "attempt", attempt, "conn_id", c.id)
		return true
	}
	c.log.Error("re-dial attempts exhausted", "conn_id", c.id)
	return false
}

func (c *Client) handleFrame(msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil || env.Event == "" {
		decodeFailures.Inc()
		c.log.Warn("dropping unparsable frame", "size", len(msg))
		return
	}
	eventsReceived.WithLabelValues(env.Event).Inc()
	c.deliver(Event{Name: env.Event, Data: env.Data})
}

// deliver блокируется, а не отбрасывает: порядок доставки по комнате -
// часть контракта транспорта
func (c *Client) deliver(ev Event) {
	select {
	case <-c.done:
	case c.events <- ev:
	}
}

func (c *Client) writePump() {
	defer c.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			conn := c.current()
			if conn == nil {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				// readPump заметит обрыв и передоговорится; кадр потерян,
				// вызывающий узнает об этом по таймауту своего запроса
				c.log.Warn("write failed", "error", err)
			}
		case <-ticker.C:
			conn := c.current()
			if conn == nil {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Warn("ping failed", "error", err)
			}
		}
	}
}

// Close - детерминированный teardown: одна подписка на машину, один Close.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if conn := c.current(); conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(writeWait))
			_ = conn.Close()
		}
	})
}
