package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"notevault-server/internal/domain"
	"notevault-server/internal/metrics"

	"go.uber.org/zap"
)

type ClientMessage struct {
	Client  *Client
	Message []byte
}

type Options struct {
	MaxConnPerUser int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
}

// Manager tracks open connections per user and fans note events out to them.
type Manager struct {
	clients       map[string]*Client
	userIndex     map[string]map[string]bool
	clientsMutex  sync.RWMutex
	Register      chan *Client
	Unregister    chan *Client
	HandleMessage chan *ClientMessage
	done          chan struct{}
	opts          Options
	logger        *zap.SugaredLogger
	metrics       *metrics.Metrics
}

func NewManager(opts Options, logger *zap.SugaredLogger, m *metrics.Metrics) *Manager {
	return &Manager{
		clients:       make(map[string]*Client),
		userIndex:     make(map[string]map[string]bool),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		HandleMessage: make(chan *ClientMessage),
		done:          make(chan struct{}),
		opts:          opts,
		logger:        logger,
		metrics:       m,
	}
}

// Run serves registrations and inbound messages until ctx is cancelled, then
// closes every connection.
func (m *Manager) Run(ctx context.Context) {
	defer m.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			m.unregisterClient(client)

		case clientMsg := <-m.HandleMessage:
			m.processMessage(clientMsg)
		}
	}
}

// Add hands a new client to the run loop. It reports false once the manager
// has stopped.
func (m *Manager) Add(client *Client) bool {
	select {
	case m.Register <- client:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) shutdown() {
	close(m.done)

	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	for id, client := range m.clients {
		close(client.Send)
		delete(m.clients, id)
		m.connections(-1)
	}
	m.userIndex = make(map[string]map[string]bool)
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if len(m.userIndex[client.UserID]) >= m.opts.MaxConnPerUser {
		m.logger.Warnw("Max connections reached", "user_id", client.UserID)
		close(client.Send)
		return
	}

	if m.userIndex[client.UserID] == nil {
		m.userIndex[client.UserID] = make(map[string]bool)
	}
	m.clients[client.ID] = client
	m.userIndex[client.UserID][client.ID] = true
	m.connections(1)

	m.logger.Debugw("Client registered", "client_id", client.ID, "user_id", client.UserID)
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		delete(m.userIndex[client.UserID], client.ID)

		if len(m.userIndex[client.UserID]) == 0 {
			delete(m.userIndex, client.UserID)
		}

		close(client.Send)
		m.connections(-1)
		m.logger.Debugw("Client unregistered", "client_id", client.ID)
	}
}

func (m *Manager) processMessage(clientMsg *ClientMessage) {
	var msg Message
	if err := json.Unmarshal(clientMsg.Message, &msg); err != nil {
		m.reply(clientMsg.Client, TypeError, &ErrorPayload{Error: "invalid message"})
		return
	}

	switch msg.Type {
	case TypePing:
		m.reply(clientMsg.Client, TypePong, nil)
	default:
		m.reply(clientMsg.Client, TypeError, &ErrorPayload{Error: "unsupported message type: " + string(msg.Type)})
	}
}

func (m *Manager) reply(client *Client, msgType MessageType, payload interface{}) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		m.logger.Errorw("Failed to build message", "type", msgType, "error", err)
		return
	}
	if err := m.SendToClient(client.ID, msg); err != nil {
		m.logger.Errorw("Failed to send message", "client_id", client.ID, "error", err)
	}
}

// PublishNoteEvent delivers a note event to every connection of the owner.
func (m *Manager) PublishNoteEvent(ownerID string, event *domain.NoteEvent) {
	msg, err := NewMessage(MessageType(event.Type), event)
	if err != nil {
		m.logger.Errorw("Failed to build note event", "note_id", event.NoteID, "error", err)
		return
	}

	delivered, err := m.BroadcastToUser(ownerID, msg)
	if err != nil {
		m.logger.Errorw("Failed to broadcast note event", "note_id", event.NoteID, "error", err)
		return
	}
	if m.metrics != nil && delivered > 0 {
		m.metrics.NoteEvents.WithLabelValues(string(event.Type)).Add(float64(delivered))
	}
}

// BroadcastToUser queues message on every connection of userID and reports
// how many accepted it. Connections whose buffers are full are dropped.
func (m *Manager) BroadcastToUser(userID string, message *Message) (int, error) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return 0, err
	}

	var slow []*Client
	delivered := 0

	m.clientsMutex.RLock()
	for clientID := range m.userIndex[userID] {
		client := m.clients[clientID]
		select {
		case client.Send <- messageBytes:
			delivered++
		default:
			slow = append(slow, client)
		}
	}
	m.clientsMutex.RUnlock()

	for _, client := range slow {
		m.logger.Warnw("Client send buffer full, closing connection", "client_id", client.ID)
		m.unregisterClient(client)
	}

	return delivered, nil
}

func (m *Manager) SendToClient(clientID string, message *Message) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	client, exists := m.clients[clientID]
	if !exists {
		return nil
	}

	select {
	case client.Send <- messageBytes:
	default:
		m.logger.Warnw("Client send buffer full", "client_id", clientID)
	}

	return nil
}

func (m *Manager) GetUserConnections(userID string) int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	return len(m.userIndex[userID])
}

func (m *Manager) connections(delta float64) {
	if m.metrics != nil {
		m.metrics.WSConnections.Add(delta)
	}
}
