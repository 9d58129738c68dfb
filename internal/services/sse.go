package services

import (
	"sync"

	"github.com/google/uuid"
	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/pkg/logger"
)

// NotificationStream fans in-app notifications out to connected SSE clients.
// A user may hold several subscriptions at once (multiple tabs); each gets
// its own channel keyed by a random client ID.
type NotificationStream struct {
	mu      sync.RWMutex
	clients map[uint]map[string]chan *models.Notification
}

func NewNotificationStream() *NotificationStream {
	return &NotificationStream{
		clients: make(map[uint]map[string]chan *models.Notification),
	}
}

// Subscribe registers a listener for the user and returns the delivery
// channel plus a cancel function that must be called when the connection
// closes.
func (s *NotificationStream) Subscribe(userID uint) (string, <-chan *models.Notification, func()) {
	clientID := uuid.NewString()
	ch := make(chan *models.Notification, 16)

	s.mu.Lock()
	if s.clients[userID] == nil {
		s.clients[userID] = make(map[string]chan *models.Notification)
	}
	s.clients[userID][clientID] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if chans, ok := s.clients[userID]; ok {
			if c, ok := chans[clientID]; ok {
				delete(chans, clientID)
				close(c)
			}
			if len(chans) == 0 {
				delete(s.clients, userID)
			}
		}
		s.mu.Unlock()
	}

	return clientID, ch, cancel
}

// Publish pushes a notification to every live subscription of the user.
// Slow clients are skipped rather than blocked on; the in-app row remains
// the durable copy.
func (s *NotificationStream) Publish(userID uint, n *models.Notification) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for clientID, ch := range s.clients[userID] {
		select {
		case ch <- n:
		default:
			logger.Debugf("[Stream] Client %s of user %d is slow, dropping push", clientID, userID)
		}
	}
}

// SubscriberCount returns the number of live subscriptions for the user.
func (s *NotificationStream) SubscriberCount(userID uint) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[userID])
}
