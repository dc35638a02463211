package realtime

import (
	"sync"
	"time"
)

// Conn — непрозрачный хэндл одной живой realtime-сессии.
// Send — best-effort: ошибка или переполненный буфер не считаются
// сбоем операции, вызвавшей отправку.
type Conn interface {
	ID() string
	Send(event string, payload any) error
}

// Registry держит в памяти связку email -> соединение. Живёт только в
// рамках процесса; создаётся явно и передаётся тем, кто шлёт уведомления
// (не глобальный синглтон). Все операции безопасны для конкурентного
// использования.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn // все соединения, включая неаутентифицированные
	users map[string]Conn // email -> соединение
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Conn),
		users: make(map[string]Conn),
	}
}

// Connect регистрирует новое (ещё не аутентифицированное) соединение и
// сразу шлёт ему подтверждение с id хэндла.
func (r *Registry) Connect(c Conn) {
	r.mu.Lock()
	r.conns[c.ID()] = c
	r.mu.Unlock()

	_ = c.Send("new-connection-message", map[string]any{
		"message":   "client-connected",
		"socketId":  c.ID(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Bind связывает email с соединением. Повторная аутентификация того же
// email перезаписывает прежнюю связку — побеждает последнее соединение.
func (r *Registry) Bind(email string, c Conn) {
	r.mu.Lock()
	r.users[email] = c
	r.mu.Unlock()
}

// Disconnect удаляет соединение и, если оно было аутентифицировано,
// его email-связку. Неизвестный хэндл — no-op.
func (r *Registry) Disconnect(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, c.ID())
	for email, bound := range r.users {
		if bound.ID() == c.ID() {
			delete(r.users, email)
			break
		}
	}
}

// EmitToAll рассылает событие всем подключённым, независимо от
// аутентификации. Доставка не подтверждается.
func (r *Registry) EmitToAll(event string, payload any) {
	r.mu.RLock()
	targets := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		_ = c.Send(event, payload)
	}
}

// EmitToUser шлёт событие соединению, привязанному к email. true означает
// только "на момент вызова связка существовала", не факт доставки.
func (r *Registry) EmitToUser(email, event string, payload any) bool {
	r.mu.RLock()
	c, ok := r.users[email]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	_ = c.Send(event, payload)
	return true
}

func (r *Registry) ConnectedUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.users))
	for email := range r.users {
		out = append(out, email)
	}
	return out
}

func (r *Registry) IsUserConnected(email string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[email]
	return ok
}
