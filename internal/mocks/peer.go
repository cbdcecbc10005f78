package mocks

import (
	"sync"

	"github.com/phrazzld/txtreader/internal/protocol"
)

// MockPeer implements task.Peer for testing. Responses are injected with
// Respond; Close closes the receive channel as a vanished worker would.
type MockPeer struct {
	// SendFn allows test cases to mock the Send behavior
	SendFn func(req protocol.Request) error

	// SendErr is returned by Send when SendFn is nil
	SendErr error

	responses chan protocol.Response
	closeOnce sync.Once

	mu       sync.Mutex
	requests []protocol.Request
}

// NewMockPeer creates a MockPeer whose receive channel buffers 64 responses.
func NewMockPeer() *MockPeer {
	return &MockPeer{responses: make(chan protocol.Response, 64)}
}

// Send implements the task.Peer interface
func (m *MockPeer) Send(req protocol.Request) error {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.SendFn != nil {
		return m.SendFn(req)
	}
	return m.SendErr
}

// Receive implements the task.Peer interface
func (m *MockPeer) Receive() <-chan protocol.Response {
	return m.responses
}

// Respond delivers resp to the scheduler as if the worker had sent it.
func (m *MockPeer) Respond(resp protocol.Response) {
	m.responses <- resp
}

// Close closes the receive channel.
func (m *MockPeer) Close() {
	m.closeOnce.Do(func() { close(m.responses) })
}

// Requests returns a copy of every request passed to Send, in order.
func (m *MockPeer) Requests() []protocol.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]protocol.Request(nil), m.requests...)
}

// SendCount returns how many times Send was called.
func (m *MockPeer) SendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest returns the most recent request passed to Send.
func (m *MockPeer) LastRequest() (protocol.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return protocol.Request{}, false
	}
	return m.requests[len(m.requests)-1], true
}
