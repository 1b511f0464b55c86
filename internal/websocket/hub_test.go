package websocket

import (
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"intraday/internal/models"
)

// ============================================================
// Unit Tests
// ============================================================

func TestNewHub(t *testing.T) {
	hub := NewHub(zap.NewNop())

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
	if hub.DroppedMessages() != 0 {
		t.Errorf("expected 0 dropped messages, got %d", hub.DroppedMessages())
	}
}

func TestOriginChecker_Check(t *testing.T) {
	checker := &OriginChecker{
		allowedOrigins: map[string]struct{}{
			"http://localhost:3000": {},
			"https://example.com":   {},
		},
		allowAll: false,
	}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},                       // empty origin allowed
		{"http://localhost:3000", true},  // allowed
		{"https://example.com", true},    // allowed
		{"http://evil.com", false},       // not allowed
		{"http://localhost:8080", false}, // not in list
	}

	for _, tt := range tests {
		if got := checker.Check(tt.origin); got != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestOriginChecker_AllowAll(t *testing.T) {
	checker := &OriginChecker{allowAll: true}

	for _, origin := range []string{
		"http://localhost:3000",
		"https://evil.com",
		"http://anything.example.org",
	} {
		if !checker.Check(origin) {
			t.Errorf("allowAll=true but Check(%q) = false", origin)
		}
	}
}

func TestHub_BroadcastDeliversToClient(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	client := &Client{hub: hub, send: make(chan []byte, clientSendBufferSize)}
	hub.register <- client

	hub.BroadcastRuntime(models.StrategyRuntime{
		Symbol: "ES",
		State:  models.StateOpen,
		Side:   models.SideLong,
	})

	select {
	case msg := <-client.send:
		payload := string(msg)
		if !strings.Contains(payload, `"type":"runtimeUpdate"`) {
			t.Errorf("message missing runtimeUpdate type: %s", payload)
		}
		if !strings.Contains(payload, `"symbol":"ES"`) {
			t.Errorf("message missing strategy symbol: %s", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("client did not receive the broadcast")
	}
}

func TestHub_BroadcastNotification(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	client := &Client{hub: hub, send: make(chan []byte, clientSendBufferSize)}
	hub.register <- client

	hub.BroadcastNotification(models.Notification{
		Type:     models.NotificationTypeHardDeck,
		Severity: models.SeverityFatal,
		Message:  "hard deck breached",
	})

	select {
	case msg := <-client.send:
		payload := string(msg)
		if !strings.Contains(payload, `"type":"notification"`) {
			t.Errorf("message missing notification type: %s", payload)
		}
		if !strings.Contains(payload, models.NotificationTypeHardDeck) {
			t.Errorf("message missing HARD_DECK payload: %s", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("client did not receive the notification")
	}
}

func TestHub_BroadcastNonBlocking(t *testing.T) {
	hub := NewHub(zap.NewNop())
	// Run не запущен: канал заполняется и сообщения роняются,
	// вызывающий не должен блокироваться
	for i := 0; i < 1000; i++ {
		hub.BroadcastRuntime(models.StrategyRuntime{Symbol: "ES"})
	}

	if hub.DroppedMessages() == 0 {
		t.Error("expected dropped messages with a full broadcast channel")
	}
}

func TestHub_Stop(t *testing.T) {
	hub := NewHub(zap.NewNop())

	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	hub.Stop()

	select {
	case <-done:
		// Run() вышел
	case <-time.After(time.Second):
		t.Error("Hub.Run() did not exit after Stop()")
	}

	// Повторный Stop безопасен
	hub.Stop()
}

func TestHub_ConcurrentOperations(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	var wg sync.WaitGroup
	const goroutines = 10
	const operations = 500

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				hub.BroadcastRuntime(models.StrategyRuntime{Symbol: "ES"})
			}
		}()
	}

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				_ = hub.ClientCount()
			}
		}()
	}

	wg.Wait()
}

// ============================================================
// Benchmarks
// ============================================================

// BenchmarkHub_BroadcastRuntime тестирует сериализацию снимка состояния
func BenchmarkHub_BroadcastRuntime(b *testing.B) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	rt := models.StrategyRuntime{
		Symbol:         "ES",
		State:          models.StateOpen,
		Side:           models.SideLong,
		EntryPrice:     4500.25,
		VirtualCapital: 12500,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.BroadcastRuntime(rt)
	}
}

// BenchmarkHub_BroadcastRaw тестирует рассылку уже сериализованных данных
func BenchmarkHub_BroadcastRaw(b *testing.B) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	data := []byte(`{"type":"runtimeUpdate","data":{"symbol":"ES"}}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.BroadcastRaw(data)
	}
}
