package relay

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"gamechat/pkg/types"
)

func newUnwiredConnection(t *testing.T) *Connection {
	t.Helper()
	conn := NewConnection(nil, 1, time.Second)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func boundConnection(t *testing.T, userID int64) *Connection {
	t.Helper()
	conn := newUnwiredConnection(t)
	conn.Bind(userID)
	return conn
}

func TestAttachAndDetach(t *testing.T) {
	registry := NewRegistry()
	conn := boundConnection(t, 42)

	if err := registry.Attach(conn); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}

	stats := registry.Stats()
	if stats["total_connections"] != 1 || stats["connected_users"] != 1 {
		t.Errorf("Stats() = %v, want 1 connection, 1 user", stats)
	}

	registry.Detach(conn)

	stats = registry.Stats()
	if stats["total_connections"] != 0 || stats["connected_users"] != 0 {
		t.Errorf("Stats() after detach = %v, want empty", stats)
	}
}

func TestAttachNilConnection(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Attach(nil); err != ErrNilConnection {
		t.Errorf("Attach(nil) error = %v, want ErrNilConnection", err)
	}
}

func TestDetachIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	conn := boundConnection(t, 42)

	if err := registry.Attach(conn); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}

	registry.Detach(conn)
	registry.Detach(conn)
	registry.Detach(nil)

	stats := registry.Stats()
	if stats["total_connections"] != 0 {
		t.Errorf("Stats() = %v, want empty", stats)
	}
}

func TestDetachNeverAttached(t *testing.T) {
	registry := NewRegistry()

	registry.Detach(boundConnection(t, 1))

	if stats := registry.Stats(); stats["total_connections"] != 0 {
		t.Errorf("Stats() = %v, want empty", stats)
	}
}

func TestMultipleConnectionsPerUser(t *testing.T) {
	registry := NewRegistry()

	first := boundConnection(t, 42)
	second := boundConnection(t, 42)
	other := boundConnection(t, 7)

	for _, conn := range []*Connection{first, second, other} {
		if err := registry.Attach(conn); err != nil {
			t.Fatalf("Attach() error = %v", err)
		}
	}

	stats := registry.Stats()
	if stats["total_connections"] != 3 {
		t.Errorf("total_connections = %d, want 3", stats["total_connections"])
	}
	if stats["connected_users"] != 2 {
		t.Errorf("connected_users = %d, want 2", stats["connected_users"])
	}

	if got := len(registry.Lookup(42)); got != 2 {
		t.Errorf("Lookup(42) = %d connections, want 2", got)
	}

	// Dropping one device leaves the user's other device attached.
	registry.Detach(first)

	if got := len(registry.Lookup(42)); got != 1 {
		t.Errorf("Lookup(42) after detach = %d connections, want 1", got)
	}
	if stats := registry.Stats(); stats["connected_users"] != 2 {
		t.Errorf("connected_users = %d, want 2", stats["connected_users"])
	}

	registry.Detach(second)

	if stats := registry.Stats(); stats["connected_users"] != 1 {
		t.Errorf("connected_users = %d, want 1", stats["connected_users"])
	}
}

// A dead connection among the recipients must not block delivery to the
// rest, and the survivors stay attached.
func TestBroadcastSurvivesDeadConnection(t *testing.T) {
	resolver := &fakeResolver{ids: map[string]int64{"tok1": 1, "tok2": 2, "tok3": 3}}
	registry, srv := newTestRelay(t, resolver, &fakeStore{})

	dial(t, srv, "tok1")
	second := dial(t, srv, "tok2")
	third := dial(t, srv, "tok3")

	waitFor(t, func() bool {
		return registry.Stats()["total_connections"] == 3
	}, "connections never attached")

	dead := registry.Lookup(1)
	if len(dead) != 1 {
		t.Fatalf("Lookup(1) = %d connections, want 1", len(dead))
	}
	_ = dead[0].Close()

	message := &types.Message{SenderID: 2, Content: "still here", CreatedAt: time.Now().UTC()}
	registry.Broadcast(types.NewMessageEnvelope(message, nil))

	for name, conn := range map[string]*websocket.Conn{"second": second, "third": third} {
		envelope := readEnvelope(t, conn)
		if envelope["content"] != "still here" {
			t.Errorf("%s got %v, want the broadcast", name, envelope)
		}
	}

	if len(registry.Lookup(2)) != 1 || len(registry.Lookup(3)) != 1 {
		t.Error("surviving connections were detached by the broadcast")
	}
}

func TestLookupUnknownUser(t *testing.T) {
	registry := NewRegistry()

	if got := registry.Lookup(99); len(got) != 0 {
		t.Errorf("Lookup(99) = %d connections, want 0", len(got))
	}
}

func TestAttachWithoutIdentity(t *testing.T) {
	registry := NewRegistry()
	conn := newUnwiredConnection(t)

	if err := registry.Attach(conn); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}

	stats := registry.Stats()
	if stats["total_connections"] != 1 {
		t.Errorf("total_connections = %d, want 1", stats["total_connections"])
	}
	if stats["connected_users"] != 0 {
		t.Errorf("connected_users = %d, want 0", stats["connected_users"])
	}
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	conn := newUnwiredConnection(t)

	if err := conn.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if err := conn.WriteJSON(map[string]string{"type": "error"}); err != ErrConnectionClosed {
		t.Errorf("WriteJSON() after close error = %v, want ErrConnectionClosed", err)
	}
}

func TestConnectionIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		conn := newUnwiredConnection(t)
		if seen[conn.ID()] {
			t.Fatalf("duplicate connection ID %s", conn.ID())
		}
		seen[conn.ID()] = true
	}
}

func TestConnectionBind(t *testing.T) {
	conn := newUnwiredConnection(t)

	if _, ok := conn.UserID(); ok {
		t.Error("UserID() on fresh connection should report unbound")
	}

	conn.Bind(42)

	userID, ok := conn.UserID()
	if !ok || userID != 42 {
		t.Errorf("UserID() = %d, %v, want 42, true", userID, ok)
	}
}
