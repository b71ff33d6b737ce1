package history

import (
	"context"
	"testing"
	"time"
)

// openTestStore returns an in-memory store that is closed when the test ends.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	})
	return s
}

func Test_Load_UnknownThreadIsEmpty(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	msgs, err := s.Load(context.Background(), "no-such-thread")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("Load() = %d messages, want 0", len(msgs))
	}
}

func Test_AppendAndLoad_PreservesOrder(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	in := []Message{
		{Role: RoleHuman, Content: "do you have any blue sofas?"},
		{Role: RoleAI, Content: "", ToolCalls: []ToolCall{
			{ID: "call-1", Name: "item_lookup", Arguments: `{"query":"blue sofa"}`},
		}},
		{Role: RoleTool, Content: `{"results":[]}`, ToolCallID: "call-1"},
		{Role: RoleAI, Content: "We have one blue sofa in stock."},
	}
	if err := s.Append(ctx, "thread-1", in...); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	out, err := s.Load(ctx, "thread-1")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("Load() = %d messages, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].Role != in[i].Role {
			t.Errorf("message[%d].Role = %q, want %q", i, out[i].Role, in[i].Role)
		}
		if out[i].Content != in[i].Content {
			t.Errorf("message[%d].Content = %q, want %q", i, out[i].Content, in[i].Content)
		}
		if out[i].ToolCallID != in[i].ToolCallID {
			t.Errorf("message[%d].ToolCallID = %q, want %q", i, out[i].ToolCallID, in[i].ToolCallID)
		}
	}
}

func Test_Load_RoundTripsToolCalls(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	calls := []ToolCall{
		{ID: "call-1", Name: "item_lookup", Arguments: `{"query":"lamp","n":5}`},
		{ID: "call-2", Name: "item_lookup", Arguments: `{"query":"desk"}`},
	}
	if err := s.Append(ctx, "t", Message{Role: RoleAI, ToolCalls: calls}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	out, err := s.Load(ctx, "t")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Load() = %d messages, want 1", len(out))
	}
	if len(out[0].ToolCalls) != 2 {
		t.Fatalf("ToolCalls = %d, want 2", len(out[0].ToolCalls))
	}
	for i, c := range calls {
		got := out[0].ToolCalls[i]
		if got != c {
			t.Errorf("ToolCalls[%d] = %+v, want %+v", i, got, c)
		}
	}
}

func Test_Append_ThreadsAreIsolated(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "alice", Message{Role: RoleHuman, Content: "hi from alice"}); err != nil {
		t.Fatalf("Append(alice) failed: %v", err)
	}
	if err := s.Append(ctx, "bob", Message{Role: RoleHuman, Content: "hi from bob"}); err != nil {
		t.Fatalf("Append(bob) failed: %v", err)
	}

	msgs, err := s.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load(alice) failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hi from alice" {
		t.Errorf("Load(alice) = %+v, want only alice's message", msgs)
	}
}

func Test_Append_EmptyIsNoop(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	if err := s.Append(context.Background(), "t"); err != nil {
		t.Fatalf("Append() with no messages failed: %v", err)
	}
}

func Test_Append_RejectsUnknownRole(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	err := s.Append(context.Background(), "t", Message{Role: "system", Content: "nope"})
	if err == nil {
		t.Fatal("Append() expected CHECK constraint error for unknown role, got nil")
	}
}

func Test_Threads_MostRecentFirst(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	if err := s.Append(ctx, "old", Message{Role: RoleHuman, Content: "first", CreatedAt: base}); err != nil {
		t.Fatalf("Append(old) failed: %v", err)
	}
	if err := s.Append(ctx, "new", Message{Role: RoleHuman, Content: "second", CreatedAt: base.Add(time.Minute)}); err != nil {
		t.Fatalf("Append(new) failed: %v", err)
	}

	threads, err := s.Threads(ctx)
	if err != nil {
		t.Fatalf("Threads() failed: %v", err)
	}
	if len(threads) != 2 {
		t.Fatalf("Threads() = %v, want 2 entries", threads)
	}
	if threads[0] != "new" || threads[1] != "old" {
		t.Errorf("Threads() = %v, want [new old]", threads)
	}
}
