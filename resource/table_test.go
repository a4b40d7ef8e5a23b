package resource

import (
	"strconv"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/wasm-canon/errors"
)

type testObserver struct {
	events []EventType
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e.Type)
}

type closer struct {
	drops int
}

func (c *closer) Drop() { c.drops++ }

func TestTable_Basic(t *testing.T) {
	table := NewTable("file")

	h, err := table.Allocate("test")
	if err != nil {
		t.Fatal(err)
	}
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, err := table.Resolve(h)
	if err != nil {
		t.Fatal(err)
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	if err := table.Drop(h); err != nil {
		t.Fatal(err)
	}
	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Drop")
	}
	if _, err := table.Resolve(h); !errors.IsBadHandle(err) {
		t.Fatalf("Resolve after Drop: got %v, want bad handle", err)
	}
	if err := table.Drop(h); !errors.Is(err, errors.ErrBadHandle) {
		t.Fatalf("double Drop: got %v, want bad handle", err)
	}
}

func TestTable_UniqueHandles(t *testing.T) {
	table := NewTable("r")
	seen := make(map[Handle]bool)
	for i := 0; i < 100; i++ {
		h, err := table.Allocate(i)
		if err != nil {
			t.Fatal(err)
		}
		if seen[h] {
			t.Fatalf("handle %d issued twice", h)
		}
		seen[h] = true
	}
	if table.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", table.Len())
	}
}

func TestTable_StaleAfterReuse(t *testing.T) {
	table := NewTable("r")
	h1, _ := table.Allocate("a")
	if err := table.Drop(h1); err != nil {
		t.Fatal(err)
	}

	h2, _ := table.Allocate("b")
	if h2.index() != h1.index() {
		t.Fatalf("slot not reused: %d vs %d", h2.index(), h1.index())
	}
	if h2 == h1 {
		t.Fatal("reused slot returned the same handle")
	}
	if _, err := table.Resolve(h1); !errors.IsBadHandle(err) {
		t.Fatalf("stale handle resolved: %v", err)
	}
	if v, err := table.Resolve(h2); err != nil || v != "b" {
		t.Fatalf("Resolve(h2) = %v, %v", v, err)
	}
}

func TestTable_InvalidHandle(t *testing.T) {
	table := NewTable("r")
	for _, h := range []Handle{0, 1, 42, makeHandle(0, 3)} {
		if _, err := table.Resolve(h); !errors.IsBadHandle(err) {
			t.Errorf("Resolve(%d): got %v", h, err)
		}
	}
}

func TestTable_Destructor(t *testing.T) {
	var got []any
	table := NewTable("r", WithDestructor(func(v any) { got = append(got, v) }))

	h, _ := table.Allocate("x")
	_ = table.Drop(h)
	_ = table.Drop(h)

	if diff := cmp.Diff([]any{"x"}, got); diff != "" {
		t.Errorf("destructor calls mismatch (-want +got):\n%s", diff)
	}
}

func TestTable_DropperInterface(t *testing.T) {
	table := NewTable("r")
	c := &closer{}
	h, _ := table.Allocate(c)
	if err := table.Drop(h); err != nil {
		t.Fatal(err)
	}
	if c.drops != 1 {
		t.Fatalf("Drop called %d times, want 1", c.drops)
	}
}

func TestTable_Take(t *testing.T) {
	table := NewTable("r")
	c := &closer{}
	h, _ := table.Allocate(c)

	v, err := table.Take(h)
	if err != nil {
		t.Fatal(err)
	}
	if v != c || c.drops != 0 {
		t.Fatalf("Take returned %v, drops %d", v, c.drops)
	}
	if _, err := table.Take(h); !errors.IsBadHandle(err) {
		t.Fatalf("second Take: %v", err)
	}
}

func TestTable_Borrow(t *testing.T) {
	table := NewTable("r")
	h, _ := table.Allocate("v")

	if _, err := table.Borrow(h); err != nil {
		t.Fatal(err)
	}
	if _, err := table.Borrow(h); err != nil {
		t.Fatal(err)
	}
	if err := table.Drop(h); !errors.Is(err, errors.ErrOutstandingBorrow) {
		t.Fatalf("Drop with borrows: got %v", err)
	}

	_ = table.Release(h)
	if err := table.Drop(h); !errors.Is(err, errors.ErrOutstandingBorrow) {
		t.Fatalf("Drop with one borrow: got %v", err)
	}
	_ = table.Release(h)
	if err := table.Release(h); !errors.IsBadHandle(err) {
		t.Fatalf("Release without Borrow: got %v", err)
	}
	if err := table.Drop(h); err != nil {
		t.Fatal(err)
	}
}

func TestTable_Lend(t *testing.T) {
	table := NewTable("r")
	h, _ := table.Allocate("v")

	lh, err := table.Lend(h)
	if err != nil {
		t.Fatal(err)
	}
	if lh == h {
		t.Fatal("lend handle equals owner handle")
	}
	if !table.IsLend(lh) || table.IsLend(h) {
		t.Fatal("IsLend misreports")
	}
	if v, err := table.Resolve(lh); err != nil || v != "v" {
		t.Fatalf("Resolve(lend) = %v, %v", v, err)
	}
	if err := table.Drop(lh); !errors.IsBadHandle(err) {
		t.Fatalf("Drop(lend): got %v", err)
	}
	if err := table.Drop(h); !errors.Is(err, errors.ErrOutstandingBorrow) {
		t.Fatalf("Drop(owner) while lent: got %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("Len() = %d, lends must not count", table.Len())
	}

	if err := table.EndLend(lh); err != nil {
		t.Fatal(err)
	}
	if _, err := table.Resolve(lh); !errors.IsBadHandle(err) {
		t.Fatalf("Resolve after EndLend: %v", err)
	}
	if err := table.EndLend(h); !errors.IsBadHandle(err) {
		t.Fatalf("EndLend(owner): %v", err)
	}
	if err := table.Drop(h); err != nil {
		t.Fatal(err)
	}
}

func TestTable_DebugRetainedBorrow(t *testing.T) {
	table := NewTable("r", Debug())
	h, _ := table.Allocate("v")
	lh, _ := table.Lend(h)
	_ = table.EndLend(lh)

	_, err := table.Resolve(lh)
	var e *errors.Error
	if !errors.As(err, &e) {
		t.Fatalf("got %v", err)
	}
	if e.Detail != "handle "+strconv.FormatUint(uint64(lh), 10)+": borrow used after its call returned" {
		t.Errorf("detail = %q", e.Detail)
	}
}

func TestTable_Observer(t *testing.T) {
	obs := &testObserver{}
	table := NewTable("r")
	sub := table.Subscribe(obs)

	h, _ := table.Allocate("v")
	_, _ = table.Borrow(h)
	_ = table.Release(h)
	lh, _ := table.Lend(h)
	_ = table.EndLend(lh)
	_ = table.Drop(h)
	h2, _ := table.Allocate("w")
	_, _ = table.Take(h2)

	want := []EventType{EventCreated, EventBorrowed, EventReleased, EventLent, EventLendEnded, EventDropped, EventCreated, EventTaken}
	if diff := cmp.Diff(want, obs.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	table.Unsubscribe(sub)
	_, _ = table.Allocate("x")
	if len(obs.events) != len(want) {
		t.Error("observer notified after Unsubscribe")
	}
}

func TestTable_ObserverFunc(t *testing.T) {
	var fromOption, fromFunc []EventType
	table := NewTable("r", WithObserver(ObserverFunc(func(e Event) { fromOption = append(fromOption, e.Type) })))
	sub := table.Subscribe(ObserverFunc(func(e Event) { fromFunc = append(fromFunc, e.Type) }))

	h, _ := table.Allocate("v")
	table.Unsubscribe(sub)
	table.Unsubscribe(sub)
	_ = table.Drop(h)

	if diff := cmp.Diff([]EventType{EventCreated, EventDropped}, fromOption); diff != "" {
		t.Errorf("option observer mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]EventType{EventCreated}, fromFunc); diff != "" {
		t.Errorf("func observer mismatch (-want +got):\n%s", diff)
	}
}

func TestTable_Discard(t *testing.T) {
	var destroyed []any
	obs := &testObserver{}
	table := NewTable("r", WithDestructor(func(v any) { destroyed = append(destroyed, v) }), WithObserver(obs))

	h, _ := table.Allocate("v")
	v, err := table.Take(h)
	if err != nil {
		t.Fatal(err)
	}
	table.Discard(h, v)

	if diff := cmp.Diff([]any{"v"}, destroyed); diff != "" {
		t.Errorf("destroyed mismatch (-want +got):\n%s", diff)
	}
	want := []EventType{EventCreated, EventTaken, EventDropped}
	if diff := cmp.Diff(want, obs.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestTable_Each(t *testing.T) {
	table := NewTable("r")
	for _, v := range []string{"a", "b", "c"} {
		_, _ = table.Allocate(v)
	}

	var got []any
	table.Each(func(h Handle, v any) bool {
		got = append(got, v)
		return len(got) < 2
	})
	if diff := cmp.Diff([]any{"a", "b"}, got); diff != "" {
		t.Errorf("Each mismatch (-want +got):\n%s", diff)
	}
}

func TestTable_Close(t *testing.T) {
	c1, c2 := &closer{}, &closer{}
	table := NewTable("r")
	_, _ = table.Allocate(c1)
	h2, _ := table.Allocate(c2)
	_, _ = table.Lend(h2)

	if err := table.Close(); err != nil {
		t.Fatal(err)
	}
	if c1.drops != 1 || c2.drops != 1 {
		t.Fatalf("drops = %d, %d", c1.drops, c2.drops)
	}
	if _, err := table.Allocate("x"); !errors.Is(err, &errors.Error{Kind: errors.KindClosed}) {
		t.Fatalf("Allocate after Close: %v", err)
	}
	if err := table.Close(); err != nil {
		t.Fatal(err)
	}
	if c1.drops != 1 {
		t.Fatal("second Close ran destructors again")
	}
}

func TestTable_Concurrent(t *testing.T) {
	table := NewTable("r")
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			h, err := table.Allocate(id)
			if err != nil {
				t.Error(err)
				return
			}
			if v, err := table.Resolve(h); err != nil || v != id {
				t.Errorf("Resolve = %v, %v", v, err)
			}
			if err := table.Drop(h); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	if table.Len() != 0 {
		t.Fatalf("Len() = %d after concurrent drops", table.Len())
	}
}

func TestScope(t *testing.T) {
	table := NewTable("r")
	h, _ := table.Allocate("v")

	var scope Scope
	if _, err := scope.Borrow(table, h); err != nil {
		t.Fatal(err)
	}
	lh, err := scope.Lend(table, h)
	if err != nil {
		t.Fatal(err)
	}
	if scope.Len() != 2 {
		t.Fatalf("scope.Len() = %d", scope.Len())
	}
	if err := table.Drop(h); !errors.Is(err, errors.ErrOutstandingBorrow) {
		t.Fatalf("Drop inside scope: %v", err)
	}

	if err := scope.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := table.Resolve(lh); !errors.IsBadHandle(err) {
		t.Fatal("lend survived scope")
	}
	if err := table.Drop(h); err != nil {
		t.Fatal(err)
	}
}

func TestRegistry(t *testing.T) {
	var dropped []any
	reg := NewRegistry(WithDestructor(func(v any) { dropped = append(dropped, v) }))

	files, err := reg.Define("file")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Define("file"); !errors.Is(err, &errors.Error{Kind: errors.KindDuplicate}) {
		t.Fatalf("duplicate Define: %v", err)
	}
	if reg.Table("file") != files {
		t.Fatal("Table did not return the defined table")
	}
	sockets := reg.Table("socket")
	if _, ok := reg.Lookup("socket"); !ok {
		t.Fatal("Table did not define socket")
	}
	if diff := cmp.Diff([]string{"file", "socket"}, reg.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	_, _ = files.Allocate("f")
	_, _ = sockets.Allocate("s")
	if err := reg.Close(); err != nil {
		t.Fatal(err)
	}
	if len(dropped) != 2 {
		t.Fatalf("destroyed %d entries, want 2", len(dropped))
	}
	if _, ok := reg.Lookup("file"); ok {
		t.Fatal("table survived Close")
	}
}

func TestHandleLayout(t *testing.T) {
	h := makeHandle(5, 7)
	if h.index() != 5 || h.generation() != 7 {
		t.Fatalf("index %d generation %d", h.index(), h.generation())
	}
	if uint32(h) != 7<<20|5 {
		t.Fatalf("handle = %#x", uint32(h))
	}
}
