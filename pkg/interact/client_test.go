package interact

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/proofpilot-dev/proofpilot/pkg/dispatch"
	"github.com/proofpilot-dev/proofpilot/pkg/editbuf"
	"github.com/proofpilot-dev/proofpilot/pkg/session"
	"github.com/proofpilot-dev/proofpilot/pkg/transport"
	"github.com/proofpilot-dev/proofpilot/pkg/wire"
)

// fakeTransport answers every request through handler, delivering the reply
// on a spawned goroutine like the real receive pump.
type fakeTransport struct {
	mu      sync.Mutex
	running bool
	onRecv  transport.RecvFunc
	onExit  func(error)
	sent    []wire.Request

	handler func(wire.Request) wire.Message
}

func okEverything(req wire.Request) wire.Message {
	return wire.Message{ID: req.ID, OK: true, Result: "ok"}
}

func (f *fakeTransport) Start(onRecv transport.RecvFunc, onExit func(error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil
	}
	f.running = true
	f.onRecv = onRecv
	f.onExit = onExit
	return nil
}

func (f *fakeTransport) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeTransport) Send(req wire.Request) error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return transport.ErrNotRunning
	}
	f.sent = append(f.sent, req)
	handler := f.handler
	onRecv := f.onRecv
	f.mu.Unlock()

	if handler == nil {
		handler = okEverything
	}
	msg := handler(req)
	go onRecv(msg)
	return nil
}

func (f *fakeTransport) Terminate() error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = false
	onExit := f.onExit
	f.mu.Unlock()
	if onExit != nil {
		onExit(nil)
	}
	return nil
}

func (f *fakeTransport) sentTags() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	tags := make([]string, len(f.sent))
	for i, req := range f.sent {
		tags[i] = req.Tag
	}
	return tags
}

func (f *fakeTransport) request(i int) wire.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[i]
}

// fakeUI records everything shown and answers choice prompts from a script.
type fakeUI struct {
	infos    []string
	messages []string
	offered  [][]string
	answers  []string

	// onOffer runs before each answer, simulating user activity (like
	// editing the buffer) while the prompt is open.
	onOffer func()
}

func (u *fakeUI) ShowInfo(text string, pairs [][2]string) {
	u.infos = append(u.infos, text)
}

func (u *fakeUI) OfferChoices(choices []string) (string, error) {
	u.offered = append(u.offered, choices)
	if u.onOffer != nil {
		u.onOffer()
	}
	if len(u.answers) == 0 {
		return "", errors.New("no scripted answer")
	}
	answer := u.answers[0]
	u.answers = u.answers[1:]
	return answer, nil
}

func (u *fakeUI) Message(text string) {
	u.messages = append(u.messages, text)
}

func newClient(t *testing.T, handler func(wire.Request) wire.Message) (*Client, *fakeTransport, *fakeUI, *session.Session) {
	t.Helper()
	tr := &fakeTransport{handler: handler}
	d := dispatch.New(tr)
	t.Cleanup(d.Close)
	ui := &fakeUI{}
	sess := session.New(d, nil, nil)
	c := NewClient(sess, d, ui, editbuf.NewMediator(nil), Options{})
	t.Cleanup(c.Close)
	return c, tr, ui, sess
}

func TestCaseSplitLoadsFirst(t *testing.T) {
	c, tr, _, _ := newClient(t, func(req wire.Request) wire.Message {
		if req.Tag == wire.TagCaseSplit {
			return wire.Message{ID: req.ID, OK: true, Result: "plus Z m = ?plus_1\n"}
		}
		return okEverything(req)
	})
	b := editbuf.NewMemBuffer("/proj/Main.idr",
		"plus : Nat -> Nat -> Nat",
		"plus n m = ?plus_rhs")
	b.MoveTo(2, 5)

	if err := c.CaseSplit(b); err != nil {
		t.Fatalf("CaseSplit: %v", err)
	}

	// Dirty buffer: the split is preceded by exactly one cwd switch and one
	// load, in order.
	want := []string{wire.TagInterpret, wire.TagLoadFile, wire.TagCaseSplit}
	if got := tr.sentTags(); !reflect.DeepEqual(got, want) {
		t.Fatalf("sent = %v; want %v", got, want)
	}
	split := tr.request(2)
	if !reflect.DeepEqual(split.Args, []any{int64(2), "n"}) {
		t.Errorf("case-split args = %v; want [2 n]", split.Args)
	}
	if got := b.LineText(2); got != "plus Z m = ?plus_1" {
		t.Errorf("line 2 = %q", got)
	}
}

func TestCleanBufferSkipsLoad(t *testing.T) {
	c, tr, ui, sess := newClient(t, func(req wire.Request) wire.Message {
		if req.Tag == wire.TagTypeOf {
			return wire.Message{ID: req.ID, OK: true, Result: "plus : Nat -> Nat -> Nat"}
		}
		return okEverything(req)
	})
	b := editbuf.NewMemBuffer("/proj/Main.idr", "plus n m = ?plus_rhs")
	if err := sess.LoadIfNeeded(b); err != nil {
		t.Fatal(err)
	}
	before := len(tr.sentTags())

	b.MoveTo(1, 0)
	if err := c.TypeOf(b); err != nil {
		t.Fatalf("TypeOf: %v", err)
	}

	got := tr.sentTags()[before:]
	if !reflect.DeepEqual(got, []string{wire.TagTypeOf}) {
		t.Errorf("sent = %v; want only %s", got, wire.TagTypeOf)
	}
	if len(ui.infos) != 1 || ui.infos[0] != "plus : Nat -> Nat -> Nat" {
		t.Errorf("infos = %v", ui.infos)
	}
}

func TestTypeOfDecoratedResult(t *testing.T) {
	c, _, ui, _ := newClient(t, func(req wire.Request) wire.Message {
		if req.Tag == wire.TagTypeOf {
			return wire.Message{ID: req.ID, OK: true, Result: []any{
				[]any{"plus : ", ""},
				[]any{"Nat -> Nat -> Nat", "type"},
			}}
		}
		return okEverything(req)
	})
	b := editbuf.NewMemBuffer("/proj/Main.idr", "plus n m = ?plus_rhs")
	b.MoveTo(1, 0)

	if err := c.TypeOf(b); err != nil {
		t.Fatalf("TypeOf: %v", err)
	}
	if len(ui.infos) != 1 || ui.infos[0] != "plus : Nat -> Nat -> Nat" {
		t.Errorf("infos = %v", ui.infos)
	}
}

func TestNoTargetAtPoint(t *testing.T) {
	c, tr, _, _ := newClient(t, nil)
	b := editbuf.NewMemBuffer("/proj/Main.idr", "   ")
	b.MoveTo(1, 1)

	if err := c.TypeOf(b); !errors.Is(err, editbuf.ErrNoTargetAtPoint) {
		t.Errorf("err = %v; want ErrNoTargetAtPoint", err)
	}
	if got := tr.sentTags(); len(got) != 0 {
		t.Errorf("traffic with no target: %v", got)
	}
}

func TestAddClauseInsertsBelow(t *testing.T) {
	c, _, _, _ := newClient(t, func(req wire.Request) wire.Message {
		if req.Tag == wire.TagAddClause {
			return wire.Message{ID: req.ID, OK: true, Result: "plus n m = ?plus_rhs\n"}
		}
		return okEverything(req)
	})
	b := editbuf.NewMemBuffer("/proj/Main.idr",
		"plus : Nat -> Nat -> Nat",
		"mult : Nat -> Nat -> Nat")
	b.MoveTo(1, 0)

	if err := c.AddClause(b); err != nil {
		t.Fatalf("AddClause: %v", err)
	}
	if b.LineCount() != 3 {
		t.Fatalf("line count = %d; want 3", b.LineCount())
	}
	if got := b.LineText(2); got != "plus n m = ?plus_rhs" {
		t.Errorf("line 2 = %q", got)
	}
	if got := b.LineText(3); got != "mult : Nat -> Nat -> Nat" {
		t.Errorf("line 3 = %q", got)
	}
}

func TestProofSearchReplacesHole(t *testing.T) {
	c, tr, _, _ := newClient(t, func(req wire.Request) wire.Message {
		if req.Tag == wire.TagProofSearch {
			return wire.Message{ID: req.ID, OK: true, Result: "S (plus k m)"}
		}
		return okEverything(req)
	})
	b := editbuf.NewMemBuffer("/proj/Main.idr", "plus (S k) m = ?plus_2")
	b.MoveTo(1, 17)

	if err := c.ProofSearch(b, "plus, S"); err != nil {
		t.Fatalf("ProofSearch: %v", err)
	}
	if got := b.LineText(1); got != "plus (S k) m = S (plus k m)" {
		t.Errorf("line 1 = %q", got)
	}

	// Hints travel as a list argument after line and name.
	var search *wire.Request
	tr.mu.Lock()
	for i := range tr.sent {
		if tr.sent[i].Tag == wire.TagProofSearch {
			search = &tr.sent[i]
		}
	}
	tr.mu.Unlock()
	if search == nil {
		t.Fatal("proof-search never sent")
	}
	want := []any{int64(1), "plus_2", []any{"plus", "S"}}
	if !reflect.DeepEqual(search.Args, want) {
		t.Errorf("proof-search args = %v; want %v", search.Args, want)
	}
}

func TestCompleteAtWithoutProcess(t *testing.T) {
	c, tr, _, _ := newClient(t, nil)
	b := editbuf.NewMemBuffer("/proj/Main.idr", "plu")
	b.MoveTo(1, 3)

	comp, err := c.CompleteAt(b)
	if err != nil {
		t.Fatalf("CompleteAt: %v", err)
	}
	if comp != nil {
		t.Errorf("completion with no process: %+v", comp)
	}
	if got := tr.sentTags(); len(got) != 0 {
		t.Errorf("traffic with no process: %v", got)
	}
}

func TestCompleteAtNeverLoads(t *testing.T) {
	c, tr, _, sess := newClient(t, func(req wire.Request) wire.Message {
		if req.Tag == wire.TagReplCompletions {
			return wire.Message{ID: req.ID, OK: true, Result: []any{"plus", "plusAssoc"}}
		}
		return okEverything(req)
	})
	if err := sess.EnsureProcess(); err != nil {
		t.Fatal(err)
	}
	b := editbuf.NewMemBuffer("/proj/Main.idr", "x = plu")
	b.MoveTo(1, 7)

	comp, err := c.CompleteAt(b)
	if err != nil {
		t.Fatalf("CompleteAt: %v", err)
	}
	if comp == nil {
		t.Fatal("no completion")
	}
	if comp.Start != 4 || comp.End != 7 {
		t.Errorf("span = [%d, %d); want [4, 7)", comp.Start, comp.End)
	}
	if !reflect.DeepEqual(comp.Candidates, []string{"plus", "plusAssoc"}) {
		t.Errorf("candidates = %v", comp.Candidates)
	}

	// The dirty buffer stays unloaded: completion must not trigger a load.
	want := []string{wire.TagReplCompletions}
	if got := tr.sentTags(); !reflect.DeepEqual(got, want) {
		t.Errorf("sent = %v; want %v", got, want)
	}
}

func TestCompleteAtCacheAbsorbsRepeats(t *testing.T) {
	c, tr, _, sess := newClient(t, func(req wire.Request) wire.Message {
		if req.Tag == wire.TagReplCompletions {
			return wire.Message{ID: req.ID, OK: true, Result: []any{"plus"}}
		}
		return okEverything(req)
	})
	if err := sess.EnsureProcess(); err != nil {
		t.Fatal(err)
	}
	b := editbuf.NewMemBuffer("/proj/Main.idr", "plu")
	b.MoveTo(1, 3)

	for i := 0; i < 3; i++ {
		comp, err := c.CompleteAt(b)
		if err != nil {
			t.Fatalf("CompleteAt #%d: %v", i, err)
		}
		if comp == nil || len(comp.Candidates) != 1 {
			t.Fatalf("CompleteAt #%d = %+v", i, comp)
		}
	}
	if got := tr.sentTags(); len(got) != 1 {
		t.Errorf("sent %d completion requests; want 1 (cache hit after the first)", len(got))
	}
}

func TestCompleteAtLocalFallback(t *testing.T) {
	empty := false
	c, _, _, sess := newClient(t, func(req wire.Request) wire.Message {
		if req.Tag == wire.TagReplCompletions {
			if empty {
				return wire.Message{ID: req.ID, OK: true, Result: []any{}}
			}
			return wire.Message{ID: req.ID, OK: true, Result: []any{"plusAssoc", "plusAssoc", "plusComm"}}
		}
		return okEverything(req)
	})
	if err := sess.EnsureProcess(); err != nil {
		t.Fatal(err)
	}
	b := editbuf.NewMemBuffer("/proj/Main.idr", "plusA")

	// Seed the session index through a served completion.
	b.MoveTo(1, 4)
	if _, err := c.CompleteAt(b); err != nil {
		t.Fatal(err)
	}

	// The compiler has nothing for the longer prefix; session-seen
	// identifiers fill in, most-seen first.
	empty = true
	b.MoveTo(1, 5)
	comp, err := c.CompleteAt(b)
	if err != nil {
		t.Fatal(err)
	}
	if comp == nil {
		t.Fatal("no completion from local fallback")
	}
	if !reflect.DeepEqual(comp.Candidates, []string{"plusAssoc"}) {
		t.Errorf("candidates = %v; want [plusAssoc]", comp.Candidates)
	}
}

func TestCompletionLimit(t *testing.T) {
	tr := &fakeTransport{handler: func(req wire.Request) wire.Message {
		return wire.Message{ID: req.ID, OK: true, Result: []any{"a1", "a2", "a3", "a4"}}
	}}
	d := dispatch.New(tr)
	t.Cleanup(d.Close)
	sess := session.New(d, nil, nil)
	c := NewClient(sess, d, &fakeUI{}, editbuf.NewMediator(nil), Options{
		CompletionLimit: 2,
		CompletionTTL:   time.Minute,
	})
	t.Cleanup(c.Close)
	if err := sess.EnsureProcess(); err != nil {
		t.Fatal(err)
	}

	b := editbuf.NewMemBuffer("/proj/Main.idr", "a")
	b.MoveTo(1, 1)
	comp, err := c.CompleteAt(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(comp.Candidates) != 2 {
		t.Errorf("candidates = %v; want 2 entries", comp.Candidates)
	}
}
