package interact

import (
	"errors"
	"reflect"
	"testing"

	"github.com/proofpilot-dev/proofpilot/pkg/editbuf"
	"github.com/proofpilot-dev/proofpilot/pkg/wire"
)

func TestRefineSingle(t *testing.T) {
	c, tr, ui, _ := newClient(t, func(req wire.Request) wire.Message {
		switch req.Tag {
		case wire.TagCompatibleIdents:
			return wire.Message{ID: req.ID, OK: true, Result: []any{"plus", "mult"}}
		case wire.TagMakeRefined:
			return wire.Message{ID: req.ID, OK: true, Result: "plus (_) (_)"}
		}
		return okEverything(req)
	})
	ui.answers = []string{"plus"}
	b := editbuf.NewMemBuffer("/proj/Main.idr", "f x = ?goal")
	b.MoveTo(1, 8)

	if err := c.Refine(b, RefineSingle); err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if got := b.LineText(1); got != "f x = plus (_) (_)" {
		t.Errorf("line 1 = %q", got)
	}
	if len(ui.offered) != 1 || !reflect.DeepEqual(ui.offered[0], []string{"plus", "mult"}) {
		t.Errorf("offered = %v", ui.offered)
	}

	// The chosen identifier and the hole name both travel with the
	// make-refined-expression request.
	var refined *wire.Request
	tr.mu.Lock()
	for i := range tr.sent {
		if tr.sent[i].Tag == wire.TagMakeRefined {
			refined = &tr.sent[i]
		}
	}
	tr.mu.Unlock()
	if refined == nil {
		t.Fatal("make-refined-expression never sent")
	}
	if !reflect.DeepEqual(refined.Args, []any{"goal", "plus"}) {
		t.Errorf("args = %v; want [goal plus]", refined.Args)
	}
}

func TestRefineWithCompletionUsesItsOwnStartTag(t *testing.T) {
	c, tr, ui, _ := newClient(t, func(req wire.Request) wire.Message {
		switch req.Tag {
		case wire.TagCompleteCompatibleIdents:
			return wire.Message{ID: req.ID, OK: true, Result: []any{"plusAssoc"}}
		case wire.TagMakeRefined:
			return wire.Message{ID: req.ID, OK: true, Result: "plusAssoc (_)"}
		}
		return okEverything(req)
	})
	ui.answers = []string{"plusAssoc"}
	b := editbuf.NewMemBuffer("/proj/Main.idr", "f x = ?goal")
	b.MoveTo(1, 8)

	if err := c.Refine(b, RefineWithCompletion); err != nil {
		t.Fatalf("Refine: %v", err)
	}
	for _, tag := range tr.sentTags() {
		if tag == wire.TagCompatibleIdents {
			t.Error("completion variant sent the plain start tag")
		}
	}
	if got := b.LineText(1); got != "f x = plusAssoc (_)" {
		t.Errorf("line 1 = %q", got)
	}
}

func TestRefineRecursiveRounds(t *testing.T) {
	// Two "more" replies mean two choose-identifier rounds after the opening
	// request, then the final expression lands.
	chooses := 0
	c, tr, ui, _ := newClient(t, func(req wire.Request) wire.Message {
		switch req.Tag {
		case wire.TagCompatibleIdentsRecursive:
			return wire.Message{ID: req.ID, OK: true,
				Result: []any{wire.TagMore, []any{"plus", "mult"}}}
		case wire.TagChooseIdent:
			chooses++
			if chooses == 1 {
				return wire.Message{ID: req.ID, OK: true,
					Result: []any{wire.TagMore, []any{"Z", "S"}}}
			}
			return wire.Message{ID: req.ID, OK: true,
				Result: []any{wire.TagFinal, "plus Z (_)"}}
		}
		return okEverything(req)
	})
	ui.answers = []string{"plus", "Z"}
	b := editbuf.NewMemBuffer("/proj/Main.idr", "f x = ?goal")
	b.MoveTo(1, 8)

	if err := c.Refine(b, RefineRecursive); err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if got := b.LineText(1); got != "f x = plus Z (_)" {
		t.Errorf("line 1 = %q", got)
	}
	if len(ui.offered) != 2 {
		t.Fatalf("offered %d candidate lists; want 2", len(ui.offered))
	}
	if !reflect.DeepEqual(ui.offered[1], []string{"Z", "S"}) {
		t.Errorf("second round candidates = %v", ui.offered[1])
	}

	// Splicing the result dirties the buffer, so a reload tails the protocol.
	want := []string{
		wire.TagInterpret,
		wire.TagLoadFile,
		wire.TagCompatibleIdentsRecursive,
		wire.TagChooseIdent,
		wire.TagChooseIdent,
		wire.TagLoadFile,
	}
	if got := tr.sentTags(); !reflect.DeepEqual(got, want) {
		t.Errorf("sent = %v; want %v", got, want)
	}

	// Every choose-identifier names the original hole, not the last choice.
	tr.mu.Lock()
	for _, req := range tr.sent {
		if req.Tag == wire.TagChooseIdent && req.Args[0] != "goal" {
			t.Errorf("choose-identifier names %v; want goal", req.Args[0])
		}
	}
	tr.mu.Unlock()
}

func TestRefineVanishedHole(t *testing.T) {
	c, _, ui, _ := newClient(t, func(req wire.Request) wire.Message {
		switch req.Tag {
		case wire.TagCompatibleIdents:
			return wire.Message{ID: req.ID, OK: true, Result: []any{"plus"}}
		case wire.TagMakeRefined:
			return wire.Message{ID: req.ID, OK: true, Result: "plus (_) (_)"}
		}
		return okEverything(req)
	})
	b := editbuf.NewMemBuffer("/proj/Main.idr", "f x = ?goal")
	b.MoveTo(1, 8)

	// The hole is edited away while the choice prompt is open.
	ui.answers = []string{"plus"}
	ui.onOffer = func() { b.ReplaceLine(1, "f x = Z") }

	err := c.Refine(b, RefineSingle)
	var ve *VanishedError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v; want *VanishedError", err)
	}
	if ve.Name != "goal" {
		t.Errorf("vanished name = %q", ve.Name)
	}
	if got := b.LineText(1); got != "f x = Z" {
		t.Errorf("refinement mutated the buffer anyway: %q", got)
	}
}

func TestRefineHolePrefixIsNotAMatch(t *testing.T) {
	// ?goal must not match inside ?goal2; the splice lands on the exact hole.
	c, _, ui, _ := newClient(t, func(req wire.Request) wire.Message {
		switch req.Tag {
		case wire.TagCompatibleIdents:
			return wire.Message{ID: req.ID, OK: true, Result: []any{"plus"}}
		case wire.TagMakeRefined:
			return wire.Message{ID: req.ID, OK: true, Result: "plus (_)"}
		}
		return okEverything(req)
	})
	ui.answers = []string{"plus"}
	b := editbuf.NewMemBuffer("/proj/Main.idr", "f x = g ?goal2 ?goal")
	b.MoveTo(1, 16)

	if err := c.Refine(b, RefineSingle); err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if got := b.LineText(1); got != "f x = g ?goal2 plus (_)" {
		t.Errorf("line 1 = %q", got)
	}
}

func TestRefineRecursiveRejectsUnknownTag(t *testing.T) {
	c, _, _, _ := newClient(t, func(req wire.Request) wire.Message {
		if req.Tag == wire.TagCompatibleIdentsRecursive {
			return wire.Message{ID: req.ID, OK: true, Result: []any{"maybe", []any{"plus"}}}
		}
		return okEverything(req)
	})
	b := editbuf.NewMemBuffer("/proj/Main.idr", "f x = ?goal")
	b.MoveTo(1, 8)

	if err := c.Refine(b, RefineRecursive); err == nil {
		t.Fatal("a reply tagged neither more nor final should fail the protocol")
	}
}
