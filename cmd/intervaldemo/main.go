// Command intervaldemo drives two collaborators sharing one document,
// submitting interval ops between them and printing how each
// collection converges. It exists to exercise collection.Collection
// and wire.Ops end to end outside of the test suite.
package main

import (
	"flag"
	"fmt"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"

	"github.com/grailbio/intervalcollab/collection"
	"github.com/grailbio/intervalcollab/internal/testseq"
	"github.com/grailbio/intervalcollab/ivl"
	"github.com/grailbio/intervalcollab/wire"
)

var (
	text  = flag.String("text", "the quick brown fox jumps over the lazy dog", "document text both collaborators start from")
	start = flag.Int("start", 4, "start offset of the demo interval")
	end   = flag.Int("end", 9, "end offset of the demo interval")
)

// submitFunc adapts a plain function to collection.Submitter.
type submitFunc func(op collection.Op)

func (f submitFunc) Submit(op collection.Op) { f(op) }

// hub relays ops submitted by one collection's Collection.submit to
// every registered collection's wire.Ops handler (the sender's own as a
// local ack), standing in
// for the real-time transport spec.md leaves unspecified (§6).
type hub struct {
	seq  int64
	subs []*collection.Collection
}

func (h *hub) register(c *collection.Collection) {
	h.subs = append(h.subs, c)
}

func (h *hub) broadcast(from *collection.Collection, op collection.Op) {
	h.seq++
	op.Serialized.SequenceNumber = h.seq
	for _, c := range h.subs {
		local := c == from
		handler, ok := wire.Ops[op.Name]
		if !ok {
			log.Error.Printf("intervaldemo: no op handler registered for %q", op.Name)
			continue
		}
		if err := handler.Process(c, op.Serialized, local, &op, nil); err != nil {
			log.Error.Printf("intervaldemo: processing %q op: %v", op.Name, err)
		}
	}
}

func main() {
	flag.Parse()
	cleanup := grail.Init()
	defer cleanup()

	doc := testseq.NewDocument()
	_, _ = doc.InsertText(*text)

	h := &hub{}
	var alice, bob *collection.Collection

	makeSubmitter := func(who **collection.Collection) collection.Submitter {
		return submitFunc(func(op collection.Op) { h.broadcast(*who, op) })
	}

	var err error
	alice, err = wire.ValueFactory("demo", doc.NewClient("alice"), ivl.SequenceHelpers, collection.Options{IntervalStickinessEnabled: true}, makeSubmitter(&alice), nil)
	if err != nil {
		log.Fatal(err)
	}
	bob, err = wire.ValueFactory("demo", doc.NewClient("bob"), ivl.SequenceHelpers, collection.Options{IntervalStickinessEnabled: true}, makeSubmitter(&bob), nil)
	if err != nil {
		log.Fatal(err)
	}
	h.register(alice)
	h.register(bob)

	bob.OnChangeInterval(func(iv, previous *ivl.Interval, local bool, op *collection.Op, slide bool) {
		log.Printf("bob observed change on %s (local=%v slide=%v)", iv.ID(), local, slide)
	})

	iv, err := alice.Add(int64(*start), int64(*end), ivl.Simple, map[string]interface{}{"rangeLabels": []string{"demo"}}, ivl.StickyEnd)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("alice added interval %s over [%d,%d)\n", iv.ID(), *start, *end)

	if err := doc.RemoveRange(0, *start); err != nil {
		log.Fatal(err)
	}
	fmt.Println("removed text ahead of the interval; sliding should keep both endpoints coherent")

	for _, got := range bob.Iterator() {
		s, e := got.StartPos(), got.EndPos()
		fmt.Printf("bob sees interval %s at [%v,%v)\n", got.ID(), s, e)
	}
	log.Printf("demo complete")
}
