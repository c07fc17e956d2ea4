// Package testseq is a minimal, in-memory seqmodel.Client used by this
// module's own tests and by cmd/intervaldemo. Defining the real sequence CRDT is out of
// scope (spec.md §1, §6): this is a reference stand-in, a linked chain
// of immutable-once-placed text segments with live positions computed
// by walking non-removed segments — the same shape of structure as the
// causal-tree atom chain in the retrieval pack (each segment knows only
// its neighbors; a position is never stored, only computed), simplified
// down to a single linear sequence since branching history is this
// module's concern, not the CRDT's.
package testseq

import (
	"fmt"

	"github.com/grailbio/intervalcollab/seqmodel"
)

// Segment is one immutable run of text in the document.
type Segment struct {
	id       string
	text     string
	removed  bool
	prev, next *Segment
	attached []*ref
}

// ID implements seqmodel.Segment.
func (s *Segment) ID() string { return s.id }

func (s *Segment) detach(r *ref) {
	for i, a := range s.attached {
		if a == r {
			s.attached = append(s.attached[:i], s.attached[i+1:]...)
			return
		}
	}
}

// ref is this package's seqmodel.Reference implementation.
type ref struct {
	seq      int64
	segment  *Segment
	offset   int
	refType  seqmodel.RefType
	pref     seqmodel.SlidingPreference
	props    map[string]interface{}
	before   func(seqmodel.SegOffset)
	after    func(seqmodel.SegOffset)
	detached bool
}

func (r *ref) RefType() seqmodel.RefType                            { return r.refType }
func (r *ref) SetRefType(t seqmodel.RefType)                        { r.refType = t }
func (r *ref) SlidingPreference() seqmodel.SlidingPreference        { return r.pref }
func (r *ref) SetBeforeSlide(fn func(seqmodel.SegOffset))           { r.before = fn }
func (r *ref) SetAfterSlide(fn func(seqmodel.SegOffset))            { r.after = fn }
func (r *ref) Properties() map[string]interface{} {
	if r.props == nil {
		r.props = map[string]interface{}{}
	}
	return r.props
}
func (r *ref) Anchor() seqmodel.SegOffset {
	if r.segment == nil {
		return seqmodel.SegOffset{}
	}
	return seqmodel.SegOffset{Segment: r.segment, Offset: r.offset}
}

// Document is the shared mutable sequence multiple Clients view.
type Document struct {
	head, tail *Segment
	refSeq     int64
	seq        int64
	idCounter  int
	normalize  []func()
}

// NewDocument returns an empty document.
func NewDocument() *Document { return &Document{} }

// Client is a seqmodel.Client facade over a shared Document, with its
// own local-seq counter and long client id (spec.md §6).
type Client struct {
	doc          *Document
	longClientID string
	localSeq     int64
}

// NewClient returns a Client named longClientID, viewing doc.
func (d *Document) NewClient(longClientID string) *Client {
	return &Client{doc: d, longClientID: longClientID}
}

func (d *Document) newSegmentID() string {
	d.idCounter++
	return fmt.Sprintf("seg%d", d.idCounter)
}

// InsertText appends text to the end of the document and returns the
// position its first character occupies.
func (d *Document) InsertText(text string) (int, *Segment) {
	seg := &Segment{id: d.newSegmentID(), text: text}
	if d.tail == nil {
		d.head, d.tail = seg, seg
	} else {
		seg.prev = d.tail
		d.tail.next = seg
		d.tail = seg
	}
	d.seq++
	return d.livePositionOf(seg), seg
}

// RemoveRange deletes the live text in [start,end), sliding every
// SlideOnRemove reference anchored within it per its sliding preference
// and firing the beforeSlide/afterSlide protocol around the move.
// References with StayOnRemove (or Transient) are left pinned to their
// now-dead segment, per spec.md §4.4/§4.5: they only move once the
// owning collection explicitly promotes and rebuilds them.
func (d *Document) RemoveRange(start, end int) error {
	if start < 0 || start >= end {
		return fmt.Errorf("testseq: invalid range [%d,%d)", start, end)
	}
	if err := d.splitAt(start); err != nil {
		return err
	}
	if err := d.splitAt(end); err != nil {
		return err
	}

	pos := 0
	for s := d.head; s != nil; s = s.next {
		if s.removed {
			continue
		}
		segLen := len(s.text)
		if pos >= start && pos < end {
			d.removeSegment(s)
		}
		pos += segLen
	}
	d.seq++
	return nil
}

// splitAt ensures a live segment boundary falls exactly at pos, so
// RemoveRange can operate on whole segments.
func (d *Document) splitAt(pos int) error {
	acc := 0
	for s := d.head; s != nil; s = s.next {
		if s.removed {
			continue
		}
		segLen := len(s.text)
		if pos == acc {
			return nil
		}
		if pos > acc && pos < acc+segLen {
			offset := pos - acc
			right := &Segment{id: d.newSegmentID(), text: s.text[offset:], next: s.next, prev: s}
			if s.next != nil {
				s.next.prev = right
			} else {
				d.tail = right
			}
			s.next = right
			s.text = s.text[:offset]

			kept := s.attached[:0]
			for _, r := range s.attached {
				if r.offset >= offset {
					r.segment = right
					r.offset -= offset
					right.attached = append(right.attached, r)
				} else {
					kept = append(kept, r)
				}
			}
			s.attached = kept
			return nil
		}
		acc += segLen
	}
	if pos == acc {
		return nil
	}
	return fmt.Errorf("testseq: position %d out of range", pos)
}

func (d *Document) removeSegment(s *Segment) {
	attached := append([]*ref(nil), s.attached...)
	for _, r := range attached {
		if !r.refType.Has(seqmodel.SlideOnRemove) {
			continue
		}
		old := seqmodel.SegOffset{Segment: s, Offset: r.offset}
		if r.before != nil {
			r.before(old)
		}
		s.detach(r)
		target, offset := d.slideNeighbor(s, r.pref)
		if target == nil {
			r.detached = true
			r.segment = nil
			r.offset = 0
		} else {
			r.segment = target
			r.offset = offset
			target.attached = append(target.attached, r)
		}
		if r.after != nil {
			r.after(r.Anchor())
		}
	}
	s.removed = true
}

// slideNeighbor finds the nearest live segment in pref's direction,
// falling back to the opposite direction at a document boundary.
func (d *Document) slideNeighbor(from *Segment, pref seqmodel.SlidingPreference) (*Segment, int) {
	if pref == seqmodel.Forward {
		if s := firstLive(from.next, func(s *Segment) *Segment { return s.next }); s != nil {
			return s, 0
		}
		if s := firstLive(from.prev, func(s *Segment) *Segment { return s.prev }); s != nil {
			return s, len(s.text)
		}
		return nil, 0
	}
	if s := firstLive(from.prev, func(s *Segment) *Segment { return s.prev }); s != nil {
		return s, len(s.text)
	}
	if s := firstLive(from.next, func(s *Segment) *Segment { return s.next }); s != nil {
		return s, 0
	}
	return nil, 0
}

func firstLive(start *Segment, step func(*Segment) *Segment) *Segment {
	for s := start; s != nil; s = step(s) {
		if !s.removed {
			return s
		}
	}
	return nil
}

func (d *Document) livePositionOf(target *Segment) int {
	pos := 0
	for s := d.head; s != nil && s != target; s = s.next {
		if !s.removed {
			pos += len(s.text)
		}
	}
	return pos
}

func (d *Document) findAtPos(pos int) (*Segment, int, error) {
	if pos < 0 {
		return nil, 0, fmt.Errorf("testseq: negative position %d", pos)
	}
	acc := 0
	var last *Segment
	for s := d.head; s != nil; s = s.next {
		if s.removed {
			continue
		}
		last = s
		segLen := len(s.text)
		if pos < acc+segLen {
			return s, pos - acc, nil
		}
		acc += segLen
	}
	if pos == acc && last != nil {
		return last, len(last.text), nil
	}
	return nil, 0, fmt.Errorf("testseq: position %d out of range (document length %d)", pos, acc)
}

func (d *Document) Normalize() {
	for _, fn := range d.normalize {
		fn()
	}
}

// --- seqmodel.Client ---

func (c *Client) GetCurrentSeq() int64 { return c.doc.seq }

func (c *Client) NextLocalSeq() int64 {
	c.localSeq++
	return c.localSeq
}

func (c *Client) GetLongClientID(string) string { return c.longClientID }

func (c *Client) FindReconnectionPosition(segment seqmodel.Segment, localSeq int64) (int, error) {
	seg, ok := segment.(*Segment)
	if !ok {
		return 0, fmt.Errorf("testseq: unrecognized segment %v", segment)
	}
	if seg.removed {
		slid, err := c.GetSlideToSegment(seqmodel.SegOffset{Segment: seg, Offset: 0})
		if err != nil {
			return 0, err
		}
		if slid.Segment == nil {
			return 0, fmt.Errorf("testseq: segment %s has no surviving reconnection position", seg.id)
		}
		seg = slid.Segment.(*Segment)
	}
	return c.doc.livePositionOf(seg), nil
}

func (c *Client) GetContainingSegment(pos int, localSeq *int64) (seqmodel.SegOffset, error) {
	seg, offset, err := c.doc.findAtPos(pos)
	if err != nil {
		return seqmodel.SegOffset{}, err
	}
	return seqmodel.SegOffset{Segment: seg, Offset: offset}, nil
}

func (c *Client) GetSlideToSegment(at seqmodel.SegOffset) (seqmodel.SegOffset, error) {
	seg, ok := at.Segment.(*Segment)
	if !ok || seg == nil {
		return seqmodel.SegOffset{}, nil
	}
	if !seg.removed {
		return at, nil
	}
	target, offset := c.doc.slideNeighbor(seg, seqmodel.Forward)
	if target == nil {
		return seqmodel.SegOffset{}, nil
	}
	return seqmodel.SegOffset{Segment: target, Offset: offset}, nil
}

func (c *Client) CreateLocalReferencePosition(at seqmodel.SegOffset, refType seqmodel.RefType, pref seqmodel.SlidingPreference) (seqmodel.Reference, error) {
	seg, ok := at.Segment.(*Segment)
	if !ok || seg == nil {
		return nil, fmt.Errorf("testseq: CreateLocalReferencePosition given unrecognized segment")
	}
	c.doc.refSeq++
	r := &ref{seq: c.doc.refSeq, segment: seg, offset: at.Offset, refType: refType, pref: pref}
	seg.attached = append(seg.attached, r)
	return r, nil
}

func (c *Client) CreateDetachedLocalReferencePosition(refType seqmodel.RefType) seqmodel.Reference {
	c.doc.refSeq++
	return &ref{seq: c.doc.refSeq, refType: refType, detached: true}
}

func (c *Client) RemoveLocalReferencePosition(raw seqmodel.Reference) {
	r, ok := raw.(*ref)
	if !ok || r.segment == nil {
		return
	}
	r.segment.detach(r)
}

func (c *Client) Compare(a, b seqmodel.Reference) int {
	ra, rb := a.(*ref), b.(*ref)
	pa, oka := c.resolvedOrSentinel(ra)
	pb, okb := c.resolvedOrSentinel(rb)
	if pa != pb {
		if pa < pb {
			return -1
		}
		return 1
	}
	_ = oka
	_ = okb
	switch {
	case ra.seq < rb.seq:
		return -1
	case ra.seq > rb.seq:
		return 1
	default:
		return 0
	}
}

// resolvedOrSentinel gives every reference, detached or not, a stable
// sort key: its live position, or a sentinel above every live position
// if detached (ordering detached references consistently, by creation
// order via the seq tiebreak in Compare).
func (c *Client) resolvedOrSentinel(r *ref) (int64, bool) {
	if r.detached || r.segment == nil || r.segment.removed {
		return 1<<62 - 1, false
	}
	return int64(c.doc.livePositionOf(r.segment) + r.offset), true
}

func (c *Client) Resolve(raw seqmodel.Reference) seqmodel.Pos {
	r, ok := raw.(*ref)
	if !ok || r.detached || r.segment == nil || r.segment.removed {
		return seqmodel.Detached
	}
	return seqmodel.Pos(c.doc.livePositionOf(r.segment) + r.offset)
}

func (c *Client) OnNormalize(fn func()) {
	c.doc.normalize = append(c.doc.normalize, fn)
}
