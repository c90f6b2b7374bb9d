package btm

import "github.com/odysseus-edu/storage/common"

// CursorFlag is a range-scan cursor's position in its state machine.
type CursorFlag int

const (
	CursorInvalid CursorFlag = 0
	// CursorEOS carries the same value as common.EOS, the end-of-scan
	// sentinel, rather than an unrelated number of its own.
	CursorEOS CursorFlag = CursorFlag(common.EOS)
	CursorOn  CursorFlag = 2
)

// Cursor is a position in a range scan: the leaf page and slot last
// visited, plus the key and object id found there. FetchNext trusts
// Leaf/SlotNo and re-reads the page fresh rather than re-searching from
// the root — valid only because concurrency is out of scope here.
type Cursor struct {
	Flag   CursorFlag
	Leaf   common.PageID
	SlotNo int
	Key    []byte
	Oid    common.ObjectID
}

func (t *BtM) descendLeftmost(pid common.PageID) (common.PageID, error) {
	for {
		page, err := t.getPage(pid)
		if err != nil {
			return common.PageID{}, err
		}
		if page.IsLeaf() {
			t.free(pid)
			return pid, nil
		}
		child := page.P0()
		t.free(pid)
		pid = common.PageID{VolNo: pid.VolNo, PageNo: int32(child)}
	}
}

func (t *BtM) descendRightmost(pid common.PageID) (common.PageID, error) {
	for {
		page, err := t.getPage(pid)
		if err != nil {
			return common.PageID{}, err
		}
		if page.IsLeaf() {
			t.free(pid)
			return pid, nil
		}
		var child common.ShortPageID
		if n := page.NSlots(); n == 0 {
			child = page.P0()
		} else {
			child = page.InternalItemAt(n - 1).SPID
		}
		t.free(pid)
		pid = common.PageID{VolNo: pid.VolNo, PageNo: int32(child)}
	}
}

func (t *BtM) descendSearch(pid common.PageID, kdesc *common.KeyDesc, kval []byte) (common.PageID, error) {
	for {
		page, err := t.getPage(pid)
		if err != nil {
			return common.PageID{}, err
		}
		if page.IsLeaf() {
			t.free(pid)
			return pid, nil
		}
		_, idx := BinarySearchInternal(page, kdesc, kval)
		var child common.ShortPageID
		if idx == -1 {
			child = page.P0()
		} else {
			child = page.InternalItemAt(idx).SPID
		}
		t.free(pid)
		pid = common.PageID{VolNo: pid.VolNo, PageNo: int32(child)}
	}
}

// seekBackward walks pid/page (already pinned once) toward lower-numbered
// slots and, once idx underruns the current leaf, across prevPage links
// until idx lands in range. It returns ok=false (with every page it
// touched unpinned) once prevPage chain runs out.
func (t *BtM) seekBackward(volNo int32, pid common.PageID, page Page, idx int) (common.PageID, Page, int, bool, error) {
	for idx < 0 {
		prev := page.PrevPage()
		t.free(pid)
		if prev == common.NilShortPageID {
			return common.PageID{}, Page{}, 0, false, nil
		}
		pid = common.PageID{VolNo: volNo, PageNo: int32(prev)}
		var err error
		page, err = t.getPage(pid)
		if err != nil {
			return common.PageID{}, Page{}, 0, false, err
		}
		idx = page.NSlots() - 1
	}
	return pid, page, idx, true, nil
}

// seekForward is seekBackward's mirror image, crossing nextPage links.
func (t *BtM) seekForward(volNo int32, pid common.PageID, page Page, idx int) (common.PageID, Page, int, bool, error) {
	for idx >= page.NSlots() {
		next := page.NextPage()
		t.free(pid)
		if next == common.NilShortPageID {
			return common.PageID{}, Page{}, 0, false, nil
		}
		pid = common.PageID{VolNo: volNo, PageNo: int32(next)}
		var err error
		page, err = t.getPage(pid)
		if err != nil {
			return common.PageID{}, Page{}, 0, false, err
		}
		idx = 0
	}
	return pid, page, idx, true, nil
}

// satisfiesStop reports whether a candidate-vs-stop key comparison c
// (as returned by common.CompareKey(candidate, stop)) meets stopOp's
// bound. SmBOF/SmEOF carry no bound and are always satisfied.
func satisfiesStop(c int, stopOp common.CompOp) bool {
	switch stopOp {
	case common.SmEQ:
		return c == 0
	case common.SmLT:
		return c < 0
	case common.SmLE:
		return c <= 0
	case common.SmGT:
		return c > 0
	case common.SmGE:
		return c >= 0
	case common.SmBOF, common.SmEOF:
		return true
	default:
		return false
	}
}

// Fetch positions a cursor at the first entry (of root's tree) satisfying
// startOp/startKval, then checks it against stopOp/stopKval. A nil
// stopKval means "no bound" (used with SmBOF/SmEOF starts for an
// unbounded full scan).
func (t *BtM) Fetch(root common.PageID, kdesc *common.KeyDesc, startKval []byte, startOp common.CompOp, stopKval []byte, stopOp common.CompOp) (Cursor, error) {
	if root.Nil() {
		return Cursor{}, common.ErrBadParameter
	}
	if err := kdesc.Validate(); err != nil {
		return Cursor{}, err
	}

	var pid common.PageID
	var page Page
	var idx int
	var err error
	ok := true

	switch startOp {
	case common.SmBOF:
		pid, err = t.descendLeftmost(root)
		if err != nil {
			return Cursor{}, err
		}
		page, err = t.getPage(pid)
		if err != nil {
			return Cursor{}, err
		}
		idx = 0

	case common.SmEOF:
		pid, err = t.descendRightmost(root)
		if err != nil {
			return Cursor{}, err
		}
		page, err = t.getPage(pid)
		if err != nil {
			return Cursor{}, err
		}
		idx = page.NSlots() - 1

	case common.SmEQ, common.SmLT, common.SmLE, common.SmGT, common.SmGE:
		pid, err = t.descendSearch(root, kdesc, startKval)
		if err != nil {
			return Cursor{}, err
		}
		page, err = t.getPage(pid)
		if err != nil {
			return Cursor{}, err
		}
		found, i := BinarySearchLeaf(page, kdesc, startKval)
		switch startOp {
		case common.SmEQ:
			if !found {
				t.free(pid)
				return Cursor{Flag: CursorEOS}, nil
			}
			idx = i
		case common.SmLT:
			if found {
				i--
			}
			pid, page, idx, ok, err = t.seekBackward(root.VolNo, pid, page, i)
		case common.SmLE:
			pid, page, idx, ok, err = t.seekBackward(root.VolNo, pid, page, i)
		case common.SmGT:
			pid, page, idx, ok, err = t.seekForward(root.VolNo, pid, page, i+1)
		case common.SmGE:
			if !found {
				i++
			}
			pid, page, idx, ok, err = t.seekForward(root.VolNo, pid, page, i)
		}
		if err != nil {
			return Cursor{}, err
		}
		if !ok {
			return Cursor{Flag: CursorEOS}, nil
		}

	default:
		return Cursor{}, common.ErrBadCompOp
	}

	defer t.free(pid)
	if idx < 0 || idx >= page.NSlots() {
		return Cursor{Flag: CursorEOS}, nil
	}
	item := page.LeafItemAt(idx)

	if stopKval != nil {
		c, err := common.CompareKey(kdesc, item.Kval, stopKval)
		if err != nil {
			return Cursor{}, err
		}
		if !satisfiesStop(c, stopOp) {
			return Cursor{Flag: CursorEOS}, nil
		}
	}
	return Cursor{Flag: CursorOn, Leaf: pid, SlotNo: idx, Key: item.Kval, Oid: item.Oid}, nil
}

// FetchNext advances cur by one slot, crossing leaf boundaries as
// needed, and re-applies the stop predicate. Direction is governed by
// stopOp: forward (ascending) for SmEQ/SmLT/SmLE/SmEOF, backward
// (descending) for SmGT/SmGE/SmBOF.
func (t *BtM) FetchNext(cur Cursor, kdesc *common.KeyDesc, stopKval []byte, stopOp common.CompOp) (Cursor, error) {
	if cur.Flag == CursorEOS {
		return Cursor{Flag: CursorEOS}, nil
	}
	if cur.Flag != CursorOn {
		return Cursor{}, common.ErrBadCursor
	}

	var forward bool
	switch stopOp {
	case common.SmEQ, common.SmLT, common.SmLE, common.SmEOF:
		forward = true
	case common.SmGT, common.SmGE, common.SmBOF:
		forward = false
	default:
		return Cursor{}, common.ErrBadCompOp
	}

	page, err := t.getPage(cur.Leaf)
	if err != nil {
		return Cursor{}, err
	}

	var pid common.PageID
	var idx int
	var ok bool
	if forward {
		pid, page, idx, ok, err = t.seekForward(cur.Leaf.VolNo, cur.Leaf, page, cur.SlotNo+1)
	} else {
		pid, page, idx, ok, err = t.seekBackward(cur.Leaf.VolNo, cur.Leaf, page, cur.SlotNo-1)
	}
	if err != nil {
		return Cursor{}, err
	}
	if !ok {
		return Cursor{Flag: CursorEOS}, nil
	}
	defer t.free(pid)

	item := page.LeafItemAt(idx)
	if stopKval != nil {
		c, err := common.CompareKey(kdesc, item.Kval, stopKval)
		if err != nil {
			return Cursor{}, err
		}
		if !satisfiesStop(c, stopOp) {
			return Cursor{Flag: CursorEOS}, nil
		}
	}
	return Cursor{Flag: CursorOn, Leaf: pid, SlotNo: idx, Key: item.Kval, Oid: item.Oid}, nil
}
