package btm

import (
	"github.com/odysseus-edu/storage/bfm"
	"github.com/odysseus-edu/storage/common"
	"github.com/sirupsen/logrus"
)

// BtM is the B+-tree index manager: it builds index pages atop BfM,
// independent of OM except that leaf entries point at OM common.ObjectID
// values.
type BtM struct {
	buf *bfm.BfM
	log *logrus.Logger
}

// New creates a B+-tree manager over buf.
func New(buf *bfm.BfM, log *logrus.Logger) *BtM {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BtM{buf: buf, log: log}
}

// getPage pins pid and validates its type tag names a known page kind
// before handing it back, catching a corrupt/garbage header rather than
// letting IsLeaf/IsInternal silently treat it as neither.
func (t *BtM) getPage(pid common.PageID) (Page, error) {
	b, err := t.buf.GetTrain(pid, bfm.PageBuf)
	if err != nil {
		return Page{}, err
	}
	page := Page{Bytes: b}
	if !page.IsLeaf() && !page.IsInternal() {
		t.free(pid)
		return Page{}, common.ErrBadBtreePage
	}
	return page, nil
}

func (t *BtM) getNewPage(pid common.PageID) (Page, error) {
	b, err := t.buf.GetNewTrain(pid, bfm.PageBuf)
	if err != nil {
		return Page{}, err
	}
	return Page{Bytes: b}, nil
}

func (t *BtM) free(pid common.PageID) error { return t.buf.FreeTrain(pid, bfm.PageBuf) }
func (t *BtM) dirty(pid common.PageID) error { return t.buf.SetDirty(pid, bfm.PageBuf) }

func (t *BtM) allocPage(volNo int32) (common.PageID, error) {
	return t.buf.AllocTrainFor(volNo)
}

// CreateIndex allocates one page on volNo and initializes it as an empty
// root leaf, returning its PageID. The root's PageID never changes
// across subsequent insertions: growth promotes a *new* page to hold
// the old root's contents and re-initializes this one as an internal
// page pointing at it (see rootInsert).
func (t *BtM) CreateIndex(volNo int32) (common.PageID, error) {
	pid, err := t.allocPage(volNo)
	if err != nil {
		return common.PageID{}, err
	}
	page, err := t.getNewPage(pid)
	if err != nil {
		return common.PageID{}, err
	}
	page.InitLeaf(pid, true)
	if err := t.dirty(pid); err != nil {
		return common.PageID{}, err
	}
	if err := t.free(pid); err != nil {
		return common.PageID{}, err
	}
	t.log.WithField("root", pid).Debug("btm: create index")
	return pid, nil
}
