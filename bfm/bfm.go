package bfm

import (
	"github.com/odysseus-edu/storage/common"
	"github.com/odysseus-edu/storage/rdsm"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config configures a BfM instance. It is a plain struct constructed in
// code, never from environment variables or flags.
type Config struct {
	// NPageBufs is the PageBuf pool's frame count.
	NPageBufs int
	// NLotLeafBufs is the LotLeafBuf pool's frame count.
	NLotLeafBufs int
	// BulkFlush forces AllocTrain to always fail with
	// ErrNotSupportedBfM, for embedders whose allocation pattern
	// requires every train come from a fresh, never-recycled frame.
	BulkFlush bool
	// Logger receives Debug-level traces of allocation/eviction
	// decisions; nil uses logrus.StandardLogger().
	Logger *logrus.Logger
}

// BfM is the buffer manager: two independent pools fronting an
// rdsm.Manager for actual page IO.
type BfM struct {
	pools     [2]*pool
	vol       *rdsm.Manager
	bulkFlush bool
	log       *logrus.Logger
}

// New creates a buffer manager backed by vol.
func New(vol *rdsm.Manager, cfg Config) *BfM {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	b := &BfM{vol: vol, bulkFlush: cfg.BulkFlush, log: log}
	b.pools[PageBuf] = newPool(PageBuf, cfg.NPageBufs, log)
	b.pools[LotLeafBuf] = newPool(LotLeafBuf, cfg.NLotLeafBufs, log)
	return b
}

func (b *BfM) pool(t BufferType) *pool { return b.pools[t] }

// poolFor validates t before indexing b.pools, returning ErrBadBufIndex
// for a caller-supplied BufferType outside the two known pools.
func (b *BfM) poolFor(t BufferType) (*pool, error) {
	if int(t) < 0 || int(t) >= len(b.pools) {
		return nil, common.ErrBadBufIndex
	}
	return b.pools[t], nil
}

// AllocTrainFor reserves one fresh page on volNo's backing volume. It
// does not pin or populate the frame; callers typically follow with
// GetNewTrain(pid, ...) to obtain a writable, pinned buffer for it.
func (b *BfM) AllocTrainFor(volNo int32) (common.PageID, error) {
	return b.vol.AllocPages(volNo, 1)
}

// LookUp exposes pool.lookUp for tests asserting hash-table integrity;
// production callers never need it directly.
func (b *BfM) LookUp(pid common.PageID, t BufferType) int32 {
	return b.pool(t).lookUp(pid)
}

// DeleteAll resets both pools' hash tables to empty.
func (b *BfM) DeleteAll() {
	for _, p := range b.pools {
		p.deleteAll()
	}
}

// allocTrain selects a victim frame using second-chance replacement:
// two sweeps of up to 2*n frames, skipping fixed frames, clearing REFER
// bits on the first pass, and evicting (flushing if dirty) the first
// frame found with REFER already clear.
func (b *BfM) allocTrain(t BufferType) (int32, error) {
	if b.bulkFlush {
		return 0, common.ErrNotSupportedBfM
	}
	p, err := b.poolFor(t)
	if err != nil {
		return 0, err
	}
	n := int32(len(p.frames))
	if n == 0 {
		return 0, common.ErrNoUnfixedBuf
	}
	victim := p.nextVictim
	for i := int32(0); i < 2*n; i++ {
		f := &p.frames[victim]
		if f.fixed > 0 {
			victim = (victim + 1) % n
			continue
		}
		if f.refer() {
			f.bits &^= bitRefer
			victim = (victim + 1) % n
			continue
		}

		if f.dirty() {
			if err := b.flushFrame(f); err != nil {
				return 0, err
			}
		}
		if f.valid() {
			if err := p.delete(f.key); err != nil {
				return 0, err
			}
		}
		idx := victim
		p.nextVictim = (victim + 1) % n
		p.log.WithFields(logrus.Fields{"pool": t, "victim": idx}).Debug("bfm: alloc train evicted frame")
		*f = frame{nextHashEntry: common.NotFoundInHTable}
		return idx, nil
	}
	p.log.WithField("pool", t).Debug("bfm: alloc train found no unfixed frame after two sweeps")
	return 0, common.ErrNoUnfixedBuf
}

func (b *BfM) flushFrame(f *frame) error {
	if err := b.vol.WritePage(f.key, f.data); err != nil {
		return errors.Wrapf(err, "bfm: flush train %s", f.key)
	}
	f.bits &^= bitDirty
	return nil
}

// GetTrain returns a pinned view of pid's page, reading it from disk on
// a miss.
func (b *BfM) GetTrain(pid common.PageID, t BufferType) ([]byte, error) {
	p, err := b.poolFor(t)
	if err != nil {
		return nil, err
	}
	if idx := p.lookUp(pid); idx != common.NotFoundInHTable {
		f := &p.frames[idx]
		f.fixed++
		f.bits |= bitRefer
		return f.data, nil
	}

	idx, err := b.allocTrain(t)
	if err != nil {
		return nil, err
	}
	f := &p.frames[idx]
	f.data = make([]byte, common.PageSize)
	if err := b.vol.ReadPage(pid, f.data); err != nil {
		return nil, errors.Wrapf(err, "bfm: get train %s", pid)
	}
	f.key = pid
	f.fixed = 1
	f.bits = bitValid | bitRefer
	p.insert(pid, idx)
	return f.data, nil
}

// GetNewTrain is like GetTrain but never reads from disk: the frame's
// contents are left undefined for the caller to initialize.
func (b *BfM) GetNewTrain(pid common.PageID, t BufferType) ([]byte, error) {
	p, err := b.poolFor(t)
	if err != nil {
		return nil, err
	}
	if idx := p.lookUp(pid); idx != common.NotFoundInHTable {
		f := &p.frames[idx]
		f.fixed++
		f.bits |= bitRefer
		return f.data, nil
	}

	idx, err := b.allocTrain(t)
	if err != nil {
		return nil, err
	}
	f := &p.frames[idx]
	f.data = make([]byte, common.PageSize)
	f.key = pid
	f.fixed = 1
	f.bits = bitValid | bitRefer
	p.insert(pid, idx)
	return f.data, nil
}

// FreeTrain decrements pid's pin count.
func (b *BfM) FreeTrain(pid common.PageID, t BufferType) error {
	p, err := b.poolFor(t)
	if err != nil {
		return err
	}
	idx := p.lookUp(pid)
	if idx == common.NotFoundInHTable {
		return common.ErrNotFoundBfM
	}
	f := &p.frames[idx]
	if f.fixed > 0 {
		f.fixed--
	}
	return nil
}

// SetDirty marks pid's frame dirty.
func (b *BfM) SetDirty(pid common.PageID, t BufferType) error {
	p, err := b.poolFor(t)
	if err != nil {
		return err
	}
	idx := p.lookUp(pid)
	if idx == common.NotFoundInHTable {
		return common.ErrNotFoundBfM
	}
	p.frames[idx].bits |= bitDirty
	return nil
}

// FlushAll writes every dirty frame of both pools to disk and clears
// their dirty bits.
func (b *BfM) FlushAll() error {
	flushed := 0
	for _, p := range b.pools {
		for i := range p.frames {
			f := &p.frames[i]
			if f.valid() && f.dirty() {
				if err := b.flushFrame(f); err != nil {
					return err
				}
				flushed++
			}
		}
	}
	b.log.WithField("count", flushed).Debug("bfm: flush all dirty frames")
	return nil
}
