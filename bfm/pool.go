package bfm

import (
	"github.com/odysseus-edu/storage/common"
	"github.com/sirupsen/logrus"
)

// pool is one of BfM's two independent buffer pools: a fixed-size frame
// table, a chained hash table over it (sized larger than the pool so
// chains stay short), and a roaming second-chance victim cursor.
type pool struct {
	bufType    BufferType
	frames     []frame
	hashTable  []int32 // bucket -> head frame index, or NotFoundInHTable
	nextVictim int32
	log        *logrus.Logger
}

func newPool(bufType BufferType, nFrames int, log *logrus.Logger) *pool {
	hashSize := nFrames*2 + 1 // must stay larger than the frame count
	p := &pool{
		bufType:   bufType,
		frames:    make([]frame, nFrames),
		hashTable: make([]int32, hashSize),
		log:       log,
	}
	for i := range p.hashTable {
		p.hashTable[i] = common.NotFoundInHTable
	}
	for i := range p.frames {
		p.frames[i].nextHashEntry = common.NotFoundInHTable
	}
	return p
}

func (p *pool) hash(key common.PageID) int32 {
	h := (int64(key.VolNo) + int64(key.PageNo)) % int64(len(p.hashTable))
	if h < 0 {
		h += int64(len(p.hashTable))
	}
	return int32(h)
}

// lookUp returns the frame index holding key, or NotFoundInHTable.
func (p *pool) lookUp(key common.PageID) int32 {
	h := p.hash(key)
	for i := p.hashTable[h]; i != common.NotFoundInHTable; i = p.frames[i].nextHashEntry {
		if p.frames[i].key == key {
			return i
		}
	}
	return common.NotFoundInHTable
}

// insert prepends index to key's bucket chain.
func (p *pool) insert(key common.PageID, index int32) {
	h := p.hash(key)
	p.frames[index].nextHashEntry = p.hashTable[h]
	p.hashTable[h] = index
}

// delete removes the first chain node whose key equals key, preserving
// the remaining order, failing if absent.
func (p *pool) delete(key common.PageID) error {
	h := p.hash(key)
	prev := common.NotFoundInHTable
	for i := p.hashTable[h]; i != common.NotFoundInHTable; i = p.frames[i].nextHashEntry {
		if p.frames[i].key == key {
			if prev == common.NotFoundInHTable {
				p.hashTable[h] = p.frames[i].nextHashEntry
			} else {
				p.frames[prev].nextHashEntry = p.frames[i].nextHashEntry
			}
			p.frames[i].nextHashEntry = common.NotFoundInHTable
			return nil
		}
		prev = i
	}
	return common.ErrNotFoundBfM
}

// deleteAll resets every bucket to empty.
func (p *pool) deleteAll() {
	for i := range p.hashTable {
		p.hashTable[i] = common.NotFoundInHTable
	}
	for i := range p.frames {
		p.frames[i] = frame{nextHashEntry: common.NotFoundInHTable}
	}
	p.nextVictim = 0
}
