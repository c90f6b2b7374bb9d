// Package rdsm is the raw volume layer BfM reads pages from and flushes
// dirty frames to: page-granular read/write plus a trivial bump
// allocator, with no extents, fill-factor placement, or multi-volume
// catalog.
package rdsm

import "github.com/odysseus-edu/storage/common"

// Volume is the page-addressable backing store for one volNo. BfM calls
// it only on a buffer miss (ReadPage) and when flushing a dirty frame
// (WritePage); everything above BfM only ever sees pages through the
// buffer pool.
type Volume interface {
	// ReadPage fills buf (len(buf) == common.PageSize) with the contents
	// of pageNo.
	ReadPage(pageNo int32, buf []byte) error
	// WritePage persists buf to pageNo.
	WritePage(pageNo int32, buf []byte) error
	// AllocPages reserves n consecutive fresh page numbers and returns
	// the first one, zero-filling their backing storage.
	AllocPages(n int32) (first int32, err error)
	// Close releases any resources held by the volume.
	Close() error
}

// Manager maps volNo to the Volume that backs it. BfM holds one Manager
// and never talks to an os.File or memfile.File directly.
type Manager struct {
	volumes map[int32]Volume
}

// NewManager creates an empty volume manager.
func NewManager() *Manager {
	return &Manager{volumes: make(map[int32]Volume)}
}

// Mount registers vol as the backing store for volNo.
func (m *Manager) Mount(volNo int32, vol Volume) {
	m.volumes[volNo] = vol
}

// Unmount closes and removes the volume for volNo, if any.
func (m *Manager) Unmount(volNo int32) error {
	vol, ok := m.volumes[volNo]
	if !ok {
		return nil
	}
	delete(m.volumes, volNo)
	return vol.Close()
}

func (m *Manager) volume(volNo int32) (Volume, error) {
	vol, ok := m.volumes[volNo]
	if !ok {
		return nil, common.ErrBadParameter
	}
	return vol, nil
}

// ReadPage reads pid's backing volume into buf.
func (m *Manager) ReadPage(pid common.PageID, buf []byte) error {
	vol, err := m.volume(pid.VolNo)
	if err != nil {
		return err
	}
	return vol.ReadPage(pid.PageNo, buf)
}

// WritePage writes buf to pid's backing volume.
func (m *Manager) WritePage(pid common.PageID, buf []byte) error {
	vol, err := m.volume(pid.VolNo)
	if err != nil {
		return err
	}
	return vol.WritePage(pid.PageNo, buf)
}

// AllocPages reserves n consecutive pages on volNo's volume.
func (m *Manager) AllocPages(volNo int32, n int32) (common.PageID, error) {
	vol, err := m.volume(volNo)
	if err != nil {
		return common.PageID{}, err
	}
	first, err := vol.AllocPages(n)
	if err != nil {
		return common.PageID{}, err
	}
	return common.PageID{VolNo: volNo, PageNo: first}, nil
}
