package joy

import (
	"equanimity/src/lib/trust"
	"equanimity/src/lib/upbeat"
)

const KPageSize = uint64(0x10000)            //64KB
const KRamStart = uint64(0xfffffc0030000000) //first page the kernel hands out

type PageId uint32

// pageMap is one bit per page, on when the page is in use.
type pageMap struct {
	inUse *upbeat.BitSet
}

// PageAddress is the kernel virtual address of the first byte of p.
func PageAddress(p PageId) uint64 {
	return KRamStart + uint64(p)*KPageSize
}

// GetContiguousPages finds n free pages in a row and marks them in use. It
// returns the first and last page of the run.
func (k *Kernel) GetContiguousPages(n uint32) (PageId, PageId, error) {
	return k.getPages(n, k.Current())
}

// FreePages returns n pages starting at first. Every page must be in use.
func (k *Kernel) FreePages(first PageId, n uint32) error {
	return k.freePages(first, n, k.Current())
}

// PagesInUse counts allocated pages.
func (k *Kernel) PagesInUse() int {
	pm := k.pages.ExclusiveAccess()
	defer pm.Release()
	return pm.Ptr().inUse.Count()
}

// getPages and freePages never touch the family table; id is only used to
// stamp errors.
func (k *Kernel) getPages(n uint32, id FamilyId) (PageId, PageId, error) {
	pm := k.pages.ExclusiveAccess()
	defer pm.Release()
	bits := pm.Ptr().inUse
	if n == 0 || n > bits.Size() {
		return 0, 0, makeError(ErrorMemoryBadPageRequest, id)
	}
	first, ok := bits.FindClearRun(n)
	if !ok {
		trust.Warnf("out of pages: wanted %d contiguous, %d of %d in use", n, bits.Count(), bits.Size())
		return 0, 0, makeError(ErrorMemoryPageNotAvailable, id)
	}
	for i := uint32(0); i < n; i++ {
		bits.Set(first + upbeat.BitIndex(i))
	}
	return PageId(first), PageId(uint32(first) + n - 1), nil
}

func (k *Kernel) freePages(first PageId, n uint32, id FamilyId) error {
	pm := k.pages.ExclusiveAccess()
	defer pm.Release()
	bits := pm.Ptr().inUse
	if n == 0 || uint64(first)+uint64(n) > uint64(bits.Size()) {
		return makeError(ErrorMemoryBadPageRequest, id)
	}
	for i := uint32(0); i < n; i++ {
		if !bits.On(upbeat.BitIndex(uint32(first) + i)) {
			return makeError(ErrorMemoryAlreadyFree, id)
		}
	}
	for i := uint32(0); i < n; i++ {
		bits.Clear(upbeat.BitIndex(uint32(first) + i))
	}
	return nil
}

// setInUse claims one specific page, as boot does for the pages the
// bootloader already put things in.
func (k *Kernel) setInUse(p PageId) error {
	pm := k.pages.ExclusiveAccess()
	defer pm.Release()
	bits := pm.Ptr().inUse
	if uint32(p) >= bits.Size() {
		return makeError(ErrorMemoryBadPageRequest, NoFamilyId)
	}
	if bits.On(upbeat.BitIndex(p)) {
		return makeError(ErrorMemoryPageAlreadyInUse, NoFamilyId)
	}
	bits.Set(upbeat.BitIndex(p))
	return nil
}

// mustFree is for pages the kernel itself allocated; failing to free them
// means the page map is corrupt.
func (k *Kernel) mustFree(first PageId, n uint32, id FamilyId) {
	if err := k.freePages(first, n, id); err != nil {
		k.handler.Panic("page map corrupt: " + err.Error())
	}
}
