package hlog

// SegmentClosed is called once the log device confirms segment s has been
// fully written and rotated away from: the corresponding object-log
// segment-offset table entry is reset to zero so a future
// reallocation of that table slot (after SegmentBufferSize segments have
// rolled by) starts from an empty segment again.
func (a *Allocator) SegmentClosed(s uint64) {
	slot := int(s % uint64(a.cfg.SegmentBufferSize))
	a.segmentOffsets[slot].Store(0)
}

// DeleteAddressRange trims both the primary log and (when enabled) the
// object log below addr range [from, to), by translating the logical range
// into whole log-device segments and delegating to Device.DeleteSegmentRange.
// Partial segments straddling `to` are left alone; they'll
// be picked up by a later ShiftBeginAddress call once fully below the new
// begin address.
func (a *Allocator) DeleteAddressRange(from, to LogicalAddress) error {
	fromBytes := int64(a.pageNumber(from)) * alignedPageBytes(a.cfg)
	toBytes := int64(a.pageNumber(to)) * alignedPageBytes(a.cfg)

	fromSeg := uint64(fromBytes / a.segmentByteSize())
	toSeg := uint64(toBytes / a.segmentByteSize())
	if toSeg <= fromSeg {
		return nil
	}

	if err := a.logDevice.DeleteSegmentRange(fromSeg, toSeg); err != nil {
		return err
	}

	if a.objectLogDevice != nil {
		objFromSeg := uint64(fromBytes / a.objectSegmentSize())
		objToSeg := uint64(toBytes / a.objectSegmentSize())
		if objToSeg > objFromSeg {
			if err := a.objectLogDevice.DeleteSegmentRange(objFromSeg, objToSeg); err != nil {
				return err
			}
		}
	}

	for seg := fromSeg; seg < toSeg; seg++ {
		a.SegmentClosed(seg)
	}

	return nil
}
