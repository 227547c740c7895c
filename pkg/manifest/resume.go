package manifest

// Observed is one part file found on disk during resume discovery:
// its index (parsed from the filename, e.g. "03.part" -> 3) and its
// current byte size.
type Observed struct {
	Index int
	Size  int64
}

// Plan is the result of walking a manifest's expected parts against what
// is actually on disk.
type Plan struct {
	ValidParts   []int // indices that match their expected size exactly
	InvalidParts []int // indices that must be deleted before resume
	BytesHave    int64
	BytesNeed    int64
	PartialIndex int   // -1 if no partial part was found
	PartialBytes int64
}

// expectedPartSize returns the size the manifest expects for part i.
func expectedPartSize(m Manifest, i int) int64 {
	total := m.TotalSize
	partSize := m.PartSize
	if partSize <= 0 {
		return 0
	}
	n := (total + partSize - 1) / partSize
	if int64(i) == n-1 {
		last := total - partSize*(n-1)
		if last > 0 {
			return last
		}
		return partSize
	}
	return partSize
}

// PlanResume implements §4.3's resume-planning algorithm: walk expected
// part indices starting at 0; the first gap, undersized-and-nonzero part,
// or oversized part stops the walk. PlanResume is idempotent: calling it
// twice with the same manifest and observed set yields an identical Plan.
func PlanResume(m Manifest, observed []Observed) Plan {
	byIndex := make(map[int]int64, len(observed))
	for _, o := range observed {
		byIndex[o.Index] = o.Size
	}

	plan := Plan{PartialIndex: -1}
	nParts := len(m.Parts)
	if nParts == 0 && m.PartSize > 0 {
		nParts = int((m.TotalSize + m.PartSize - 1) / m.PartSize)
	}

	stopped := false
	for i := 0; i < nParts; i++ {
		expected := expectedPartSize(m, i)
		size, ok := byIndex[i]
		switch {
		case stopped:
			if ok {
				plan.InvalidParts = append(plan.InvalidParts, i)
			}
		case !ok:
			stopped = true
		case size == expected:
			plan.ValidParts = append(plan.ValidParts, i)
			plan.BytesHave += size
		case size > 0 && size < expected:
			plan.PartialIndex = i
			plan.PartialBytes = size
			plan.BytesHave += size
			stopped = true
		default: // zero, oversized
			plan.InvalidParts = append(plan.InvalidParts, i)
			stopped = true
		}
	}

	// Any observed index beyond the contiguous boundary or the declared
	// part count is invalid.
	for idx := range byIndex {
		if idx >= nParts {
			plan.InvalidParts = append(plan.InvalidParts, idx)
		}
	}

	plan.BytesNeed = m.TotalSize - plan.BytesHave
	if plan.BytesNeed < 0 {
		plan.BytesNeed = 0
	}
	return plan
}
