package indicator

import "sort"

// bucketWidth is the index volume-profile bucket width per spec §4.A.
const bucketWidth = 0.25

// volumeProfile buckets session volume by price and reports the Point
// of Control plus the Value Area High/Low (the narrowest contiguous
// band of buckets holding >= 70% of session volume), generalized from
// the teacher's calculateVolumeProfile bucket-count shape.
type volumeProfile struct {
	buckets map[int64]float64 // bucket index (price / bucketWidth, floored) -> volume
}

func newVolumeProfile() *volumeProfile {
	return &volumeProfile{buckets: make(map[int64]float64)}
}

func bucketIndex(price float64) int64 {
	return int64(price/bucketWidth + 0.0000001) // tolerate fp jitter
}

func (v *volumeProfile) add(price, volume float64) {
	v.buckets[bucketIndex(price)] += volume
}

func (v *volumeProfile) reset() {
	v.buckets = make(map[int64]float64)
}

// VolumeProfileResult carries POC/VAH/VAL. Absent (ok=false) until at
// least one bucket has been observed.
type VolumeProfileResult struct {
	POC float64
	VAH float64
	VAL float64
}

func (v *volumeProfile) compute() (VolumeProfileResult, bool) {
	if len(v.buckets) == 0 {
		return VolumeProfileResult{}, false
	}

	idxs := make([]int64, 0, len(v.buckets))
	total := 0.0
	for idx, vol := range v.buckets {
		idxs = append(idxs, idx)
		total += vol
	}
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })

	// POC: highest-volume bucket; on a tie the lowest-priced bucket
	// wins, which keeps the choice deterministic.
	var pocIdx int64
	maxVol := -1.0
	for _, idx := range idxs {
		if v.buckets[idx] > maxVol {
			maxVol = v.buckets[idx]
			pocIdx = idx
		}
	}

	// Expand outward from the POC, always adding whichever neighbor
	// bucket has more volume, until >= 70% of total volume is covered.
	lo, hi := pocIdx, pocIdx
	covered := v.buckets[pocIdx]
	target := total * 0.70
	for covered < target {
		loNext, hiNext := lo-1, hi+1
		volLo, hasLo := v.buckets[loNext]
		volHi, hasHi := v.buckets[hiNext]
		switch {
		case hasLo && (!hasHi || volLo >= volHi):
			lo = loNext
			covered += volLo
		case hasHi:
			hi = hiNext
			covered += volHi
		default:
			// Ran out of bounded buckets on both sides; stop expanding.
			covered = target
		}
	}

	return VolumeProfileResult{
		POC: float64(pocIdx) * bucketWidth,
		VAH: float64(hi) * bucketWidth,
		VAL: float64(lo) * bucketWidth,
	}, true
}
