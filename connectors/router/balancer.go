// SPDX-License-Identifier: ice License 1.0

package router

// nextReadTarget picks replicas round-robin off a single atomic counter, so every concurrent caller gets its own slot
// and, over any k*len(reads) selections, each replica is picked exactly k times.
// Without replicas, reads are served by the write target.
func (r *Router) nextReadTarget() *Target {
	if len(r.reads) == 0 {
		return r.write
	}
	size := uint64(len(r.reads))
	ix := (r.cursor.Add(1) - 1) % size
	if !r.cfg.SkipUnhealthyReplicas {
		return r.reads[ix]
	}
	for offset := range size {
		if candidate := r.reads[(ix+offset)%size]; candidate.Healthy() {
			return candidate
		}
	}

	return r.write
}
