package software

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"gpulife/internal/gpu"
)

// dispatch runs every invocation of every workgroup. Workgroups are split
// into contiguous chunks, one per worker.
func (d *Device) dispatch(dc dispatch) error {
	cx, cy, cz := uint64(dc.count[0]), uint64(dc.count[1]), uint64(dc.count[2])
	total := cx * cy * cz
	workers := uint64(d.workers)
	if workers > total {
		workers = total
	}
	chunk := (total + workers - 1) / workers

	var g errgroup.Group
	g.SetLimit(int(workers))
	for start := uint64(0); start < total; start += chunk {
		start, end := start, min(start+chunk, total)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("kernel panic in %s: %v", dc.pipeline.label, r)
				}
			}()
			for n := start; n < end; n++ {
				id := [3]uint32{uint32(n % cx), uint32(n / cx % cy), uint32(n / (cx * cy))}
				runWorkgroup(dc, id)
			}
			return nil
		})
	}
	return g.Wait()
}

func runWorkgroup(dc dispatch, wid [3]uint32) {
	size := dc.pipeline.workgroup
	inv := gpu.Invocation{WorkgroupID: wid}
	for lz := uint32(0); lz < size[2]; lz++ {
		for ly := uint32(0); ly < size[1]; ly++ {
			for lx := uint32(0); lx < size[0]; lx++ {
				inv.LocalID = [3]uint32{lx, ly, lz}
				inv.GlobalID = [3]uint32{
					wid[0]*size[0] + lx,
					wid[1]*size[1] + ly,
					wid[2]*size[2] + lz,
				}
				dc.pipeline.kernel(inv, dc.group)
			}
		}
	}
}
