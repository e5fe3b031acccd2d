package fabric

import "fmt"

// Gather/scatter verbs move nElements extents of elementSize bytes between
// a contiguous local buffer and non-contiguous remote extents. Providers
// bound the number of extents a single posted operation may carry, so the
// helpers below chunk the extent list to iovLimit and post one vectored
// operation per chunk. Blocking variants complete every chunk before
// returning; nonblocking variants post all chunks and return.

func strideIovs(first, n, stride, elemSize uint64) []RMAIov {
	iovs := make([]RMAIov, 0, n)
	for i := uint64(0); i < n; i++ {
		iovs = append(iovs, RMAIov{
			Offset: (first + i*stride) * elemSize,
			Len:    elemSize,
		})
	}
	return iovs
}

func indexIovs(index []uint64, elemSize uint64) []RMAIov {
	iovs := make([]RMAIov, 0, len(index))
	for _, idx := range index {
		iovs = append(iovs, RMAIov{Offset: idx * elemSize, Len: elemSize})
	}
	return iovs
}

func postChunked(ep Endpoint, key uint64, local []byte, iovs []RMAIov, addr Address, iovLimit int, block, write bool) error {
	if iovLimit <= 0 {
		return fmt.Errorf("fabric: invalid iov limit %d", iovLimit)
	}
	var consumed uint64
	for start := 0; start < len(iovs); start += iovLimit {
		end := start + iovLimit
		if end > len(iovs) {
			end = len(iovs)
		}
		chunk := iovs[start:end]
		var chunkLen uint64
		for _, iov := range chunk {
			chunkLen += iov.Len
		}
		if consumed+chunkLen > uint64(len(local)) {
			return fmt.Errorf("fabric: local buffer short: need %d bytes, have %d", consumed+chunkLen, len(local))
		}
		buf := local[consumed : consumed+chunkLen]
		var err error
		if write {
			err = ep.WriteV(key, buf, chunk, addr, block)
		} else {
			err = ep.ReadV(key, buf, chunk, addr, block)
		}
		if err != nil {
			return err
		}
		consumed += chunkLen
	}
	return nil
}

// GatherStride reads nElements strided remote elements into local.
func GatherStride(ep Endpoint, key uint64, local []byte, elemSize, first, n, stride uint64, addr Address, iovLimit int, block bool) error {
	return postChunked(ep, key, local, strideIovs(first, n, stride, elemSize), addr, iovLimit, block, false)
}

// GatherIndex reads the indexed remote elements into local.
func GatherIndex(ep Endpoint, key uint64, local []byte, elemSize uint64, index []uint64, addr Address, iovLimit int, block bool) error {
	return postChunked(ep, key, local, indexIovs(index, elemSize), addr, iovLimit, block, false)
}

// ScatterStride writes local out to nElements strided remote elements.
func ScatterStride(ep Endpoint, key uint64, local []byte, elemSize, first, n, stride uint64, addr Address, iovLimit int, block bool) error {
	return postChunked(ep, key, local, strideIovs(first, n, stride, elemSize), addr, iovLimit, block, true)
}

// ScatterIndex writes local out to the indexed remote elements.
func ScatterIndex(ep Endpoint, key uint64, local []byte, elemSize uint64, index []uint64, addr Address, iovLimit int, block bool) error {
	return postChunked(ep, key, local, indexIovs(index, elemSize), addr, iovLimit, block, true)
}
