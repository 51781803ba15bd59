package blockchain

import (
	"github.com/dario-ramos/bitprim-blockchain/util"
)

// blockLocatorHeights returns the heights sampled by a block locator:
// the last ten blocks densely, then exponentially sparse back to genesis.
func blockLocatorHeights(topHeight int32) []int32 {
	indexes := make([]int32, 0, 32)
	step := int32(1)
	for start, height := int32(0), topHeight; height > 0; height -= step {
		if start >= 10 {
			step *= 2
		}
		indexes = append(indexes, height)
		start++
	}
	indexes = append(indexes, 0)
	return indexes
}

// FetchBlockLocator assembles the locator hashes for the committed chain
// under the seqlock. Fetching stops at the first unresolvable height.
func (c *Blockchain) FetchBlockLocator() (hashes []util.Hash, err error) {
	c.seqlock.Read(func() {
		hashes = hashes[:0]
		var top int32
		top, err = c.chainDb.LastHeight()
		if err != nil || top < 0 {
			return
		}
		for _, height := range blockLocatorHeights(top) {
			header, fetchErr := c.chainDb.GetHeader(height)
			if fetchErr != nil {
				err = fetchErr
				return
			}
			hashes = append(hashes, header.GetHash())
		}
	})
	return
}
