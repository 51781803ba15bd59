package merkleroot

import (
	"github.com/dario-ramos/bitprim-blockchain/model/tx"
	"github.com/dario-ramos/bitprim-blockchain/util"
)

/* This implements a constant-space merkle root calculator, limited to 2^32
 * leaves. */
func merkleComputation(leaves []util.Hash, root *util.Hash, pmutated *bool) {
	if len(leaves) == 0 {
		if pmutated != nil {
			*pmutated = false
		}
		if root != nil {
			*root = util.Hash{}
		}
		return
	}
	mutated := false
	// count is the number of leaves processed so far.
	count := uint32(0)
	// inner is an array of eagerly computed subtree hashes, indexed by tree
	// level (0 being the leaves). For example, when count is 25 (11001 in
	// binary), inner[4] is the hash of the first 16 leaves, inner[3] of the
	// next 8 leaves, and inner[0] equal to the last leaf. The other inner
	// entries are undefined.
	var inner [32]util.Hash
	// First process all leaves into 'inner' values.
	for int(count) < len(leaves) {
		h := leaves[count]
		count++
		level := 0
		// For each of the lower bits in count that are 0, do 1 step. Each
		// corresponds to an inner value that existed before processing the
		// current leaf, and each needs a hash to combine it.
		for ; (count & (uint32(1) << uint(level))) == 0; level++ {
			if inner[level].IsEqual(&h) {
				mutated = true
			}
			var tmp []byte
			tmp = append(tmp, inner[level][:]...)
			tmp = append(tmp, h[:]...)
			h = util.DoubleSha256Hash(tmp)
		}
		inner[level] = h
	}
	// Do a final 'sweep' over the rightmost branch of the tree to process
	// odd levels, and reduce everything to a single top value.
	level := 0
	for ; (count & (uint32(1) << uint(level))) == 0; level++ {
	}
	h := inner[level]
	for count != (uint32(1) << uint(level)) {
		// If we reach this point, h is an inner value that is not the top.
		// We combine it with itself (Bitcoin's special rule for odd levels
		// in the tree) to produce a higher level one.
		var tmp []byte
		tmp = append(tmp, h[:]...)
		tmp = append(tmp, h[:]...)
		h = util.DoubleSha256Hash(tmp)
		// Increment count to the value it would have if two entries at this
		// level had existed.
		count += uint32(1) << uint(level)
		level++
		// And propagate the result upwards accordingly.
		for ; (count & (uint32(1) << uint(level))) == 0; level++ {
			var tmp []byte
			tmp = append(tmp, inner[level][:]...)
			tmp = append(tmp, h[:]...)
			h = util.DoubleSha256Hash(tmp)
		}
	}
	if pmutated != nil {
		*pmutated = mutated
	}
	if root != nil {
		*root = h
	}
}

func ComputeMerkleRoot(leaves []util.Hash, mutated *bool) util.Hash {
	var hash util.Hash
	merkleComputation(leaves, &hash, mutated)
	return hash
}

// BlockMerkleRoot computes the merkle root over the block's transaction
// hashes. mutated reports a repeated-subtree malleation (CVE-2012-2459).
func BlockMerkleRoot(txs []*tx.Tx, mutated *bool) util.Hash {
	leaves := make([]util.Hash, len(txs))
	for i := 0; i < len(txs); i++ {
		leaves[i] = txs[i].GetHash()
	}
	return ComputeMerkleRoot(leaves, mutated)
}
