package blockchain

import (
	"sync"

	"github.com/dario-ramos/bitprim-blockchain/conf"
	"github.com/dario-ramos/bitprim-blockchain/errcode"
	"github.com/dario-ramos/bitprim-blockchain/log"
	"github.com/dario-ramos/bitprim-blockchain/logic/lblock"
	"github.com/dario-ramos/bitprim-blockchain/logic/lchain"
	"github.com/dario-ramos/bitprim-blockchain/model/block"
	"github.com/dario-ramos/bitprim-blockchain/model/chainparams"
	"github.com/dario-ramos/bitprim-blockchain/model/outpoint"
	"github.com/dario-ramos/bitprim-blockchain/persist"
	"github.com/dario-ramos/bitprim-blockchain/persist/chaindb"
	"github.com/dario-ramos/bitprim-blockchain/utxo"
)

const chainDbCacheSize = 8 << 20

// ReorganizeListener observes committed chain replacements: the fork
// height, the blocks removed from the old branch and the blocks of the new
// one.
type ReorganizeListener func(forkHeight int32, removed, added []*block.Block)

// Blockchain owns the database directory: the chain store, the utxo index,
// the advisory directory lock and the seqlock coordinating readers with the
// single writer strand. One live instance per directory.
type Blockchain struct {
	cfg      *conf.Configuration
	params   *chainparams.BitcoinParams
	verifier lblock.ScriptVerifier
	stopped  lblock.StoppedCallback

	dirLock   *persist.DirLock
	chainDb   *chaindb.ChainDb
	utxoIndex *utxo.UtxoIndex
	seqlock   SeqLock

	writerCh chan func()
	writerWg sync.WaitGroup
	writerOk bool

	listenerMtx sync.Mutex
	listeners   []ReorganizeListener
}

func NewBlockchain(cfg *conf.Configuration, params *chainparams.BitcoinParams,
	verifier lblock.ScriptVerifier, stopped lblock.StoppedCallback) *Blockchain {
	if stopped == nil {
		stopped = func() bool { return false }
	}
	return &Blockchain{
		cfg:      cfg,
		params:   params,
		verifier: verifier,
		stopped:  stopped,
	}
}

// Start acquires the directory lock, opens the stores and launches the
// writer strand. A fresh utxo file is created with the configured bucket
// count; an existing one is validated.
func (c *Blockchain) Start() error {
	dirLock, err := persist.AcquireDirLock(c.cfg.LockFilePath())
	if err != nil {
		return err
	}
	c.dirLock = dirLock

	c.chainDb, err = chaindb.NewChainDb(c.cfg.ChainDbPath(), chainDbCacheSize)
	if err != nil {
		c.dirLock.Release()
		return err
	}

	c.utxoIndex, err = utxo.NewUtxoIndex(c.cfg.UtxoFilePath(), c.cfg.LoadFactorWarn)
	if err != nil {
		c.chainDb.Close()
		c.dirLock.Release()
		return err
	}
	if err := c.utxoIndex.Start(); err != nil {
		log.Info("utxo index not initialized, creating with %d buckets", c.cfg.UtxoBuckets)
		if err := c.utxoIndex.Create(uint32(c.cfg.UtxoBuckets)); err != nil {
			c.utxoIndex.Close()
			c.chainDb.Close()
			c.dirLock.Release()
			return err
		}
	}

	c.writerCh = make(chan func())
	c.writerOk = true
	c.writerWg.Add(1)
	go c.writerLoop()
	return nil
}

// Stop drains the writer, closes the stores and releases the directory
// lock.
func (c *Blockchain) Stop() {
	if c.writerCh != nil {
		close(c.writerCh)
		c.writerWg.Wait()
		c.writerCh = nil
	}
	if c.utxoIndex != nil {
		c.utxoIndex.Close()
		c.utxoIndex = nil
	}
	if c.chainDb != nil {
		c.chainDb.Close()
		c.chainDb = nil
	}
	if c.dirLock != nil {
		c.dirLock.Release()
		c.dirLock = nil
	}
}

func (c *Blockchain) writerLoop() {
	defer c.writerWg.Done()
	for work := range c.writerCh {
		work()
	}
}

// runWrite serializes work onto the writer strand and waits for it.
func (c *Blockchain) runWrite(work func() error) error {
	done := make(chan error, 1)
	c.writerCh <- func() {
		c.seqlock.BeginWrite()
		err := work()
		c.seqlock.EndWrite()
		done <- err
	}
	return <-done
}

func (c *Blockchain) SubscribeReorganize(listener ReorganizeListener) {
	c.listenerMtx.Lock()
	defer c.listenerMtx.Unlock()
	c.listeners = append(c.listeners, listener)
}

func (c *Blockchain) notifyReorganize(forkHeight int32, removed, added []*block.Block) {
	c.listenerMtx.Lock()
	listeners := make([]ReorganizeListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.listenerMtx.Unlock()
	for _, listener := range listeners {
		listener(forkHeight, removed, added)
	}
}

// LastHeight reads the committed tip height under the seqlock.
func (c *Blockchain) LastHeight() (height int32, err error) {
	c.seqlock.Read(func() {
		height, err = c.chainDb.LastHeight()
	})
	return
}

// GetBlockByHeight reads a committed block under the seqlock.
func (c *Blockchain) GetBlockByHeight(height int32) (bl *block.Block, err error) {
	c.seqlock.Read(func() {
		bl, err = c.chainDb.GetBlockByHeight(height)
	})
	return
}

// Store validates the candidate as the next block of the committed chain
// and connects it. The block's previous hash must reference the current
// tip; fork resolution across branches goes through ReplaceChain.
func (c *Blockchain) Store(bl *block.Block) error {
	return c.runWrite(func() error {
		last, err := c.chainDb.LastHeight()
		if err != nil {
			return err
		}
		if last >= 0 {
			tipHeader, err := c.chainDb.GetHeader(last)
			if err != nil {
				return err
			}
			tipHash := tipHeader.GetHash()
			if !bl.Header.HashPrevBlock.IsEqual(&tipHash) {
				return errcode.New(errcode.ErrorNotFound)
			}
		}
		return c.connectTip(last, []*block.Block{bl}, 0)
	})
}

// Import appends a block without validation, for bootstrapping from a
// trusted source. Spend records and durability follow the same path as
// Store.
func (c *Blockchain) Import(bl *block.Block) error {
	return c.runWrite(func() error {
		return c.applyBlock(bl)
	})
}

// ReplaceChain reorganizes: every block above forkHeight is disconnected
// and the branch blocks are validated and connected in order. Listeners are
// notified once the replacement is durable.
func (c *Blockchain) ReplaceChain(forkHeight int32, branch []*block.Block) error {
	if len(branch) == 0 {
		return errcode.New(errcode.ErrorNotFound)
	}
	return c.runWrite(func() error {
		for orphanIndex := range branch {
			if err := c.validateBranchBlock(forkHeight, branch, orphanIndex); err != nil {
				return err
			}
		}

		removed, err := c.disconnectAbove(forkHeight)
		if err != nil {
			return err
		}
		for _, bl := range branch {
			if err := c.applyBlock(bl); err != nil {
				return err
			}
		}
		c.notifyReorganize(forkHeight, removed, branch)
		return nil
	})
}

// validateBranchBlock runs all three phases for branch[orphanIndex] against
// the committed prefix plus the earlier branch blocks.
func (c *Blockchain) validateBranchBlock(forkHeight int32, branch []*block.Block, orphanIndex int) error {
	height := forkHeight + int32(orphanIndex) + 1
	view := lchain.NewChainView(c.chainDb, c.utxoIndex, forkHeight, branch, orphanIndex)
	validator := lblock.NewBlockValidator(height, branch[orphanIndex], c.params,
		view, c.verifier, c.stopped)

	if err := validator.CheckBlock(); err != nil {
		return err
	}
	if err := validator.InitializeContext(); err != nil {
		return err
	}
	if err := validator.AcceptBlock(); err != nil {
		return err
	}
	return validator.ConnectBlock()
}

// connectTip validates branch[orphanIndex] as the next tip and applies it.
func (c *Blockchain) connectTip(forkHeight int32, branch []*block.Block, orphanIndex int) error {
	if err := c.validateBranchBlock(forkHeight, branch, orphanIndex); err != nil {
		return err
	}
	return c.applyBlock(branch[orphanIndex])
}

// applyBlock pushes the block and records every non-coinbase input's spend,
// then makes the turn durable with a single sync. A block is connected iff
// its mutations are durable.
func (c *Blockchain) applyBlock(bl *block.Block) error {
	if _, err := c.chainDb.Push(bl); err != nil {
		return err
	}
	for _, transaction := range bl.Txs {
		if transaction.IsCoinBase() {
			continue
		}
		txHash := transaction.GetHash()
		for inputIndex, input := range transaction.GetIns() {
			inPoint := outpoint.NewInPoint(txHash, uint32(inputIndex))
			if err := c.utxoIndex.Store(input.PreviousOutPoint, inPoint); err != nil {
				return err
			}
		}
	}
	return c.utxoIndex.Sync()
}

// disconnectAbove pops blocks down to forkHeight, removing their spend
// records, and returns them tip-first.
func (c *Blockchain) disconnectAbove(forkHeight int32) ([]*block.Block, error) {
	var removed []*block.Block
	for {
		last, err := c.chainDb.LastHeight()
		if err != nil {
			return nil, err
		}
		if last <= forkHeight {
			break
		}
		bl, err := c.chainDb.Pop()
		if err != nil {
			return nil, err
		}
		for _, transaction := range bl.Txs {
			if transaction.IsCoinBase() {
				continue
			}
			for _, input := range transaction.GetIns() {
				if err := c.utxoIndex.Remove(input.PreviousOutPoint); err != nil {
					return nil, err
				}
			}
		}
		removed = append(removed, bl)
	}
	if len(removed) > 0 {
		if err := c.utxoIndex.Sync(); err != nil {
			return nil, err
		}
	}
	return removed, nil
}
