package chaindb

import (
	"bytes"
	"encoding/binary"

	lvldb "github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/pkg/errors"

	"github.com/dario-ramos/bitprim-blockchain/errcode"
	"github.com/dario-ramos/bitprim-blockchain/log"
	"github.com/dario-ramos/bitprim-blockchain/model/block"
	"github.com/dario-ramos/bitprim-blockchain/model/tx"
	"github.com/dario-ramos/bitprim-blockchain/util"
)

const (
	dbBlock     byte = 'b'
	dbBlockHash byte = 'h'
	dbTxIndex   byte = 't'
	dbLastBlock byte = 'l'
)

// ChainDb stores the committed chain: block bodies by height, a hash to
// height index and a transaction index. It backs the chain view adapter.
type ChainDb struct {
	db          *lvldb.DB
	writeOption opt.WriteOptions
}

func getOptions(cacheSize int) *opt.Options {
	var opts opt.Options
	opts.BlockCacher = opt.LRUCacher
	opts.BlockCacheCapacity = cacheSize / 2
	opts.WriteBuffer = cacheSize / 4
	opts.Filter = filter.NewBloomFilter(10)
	opts.Compression = opt.NoCompression
	return &opts
}

func NewChainDb(path string, cacheSize int) (*ChainDb, error) {
	db, err := lvldb.OpenFile(path, getOptions(cacheSize))
	if err != nil {
		return nil, errors.Wrap(err, "open chain db")
	}
	return &ChainDb{db: db}, nil
}

func (c *ChainDb) Close() error {
	return c.db.Close()
}

func blockKey(height int32) []byte {
	key := make([]byte, 5)
	key[0] = dbBlock
	binary.BigEndian.PutUint32(key[1:], uint32(height))
	return key
}

func hashKey(prefix byte, hash *util.Hash) []byte {
	key := make([]byte, 1+util.Hash256Size)
	key[0] = prefix
	copy(key[1:], hash[:])
	return key
}

// LastHeight returns the height of the chain tip, -1 for an empty chain.
func (c *ChainDb) LastHeight() (int32, error) {
	value, err := c.db.Get([]byte{dbLastBlock}, nil)
	if err == lvldb.ErrNotFound {
		return -1, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "read last height")
	}
	return int32(binary.LittleEndian.Uint32(value)), nil
}

func (c *ChainDb) GetBlockByHeight(height int32) (*block.Block, error) {
	value, err := c.db.Get(blockKey(height), nil)
	if err == lvldb.ErrNotFound {
		return nil, errcode.New(errcode.ErrorNotFound)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read block")
	}
	bl := block.NewBlock()
	if err := bl.Decode(bytes.NewReader(value)); err != nil {
		return nil, errors.Wrap(err, "decode block")
	}
	return bl, nil
}

func (c *ChainDb) GetBlockByHash(hash *util.Hash) (*block.Block, error) {
	value, err := c.db.Get(hashKey(dbBlockHash, hash), nil)
	if err == lvldb.ErrNotFound {
		return nil, errcode.New(errcode.ErrorNotFound)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read block hash index")
	}
	return c.GetBlockByHeight(int32(binary.LittleEndian.Uint32(value)))
}

func (c *ChainDb) GetHeader(height int32) (*block.BlockHeader, error) {
	bl, err := c.GetBlockByHeight(height)
	if err != nil {
		return nil, err
	}
	header := bl.Header
	return &header, nil
}

// GetTransaction resolves a transaction and the height of the block holding
// it through the transaction index.
func (c *ChainDb) GetTransaction(hash *util.Hash) (*tx.Tx, int32, error) {
	value, err := c.db.Get(hashKey(dbTxIndex, hash), nil)
	if err == lvldb.ErrNotFound {
		return nil, 0, errcode.New(errcode.ErrorNotFound)
	}
	if err != nil {
		return nil, 0, errors.Wrap(err, "read tx index")
	}
	height := int32(binary.LittleEndian.Uint32(value[:4]))
	txIndex := binary.LittleEndian.Uint32(value[4:8])

	bl, err := c.GetBlockByHeight(height)
	if err != nil {
		return nil, 0, err
	}
	if txIndex >= uint32(len(bl.Txs)) {
		return nil, 0, errcode.New(errcode.ErrorNotFound)
	}
	return bl.Txs[txIndex], height, nil
}

func (c *ChainDb) TransactionExists(hash *util.Hash) (bool, error) {
	_, err := c.db.Get(hashKey(dbTxIndex, hash), nil)
	if err == lvldb.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "read tx index")
	}
	return true, nil
}

// Push appends the block as the new tip and indexes its transactions.
func (c *ChainDb) Push(bl *block.Block) (int32, error) {
	last, err := c.LastHeight()
	if err != nil {
		return 0, err
	}
	height := last + 1

	raw, err := bl.SerializeToBytes()
	if err != nil {
		return 0, errors.Wrap(err, "serialize block")
	}

	var heightValue [4]byte
	binary.LittleEndian.PutUint32(heightValue[:], uint32(height))

	batch := new(lvldb.Batch)
	batch.Put(blockKey(height), raw)
	blockHash := bl.GetHash()
	batch.Put(hashKey(dbBlockHash, &blockHash), heightValue[:])
	for i, transaction := range bl.Txs {
		var txValue [8]byte
		binary.LittleEndian.PutUint32(txValue[:4], uint32(height))
		binary.LittleEndian.PutUint32(txValue[4:], uint32(i))
		txHash := transaction.GetHash()
		batch.Put(hashKey(dbTxIndex, &txHash), txValue[:])
	}
	batch.Put([]byte{dbLastBlock}, heightValue[:])

	if err := c.db.Write(batch, &c.writeOption); err != nil {
		return 0, errors.Wrap(err, "write block batch")
	}
	log.Debug("chaindb: pushed block %s at height %d", blockHash.String(), height)
	return height, nil
}

// Pop removes the tip block and its indexes, returning it.
func (c *ChainDb) Pop() (*block.Block, error) {
	last, err := c.LastHeight()
	if err != nil {
		return nil, err
	}
	if last < 0 {
		return nil, errcode.New(errcode.ErrorNotFound)
	}
	bl, err := c.GetBlockByHeight(last)
	if err != nil {
		return nil, err
	}

	batch := new(lvldb.Batch)
	batch.Delete(blockKey(last))
	blockHash := bl.GetHash()
	batch.Delete(hashKey(dbBlockHash, &blockHash))
	for _, transaction := range bl.Txs {
		txHash := transaction.GetHash()
		batch.Delete(hashKey(dbTxIndex, &txHash))
	}
	if last == 0 {
		batch.Delete([]byte{dbLastBlock})
	} else {
		var heightValue [4]byte
		binary.LittleEndian.PutUint32(heightValue[:], uint32(last-1))
		batch.Put([]byte{dbLastBlock}, heightValue[:])
	}

	if err := c.db.Write(batch, &c.writeOption); err != nil {
		return nil, errors.Wrap(err, "write pop batch")
	}
	log.Debug("chaindb: popped block %s from height %d", blockHash.String(), last)
	return bl, nil
}
