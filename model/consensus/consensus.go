package consensus

const (
	// MaxBlockSize is the serialized block size cap in bytes.
	MaxBlockSize = 1000000

	// MaxBlockSigOpsCount caps signature operations per block.
	MaxBlockSigOpsCount = MaxBlockSize / 50

	// CoinbaseMaturity is the depth a coinbase must reach before its
	// outputs can be spent.
	CoinbaseMaturity = 100

	// MedianTimePastBlocks is the sample size for the past-median-time rule.
	MedianTimePastBlocks = 11
)
