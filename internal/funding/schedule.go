package funding

// Binance settles funding every 8 hours. Expressed in Base blocks
// (2s block time) that is one event every 14400 blocks, anchored at a
// known settlement block.
const (
	binanceCoordinationBlock = 13664526
	binanceIntervalBlocks    = 14400
	scheduledEventCount      = 3
)

// NextBinanceFundingEvents returns the next three Binance funding
// settlement events after currentBlock, as Base block heights.
func NextBinanceFundingEvents(currentBlock int64) []int64 {
	intervalsSinceAnchor := (currentBlock - binanceCoordinationBlock) / binanceIntervalBlocks
	next := binanceCoordinationBlock + (intervalsSinceAnchor+1)*binanceIntervalBlocks

	events := make([]int64, scheduledEventCount)
	for i := range events {
		events[i] = next + int64(i)*binanceIntervalBlocks
	}

	return events
}
