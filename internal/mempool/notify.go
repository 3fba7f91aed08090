package mempool

import "github.com/Klingon-tech/klingnet-index/pkg/types"

// StatusSink receives the HashX values whose set of touching unconfirmed
// transactions just changed, so a subscription layer can recompute and
// push out status hashes without polling the pool itself.
type StatusSink interface {
	NotifyMempoolTouched(hashXs []types.HashX)
}

type noopStatusSink struct{}

func (noopStatusSink) NotifyMempoolTouched([]types.HashX) {}
