package mempool

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/klingnet-index/pkg/types"
	"github.com/Klingon-tech/klingnet-index/pkg/wire"
)

// mockConfirmed is a simple in-memory ConfirmedLookup for tests.
type mockConfirmed struct {
	txNums map[types.Hash]types.TxNum
	hashXs map[types.TxNum]map[uint32]types.HashX
}

func newMockConfirmed() *mockConfirmed {
	return &mockConfirmed{
		txNums: make(map[types.Hash]types.TxNum),
		hashXs: make(map[types.TxNum]map[uint32]types.HashX),
	}
}

func (m *mockConfirmed) add(txHash types.Hash, txNum types.TxNum, nout uint32, hx types.HashX) {
	m.txNums[txHash] = txNum
	if m.hashXs[txNum] == nil {
		m.hashXs[txNum] = make(map[uint32]types.HashX)
	}
	m.hashXs[txNum][nout] = hx
}

func (m *mockConfirmed) TxNum(txHash types.Hash) (types.TxNum, error) {
	n, ok := m.txNums[txHash]
	if !ok {
		return 0, errors.New("not found")
	}
	return n, nil
}

func (m *mockConfirmed) HashXAt(txHash types.Hash, txNum types.TxNum, nout uint32) (types.HashX, error) {
	hx, ok := m.hashXs[txNum][nout]
	if !ok {
		return types.HashX{}, errors.New("not found")
	}
	return hx, nil
}

func hashXOf(b byte) types.HashX {
	var hx types.HashX
	hx[0] = b
	return hx
}

func hashOf(b byte) types.Hash {
	var h types.Hash
	h[0] = b
	return h
}

func simpleTx(prevOut wire.Outpoint, outHashX types.HashX, nonce byte) *wire.Transaction {
	return &wire.Transaction{
		Inputs: []wire.Input{{PrevOut: prevOut}},
		Outputs: []wire.Output{
			{Value: 1000, HashX: outHashX, Kind: wire.KindRegular},
		},
		LockTime: uint64(nonce),
	}
}

func TestPoolAddTouchesOutputAndSpentHashX(t *testing.T) {
	confirmed := newMockConfirmed()
	spentTxHash := hashOf(0x01)
	confirmed.add(spentTxHash, 5, 0, hashXOf(0xAA))

	pool := New(confirmed, 100)
	transaction := simpleTx(wire.Outpoint{TxHash: spentTxHash, Index: 0}, hashXOf(0xBB), 1)

	touched, err := pool.Add(transaction)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(touched) != 2 {
		t.Fatalf("touched = %d hashXs, want 2", len(touched))
	}
	if pool.Count() != 1 {
		t.Errorf("count = %d, want 1", pool.Count())
	}
	if got := pool.TouchedBy(hashXOf(0xAA)); len(got) != 1 {
		t.Errorf("TouchedBy spent hashX = %d, want 1", len(got))
	}
	if got := pool.TouchedBy(hashXOf(0xBB)); len(got) != 1 {
		t.Errorf("TouchedBy output hashX = %d, want 1", len(got))
	}
}

func TestPoolAddDuplicate(t *testing.T) {
	confirmed := newMockConfirmed()
	pool := New(confirmed, 100)
	transaction := simpleTx(wire.Outpoint{}, hashXOf(0xBB), 1)

	if _, err := pool.Add(transaction); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if _, err := pool.Add(transaction); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestPoolChainedUnconfirmedSpend(t *testing.T) {
	confirmed := newMockConfirmed()
	pool := New(confirmed, 100)

	parent := simpleTx(wire.Outpoint{}, hashXOf(0xCC), 1)
	if _, err := pool.Add(parent); err != nil {
		t.Fatalf("Add parent: %v", err)
	}

	child := simpleTx(wire.Outpoint{TxHash: parent.Hash(), Index: 0}, hashXOf(0xDD), 2)
	touched, err := pool.Add(child)
	if err != nil {
		t.Fatalf("Add child: %v", err)
	}
	found := false
	for _, hx := range touched {
		if hx == hashXOf(0xCC) {
			found = true
		}
	}
	if !found {
		t.Error("child should resolve parent's unconfirmed output hashX without a confirmed lookup")
	}
}

func TestPoolRemove(t *testing.T) {
	confirmed := newMockConfirmed()
	pool := New(confirmed, 100)
	transaction := simpleTx(wire.Outpoint{}, hashXOf(0xBB), 1)
	pool.Add(transaction)

	pool.Remove(transaction.Hash())
	if pool.Count() != 0 {
		t.Errorf("count = %d, want 0", pool.Count())
	}
	if pool.Has(transaction.Hash()) {
		t.Error("Has should return false after Remove")
	}
	if len(pool.TouchedBy(hashXOf(0xBB))) != 0 {
		t.Error("TouchedBy should be empty after Remove")
	}
}

func TestPoolRemoveConfirmed(t *testing.T) {
	confirmed := newMockConfirmed()
	pool := New(confirmed, 100)
	tx1 := simpleTx(wire.Outpoint{}, hashXOf(0x01), 1)
	tx2 := simpleTx(wire.Outpoint{}, hashXOf(0x02), 2)
	pool.Add(tx1)
	pool.Add(tx2)

	pool.RemoveConfirmed([]types.Hash{tx1.Hash()})
	if pool.Count() != 1 {
		t.Errorf("count = %d, want 1", pool.Count())
	}
	if pool.Has(tx1.Hash()) {
		t.Error("tx1 should be removed")
	}
	if !pool.Has(tx2.Hash()) {
		t.Error("tx2 should still be present")
	}
}

func TestPoolFullRejectsAdd(t *testing.T) {
	confirmed := newMockConfirmed()
	pool := New(confirmed, 1)
	pool.Add(simpleTx(wire.Outpoint{}, hashXOf(0x01), 1))

	_, err := pool.Add(simpleTx(wire.Outpoint{}, hashXOf(0x02), 2))
	if !errors.Is(err, ErrPoolFull) {
		t.Errorf("expected ErrPoolFull, got %v", err)
	}
}

func TestPoolEvictOldest(t *testing.T) {
	confirmed := newMockConfirmed()
	pool := New(confirmed, 5)
	for i := byte(1); i <= 5; i++ {
		if _, err := pool.Add(simpleTx(wire.Outpoint{}, hashXOf(i), i)); err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}

	pool.maxSize = 3
	evicted := pool.Evict()
	if evicted != 2 {
		t.Errorf("evicted = %d, want 2", evicted)
	}
	if pool.Count() != 3 {
		t.Errorf("count after evict = %d, want 3", pool.Count())
	}
}

func TestPoolStatusSinkNotifiedOnAddAndRemove(t *testing.T) {
	confirmed := newMockConfirmed()
	pool := New(confirmed, 100)
	sink := &fakeStatusSink{}
	pool.SetStatusSink(sink)

	transaction := simpleTx(wire.Outpoint{}, hashXOf(0x01), 1)
	pool.Add(transaction)
	pool.Remove(transaction.Hash())

	if len(sink.calls) != 2 {
		t.Fatalf("sink notified %d times, want 2", len(sink.calls))
	}
}

type fakeStatusSink struct {
	calls [][]types.HashX
}

func (f *fakeStatusSink) NotifyMempoolTouched(hashXs []types.HashX) {
	f.calls = append(f.calls, hashXs)
}

func TestPolicyRejectsOversizedTransaction(t *testing.T) {
	confirmed := newMockConfirmed()
	pool := New(confirmed, 100)
	pool.SetPolicy(&Policy{MaxTxSize: 1})

	_, err := pool.Add(simpleTx(wire.Outpoint{}, hashXOf(0x01), 1))
	if err == nil {
		t.Error("oversized transaction should be rejected by policy")
	}
}
