package consensus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/trinitychain/trinitychain/pkg/block"
	"github.com/trinitychain/trinitychain/pkg/crypto"
)

// PoW errors.
var (
	ErrInsufficientWork = errors.New("hash does not meet difficulty target")
	ErrZeroDifficulty   = errors.New("difficulty must be > 0")
	ErrBadDifficulty    = errors.New("block difficulty does not match expected")
)

// maxTarget is 2^256 - 1, spec.md §4.5's MAX_TARGET.
var maxTarget = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// PoW implements TrinityChain's proof-of-work consensus: difficulty lives
// in the block header and is consensus-enforced, so the engine itself
// holds no mutable chain state — only the parameters governing sealing
// and retargeting.
type PoW struct {
	InitialDifficulty uint64 // Genesis difficulty.
	DifficultyWindow  uint64 // Blocks between retargets (0 = never retarget).
	TargetBlockTime   uint64 // Target seconds between blocks.
	MinDifficulty     uint64 // Floor difficulty can never retarget below.

	// DifficultyFn computes the expected difficulty for a new block from
	// its height, when set by the node operator. If nil, Prepare uses
	// InitialDifficulty.
	DifficultyFn func(height uint64) uint64

	// Threads controls the number of parallel mining goroutines. 0 or 1
	// means single-threaded; each goroutine above that searches a
	// strided partition of the nonce space, per spec.md §4.7.
	Threads int
}

// NewPoW creates a new PoW engine.
func NewPoW(difficulty, difficultyWindow, targetBlockTime, minDifficulty uint64) (*PoW, error) {
	if difficulty == 0 {
		return nil, ErrZeroDifficulty
	}
	return &PoW{
		InitialDifficulty: difficulty,
		DifficultyWindow:  difficultyWindow,
		TargetBlockTime:   targetBlockTime,
		MinDifficulty:     minDifficulty,
	}, nil
}

// ShouldAdjust returns true if difficulty should be recalculated once the
// block at this height is appended (spec.md §4.5: retarget fires when
// `(new_height + 1) mod DIFFICULTY_WINDOW == 0`).
func (p *PoW) ShouldAdjust(height uint64) bool {
	return p.DifficultyWindow > 0 && (height+1)%p.DifficultyWindow == 0
}

// target returns maxTarget / difficulty as a 256-bit big.Int.
func target(difficulty uint64) *big.Int {
	d := new(big.Int).SetUint64(difficulty)
	return new(big.Int).Div(maxTarget, d)
}

// Work returns a block's contribution to cumulative chain work, per
// spec.md §4.5's fork-choice rule: work(block) = MAX_TARGET / target(difficulty).
// Lower target (higher difficulty) means more work per block.
func Work(difficulty uint64) *big.Int {
	if difficulty == 0 {
		return big.NewInt(0)
	}
	t := target(difficulty)
	if t.Sign() == 0 {
		return new(big.Int).Set(maxTarget)
	}
	return new(big.Int).Div(maxTarget, t)
}

// VerifyHeader checks that the block header hash meets the stated
// difficulty. The difficulty value comes from the header itself.
func (p *PoW) VerifyHeader(header *block.Header) error {
	if header.Difficulty == 0 {
		return ErrZeroDifficulty
	}
	t := target(header.Difficulty)
	hash := crypto.Hash(header.SigningBytes())
	hashInt := new(big.Int).SetBytes(hash[:])
	if hashInt.Cmp(t) > 0 {
		return ErrInsufficientWork
	}
	return nil
}

// Prepare sets the block header's difficulty for mining.
func (p *PoW) Prepare(header *block.Header) error {
	if p.DifficultyFn != nil {
		header.Difficulty = p.DifficultyFn(header.Height)
	} else {
		header.Difficulty = p.InitialDifficulty
	}
	return nil
}

// Seal mines the block by iterating the nonce until the header hash meets
// the target already set in the header.
func (p *PoW) Seal(blk *block.Block) error {
	return p.SealWithCancel(context.Background(), blk)
}

// SealWithCancel mines the block with cancellation support. When the
// context is cancelled, mining stops and ctx.Err() is returned. If
// Threads > 1, mining runs in parallel goroutines with strided nonce
// partitioning.
func (p *PoW) SealWithCancel(ctx context.Context, blk *block.Block) error {
	if blk == nil || blk.Header == nil {
		return fmt.Errorf("nil block or header")
	}
	if blk.Header.Difficulty == 0 {
		return ErrZeroDifficulty
	}

	if p.Threads > 1 {
		return p.sealParallel(ctx, blk, p.Threads)
	}
	return p.sealSingle(ctx, blk)
}

// signingPrefix returns the header's signing bytes without the trailing
// nonce, so each mining goroutine can pre-compute the fixed prefix once
// and only append+hash the 8-byte nonce per iteration.
func signingPrefix(h *block.Header) []byte {
	buf := make([]byte, 0, block.HeaderSize)
	buf = binary.LittleEndian.AppendUint64(buf, h.Height)
	buf = append(buf, h.PreviousHash[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(h.Timestamp))
	buf = binary.LittleEndian.AppendUint64(buf, h.Difficulty)
	return buf
}

// signingSuffix returns the bytes that follow the nonce in the header
// encoding (the Merkle root), appended after the nonce in sealSingle/
// sealParallel's scratch buffer.
func signingSuffix(h *block.Header) []byte {
	return h.MerkleRoot[:]
}

// sealSingle mines with a single goroutine.
func (p *PoW) sealSingle(ctx context.Context, blk *block.Block) error {
	t := target(blk.Header.Difficulty)
	prefix := signingPrefix(blk.Header)
	suffix := signingSuffix(blk.Header)
	buf := make([]byte, len(prefix)+8+len(suffix))
	copy(buf, prefix)
	copy(buf[len(prefix)+8:], suffix)
	hashInt := new(big.Int)

	for nonce := uint64(0); ; nonce++ {
		if nonce&0xFFFF == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		binary.LittleEndian.PutUint64(buf[len(prefix):], nonce)
		hash := crypto.Hash(buf)
		hashInt.SetBytes(hash[:])
		if hashInt.Cmp(t) <= 0 {
			blk.Header.Nonce = nonce
			return nil
		}
		if nonce == ^uint64(0) {
			return fmt.Errorf("nonce space exhausted")
		}
	}
}

// sealParallel mines with multiple goroutines, each searching a strided
// partition of the nonce space (goroutine i starts at nonce=i, step=threads).
func (p *PoW) sealParallel(ctx context.Context, blk *block.Block, threads int) error {
	t := target(blk.Header.Difficulty)
	prefix := signingPrefix(blk.Header)
	suffix := signingSuffix(blk.Header)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		nonce uint64
		err   error
	}
	found := make(chan result, 1)

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		startNonce := uint64(i)
		stride := uint64(threads)
		go func() {
			defer wg.Done()
			buf := make([]byte, len(prefix)+8+len(suffix))
			copy(buf, prefix)
			copy(buf[len(prefix)+8:], suffix)
			hashInt := new(big.Int)

			for nonce := startNonce; ; nonce += stride {
				if (nonce/stride)&0xFFFF == 0 && nonce > 0 {
					select {
					case <-ctx.Done():
						return
					default:
					}
				}

				binary.LittleEndian.PutUint64(buf[len(prefix):], nonce)
				hash := crypto.Hash(buf)
				hashInt.SetBytes(hash[:])
				if hashInt.Cmp(t) <= 0 {
					select {
					case found <- result{nonce: nonce}:
					default:
					}
					cancel()
					return
				}

				if nonce > ^uint64(0)-stride {
					select {
					case found <- result{err: fmt.Errorf("nonce space exhausted")}:
					default:
					}
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(found)
	}()

	select {
	case r, ok := <-found:
		if !ok {
			return fmt.Errorf("nonce space exhausted")
		}
		if r.err != nil {
			return r.err
		}
		blk.Header.Nonce = r.nonce
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExpectedDifficulty computes the correct difficulty for a block at the
// given height. prevDifficulty is the difficulty of the block at
// height-1 (0 for height <= 0). getTimestamp retrieves a block's
// timestamp by height, used at retarget boundaries.
func (p *PoW) ExpectedDifficulty(height uint64, prevDifficulty uint64, getTimestamp func(uint64) (int64, error)) uint64 {
	if height == 0 || prevDifficulty == 0 {
		return p.InitialDifficulty
	}
	if !p.ShouldAdjust(height - 1) {
		return prevDifficulty
	}

	window := p.DifficultyWindow
	startTS, err := getTimestamp(height - window)
	if err != nil {
		return prevDifficulty
	}
	endTS, err := getTimestamp(height - 1)
	if err != nil {
		return prevDifficulty
	}

	actual := endTS - startTS
	expected := int64(window * p.TargetBlockTime)
	return CalcNextDifficulty(prevDifficulty, actual, expected, p.MinDifficulty)
}

// VerifyDifficulty checks that a block header's stated difficulty matches
// the expected difficulty computed from chain history.
func (p *PoW) VerifyDifficulty(header *block.Header, prevDifficulty uint64, getTimestamp func(uint64) (int64, error)) error {
	expected := p.ExpectedDifficulty(header.Height, prevDifficulty, getTimestamp)
	if header.Difficulty != expected {
		return fmt.Errorf("%w: height %d has difficulty %d, want %d",
			ErrBadDifficulty, header.Height, header.Difficulty, expected)
	}
	return nil
}

// CalcNextDifficulty computes the new difficulty after a retarget period,
// per spec.md §4.5: adjustment = expected_time / actual_time, clamped to
// [1/4, 4], new_difficulty = round_half_up(old_difficulty * adjustment),
// clamped to [minDifficulty, u64::MAX]. Entirely integer arithmetic —
// the clamp is applied to actualTimeSpan (equivalent to clamping the
// ratio, since expected is fixed) so no fractional adjustment value is
// ever materialized.
func CalcNextDifficulty(oldDifficulty uint64, actualTimeSpan, expectedTimeSpan int64, minDifficulty uint64) uint64 {
	if actualTimeSpan <= 0 {
		actualTimeSpan = 1
	}
	if expectedTimeSpan <= 0 {
		expectedTimeSpan = 1
	}

	minSpan := expectedTimeSpan / 4
	if minSpan == 0 {
		minSpan = 1
	}
	maxSpan := expectedTimeSpan * 4
	if actualTimeSpan < minSpan {
		actualTimeSpan = minSpan
	}
	if actualTimeSpan > maxSpan {
		actualTimeSpan = maxSpan
	}

	old := new(big.Int).SetUint64(oldDifficulty)
	expected := big.NewInt(expectedTimeSpan)
	actual := big.NewInt(actualTimeSpan)

	numerator := new(big.Int).Mul(old, expected)
	quotient, remainder := new(big.Int).QuoRem(numerator, actual, new(big.Int))

	// Round half toward positive infinity: bump up when the remainder is
	// at least half the divisor.
	doubled := new(big.Int).Lsh(remainder, 1)
	if doubled.CmpAbs(actual) >= 0 {
		quotient.Add(quotient, big.NewInt(1))
	}

	if min := new(big.Int).SetUint64(minDifficulty); quotient.Cmp(min) < 0 {
		return minDifficulty
	}
	maxUint64 := new(big.Int).SetUint64(^uint64(0))
	if quotient.Cmp(maxUint64) > 0 {
		return ^uint64(0)
	}
	if quotient.Sign() < 0 {
		return minDifficulty
	}
	return quotient.Uint64()
}
