package mempool

import "sort"

// Evict removes the lowest-fee transactions until the pool is at or below
// maxSize, returning the count evicted.
func (p *Pool) Evict() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.txs) <= p.maxSize {
		return 0
	}

	entries := make([]*entry, 0, len(p.txs))
	for _, e := range p.txs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].fee < entries[j].fee
	})

	evicted := 0
	for len(p.txs) > p.maxSize && evicted < len(entries) {
		p.removeLocked(entries[evicted].txHash)
		evicted++
	}
	return evicted
}
