package orchestrator

import "github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"

// recentBuffer keeps the newest executions first and drops the oldest past size.
type recentBuffer struct {
	size  int
	items []order.Execution
}

func newRecentBuffer(size int) *recentBuffer {
	if size <= 0 {
		size = 50
	}
	return &recentBuffer{size: size, items: make([]order.Execution, 0, size)}
}

func (b *recentBuffer) push(e order.Execution) {
	if len(b.items) < b.size {
		b.items = append(b.items, order.Execution{})
	}
	copy(b.items[1:], b.items[:len(b.items)-1])
	b.items[0] = e
}

func (b *recentBuffer) snapshot() []order.Execution {
	out := make([]order.Execution, len(b.items))
	copy(out, b.items)
	return out
}
