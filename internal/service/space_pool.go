package service

import "fmt"

// SpacePool enumerates the fixed set of spaces 1..N. Occupancy is always derived from
// reservations, never stored here.
type SpacePool struct {
	size int
}

func NewSpacePool(n int) (*SpacePool, error) {
	if n <= 0 {
		return nil, fmt.Errorf("space pool size must be positive, got %d", n)
	}
	return &SpacePool{size: n}, nil
}

func (p *SpacePool) Size() int { return p.size }

func (p *SpacePool) Contains(id int) bool {
	return id >= 1 && id <= p.size
}

// Available returns the ids not present in occupied, in ascending order.
func (p *SpacePool) Available(occupied map[int]struct{}) []int {
	free := make([]int, 0, p.size)
	for id := 1; id <= p.size; id++ {
		if _, taken := occupied[id]; !taken {
			free = append(free, id)
		}
	}
	return free
}
