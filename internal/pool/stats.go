package pool

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	// Total is the number of live connections, idle plus active.
	Total int `json:"total"`

	// Idle connections are ready to be leased.
	Idle int `json:"idle"`

	// Active connections are leased or being opened.
	Active int `json:"active"`

	// Waiting is the number of Acquire calls blocked on a free slot.
	Waiting int `json:"waiting"`
}

// NewStats builds a snapshot.
func NewStats(total, idle, active, waiting int) Stats {
	return Stats{Total: total, Idle: idle, Active: active, Waiting: waiting}
}

// Utilization returns active/total, or 0 for an empty pool.
func (s Stats) Utilization() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Active) / float64(s.Total)
}

// IsFull reports whether every live connection is in use.
func (s Stats) IsFull() bool {
	return s.Idle == 0 && s.Total > 0
}
