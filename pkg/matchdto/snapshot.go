package matchdto

import "time"

type PieceCount struct {
	Attackers int  `json:"attackers"`
	Defenders int  `json:"defenders"`
	King      bool `json:"king"`
}

// Snapshot is a value copy of a running match, safe to hand to other goroutines.
type Snapshot struct {
	SessionUUID string     `json:"session_uuid"`
	MatchID     string     `json:"match_id"`
	Role        string     `json:"role"`
	Turn        string     `json:"turn"`
	Status      string     `json:"status"`
	Rows        []string   `json:"rows"`  // rank 11 first; A, D, K and '.'
	Moves       []string   `json:"moves"` // "d4-d9" form, both sides
	Pieces      PieceCount `json:"pieces"`
	Fallbacks   int        `json:"fallbacks"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Clone deep-copies the slices.
func (s Snapshot) Clone() Snapshot {
	s.Rows = append([]string(nil), s.Rows...)
	s.Moves = append([]string(nil), s.Moves...)
	return s
}
