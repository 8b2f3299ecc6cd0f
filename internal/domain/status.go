package domain

import "fmt"

// Status is the lifecycle stage of a question. It is always computed from the
// question's fields and never stored.
type Status int

const (
	StatusUnsolved Status = iota
	StatusSolved
	StatusIncomplete
)

func (s Status) String() string {
	switch s {
	case StatusSolved:
		return "solved"
	case StatusIncomplete:
		return "incomplete"
	default:
		return "unsolved"
	}
}

// MarshalText lets views carry the status as a string.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unsolved":
		*s = StatusUnsolved
	case "solved":
		*s = StatusSolved
	case "incomplete":
		*s = StatusIncomplete
	default:
		return fmt.Errorf("unknown status %q", text)
	}
	return nil
}

// Terminal reports whether the stage no longer needs the backend.
func (s Status) Terminal() bool {
	return s != StatusUnsolved
}

// StatusOf derives the lifecycle stage of q. Incomplete wins over any solution
// fields, since the backend skips solving for truncated questions.
func StatusOf(q Question) Status {
	if q.IsIncomplete {
		return StatusIncomplete
	}
	if q.Answer == "" && q.Analysis == "" && q.SolutionText == "" {
		return StatusUnsolved
	}
	return StatusSolved
}

// Counts tallies questions per status.
type Counts struct {
	Unsolved   int `json:"unsolved"`
	Solved     int `json:"solved"`
	Incomplete int `json:"incomplete"`
}

// Total is the number of questions counted.
func (c Counts) Total() int {
	return c.Unsolved + c.Solved + c.Incomplete
}

// CountStatuses derives Counts for qs.
func CountStatuses(qs []Question) Counts {
	var c Counts
	for _, q := range qs {
		switch StatusOf(q) {
		case StatusSolved:
			c.Solved++
		case StatusIncomplete:
			c.Incomplete++
		default:
			c.Unsolved++
		}
	}
	return c
}
