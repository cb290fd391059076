// Package mergelog extracts merge decisions and their simulation rewards from
// a search log.
//
// A reward line always comes before the identifier line it belongs to. The
// scanner keeps the most recent unmatched reward and emits it together with
// the next identifier line. Identifier lines without a pending reward are
// dropped. Timestamp markers seen since the previous event are attached to
// the event; a missing marker leaves the timing invalid.
package mergelog

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/moolen/mergetrace/internal/searchgraph"
)

const maxLineBytes = 16 * 1024 * 1024

// Event is one merge decision paired with the reward of its simulation.
type Event struct {
	Vars       searchgraph.VarSet
	Reward     float64
	Timing     searchgraph.Timing
	Line       int
	RewardLine int
}

// ScanStats counts what the scanner saw.
type ScanStats struct {
	Lines     int
	Events    int
	Unmatched int
	Malformed int
}

// Scanner reads events lazily. It cannot be restarted.
type Scanner struct {
	lines *bufio.Scanner
	m     *matcher

	line       int
	pending    bool
	reward     float64
	rewardLine int
	markers    [markerCount]float64
	markerSeen [markerCount]bool

	event Event
	stats ScanStats
	err   error
}

// NewScanner returns a scanner over r using patterns p.
func NewScanner(r io.Reader, p Patterns) (*Scanner, error) {
	m, err := p.compile()
	if err != nil {
		return nil, err
	}
	lines := bufio.NewScanner(r)
	lines.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Scanner{lines: lines, m: m}, nil
}

// Next advances to the next event. It returns false at end of input or on a
// read error, which Err then reports.
func (s *Scanner) Next() bool {
	for s.lines.Scan() {
		s.line++
		s.stats.Lines++
		if s.handle(s.lines.Text()) {
			s.stats.Events++
			return true
		}
	}
	s.err = s.lines.Err()
	return false
}

// Event returns the event produced by the last successful Next.
func (s *Scanner) Event() Event { return s.event }

// Err returns the first read error.
func (s *Scanner) Err() error { return s.err }

// Stats returns the counters accumulated so far.
func (s *Scanner) Stats() ScanStats { return s.stats }

// handle processes one line and reports whether it completed an event.
func (s *Scanner) handle(text string) bool {
	if match := s.m.merge.FindStringSubmatch(text); match != nil {
		if !s.pending {
			s.stats.Unmatched++
			return false
		}
		vars, ok := parseVars(match[1])
		if !ok {
			s.stats.Malformed++
			return false
		}
		s.event = Event{
			Vars:       vars,
			Reward:     s.reward,
			Timing:     s.timing(),
			Line:       s.line,
			RewardLine: s.rewardLine,
		}
		s.reset()
		return true
	}

	if match := s.m.reward.FindStringSubmatch(text); match != nil {
		reward, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			s.stats.Malformed++
			return false
		}
		s.pending = true
		s.reward = reward
		s.rewardLine = s.line
		return false
	}

	for i, re := range s.m.markers {
		if re == nil {
			continue
		}
		if match := re.FindStringSubmatch(text); match != nil {
			if v, err := strconv.ParseFloat(match[1], 64); err == nil {
				s.markers[i] = v
				s.markerSeen[i] = true
			} else {
				s.stats.Malformed++
			}
			break
		}
	}
	return false
}

func (s *Scanner) timing() searchgraph.Timing {
	for _, seen := range s.markerSeen {
		if !seen {
			return searchgraph.Timing{}
		}
	}
	return searchgraph.Timing{
		InitTime: s.markers[markerBeforeRecompute],
		SimBegin: s.markers[markerAfterRecompute],
		SimEnd:   s.markers[markerAfterSimulation],
		Valid:    true,
	}
}

func (s *Scanner) reset() {
	s.pending = false
	s.reward = 0
	s.rewardLine = 0
	s.markers = [markerCount]float64{}
	s.markerSeen = [markerCount]bool{}
}

func parseVars(field string) (searchgraph.VarSet, bool) {
	parts := strings.Fields(field)
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		ids = append(ids, id)
	}
	vars, err := searchgraph.NewVarSet(ids...)
	if err != nil {
		return nil, false
	}
	return vars, true
}
