package lighttime

import (
	"fmt"

	"github.com/jo11he/my-tudat/internal/ephemeris"
)

// ChainSolution is the result of a multi-leg solve.
//
// Times and States hold two entries per leg, ordered by leg: leg i
// contributes its transmitter at 2i and its receiver at 2i+1. An interior
// link end therefore appears twice, once receiving and once retransmitting,
// separated by its retransmission delay.
type ChainSolution struct {
	LightTime float64 // reception at the last link end minus transmission at the first (s)
	Times     []float64
	States    []ephemeris.State
	Legs      []LegSolution
}

// MultiLegCalculator chains single-leg calculators into a relayed path:
// leg i runs from link end i to link end i+1.
type MultiLegCalculator struct {
	legs []*Calculator
}

// NewMultiLegCalculator builds a chain from legs in transmit order.
func NewMultiLegCalculator(legs []*Calculator) (*MultiLegCalculator, error) {
	if len(legs) == 0 {
		return nil, fmt.Errorf("%w: a chain needs at least one leg", ErrConfiguration)
	}
	for i, leg := range legs {
		if leg == nil {
			return nil, fmt.Errorf("%w: leg %d is nil", ErrConfiguration, i)
		}
	}
	return &MultiLegCalculator{legs: append([]*Calculator(nil), legs...)}, nil
}

// Legs returns the leg calculators in transmit order.
func (m *MultiLegCalculator) Legs() []*Calculator {
	return append([]*Calculator(nil), m.legs...)
}

// NumberOfLegs returns the number of legs.
func (m *MultiLegCalculator) NumberOfLegs() int { return len(m.legs) }

// NumberOfLinkEnds returns the number of legs plus one.
func (m *MultiLegCalculator) NumberOfLinkEnds() int { return len(m.legs) + 1 }

// Solve computes the total light time of the chain with link end reference
// observed at t. delays holds one retransmission delay per link end, or one
// per interior link end (the ends are then padded with zeros), or is nil for
// no delays.
func (m *MultiLegCalculator) Solve(t float64, reference int, delays []float64) (ChainSolution, error) {
	return m.solve(t, reference, delays, nil)
}

// SolveFrom is Solve with each leg seeded from the matching leg of guess.
// A guess with the wrong number of legs is ignored.
func (m *MultiLegCalculator) SolveFrom(t float64, reference int, delays []float64, guess ChainSolution) (ChainSolution, error) {
	return m.solve(t, reference, delays, &guess)
}

// SolveForLinkEnd resolves role to its chain index and reads the delays from
// ancillary (RetransmissionDelays), which may be nil.
func (m *MultiLegCalculator) SolveForLinkEnd(t float64, role LinkEndType, ancillary *AncillarySettings) (ChainSolution, error) {
	reference, err := LinkEndIndex(role, m.NumberOfLinkEnds())
	if err != nil {
		return ChainSolution{}, err
	}
	delays, _ := ancillary.DoubleVector(RetransmissionDelays)
	return m.solve(t, reference, delays, nil)
}

// TotalIdealLightTime sums the ideal light times of the legs' last solves.
func (m *MultiLegCalculator) TotalIdealLightTime() float64 {
	var total float64
	for _, leg := range m.legs {
		total += leg.IdealLightTime()
	}
	return total
}

// TotalCorrection sums the corrections of the legs' last solves.
func (m *MultiLegCalculator) TotalCorrection() float64 {
	var total float64
	for _, leg := range m.legs {
		total += leg.TotalCorrection()
	}
	return total
}

// NormalizeDelays expands delays to one entry per link end. nil means all
// zero; a slice sized to the interior link ends is padded with a zero at
// both ends. Any other length, or a non-finite delay, is ErrConfiguration.
func (m *MultiLegCalculator) NormalizeDelays(delays []float64) ([]float64, error) {
	n := m.NumberOfLinkEnds()
	out := make([]float64, n)
	switch {
	case delays == nil:
		return out, nil
	case len(delays) == n:
		copy(out, delays)
	case len(delays) == n-2:
		copy(out[1:], delays)
	default:
		return nil, fmt.Errorf("%w: %d retransmission delays for %d link ends, want %d or %d",
			ErrConfiguration, len(delays), n, n, n-2)
	}
	for i, d := range out {
		if !isFinite(d) {
			return nil, fmt.Errorf("%w: retransmission delay %d is %v", ErrConfiguration, i, d)
		}
	}
	return out, nil
}

func (m *MultiLegCalculator) solve(t float64, reference int, delays []float64, guess *ChainSolution) (ChainSolution, error) {
	n := m.NumberOfLinkEnds()
	if reference < 0 || reference >= n {
		return ChainSolution{}, fmt.Errorf("%w: reference link end %d outside [0, %d]", ErrConfiguration, reference, n-1)
	}
	d, err := m.NormalizeDelays(delays)
	if err != nil {
		return ChainSolution{}, err
	}
	// An interior reference with a delay has two candidate times (receive
	// and retransmit) and no way to say which t denotes.
	if reference != 0 && reference != n-1 && d[reference] != 0 {
		return ChainSolution{}, fmt.Errorf("%w: reference link end %d is interior and has retransmission delay %g",
			ErrConfiguration, reference, d[reference])
	}

	var seeds []LegSolution
	if guess != nil && len(guess.Legs) == len(m.legs) {
		seeds = guess.Legs
	}

	out := ChainSolution{
		Times:  make([]float64, 2*len(m.legs)),
		States: make([]ephemeris.State, 2*len(m.legs)),
		Legs:   make([]LegSolution, len(m.legs)),
	}
	total := d[reference]

	// Upstream of the reference: each leg is solved at its reception time.
	rxTime := t - d[reference]
	for down := reference; down > 0; down-- {
		leg := down - 1
		sol, err := m.solveLeg(leg, rxTime, true, seeds)
		if err != nil {
			return ChainSolution{}, err
		}
		out.store(leg, sol)
		lt := sol.LightTime + d[leg]
		rxTime -= lt
		total += lt
	}

	// Downstream: each leg is solved at its transmission time.
	txTime := t + d[reference]
	for up := reference; up < n-1; up++ {
		sol, err := m.solveLeg(up, txTime, false, seeds)
		if err != nil {
			return ChainSolution{}, err
		}
		out.store(up, sol)
		lt := sol.LightTime + d[up+1]
		txTime += lt
		total += lt
	}

	out.LightTime = total
	return out, nil
}

func (m *MultiLegCalculator) solveLeg(leg int, t float64, atReception bool, seeds []LegSolution) (LegSolution, error) {
	var (
		sol LegSolution
		err error
	)
	if seeds != nil {
		sol, err = m.legs[leg].SolveFrom(t, atReception, seeds[leg])
	} else {
		sol, err = m.legs[leg].Solve(t, atReception)
	}
	if err != nil {
		return LegSolution{}, fmt.Errorf("leg %d: %w", leg, err)
	}
	return sol, nil
}

func (s *ChainSolution) store(leg int, sol LegSolution) {
	s.Legs[leg] = sol
	s.Times[2*leg] = sol.Transmitter.Time
	s.Times[2*leg+1] = sol.Receiver.Time
	s.States[2*leg] = sol.Transmitter.State
	s.States[2*leg+1] = sol.Receiver.State
}
