package lighttime

import (
	"fmt"
	"strings"
)

// LinkEndType is the role a link end plays in a chain.
type LinkEndType int

const (
	Transmitter LinkEndType = iota
	Retransmitter1
	Retransmitter2
	Retransmitter3
	Retransmitter4
	Receiver
)

var linkEndNames = map[LinkEndType]string{
	Transmitter:    "transmitter",
	Retransmitter1: "retransmitter1",
	Retransmitter2: "retransmitter2",
	Retransmitter3: "retransmitter3",
	Retransmitter4: "retransmitter4",
	Receiver:       "receiver",
}

func (l LinkEndType) String() string {
	if name, ok := linkEndNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LinkEndType(%d)", int(l))
}

// ParseLinkEndType is the inverse of String. "retransmitter" alone means
// retransmitter1.
func ParseLinkEndType(s string) (LinkEndType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "retransmitter" || s == "reflector" {
		return Retransmitter1, nil
	}
	s = strings.Replace(s, "reflector", "retransmitter", 1)
	for role, name := range linkEndNames {
		if name == s {
			return role, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown link end %q", ErrConfiguration, s)
}

// LinkEndIndex maps a role to its position in a chain of numberOfLinkEnds:
// the transmitter is 0, the receiver is the last index, retransmitter k is k.
func LinkEndIndex(role LinkEndType, numberOfLinkEnds int) (int, error) {
	if numberOfLinkEnds < 2 {
		return 0, fmt.Errorf("%w: a chain needs at least 2 link ends, got %d", ErrConfiguration, numberOfLinkEnds)
	}
	switch {
	case role == Transmitter:
		return 0, nil
	case role == Receiver:
		return numberOfLinkEnds - 1, nil
	case role >= Retransmitter1 && role <= Retransmitter4:
		idx := int(role - Transmitter)
		if idx >= numberOfLinkEnds-1 {
			return 0, fmt.Errorf("%w: %v does not exist in a chain of %d link ends", ErrConfiguration, role, numberOfLinkEnds)
		}
		return idx, nil
	}
	return 0, fmt.Errorf("%w: unknown link end %v", ErrConfiguration, role)
}
