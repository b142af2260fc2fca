package shared

// Direction represents market direction.
type Direction int

const (
	Long Direction = iota
	Short
)

// String stringifies the provided direction.
func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "unknown"
	}
}

// Sign returns +1 for long and -1 for short, the multiplier applied to price differences when
// computing profit and loss.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}

	return 1
}
