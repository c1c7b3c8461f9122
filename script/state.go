package script

// State is the lifecycle state of a script instance.
// Instances move Constructed → Awake → Enabled → Started, loop through
// Updating once per tick, and may bounce between Disabled and Enabled
// until they reach Destroyed.
type State uint8

const (
	// Constructed is the initial state. No callback has fired yet.
	Constructed State = iota

	// Awake is entered once Awake has run and the slot table is populated.
	Awake

	// Enabled is entered on every enable, including re-enables after Disabled.
	Enabled

	// Started is the resting state between ticks once Start has fired.
	Started

	// Updating is the sub-state held while Update and LateUpdate run.
	Updating

	// Disabled instances receive no per-tick callbacks and own no coroutines.
	Disabled

	// Destroyed is terminal.
	Destroyed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Constructed:
		return "Constructed"
	case Awake:
		return "Awake"
	case Enabled:
		return "Enabled"
	case Started:
		return "Started"
	case Updating:
		return "Updating"
	case Disabled:
		return "Disabled"
	case Destroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

// Live reports whether coroutines may run for an instance in this state.
func (s State) Live() bool {
	return s == Enabled || s == Started || s == Updating
}
