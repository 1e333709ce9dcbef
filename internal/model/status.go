package model

// State tracks the outcome of a per-case phase (compile, run).
type State string

const (
	// StateNone marks a phase that does not apply to the case,
	// e.g. compilation when no sources exist.
	StateNone    State = ""
	StateNotDone State = "not done"
	StateOK      State = "OK"
	StateKO      State = "KO"
)

// CompareState tracks whether a case has been compared against its reference.
type CompareState string

const (
	CompareNotDone CompareState = "not done"
	CompareDone    CompareState = "done"
)

// Flag is the tri-state on/off attribute used throughout the smgr file.
// An empty value means the attribute was not set and inherits the default
// of the consuming phase.
type Flag string

const (
	FlagUnset Flag = ""
	FlagOn    Flag = "on"
	FlagOff   Flag = "off"
)

func (f Flag) IsOn() bool {
	return f == FlagOn
}

// OrDefault returns f, or def when the flag was left unset.
func (f Flag) OrDefault(def Flag) Flag {
	if f == FlagUnset {
		return def
	}
	return f
}
