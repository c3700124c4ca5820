package intake

// Phase is a state of the intake state machine. A failure never becomes a
// phase of its own: the message is shown and the interrupted phase resumes.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStaged
	PhaseAwaitingUpload
	PhaseColumnSelection
	PhaseAwaitingIndex
	PhaseDone
)

var phaseNames = [...]string{"idle", "staged", "awaiting-upload", "column-selection", "awaiting-index", "done"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}
