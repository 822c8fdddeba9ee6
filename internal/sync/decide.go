package sync

// SkewTolerance is how far apart, in milliseconds, the two replicas' mtimes
// may be and still count as equal. It absorbs coarse filesystem and HTTP
// date resolution.
const SkewTolerance int64 = 2000

// Decision is what reconciliation does with a file present on both sides.
type Decision int

const (
	// DecisionSkip means both sides are considered equal; nothing moves.
	DecisionSkip Decision = iota
	// DecisionPull means the remote copy is newer and replaces the local one.
	DecisionPull
	// DecisionPush means the local copy is newer and replaces the remote one.
	DecisionPush
)

func (d Decision) String() string {
	switch d {
	case DecisionPull:
		return "pull"
	case DecisionPush:
		return "push"
	default:
		return "skip"
	}
}

// Decide compares local and remote modification times in unix millis.
// Differences within SkewTolerance, ties included, resolve to
// DecisionSkip.
func Decide(localMillis, remoteMillis int64) Decision {
	switch {
	case remoteMillis > localMillis+SkewTolerance:
		return DecisionPull
	case localMillis > remoteMillis+SkewTolerance:
		return DecisionPush
	default:
		return DecisionSkip
	}
}
