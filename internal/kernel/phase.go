package kernel

// Phase is the lifecycle state of a Context.
type Phase int

const (
	Uninstantiated Phase = iota
	Configuring
	EventIterating
	ContinuousTime
	EventMode
	Terminated
	Failed
)

func (p Phase) String() string {
	switch p {
	case Uninstantiated:
		return "uninstantiated"
	case Configuring:
		return "configuring"
	case EventIterating:
		return "event-iterating"
	case ContinuousTime:
		return "continuous-time"
	case EventMode:
		return "event-mode"
	case Terminated:
		return "terminated"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
