package operation

type Mode int

const (
	Sync Mode = iota
	Async
)

func (m Mode) String() string {
	switch m {
	case Sync:
		return "sync"
	case Async:
		return "async"
	default:
		return "unknown"
	}
}
