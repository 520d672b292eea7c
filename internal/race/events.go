package race

// EventType tags a Manager notification.
type EventType string

const (
	// EventStateChanged carries a (Prev, Next) state pair.
	EventStateChanged EventType = "StateChanged"
	// EventMeasurementTaken carries the raw station timestamp of a finish
	// detection that is not yet attributed to a runner.
	EventMeasurementTaken EventType = "MeasurementTaken"
	// EventRunnerFinished carries the starter number and elapsed time of a
	// successful assignment.
	EventRunnerFinished EventType = "RunnerFinished"
)

// Event is a notification generated inside the Manager's critical section and
// delivered to the subscriber in generation order. Only the fields for the
// tagged type are set.
type Event struct {
	Type EventType

	// StateChanged
	Prev State
	Next State

	// MeasurementTaken: raw station timestamp
	Time int64

	// RunnerFinished
	Starter int
	Elapsed int64
}
