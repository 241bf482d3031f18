package events

import "time"

// Recorder publishes worker pool notifications to a Bus.
// It satisfies worker.Observer.
type Recorder struct {
	bus *Bus
}

// NewRecorder creates a Recorder publishing to bus
func NewRecorder(bus *Bus) *Recorder {
	return &Recorder{bus: bus}
}

// WorkerStarted publishes EventWorkerStarted
func (r *Recorder) WorkerStarted(id int) {
	r.bus.Publish(NewWorkerStartedEvent(id))
}

// WorkerStopped publishes EventWorkerStopped
func (r *Recorder) WorkerStopped(id int) {
	r.bus.Publish(NewWorkerStoppedEvent(id))
}

// JobPanicked publishes EventJobPanicked
func (r *Recorder) JobPanicked(id int, recovered any) {
	r.bus.Publish(NewJobPanickedEvent(id, recovered))
}

// JobDropped publishes EventJobDropped
func (r *Recorder) JobDropped() {
	r.bus.Publish(NewJobDroppedEvent())
}

// JobSubmitted is too frequent to publish.
func (r *Recorder) JobSubmitted() {}

// JobCompleted is too frequent to publish.
func (r *Recorder) JobCompleted(int, time.Duration) {}
