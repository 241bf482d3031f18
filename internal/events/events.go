// Package events provides pool lifecycle notifications over a pub/sub bus.
package events

import (
	"fmt"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	// EventWorkerStarted is emitted when a worker begins waiting for jobs
	EventWorkerStarted EventType = "worker_started"
	// EventWorkerStopped is emitted when a worker leaves its run loop
	EventWorkerStopped EventType = "worker_stopped"
	// EventJobPanicked is emitted when a job panics and takes its worker down
	EventJobPanicked EventType = "job_panicked"
	// EventJobDropped is emitted when the queue refuses a job
	EventJobDropped EventType = "job_dropped"
)

// Event represents a worker pool event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	WorkerID  int       `json:"worker_id"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	Panic string `json:"panic,omitempty"`
}

// NewWorkerStartedEvent creates a worker started event
func NewWorkerStartedEvent(workerID int) Event {
	return Event{
		Type:      EventWorkerStarted,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	}
}

// NewWorkerStoppedEvent creates a worker stopped event
func NewWorkerStoppedEvent(workerID int) Event {
	return Event{
		Type:      EventWorkerStopped,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	}
}

// NewJobPanickedEvent creates a job panicked event
func NewJobPanickedEvent(workerID int, recovered any) Event {
	return Event{
		Type:      EventJobPanicked,
		Timestamp: time.Now(),
		WorkerID:  workerID,
		Data: EventData{
			Panic: fmt.Sprint(recovered),
		},
	}
}

// NewJobDroppedEvent creates a job dropped event.
// Drops happen on the submitting side, so no worker is involved.
func NewJobDroppedEvent() Event {
	return Event{
		Type:      EventJobDropped,
		Timestamp: time.Now(),
		WorkerID:  -1,
	}
}
