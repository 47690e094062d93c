// Package events provides the in-process bus the follow-up engine publishes
// its progress on.
package events

import (
	"context"
	"time"

	"cloud.google.com/go/civil"

	"github.com/GoCodeAlone/showroom/task"
)

// Topic identifies the kind of event.
type Topic string

const (
	TopicTaskCreated  Topic = "task.created"  // a follow-up task was emitted
	TopicClientFailed Topic = "client.failed" // a client was skipped after an error
	TopicRunFinished  Topic = "run.finished"  // a batch completed

	// TopicAll subscribes to every topic.
	TopicAll Topic = "*"
)

// RunSummary carries the counts of a finished batch.
type RunSummary struct {
	Date         civil.Date `json:"date"`
	Clients      int        `json:"clients"`
	Created      int        `json:"created"`
	Duplicates   int        `json:"duplicates"`
	SkippedSales int        `json:"skipped_sales"`
	Failures     int        `json:"failures"`
}

// Event is a notification published by the engine.
type Event struct {
	ID        string      `json:"id"`
	Topic     Topic       `json:"topic"`
	ClientID  string      `json:"client_id,omitempty"`
	Task      *task.Task  `json:"task,omitempty"`  // task.created
	Error     string      `json:"error,omitempty"` // client.failed
	Run       *RunSummary `json:"run,omitempty"`   // run.finished
	Timestamp time.Time   `json:"timestamp"`
}

// Handler processes a published event.
type Handler func(ctx context.Context, ev *Event) error

// Bus delivers events to subscribers.
type Bus interface {
	// Publish delivers ev to every subscriber of its topic and of TopicAll.
	Publish(ctx context.Context, ev *Event) error

	// Subscribe registers a handler for topic. Returns an unsubscribe function.
	Subscribe(topic Topic, handler Handler) (unsubscribe func())

	// History returns the most recent limit events on topic, oldest first.
	// TopicAll matches every event.
	History(topic Topic, limit int) []*Event
}
