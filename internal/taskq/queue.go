// Package taskq implements the per-class Task Queue (spec.md §4.2): a
// singly-linked FIFO touched only by the dispatcher goroutine, with head
// reinsertion for preempted tasks.
package taskq

import "github.com/kgriffin/udisp/internal/task"

type node struct {
	t    task.Task
	next *node
}

// Queue is an unsynchronized FIFO for one traffic class. Callers must
// ensure single-threaded (dispatcher-only) access, matching the original
// tskq's "accessed only by the dispatcher thread" policy.
type Queue struct {
	head *node
	tail *node
	len  int
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// EnqueueTail appends a fresh arrival. Tail insertions preserve timestamp
// ordering because packet ingress is per-class FIFO.
func (q *Queue) EnqueueTail(t task.Task) {
	n := &node{t: t}
	if q.tail != nil {
		q.tail.next = n
	} else {
		q.head = n
	}
	q.tail = n
	q.len++
}

// EnqueueHead reinserts a preempted task at the front so it is retried
// before any strictly younger arrival of the same class. This may violate
// strict timestamp order but preserves oldest-deserving-work-first intent.
func (q *Queue) EnqueueHead(t task.Task) {
	n := &node{t: t, next: q.head}
	q.head = n
	if q.tail == nil {
		q.tail = n
	}
	q.len++
}

// Dequeue removes and returns the head task, if any.
func (q *Queue) Dequeue() (task.Task, bool) {
	if q.head == nil {
		return task.Task{}, false
	}
	n := q.head
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	q.len--
	return n.t, true
}

// PeekHeadTimestamp returns the arrival timestamp of the head task without
// removing it.
func (q *Queue) PeekHeadTimestamp() (int64, bool) {
	if q.head == nil {
		return 0, false
	}
	return q.head.t.Timestamp, true
}

// Len reports the number of queued tasks.
func (q *Queue) Len() int {
	return q.len
}

// Empty reports whether the queue has no tasks.
func (q *Queue) Empty() bool {
	return q.head == nil
}
