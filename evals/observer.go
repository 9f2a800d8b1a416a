/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package evals

import (
	"path"
	"sort"
	"sync"

	"chainguard.dev/judgeval/consistency"
)

// Observer receives the findings of verdict checks.
type Observer interface {
	// Fail records a failed check. Called at most once per check.
	Fail(string)
	// Log records an informational message.
	Log(string)
	// Grade records a rating in [0, 1] with reasoning.
	Grade(score float64, reasoning string)
	// Increment is called once per observed verdict.
	Increment()
	// Total returns the number of observed verdicts.
	Total() int64
}

// Verdict is one evaluated test as seen by observers.
type Verdict struct {
	TestName  string
	Threshold float64
	Result    *consistency.Result
}

// Check inspects a verdict and reports to the observer.
type Check func(Observer, *Verdict)

// Observe counts the verdict on obs and runs every check against it.
func Observe(obs Observer, v *Verdict, checks ...Check) {
	obs.Increment()
	for _, check := range checks {
		check(obs, v)
	}
}

// NamespacedObserver arranges observers in a tree addressed by slash
// separated paths, one observer per node.
type NamespacedObserver[T Observer] struct {
	name    string
	inner   T
	factory func(string) T

	mu       sync.Mutex
	children map[string]*NamespacedObserver[T]
}

// NewNamespacedObserver creates the root node "/" using factory.
func NewNamespacedObserver[T Observer](factory func(string) T) *NamespacedObserver[T] {
	return &NamespacedObserver[T]{
		name:     "/",
		inner:    factory("/"),
		factory:  factory,
		children: make(map[string]*NamespacedObserver[T]),
	}
}

// Name returns the node's full path.
func (n *NamespacedObserver[T]) Name() string { return n.name }

// Fail delegates to the node's observer
func (n *NamespacedObserver[T]) Fail(msg string) { n.inner.Fail(msg) }

// Log delegates to the node's observer
func (n *NamespacedObserver[T]) Log(msg string) { n.inner.Log(msg) }

// Grade delegates to the node's observer
func (n *NamespacedObserver[T]) Grade(score float64, reasoning string) {
	n.inner.Grade(score, reasoning)
}

// Increment delegates to the node's observer
func (n *NamespacedObserver[T]) Increment() { n.inner.Increment() }

// Total delegates to the node's observer
func (n *NamespacedObserver[T]) Total() int64 { return n.inner.Total() }

// Child returns the named child, creating it on first use.
func (n *NamespacedObserver[T]) Child(name string) *NamespacedObserver[T] {
	n.mu.Lock()
	defer n.mu.Unlock()

	if child, ok := n.children[name]; ok {
		return child
	}
	childPath := path.Join(n.name, name)
	child := &NamespacedObserver[T]{
		name:     childPath,
		inner:    n.factory(childPath),
		factory:  n.factory,
		children: make(map[string]*NamespacedObserver[T]),
	}
	n.children[name] = child
	return child
}

// Walk visits this node and then its descendants depth first, children in
// name order.
func (n *NamespacedObserver[T]) Walk(visitor func(string, T)) {
	visitor(n.name, n.inner)

	n.mu.Lock()
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	n.mu.Unlock()
	sort.Strings(names)

	for _, name := range names {
		n.mu.Lock()
		child := n.children[name]
		n.mu.Unlock()
		child.Walk(visitor)
	}
}
