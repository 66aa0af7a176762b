// Package fmi defines the model adapter contract driven by the simulation
// kernel.
//
// The contract mirrors the model-exchange capability set of an FMI 2.0
// component:
//
//   - [Model]: a backend that can describe itself and create instances
//   - [Instance]: one instantiated model, the opaque handle owned by the kernel
//   - [Status]: ordered outcome of every call (OK < Warning < Discard < Error < Fatal)
//   - [EventInfo]: flags exchanged during discrete updates
//   - [Logger]: structured log callback handed to the model
//
// Backends are plain Go types; see package models for the built-in ones.
// Test code implements [Instance] with scripted fakes.
package fmi
