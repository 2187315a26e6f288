// Package tech provides the tech tree service interface and an in-memory
// implementation. The upgrade engine takes Service as an explicit
// constructor dependency; a nil service fails eligibility checks closed.
package tech
