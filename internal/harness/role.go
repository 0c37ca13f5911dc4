// Package harness executes operators for correctness and performance checks.
// An Executor owns every buffer one operator test case needs, drives the
// forward and backward passes on the chosen device, times them, and exposes
// the buffers for comparison and serialization.
package harness

import "fmt"

// Role names one of the five buffer groups an executor owns. The enum order
// is the canonical group order used by Dump and Load.
type Role int

// Buffer roles.
const (
	Input Role = iota
	Output
	Aux
	InGrad
	OutGrad
)

// RoleCount is the number of buffer roles.
const RoleCount = 5

// String returns the canonical role name.
func (r Role) String() string {
	switch r {
	case Input:
		return "Input"
	case Output:
		return "Output"
	case Aux:
		return "Aux"
	case InGrad:
		return "InGrad"
	case OutGrad:
		return "OutGrad"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Roles returns all roles in canonical order.
func Roles() []Role {
	return []Role{Input, Output, Aux, InGrad, OutGrad}
}

func checkRole(r Role) {
	if r < 0 || r >= RoleCount {
		panic(fmt.Sprintf("harness: role %d out of range", int(r)))
	}
}
