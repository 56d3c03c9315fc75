//go:build tools

// Package tools pins go:generate tooling such as mockgen in go.mod.
package familychat

import (
	_ "go.uber.org/mock/mockgen"
)
