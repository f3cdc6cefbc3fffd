// Package app implements the command-level operations of the client:
// state loading, repository synchronization, request resolution, plan
// execution, switch management, and the query surface. Each operation
// loads a fresh State, works through the adapters, and persists its
// updates before returning.
package app

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/RalfJung/opam/internal/adapters"
	"github.com/RalfJung/opam/internal/core"
	"github.com/RalfJung/opam/internal/ports"
)

// Service wires the ports together for one command invocation.
type Service struct {
	Root     string
	Solver   ports.SolverPort
	Backends ports.RepositoryRegistry
	Versions *core.VersionCache

	// AutoYes suppresses interactive prompts, accepting everything.
	AutoYes bool
	// Confirm asks the user a yes/no question. Overridable in tests.
	Confirm func(prompt string) bool
}

func NewService(root string, autoYes bool) *Service {
	s := &Service{
		Root:     root,
		Solver:   core.NewSATSolver(),
		Backends: adapters.NewBackendRegistry(),
		Versions: core.NewVersionCache(),
		AutoYes:  autoYes,
	}
	s.Confirm = s.stdinConfirm
	return s
}

func (s *Service) confirm(prompt string) bool {
	if s.AutoYes {
		return true
	}
	return s.Confirm(prompt)
}

func (s *Service) stdinConfirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
