package app

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/RalfJung/opam/internal/adapters"
	"github.com/RalfJung/opam/internal/types"
)

// RemoteList prints the configured repositories in priority order.
func (s *Service) RemoteList() error {
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}
	nameWidth, addressWidth := 0, 0
	for _, repo := range state.Repositories {
		if len(repo.Name) > nameWidth {
			nameWidth = len(repo.Name)
		}
		if len(repo.Address) > addressWidth {
			addressWidth = len(repo.Address)
		}
	}
	for _, repo := range state.Repositories {
		fmt.Printf("%-*s  %-*s  %s\n", nameWidth, repo.Name, addressWidth, repo.Address, repo.Kind)
	}
	return nil
}

// RemoteAdd registers a repository: the name must be new, the backend
// initializes its mirror, the config gains the entry, and a full update
// publishes its packages.
func (s *Service) RemoteAdd(ctx context.Context, repo types.Repository) error {
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}
	if _, exists := state.Config.FindRepository(repo.Name); exists {
		return errbuilder.New().
			WithCode(errbuilder.CodeAlreadyExists).
			WithMsg(fmt.Sprintf("repository %s is already configured", repo.Name))
	}
	backend, err := s.Backends.Backend(repo.Kind)
	if err != nil {
		return err
	}
	if err := backend.Init(ctx, s.Root, repo); err != nil {
		return err
	}
	config := state.Config
	config.Repositories = append(config.Repositories, repo)
	if err := adapters.SaveGlobalConfig(s.Root, config); err != nil {
		return err
	}
	return s.Update(ctx)
}

// RemoteRm removes the named repository from the config. Only the found
// entry is dropped; the mirror directory stays behind until the next
// update stops referencing it.
func (s *Service) RemoteRm(ctx context.Context, name string) error {
	state, err := LoadState(s.Root)
	if err != nil {
		return err
	}
	found := false
	config := state.Config
	var kept []types.Repository
	for _, repo := range config.Repositories {
		if !found && repo.Name == name {
			found = true
			continue
		}
		kept = append(kept, repo)
	}
	if !found {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("unknown repository %s", name))
	}
	config.Repositories = kept
	if err := adapters.SaveGlobalConfig(s.Root, config); err != nil {
		return err
	}
	return s.Update(ctx)
}
