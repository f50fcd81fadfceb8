// Package module defines the contract between the CLI and the probe modules
// and dispatches one host request to a module.
//
// A module either describes what it contributes to the host's monitoring
// graph or executes one of its polled tests. Every invocation is a fresh
// process: anything a module must remember between polls goes through a
// snapshot.Store.
package module

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/core"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/logging"
	"github.com/hugo-lorenzo-mato/swdiag-probes/internal/protocol"
)

// Module is a probe module the host can configure and poll.
type Module interface {
	// Name is the module name used on the command line.
	Name() string
	// Tests lists the tests Execute accepts, in the order they are declared.
	Tests() []string
	// Describe emits the module's manifest.
	Describe(ctx context.Context, inv *Invocation) error
	// Execute runs one test and emits its results.
	Execute(ctx context.Context, inv *Invocation, test string) error
}

// Invocation carries what a single run of a module writes to.
type Invocation struct {
	ID      string
	Logger  *logging.Logger
	Emitter *protocol.Emitter
}

// NewInvocation tags logger with a fresh invocation ID.
func NewInvocation(logger *logging.Logger, emitter *protocol.Emitter) *Invocation {
	if logger == nil {
		logger = logging.NewNop()
	}
	id := uuid.NewString()
	return &Invocation{
		ID:      id,
		Logger:  logger.WithInvocation(id),
		Emitter: emitter,
	}
}

// Request is what the host asked for on the command line.
type Request struct {
	Conf     bool
	Test     string
	Instance string
}

// Validate rejects requests that name no mode or both modes.
func (r Request) Validate() error {
	if r.Conf && r.Test != "" {
		return core.ErrValidation(core.CodeConflictMode, "--conf and --test are mutually exclusive")
	}
	if !r.Conf && r.Test == "" && r.Instance == "" {
		return core.ErrValidation(core.CodeNoMode, "one of --conf, --test or --instance is required")
	}
	return nil
}

// Run dispatches req to m. An unknown test fails before anything is probed
// or written.
func Run(ctx context.Context, m Module, inv *Invocation, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	logger := inv.Logger.WithModule(m.Name())
	inv = &Invocation{ID: inv.ID, Logger: logger, Emitter: inv.Emitter}

	if req.Conf {
		if req.Instance != "" {
			logger.Debug("instance ignored in describe mode", "instance", req.Instance)
		}
		logger.Debug("describing module")
		if err := m.Describe(ctx, inv); err != nil {
			return fmt.Errorf("describing %s: %w", m.Name(), err)
		}
		return nil
	}

	if req.Test != "" {
		if !slices.Contains(m.Tests(), req.Test) {
			return core.ErrUnknownTest(m.Name(), req.Test)
		}
		testInv := &Invocation{ID: inv.ID, Logger: logger.WithTest(req.Test), Emitter: inv.Emitter}
		testInv.Logger.Debug("executing test")
		if err := m.Execute(ctx, testInv, req.Test); err != nil {
			return fmt.Errorf("executing %s/%s: %w", m.Name(), req.Test, err)
		}
	}

	if req.Instance != "" {
		// Instances carry no computation of their own.
		logger.Info("instance acknowledged", "instance", req.Instance)
	}
	return nil
}
