// Package service installs, removes and runs the bridge as an operating system
// service. On Windows it talks to the Service Control Manager directly; on
// other platforms it goes through kardianos/service.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"system-configurator-bridge/internal/config"
)

// StartType is how the OS starts an installed service.
type StartType int

const (
	// StartDemand leaves the service stopped until something starts it.
	StartDemand StartType = iota
	StartAutomatic
	StartDisabled
)

func (s StartType) String() string {
	switch s {
	case StartDemand:
		return "manual"
	case StartAutomatic:
		return "automatic"
	case StartDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("unknown (%d)", int(s))
	}
}

// AccountLocalSystem runs the service under the built-in system account.
const AccountLocalSystem = "LocalSystem"

// Identity describes how the service is registered with the OS.
type Identity struct {
	Name         string
	DisplayName  string
	StartType    StartType
	Dependencies []string
	Account      string
	Password     string
}

// Validate checks the fields the OS requires.
func (id Identity) Validate() error {
	if id.Name == "" {
		return errors.New("service name cannot be empty")
	}
	if id.DisplayName == "" {
		return errors.New("service display name cannot be empty")
	}
	return nil
}

// accountName maps the built-in system account to the empty name both
// backends use for it.
func (id Identity) accountName() string {
	if id.Account == AccountLocalSystem {
		return ""
	}
	return id.Account
}

// Instance is the work a running service performs until its context ends.
type Instance struct {
	Name string
	run  func(ctx context.Context) error
}

// NewInstance creates a service instance named name.
func NewInstance(name string, run func(ctx context.Context) error) *Instance {
	return &Instance{Name: name, run: run}
}

// Run executes the instance's work.
func (i *Instance) Run(ctx context.Context) error {
	return i.run(ctx)
}

// ErrStopTimeout is returned when the instance does not exit within the stop grace.
var ErrStopTimeout = errors.New("timed out waiting for service to stop")

// runner drives one Instance on a background goroutine.
type runner struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func startInstance(inst *Instance) *runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &runner{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		r.err = inst.Run(ctx)
		close(r.done)
	}()

	return r
}

// Done is closed once the instance returns.
func (r *runner) Done() <-chan struct{} {
	return r.done
}

// Err is the instance's result. Only valid after Done is closed; a
// cancellation-induced context.Canceled is reported as nil.
func (r *runner) Err() error {
	if errors.Is(r.err, context.Canceled) {
		return nil
	}
	return r.err
}

// Stop cancels the instance and waits up to grace for it to return.
func (r *runner) Stop(grace time.Duration) error {
	r.cancel()

	select {
	case <-r.done:
		return r.Err()
	case <-time.After(grace):
		return ErrStopTimeout
	}
}

func stopGrace(cfg *config.ServiceConfig) time.Duration {
	if cfg == nil {
		return config.DefaultServiceConfig().StopGrace()
	}
	return cfg.StopGrace()
}
