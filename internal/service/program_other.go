//go:build !windows

package service

import (
	"os"
	"sync/atomic"
	"syscall"
	"time"

	kservice "github.com/kardianos/service"
	"github.com/sirupsen/logrus"
)

// program adapts an Instance to kservice.Interface.
type program struct {
	instance *Instance
	grace    time.Duration
	logger   *logrus.Entry
	run      *runner
	stopping atomic.Bool

	// interrupt asks the service runtime to shut down after the instance
	// exits on its own. Defaults to signalling this process.
	interrupt func()
}

// Start must not block; the instance runs on its own goroutine.
func (p *program) Start(s kservice.Service) error {
	p.run = startInstance(p.instance)
	p.logger.WithField("service", p.instance.Name).Info("Service started")

	go p.watch(p.run)
	return nil
}

// watch shuts the service down when the instance returns without being stopped.
func (p *program) watch(run *runner) {
	<-run.Done()
	if p.stopping.Load() {
		return
	}

	if err := run.Err(); err != nil {
		p.logger.WithError(err).Error("Bridge exited")
	} else {
		p.logger.Info("Bridge exited")
	}

	interrupt := p.interrupt
	if interrupt == nil {
		interrupt = func() {
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}
	interrupt()
}

// Stop cancels the instance and waits up to the stop grace.
func (p *program) Stop(s kservice.Service) error {
	if p.run == nil {
		return nil
	}

	p.stopping.Store(true)
	p.logger.WithField("service", p.instance.Name).Info("Service stopping")
	if err := p.run.Stop(p.grace); err != nil {
		p.logger.WithError(err).Error("Bridge stopped with error")
		return err
	}
	p.logger.WithField("service", p.instance.Name).Info("Service stopped")
	return nil
}
