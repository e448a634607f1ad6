//go:build windows

package service

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/eventlog"
)

// handler implements svc.Handler for one Instance.
type handler struct {
	instance *Instance
	grace    time.Duration
	logger   *logrus.Entry
	eventLog *eventlog.Log
}

func (h *handler) logInfo(msg string) {
	h.logger.Info(msg)
	if h.eventLog != nil {
		h.eventLog.Info(1, msg)
	}
}

func (h *handler) logError(msg string) {
	h.logger.Error(msg)
	if h.eventLog != nil {
		h.eventLog.Error(1, msg)
	}
}

// Execute implements the svc.Handler interface for Windows service execution
func (h *handler) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (ssec bool, errno uint32) {
	const cmdsAccepted = svc.AcceptStop | svc.AcceptShutdown

	changes <- svc.Status{State: svc.StartPending}

	run := startInstance(h.instance)

	changes <- svc.Status{State: svc.Running, Accepts: cmdsAccepted}
	h.logInfo(fmt.Sprintf("%s service started", h.instance.Name))

	for {
		select {
		case c := <-r:
			switch c.Cmd {
			case svc.Interrogate:
				changes <- c.CurrentStatus

			case svc.Stop, svc.Shutdown:
				h.logInfo(fmt.Sprintf("%s service stopping", h.instance.Name))
				changes <- svc.Status{State: svc.StopPending}

				if err := run.Stop(h.grace); err != nil {
					h.logError(fmt.Sprintf("Bridge stopped with error: %v", err))
				}

				h.logInfo(fmt.Sprintf("%s service stopped", h.instance.Name))
				return false, 0

			default:
				h.logError(fmt.Sprintf("Unexpected service control request: %d", c.Cmd))
			}

		case <-run.Done():
			if err := run.Err(); err != nil {
				h.logError(fmt.Sprintf("Bridge error: %v", err))
				changes <- svc.Status{State: svc.StopPending}
				return false, 1
			}
			h.logInfo(fmt.Sprintf("%s service exited", h.instance.Name))
			changes <- svc.Status{State: svc.StopPending}
			return false, 0
		}
	}
}
