package modules

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/nomis52/barline/markup"
	"github.com/nomis52/barline/module"
	"github.com/nomis52/barline/theme"
)

const (
	defaultProbeTimeout = 2 * time.Second
	netIcon             = "⇅"
)

// NetCheck probes a set of TCP endpoints on a cron schedule and shows how
// many are reachable. An unreachable endpoint is part of the rendered state,
// not a module failure.
type NetCheck struct {
	trigger module.Trigger
	hosts   []string
	timeout time.Duration
	dial    func(ctx context.Context, addr string) error

	up int
}

// NewNetCheck probes each host ("host:port") whenever the cron schedule
// fires.
func NewNetCheck(schedule string, hosts []string, timeout time.Duration) (*NetCheck, error) {
	trigger, err := module.NewCronTrigger(schedule)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	n := &NetCheck{
		trigger: trigger,
		hosts:   hosts,
		timeout: timeout,
	}
	n.dial = n.tcpDial
	return n, nil
}

func (n *NetCheck) WaitTrigger(ctx context.Context) error {
	return n.trigger.Wait(ctx)
}

func (n *NetCheck) Update(ctx context.Context) error {
	up := 0
	for _, host := range n.hosts {
		if err := n.dial(ctx, host); err == nil {
			up++
		}
	}
	n.up = up
	return nil
}

func (n *NetCheck) Render() string {
	icon := markup.Fg(netIcon, theme.MainIcon)
	status := fmt.Sprintf("%d/%d", n.up, len(n.hosts))

	color := theme.Good
	switch {
	case n.up == 0:
		color = theme.Critical
	case n.up < len(n.hosts):
		color = theme.Notice
	}
	return icon + " " + markup.Fg(status, color)
}

func (n *NetCheck) tcpDial(ctx context.Context, addr string) error {
	dialCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}
