// Copyright 2025 Certen Protocol
//
// Child-process supervisor for the dispute-resolution services the demo
// run starts locally. Grounded on
// original_source/apps/demo_runner/src/demo_runner/orchestrator.py's
// _ServiceProcess.

package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"time"
)

// serviceProcess supervises one locally spawned service binary, polling
// its health endpoint until it comes up.
type serviceProcess struct {
	name      string
	cmd       []string
	env       []string
	healthURL string
	proc      *exec.Cmd
}

func (p *serviceProcess) start(ctx context.Context) error {
	if len(p.cmd) == 0 {
		return fmt.Errorf("orchestrator: %s: empty command", p.name)
	}
	cmd := exec.CommandContext(ctx, p.cmd[0], p.cmd[1:]...)
	cmd.Env = p.env
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("orchestrator: start %s: %w", p.name, err)
	}
	p.proc = cmd
	return p.waitHealthy(ctx)
}

func (p *serviceProcess) waitHealthy(ctx context.Context) error {
	if p.healthURL == "" {
		return nil
	}
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.healthURL, nil)
		if err == nil {
			if resp, err := client.Do(req); err == nil {
				resp.Body.Close()
				if resp.StatusCode < 300 {
					return nil
				}
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
	return fmt.Errorf("orchestrator: %s did not become healthy within 30s", p.name)
}

func (p *serviceProcess) stop() {
	if p.proc == nil || p.proc.Process == nil {
		return
	}
	_ = p.proc.Process.Kill()
	_, _ = p.proc.Process.Wait()
}
