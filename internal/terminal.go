package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/starford/hedgey/internal/wm"
)

// commandEngine starts argv as the process behind terminal windows. The
// process outlives the request that opened the window and is killed on Close.
func commandEngine(argv []string, logger *slog.Logger) wm.EngineStarter {
	if len(argv) == 0 {
		return nil
	}
	return func(context.Context) (io.Closer, error) {
		cmd := exec.Command(argv[0], argv[1:]...)
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start terminal engine: %w", err)
		}
		logger.Info("terminal engine started",
			slog.String("command", argv[0]),
			slog.Int("pid", cmd.Process.Pid))
		return &process{cmd: cmd, log: logger}, nil
	}
}

type process struct {
	cmd *exec.Cmd
	log *slog.Logger
}

func (p *process) Close() error {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	err := p.cmd.Wait()
	p.log.Info("terminal engine stopped", slog.Int("pid", p.cmd.Process.Pid))
	var exit *exec.ExitError
	if errors.As(err, &exit) {
		return nil
	}
	return err
}
