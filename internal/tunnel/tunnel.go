// Package tunnel supervises an optional cloudflared quick tunnel that exposes
// the local webhook listener publicly. It is fully decoupled from request
// handling: the process runs in a background goroutine and reports discrete
// events through callbacks.
package tunnel

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"regexp"

	"github.com/rs/zerolog"
)

var publicURLPattern = regexp.MustCompile(`https?://[\w.-]*trycloudflare\.com`)

// Supervisor launches the tunnel binary and watches its output for the public URL.
type Supervisor struct {
	bin      string
	localURL string
	log      zerolog.Logger
	onURL    func(string)
	onExit   func(error)

	cmd *exec.Cmd
}

// New builds a supervisor for the given binary and local listener URL.
// onURL fires once, with the first public URL seen; onExit fires when the
// process ends. Either callback may be nil.
func New(bin, localURL string, log zerolog.Logger, onURL func(string), onExit func(error)) *Supervisor {
	return &Supervisor{
		bin:      bin,
		localURL: localURL,
		log:      log,
		onURL:    onURL,
		onExit:   onExit,
	}
}

// Start spawns the tunnel process and begins scanning its output. It returns
// immediately; discovery and exit are reported via the callbacks.
func (s *Supervisor) Start(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.bin, "tunnel", "--url", s.localURL, "--no-autoupdate")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return err
	}
	s.cmd = cmd
	s.log.Info().Str("bin", s.bin).Str("local", s.localURL).Msg("tunnel started")

	go func() {
		s.consume(stdout)
		err := cmd.Wait()
		s.log.Warn().Err(err).Msg("tunnel exited")
		if s.onExit != nil {
			s.onExit(err)
		}
	}()
	return nil
}

// Stop terminates the tunnel process if it is still running.
func (s *Supervisor) Stop() {
	if s.cmd != nil && s.cmd.Process != nil {
		s.log.Info().Msg("stopping tunnel")
		_ = s.cmd.Process.Kill()
	}
}

// consume scans process output line by line, logging everything and firing
// onURL for the first public URL discovered.
func (s *Supervisor) consume(r io.Reader) {
	found := false
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		s.log.Info().Str("line", line).Msg("tunnel output")
		if !found {
			if url := publicURLPattern.FindString(line); url != "" {
				found = true
				s.log.Info().Str("url", url).Msg("tunnel url discovered")
				if s.onURL != nil {
					s.onURL(url)
				}
			}
		}
	}
}
