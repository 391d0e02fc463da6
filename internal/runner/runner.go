// Package runner localiza y ejecuta binarios externos. Solo lo usa la
// conveniencia opcional que lanza el escáner generado; el pipeline núcleo
// nunca ejecuta procesos.
package runner

import (
	"bufio"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"sqlihunter/internal/logx"
)

// ErrMissingBinary indica que el binario pedido no está en PATH.
var ErrMissingBinary = errors.New("binario no encontrado en PATH")

func HasBin(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// FindBin devuelve el primer nombre disponible en PATH de la lista.
func FindBin(names ...string) (string, bool) {
	for _, name := range names {
		if HasBin(name) {
			return name, true
		}
	}
	return "", false
}

// RunCommand ejecuta el comando y vuelca cada línea de stdout al canal out;
// stderr va al log en debug. Respeta la cancelación del contexto.
func RunCommand(ctx context.Context, name string, args []string, out chan<- string) error {
	logx.Debugf("run: %s %s", name, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, _ := cmd.StderrPipe()

	if err := cmd.Start(); err != nil {
		return err
	}

	go func() {
		s := bufio.NewScanner(stderr)
		for s.Scan() {
			logx.Debugf("%s stderr: %s", name, s.Text())
		}
	}()

	s := bufio.NewScanner(stdout)
	for s.Scan() {
		select {
		case <-ctx.Done():
			logx.Warnf("ctx cancel %s", name)
			return ctx.Err()
		default:
			out <- s.Text()
		}
	}
	if err := s.Err(); err != nil {
		return err
	}
	if err := cmd.Wait(); err != nil {
		return err
	}
	logx.Debugf("done: %s", name)
	return nil
}

// WithTimeout envuelve el contexto con el timeout en segundos (default 120).
func WithTimeout(parent context.Context, seconds int) (context.Context, context.CancelFunc) {
	if seconds <= 0 {
		seconds = 120
	}
	return context.WithTimeout(parent, time.Duration(seconds)*time.Second)
}
