// Package sqlmap genera los comandos del escáner downstream a partir del
// artefacto de URLs sospechosas. La generación es puro templating; la
// ejecución es una conveniencia opcional fuera del pipeline núcleo.
package sqlmap

import (
	"context"
	"fmt"
	"strings"

	"sqlihunter/internal/logx"
	"sqlihunter/internal/runner"
)

// Preset nombra una combinación de riesgo/nivel/técnica del escáner.
type Preset struct {
	Name      string
	Risk      int
	Level     int
	Technique string
	Extra     []string
}

// DefaultPresets replica el comando clásico de la herramienta original como
// preset principal, más dos variantes acotadas por técnica.
func DefaultPresets() []Preset {
	return []Preset{
		{Name: "default", Risk: 3, Level: 5, Extra: []string{"--batch", "--dbs"}},
		{Name: "boolean-blind", Risk: 2, Level: 3, Technique: "B", Extra: []string{"--batch"}},
		{Name: "union", Risk: 2, Level: 3, Technique: "U", Extra: []string{"--batch"}},
	}
}

// Render produce un comando por preset referenciando el artefacto. No ejecuta
// nada, solo emite las cadenas listas para copiar.
func Render(artifactPath string, presets []Preset) []string {
	commands := make([]string, 0, len(presets))
	for _, p := range presets {
		var b strings.Builder
		fmt.Fprintf(&b, "sqlmap -m %s --level %d --risk %d", artifactPath, p.Level, p.Risk)
		if p.Technique != "" {
			fmt.Fprintf(&b, " --technique=%s", p.Technique)
		}
		for _, extra := range p.Extra {
			b.WriteByte(' ')
			b.WriteString(extra)
		}
		commands = append(commands, b.String())
	}
	return commands
}

// scanTimeoutS acota la invocación opcional: sqlmap sobre listas grandes
// puede quedarse colgado indefinidamente.
const scanTimeoutS = 3600

// Run lanza el comando generado vía shell cuando el operador lo pidió
// explícitamente. Acepta sqlmap o sqlmap.py en PATH.
func Run(ctx context.Context, command string) error {
	bin, ok := runner.FindBin("sqlmap", "sqlmap.py")
	if !ok {
		return fmt.Errorf("sqlmap: %w", runner.ErrMissingBinary)
	}
	// Los comandos se generan con el nombre canónico; si en PATH solo está
	// la variante .py se reescribe el ejecutable.
	if bin != "sqlmap" {
		command = bin + strings.TrimPrefix(command, "sqlmap")
	}

	ctx, cancel := runner.WithTimeout(ctx, scanTimeoutS)
	defer cancel()

	out := make(chan string, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for line := range out {
			logx.Infof("sqlmap: %s", line)
		}
	}()

	err := runner.RunCommand(ctx, "sh", []string{"-c", command}, out)
	close(out)
	<-done
	return err
}
