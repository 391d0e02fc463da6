// Package app orquesta una ejecución completa: resolución de dominios,
// patrones, scheduler concurrente, agregación y artefactos.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"sqlihunter/internal/classify"
	"sqlihunter/internal/config"
	"sqlihunter/internal/logx"
	"sqlihunter/internal/out"
	"sqlihunter/internal/patterns"
	"sqlihunter/internal/sqlmap"
	"sqlihunter/internal/urlutil"
	"sqlihunter/internal/wayback"
)

func Run(cfg *config.Config) error {
	domains, err := cfg.ResolveDomains()
	if err != nil {
		return err
	}

	policy, err := urlutil.ParsePolicy(cfg.Dedup)
	if err != nil {
		return err
	}
	format, err := wayback.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	set := loadPatterns(cfg.PatternsPath)
	logx.Infof("patterns: %d patrones activos", set.Len())

	outdir, err := createRunDir(cfg.OutDir, domains)
	if err != nil {
		return err
	}
	logx.Infof("run: %d dominios, salida en %s", len(domains), outdir)

	// La interrupción externa se propaga como cancelación de contexto hasta
	// cada request y cada espera de backoff.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := &wayback.Client{
		HTTP:       &http.Client{Timeout: time.Duration(cfg.TimeoutS) * time.Second},
		Base:       cfg.ArchiveBase,
		Format:     format,
		Collapse:   cfg.Collapse,
		MaxRetries: cfg.Retries,
		Backoff:    time.Duration(cfg.BackoffS) * time.Second,
	}

	sched := &scheduler{
		client:  client,
		set:     set,
		opts:    classify.Options{ParamLength: cfg.ParamLength},
		policy:  policy,
		workers: cfg.Workers,
	}

	start := time.Now()
	results := sched.run(ctx, domains)
	agg := aggregate(results, outdir, policy, newProgressBar(len(domains)))
	elapsed := time.Since(start)

	commands := sqlmap.Render(agg.SuspiciousPath, sqlmap.DefaultPresets())
	if _, err := out.WriteList(outdir, commandsArtifact, []string{
		"comandos sugeridos para el escáner downstream",
	}, commands); err != nil {
		logx.Errorf("run: no se pudo escribir %s: %v", commandsArtifact, err)
	}

	writeRunMetrics(outdir, agg, domains, elapsed)
	logRunSummary(agg, domains, elapsed)
	for _, cmd := range commands {
		logx.Infof("comando: %s", cmd)
	}

	if ctx.Err() != nil {
		logx.Warnf("run: interrumpido; artefactos de dominios completados en %s", outdir)
		return nil
	}

	if cfg.RunScanner {
		if len(agg.GlobalSuspicious) == 0 {
			logx.Infof("run: sin URLs sospechosas, se omite sqlmap")
		} else if err := sqlmap.Run(ctx, commands[0]); err != nil {
			logx.Errorf("run: sqlmap: %v", err)
		}
	}

	return nil
}

// loadPatterns garantiza un set utilizable: crea el archivo con los defaults
// si falta y cae al set por defecto ante cualquier error de lectura. Nunca
// aborta la ejecución.
func loadPatterns(path string) *patterns.Set {
	created, err := patterns.Ensure(path)
	if err != nil {
		logx.Warnf("patterns: no se pudo generar %s: %v (se usan los defaults en memoria)", path, err)
		return patterns.Default()
	}
	if created {
		logx.Infof("patterns: generado %s con el set por defecto", path)
	}

	set, err := patterns.Load(path)
	if err != nil {
		logx.Warnf("patterns: %v (se usan los defaults en memoria)", err)
		return patterns.Default()
	}
	return set
}

// createRunDir crea el directorio de salida determinista de la ejecución:
// output_<dominio|batch>_<timestamp-ms>.
func createRunDir(base string, domains []string) (string, error) {
	runID := "batch"
	if len(domains) == 1 {
		runID = domains[0]
	}
	dir := filepath.Join(base, fmt.Sprintf("output_%s_%d", runID, time.Now().UnixMilli()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("run: no se pudo crear %s: %w", dir, err)
	}
	return dir, nil
}
