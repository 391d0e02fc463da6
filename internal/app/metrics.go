package app

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"sqlihunter/internal/logx"
)

const metricsArtifact = "metrics.json"

type domainEntry struct {
	Domain          string  `json:"domain"`
	Raw             int     `json:"raw"`
	Suspicious      int     `json:"suspicious"`
	Failed          bool    `json:"failed"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type runReport struct {
	GeneratedAt      time.Time     `json:"generated_at"`
	DurationSeconds  float64       `json:"duration_seconds"`
	DomainsRequested int           `json:"domains_requested"`
	DomainsCompleted int           `json:"domains_completed"`
	DomainsFailed    int           `json:"domains_failed"`
	TotalRaw         int           `json:"total_raw"`
	TotalSuspicious  int           `json:"total_suspicious"`
	GlobalRaw        int           `json:"global_raw_unique"`
	GlobalSuspicious int           `json:"global_suspicious_unique"`
	Domains          []domainEntry `json:"domains"`
}

// writeRunMetrics vuelca el resumen de la ejecución a metrics.json. Los
// dominios se listan en el orden de entrada para que el reporte sea
// reproducible aunque los resultados lleguen desordenados.
func writeRunMetrics(outdir string, agg *RunAggregate, inputOrder []string, elapsed time.Duration) {
	report := runReport{
		GeneratedAt:      time.Now().UTC(),
		DurationSeconds:  elapsed.Seconds(),
		DomainsRequested: len(inputOrder),
		DomainsCompleted: agg.Completed,
		DomainsFailed:    agg.Failed,
		TotalRaw:         agg.TotalRaw,
		TotalSuspicious:  agg.TotalSuspicious,
		GlobalRaw:        len(agg.GlobalRaw),
		GlobalSuspicious: len(agg.GlobalSuspicious),
	}

	for _, domain := range inputOrder {
		summary, ok := agg.PerDomain[domain]
		if !ok {
			// Cancelado antes de completarse: no hay resultado que reportar.
			continue
		}
		report.Domains = append(report.Domains, domainEntry{
			Domain:          summary.Domain,
			Raw:             summary.Raw,
			Suspicious:      summary.Suspicious,
			Failed:          summary.Failed,
			DurationSeconds: summary.Duration.Seconds(),
		})
	}

	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logx.Errorf("metrics: no se pudo serializar el reporte: %v", err)
		return
	}
	path := filepath.Join(outdir, metricsArtifact)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		logx.Errorf("metrics: no se pudo escribir %s: %v", path, err)
	}
}

func logRunSummary(agg *RunAggregate, inputOrder []string, elapsed time.Duration) {
	for _, domain := range inputOrder {
		summary, ok := agg.PerDomain[domain]
		if !ok {
			logx.Warnf("run: %s sin resultado (cancelado)", domain)
			continue
		}
		status := "ok"
		if summary.Failed {
			status = "fallido"
		}
		logx.Infof("run: %s status=%s crudas=%d sospechosas=%d dur=%s",
			summary.Domain, status, summary.Raw, summary.Suspicious,
			summary.Duration.Round(time.Millisecond))
	}
	logx.Infof("run: dominios=%d completados=%d fallidos=%d crudas=%d sospechosas_globales=%d dur=%s",
		len(inputOrder), agg.Completed, agg.Failed, agg.TotalRaw,
		len(agg.GlobalSuspicious), elapsed.Round(time.Millisecond))
}
