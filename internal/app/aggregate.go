package app

import (
	"fmt"
	"path/filepath"

	"sqlihunter/internal/logx"
	"sqlihunter/internal/out"
	"sqlihunter/internal/urlutil"
)

const (
	rawArtifact        = "raw_urls.txt"
	suspiciousArtifact = "suspicious_urls.txt"
	commandsArtifact   = "commands.txt"
)

// aggregate consume el stream de resultados: persiste los artefactos por
// dominio según van llegando (si la ejecución se cancela, lo ya completado
// queda en disco), y pliega los sets globales crudo y sospechoso deduplicados
// por clave en orden de primera contribución. Un fallo de IO en un artefacto
// se registra y no afecta a los demás.
func aggregate(results <-chan DomainResult, outdir string, policy urlutil.DedupPolicy, bar *progressBar) *RunAggregate {
	agg := &RunAggregate{
		OutDir:    outdir,
		PerDomain: make(map[string]DomainSummary),
	}
	seenRaw := make(map[string]struct{})
	seenSuspicious := make(map[string]struct{})

	for res := range results {
		agg.Arrival = append(agg.Arrival, res.Domain)
		agg.PerDomain[res.Domain] = DomainSummary{
			Domain:     res.Domain,
			Raw:        len(res.Raw),
			Suspicious: len(res.Suspicious),
			Failed:     res.Failed,
			Duration:   res.Duration,
		}

		status := "ok"
		switch {
		case res.Failed:
			agg.Failed++
			status = "fallido"
		case len(res.Raw) == 0:
			agg.Completed++
			status = "vacío"
		default:
			agg.Completed++
		}

		agg.TotalRaw += len(res.Raw)
		for _, u := range res.Raw {
			key := urlutil.Key(u, policy)
			if _, ok := seenRaw[key]; ok {
				continue
			}
			seenRaw[key] = struct{}{}
			agg.GlobalRaw = append(agg.GlobalRaw, u)
		}
		for _, u := range res.Suspicious {
			key := urlutil.Key(u, policy)
			if _, ok := seenSuspicious[key]; ok {
				continue
			}
			seenSuspicious[key] = struct{}{}
			agg.GlobalSuspicious = append(agg.GlobalSuspicious, u)
		}
		agg.TotalSuspicious += len(res.Suspicious)

		writeDomainArtifacts(outdir, res)
		bar.StepDone(res.Domain, status)
	}
	bar.Finish()

	agg.RawPath = writeGlobalList(outdir, rawArtifact, []string{
		fmt.Sprintf("URLs crudas agregadas (%d dominios, %d únicas)",
			len(agg.Arrival), len(agg.GlobalRaw)),
	}, agg.GlobalRaw)
	agg.SuspiciousPath = writeGlobalList(outdir, suspiciousArtifact, []string{
		fmt.Sprintf("URLs sospechosas agregadas (%d dominios, %d únicas)",
			len(agg.Arrival), len(agg.GlobalSuspicious)),
	}, agg.GlobalSuspicious)
	return agg
}

func writeDomainArtifacts(outdir string, res DomainResult) {
	domainDir := filepath.Join(outdir, res.Domain)

	rawComments := []string{
		fmt.Sprintf("URLs crudas de %s (índice CDX, deduplicadas)", res.Domain),
	}
	suspComments := []string{
		fmt.Sprintf("URLs sospechosas de %s (subconjunto de %s)", res.Domain, rawArtifact),
	}
	if res.Failed {
		note := "el fetch agotó sus reintentos; listado vacío"
		rawComments = append(rawComments, note)
		suspComments = append(suspComments, note)
	}

	if _, err := out.WriteList(domainDir, rawArtifact, rawComments, res.Raw); err != nil {
		logx.Errorf("aggregate: no se pudo escribir %s de %s: %v", rawArtifact, res.Domain, err)
	}
	if _, err := out.WriteList(domainDir, suspiciousArtifact, suspComments, res.Suspicious); err != nil {
		logx.Errorf("aggregate: no se pudo escribir %s de %s: %v", suspiciousArtifact, res.Domain, err)
	}
}

// writeGlobalList persiste un artefacto global y devuelve su ruta; si la
// escritura falla devuelve igualmente la ruta prevista para que el generador
// de comandos pueda referenciarla.
func writeGlobalList(outdir, name string, comments, lines []string) string {
	path, err := out.WriteList(outdir, name, comments, lines)
	if err != nil {
		logx.Errorf("aggregate: no se pudo escribir el artefacto global %s: %v", name, err)
		return filepath.Join(outdir, name)
	}
	return path
}
