package app

import "time"

// DomainResult es el paquete por dominio que emite el scheduler: URLs crudas
// ya deduplicadas, el subconjunto sospechoso y el flag de fallo cuando el
// fetch agotó sus reintentos.
type DomainResult struct {
	Domain     string
	Raw        []string
	Suspicious []string
	Failed     bool
	Duration   time.Duration
}

// DomainSummary es el desglose por dominio dentro del agregado global.
type DomainSummary struct {
	Domain     string
	Raw        int
	Suspicious int
	Failed     bool
	Duration   time.Duration
}

// RunAggregate es el resultado global de una ejecución: contadores, desglose
// por dominio y los sets globales (crudo y sospechoso) deduplicados en orden
// de llegada.
type RunAggregate struct {
	OutDir           string
	TotalRaw         int
	TotalSuspicious  int
	Completed        int
	Failed           int
	PerDomain        map[string]DomainSummary
	Arrival          []string
	GlobalRaw        []string
	GlobalSuspicious []string
	RawPath          string
	SuspiciousPath   string
}
