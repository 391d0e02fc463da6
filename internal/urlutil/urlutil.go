// Package urlutil define la identidad canónica de una URL y la deduplicación
// que se aplica sobre los listados del índice histórico.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// DedupPolicy controla qué partes de la URL participan en la clave de
// deduplicación.
type DedupPolicy string

const (
	// PolicyFullQuery incluye la query string completa: dos URLs que solo
	// difieren en valores de parámetros cuentan como distintas. Es el
	// default porque la query es justo lo que inspecciona el clasificador.
	PolicyFullQuery DedupPolicy = "fullquery"
	// PolicyPathOnly colapsa a una URL representativa por endpoint
	// (scheme+host+path), ignorando parámetros.
	PolicyPathOnly DedupPolicy = "pathonly"
)

// ParsePolicy valida el valor de configuración.
func ParsePolicy(s string) (DedupPolicy, error) {
	switch DedupPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyFullQuery, "":
		return PolicyFullQuery, nil
	case PolicyPathOnly:
		return PolicyPathOnly, nil
	default:
		return "", fmt.Errorf("urlutil: política de dedup desconocida %q", s)
	}
}

// Key devuelve la clave canónica de una URL: scheme y host en minúsculas
// (puerto incluido), path tal cual, query según la política y fragmento
// siempre descartado. Una URL que no parsea usa su forma recortada como
// clave para no perderla.
func Key(raw string, policy DedupPolicy) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return trimmed
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(parsed.Scheme))
	b.WriteString("://")
	b.WriteString(strings.ToLower(parsed.Host))
	b.WriteString(parsed.EscapedPath())
	if policy == PolicyFullQuery && parsed.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(parsed.RawQuery)
	}
	return b.String()
}

// Dedupe reduce la secuencia a un representante por clave, conservando el
// orden de primera aparición.
func Dedupe(urls []string, policy DedupPolicy) []string {
	if len(urls) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		key := Key(trimmed, policy)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
