// Package classify decide si una URL archivada lleva un parámetro
// plausiblemente inyectable. La evaluación corre por etapas y la primera
// regla que matchea corta la evaluación; la función es pura y determinista.
package classify

import (
	"net/url"
	"regexp"
	"strings"

	"sqlihunter/internal/patterns"
)

// DefaultParamLength es el umbral por defecto para valores opacos largos.
// Es una heurística sin objetivo documentado de falsos positivos; por eso
// es configurable y no una constante del clasificador.
const DefaultParamLength = 20

// Options ajusta las heurísticas estructurales de la etapa 3.
type Options struct {
	// ParamLength marca como sospechoso cualquier valor de parámetro más
	// largo que este umbral y compuesto solo por alfabeto base64.
	ParamLength int
}

func (o Options) paramLength() int {
	if o.ParamLength > 0 {
		return o.ParamLength
	}
	return DefaultParamLength
}

// Verdict es el resultado de clasificar una URL: el booleano más la regla
// que disparó el match como evidencia.
type Verdict struct {
	Suspicious bool
	Rule       string
}

var keywordRules = []struct {
	name string
	re   *regexp.Regexp
}{
	{"sql-keyword", regexp.MustCompile(`(?i)\b(select|union|insert|update|delete|drop|exec)\b`)},
	{"boolean-shape", regexp.MustCompile(`(?i)['";]\s*(or|and)\b|\b(or|and)\s*['";]`)},
	{"numeric-tautology", regexp.MustCompile(`\d+\s*=\s*\d+`)},
}

var base64Alphabet = regexp.MustCompile(`^[A-Za-z0-9+/=_-]+$`)

// Classify evalúa una URL contra el set de patrones. Las URLs sin query son
// inmediatamente no sospechosas.
func Classify(rawURL string, set *patterns.Set, opts Options) Verdict {
	trimmed := strings.TrimSpace(rawURL)
	if !strings.Contains(trimmed, "?") {
		return Verdict{}
	}

	// Etapa 1: substrings literales del set, case-insensitive.
	lowered := strings.ToLower(trimmed)
	for _, lit := range set.Literals() {
		if strings.Contains(lowered, strings.ToLower(lit)) {
			return Verdict{Suspicious: true, Rule: "pattern:" + lit}
		}
	}

	// Etapa 2: keywords SQL, formas booleanas y tautologías numéricas.
	// Se evalúa sobre la forma percent-decoded: las URLs archivadas suelen
	// llegar con los espacios y comillas codificados.
	decoded := trimmed
	if d, err := url.QueryUnescape(trimmed); err == nil {
		decoded = d
	}
	for _, rule := range keywordRules {
		if rule.re.MatchString(decoded) {
			return Verdict{Suspicious: true, Rule: rule.name}
		}
	}

	// Etapa 3: heurísticas estructurales sobre los parámetros parseados.
	query := trimmed[strings.Index(trimmed, "?")+1:]
	if idx := strings.IndexByte(query, '#'); idx != -1 {
		query = query[:idx]
	}
	threshold := opts.paramLength()
	for _, param := range splitParams(query) {
		value := param.value
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		if value == "" {
			continue
		}
		if isNumeric(value) {
			return Verdict{Suspicious: true, Rule: "numeric-param:" + param.key}
		}
		if len(value) > threshold && base64Alphabet.MatchString(value) {
			return Verdict{Suspicious: true, Rule: "opaque-param:" + param.key}
		}
	}

	return Verdict{}
}

type queryParam struct {
	key   string
	value string
}

// splitParams parsea la query preservando el orden de aparición, de modo que
// la evidencia sea estable entre ejecuciones (url.Values itera en orden
// aleatorio de mapa).
func splitParams(query string) []queryParam {
	if query == "" {
		return nil
	}
	parts := strings.Split(query, "&")
	params := make([]queryParam, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		params = append(params, queryParam{key: key, value: value})
	}
	return params
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
