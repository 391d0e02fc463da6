package netutil

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeDomain extrae un hostname canónico de una línea de entrada.
// Acepta esquemas, credenciales, puertos y rutas opcionales; descarta
// comentarios, wildcards y líneas que no contengan un host plausible.
func NormalizeDomain(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return ""
	}
	if idx := strings.IndexAny(trimmed, " \t"); idx != -1 {
		trimmed = trimmed[:idx]
	}

	candidate := trimmed
	raw := candidate
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	if parsed, err := url.Parse(raw); err == nil && parsed.Hostname() != "" {
		candidate = parsed.Hostname()
	}

	if at := strings.LastIndex(candidate, "@"); at != -1 {
		candidate = candidate[at+1:]
	}
	if idx := strings.IndexAny(candidate, "/?#"); idx != -1 {
		candidate = candidate[:idx]
	}
	if host, _, err := net.SplitHostPort(candidate); err == nil {
		candidate = host
	}

	lowered := strings.ToLower(strings.TrimSpace(candidate))
	if lowered == "" || strings.Contains(lowered, "*") {
		return ""
	}
	if net.ParseIP(lowered) == nil && !strings.Contains(lowered, ".") {
		return ""
	}
	return lowered
}

// Scope representa el límite de dominio de una ejecución: el host objetivo y
// su dominio registrable según la public suffix list.
type Scope struct {
	hostname    string
	registrable string
	ip          net.IP
}

// NewScope construye un Scope a partir del dominio objetivo. Si el objetivo
// no normaliza a un host válido devuelve nil y no se aplica filtrado.
func NewScope(target string) *Scope {
	normalized := NormalizeDomain(target)
	if normalized == "" {
		return nil
	}
	if ip := net.ParseIP(normalized); ip != nil {
		return &Scope{hostname: normalized, ip: ip}
	}

	registrable := normalized
	if effective, err := publicsuffix.EffectiveTLDPlusOne(normalized); err == nil && effective != "" {
		registrable = strings.ToLower(effective)
	}
	return &Scope{hostname: normalized, registrable: registrable}
}

// AllowsHost indica si el host cae dentro del scope: el propio objetivo o
// cualquier subdominio suyo. Para objetivos IP solo se acepta la IP exacta.
func (s *Scope) AllowsHost(host string) bool {
	if s == nil {
		return true
	}
	normalized := NormalizeDomain(host)
	if normalized == "" {
		return false
	}
	if s.ip != nil {
		return normalized == s.hostname
	}
	if normalized == s.hostname || strings.HasSuffix(normalized, "."+s.hostname) {
		return true
	}
	// El objetivo puede ser el dominio registrable (example.com) y el índice
	// devolver www.example.com: mismo registrable, mismo scope.
	if s.hostname == s.registrable {
		if normalized == s.registrable || strings.HasSuffix(normalized, "."+s.registrable) {
			return true
		}
	}
	return false
}

// AllowsURL aplica AllowsHost sobre el host de una URL completa. Una URL sin
// esquema se interpreta como host+ruta.
func (s *Scope) AllowsURL(raw string) bool {
	if s == nil {
		return true
	}
	trimmed := strings.TrimSpace(raw)
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Hostname() == "" {
		return false
	}
	return s.AllowsHost(parsed.Hostname())
}
