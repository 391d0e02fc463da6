// Package wayback consulta el índice CDX de la Wayback Machine para obtener
// las URLs históricas de un dominio. El cliente maneja los dos formatos de
// respuesta del índice (texto plano y JSON) y reintenta con backoff
// exponencial cancelable ante fallos de red o de upstream.
package wayback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sqlihunter/internal/logx"
)

// Format selecciona el formato de salida pedido al índice CDX.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat valida el valor de configuración.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("wayback: formato desconocido %q", s)
	}
}

const (
	// DefaultBase es el host del índice público.
	DefaultBase = "https://web.archive.org"
	// DefaultRetries son los intentos totales por dominio.
	DefaultRetries = 3
	// DefaultBackoff es la base del backoff exponencial entre intentos.
	DefaultBackoff = 2 * time.Second

	userAgent = "sqlihunter/1.0"
)

// ErrUpstream señala una respuesta no-2xx o un payload que no decodifica.
var ErrUpstream = errors.New("wayback: respuesta inválida del índice")

// Client consulta el índice CDX para un dominio. Un fallo tras agotar los
// reintentos no es fatal para la ejecución: el scheduler marca el dominio
// como fallido y sigue con el resto.
type Client struct {
	HTTP       *http.Client
	Base       string
	Format     Format
	Collapse   bool
	MaxRetries int
	Backoff    time.Duration
}

// New construye un cliente con los defaults del índice público.
func New() *Client {
	return &Client{
		HTTP:       &http.Client{Timeout: 30 * time.Second},
		Base:       DefaultBase,
		Format:     FormatText,
		MaxRetries: DefaultRetries,
		Backoff:    DefaultBackoff,
	}
}

func (c *Client) retries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return DefaultRetries
}

func (c *Client) backoff() time.Duration {
	if c.Backoff > 0 {
		return c.Backoff
	}
	return DefaultBackoff
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// QueryURL construye la URL del índice:
// {base}/cdx/search/cdx?url={domain}/*&output={txt|json}&fl=original[&collapse=urlkey]
func (c *Client) QueryURL(domain string) string {
	base := c.Base
	if base == "" {
		base = DefaultBase
	}
	output := "txt"
	if c.Format == FormatJSON {
		output = "json"
	}

	query := fmt.Sprintf("%s/cdx/search/cdx?url=%s/*&output=%s&fl=original", base, domain, output)
	if c.Collapse {
		query += "&collapse=urlkey"
	}
	return query
}

// Fetch devuelve las URLs históricas del dominio. Una respuesta 2xx vacía
// significa "sin URLs archivadas" y devuelve (nil, nil); el error no nulo
// solo aparece tras agotar todos los intentos o al cancelarse el contexto.
func (c *Client) Fetch(ctx context.Context, domain string) ([]string, error) {
	attempts := c.retries()
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		urls, err := c.fetchOnce(ctx, domain)
		if err == nil {
			if len(urls) == 0 {
				logx.Debugf("wayback: %s sin URLs archivadas", domain)
			}
			return urls, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		// delay = base * 2^attempt, esperado en un timer cancelable.
		delay := c.backoff() << uint(attempt)
		logx.Warnf("wayback: %s intento %d/%d falló: %v (reintento en %s)",
			domain, attempt+1, attempts, err, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("wayback: %s agotó %d intentos: %w", domain, attempts, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, domain string) ([]string, error) {
	query := c.QueryURL(domain)
	logx.Tracef("wayback: GET %s", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, query, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if c.Format == FormatJSON {
		return parseJSON(body)
	}
	return parseText(body), nil
}

func parseText(body []byte) []string {
	var urls []string
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		urls = append(urls, line)
	}
	return urls
}

// parseJSON decodifica la matriz 2D del CDX: la primera fila es la cabecera
// (["original"]) y cada fila posterior lleva la URL como único elemento.
func parseJSON(body []byte) ([]string, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "[]" {
		return nil, nil
	}

	var rows [][]string
	if err := json.Unmarshal([]byte(trimmed), &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	urls := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		if u := strings.TrimSpace(row[0]); u != "" {
			urls = append(urls, u)
		}
	}
	return urls, nil
}
