// Package out escribe los artefactos de texto de una ejecución: un archivo
// por lista, una URL por línea, con cabeceras de comentario opcionales.
package out

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Writer struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	buf    *bufio.Writer
	seen   map[string]struct{}
	closed bool
}

// New crea (truncando) el archivo name dentro de outdir, creando el
// directorio si hace falta.
func New(outdir, name string) (*Writer, error) {
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return nil, err
	}
	p := filepath.Join(outdir, name)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{
		path: p,
		file: f,
		buf:  bufio.NewWriterSize(f, 64*1024),
		seen: make(map[string]struct{}),
	}, nil
}

// Path devuelve la ruta del artefacto.
func (w *Writer) Path() string { return w.path }

// WriteComment escribe una línea de cabecera con prefijo '#'. Los comentarios
// no participan en la deduplicación de líneas.
func (w *Writer) WriteComment(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return os.ErrClosed
	}
	return w.flushLine("# " + text)
}

// WriteLine escribe una línea única; duplicados exactos se descartan.
func (w *Writer) WriteLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return os.ErrClosed
	}
	if _, ok := w.seen[line]; ok {
		return nil
	}
	w.seen[line] = struct{}{}
	return w.flushLine(line)
}

// flushLine escribe y hace flush inmediato: si la ejecución se cancela, los
// artefactos de dominios ya completados quedan en disco íntegros.
func (w *Writer) flushLine(line string) error {
	if _, err := w.buf.WriteString(line); err != nil {
		return err
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return err
	}
	return w.buf.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	var err error
	if w.buf != nil {
		if e := w.buf.Flush(); e != nil && err == nil {
			err = e
		}
	}
	if w.file != nil {
		if e := w.file.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// WriteList es la conveniencia usada por el agregador: crea el artefacto,
// escribe cabeceras y líneas, y lo cierra. Devuelve la ruta escrita.
func WriteList(outdir, name string, comments, lines []string) (string, error) {
	w, err := New(outdir, name)
	if err != nil {
		return "", err
	}
	defer w.Close()

	for _, c := range comments {
		if err := w.WriteComment(c); err != nil {
			return "", err
		}
	}
	for _, ln := range lines {
		if err := w.WriteLine(ln); err != nil {
			return "", err
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return w.Path(), nil
}
