// Package patterns carga el listado de patrones SQLi que alimenta la primera
// etapa del clasificador. El archivo es configuración de runtime: una línea
// por patrón, líneas vacías y comentarios (#) ignorados.
package patterns

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Defaults es el conjunto mínimo documentado que se genera cuando no existe
// archivo de patrones: tautologías clásicas más parámetros habituales.
var Defaults = []string{
	`' OR 1=1 --`,
	`" OR 1=1 --`,
	`' OR 'x'='x`,
	`" OR "x"="x`,
	`id=`,
	`page=`,
	`cat=`,
}

// Set es la secuencia ordenada e inmutable de patrones literales de una
// ejecución.
type Set struct {
	literals []string
}

// NewSet construye un Set a partir de literales ya depurados. Un listado
// vacío cae al conjunto por defecto: el clasificador nunca corre sin
// patrones.
func NewSet(literals []string) *Set {
	cleaned := make([]string, 0, len(literals))
	for _, l := range literals {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		cleaned = append(cleaned, l)
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, Defaults...)
	}
	return &Set{literals: cleaned}
}

// Default devuelve el Set mínimo documentado.
func Default() *Set { return NewSet(nil) }

// Literals expone los patrones en orden; el slice devuelto es una copia.
func (s *Set) Literals() []string {
	out := make([]string, len(s.literals))
	copy(out, s.literals)
	return out
}

func (s *Set) Len() int { return len(s.literals) }

// Load lee el archivo de patrones. Devuelve error solo ante un archivo
// presente pero ilegible; el caller decide si cae a Default.
func Load(path string) (*Set, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("patterns: no se pudo leer %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var literals []string
	for scanner.Scan() {
		literals = append(literals, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("patterns: error leyendo %s: %w", path, err)
	}
	return NewSet(literals), nil
}

// Ensure crea el archivo con los patrones por defecto cuando no existe.
// Un fallo aquí nunca aborta la ejecución: el caller sigue con Defaults.
func Ensure(path string) (created bool, err error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}

	var b strings.Builder
	for _, p := range Defaults {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
