package config

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"sqlihunter/internal/netutil"
)

type Config struct {
	Domain       string
	ListPath     string
	OutDir       string
	Workers      int
	Retries      int
	BackoffS     int
	TimeoutS     int
	Format       string
	Dedup        string
	Collapse     bool
	ParamLength  int
	PatternsPath string
	ArchiveBase  string
	Verbosity    int
	RunScanner   bool
}

type fileConfig struct {
	Domain       *string `json:"domain" yaml:"domain"`
	ListPath     *string `json:"list" yaml:"list"`
	OutDir       *string `json:"outdir" yaml:"outdir"`
	Workers      *int    `json:"workers" yaml:"workers"`
	Retries      *int    `json:"retries" yaml:"retries"`
	BackoffS     *int    `json:"backoff" yaml:"backoff"`
	TimeoutS     *int    `json:"timeout" yaml:"timeout"`
	Format       *string `json:"format" yaml:"format"`
	Dedup        *string `json:"dedup" yaml:"dedup"`
	Collapse     *bool   `json:"collapse" yaml:"collapse"`
	ParamLength  *int    `json:"param_length" yaml:"param_length"`
	PatternsPath *string `json:"patterns" yaml:"patterns"`
	ArchiveBase  *string `json:"archive" yaml:"archive"`
	Verbosity    *int    `json:"verbosity" yaml:"verbosity"`
	RunScanner   *bool   `json:"run_sqlmap" yaml:"run_sqlmap"`
}

func ParseFlags() *Config {
	configPath := flag.String("config", "", "Ruta a un archivo de configuración (YAML o JSON)")
	domain := flag.String("d", "", "Dominio objetivo (ej: example.com)")
	list := flag.String("l", "", "Archivo con lista de dominios, uno por línea")
	outdir := flag.String("o", ".", "Directorio base para la salida (default: .)")
	workers := flag.Int("workers", 10, "Fetches concurrentes como máximo")
	retries := flag.Int("retries", 3, "Intentos por dominio contra el índice")
	backoff := flag.Int("backoff", 2, "Base del backoff exponencial (segundos)")
	timeout := flag.Int("timeout", 30, "Timeout por request HTTP (segundos)")
	format := flag.String("format", "text", "Formato de respuesta del índice: text|json")
	dedup := flag.String("dedup", "fullquery", "Política de dedup: fullquery|pathonly")
	collapse := flag.Bool("collapse", false, "Pedir collapse=urlkey al índice")
	paramLength := flag.Int("param-length", 20, "Umbral de longitud para valores de parámetro opacos")
	patterns := flag.String("patterns", "sqli.patterns", "Archivo de patrones SQLi")
	verbosity := flag.Int("v", 0, "Verbosity (0=info,2=debug,3=trace)")
	runScanner := flag.Bool("run-sqlmap", false, "Ejecutar el comando sqlmap generado al terminar")

	flag.Parse()

	setFlags := map[string]bool{}
	flag.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	cfg := &Config{
		Domain:       strings.TrimSpace(*domain),
		ListPath:     strings.TrimSpace(*list),
		OutDir:       strings.TrimSpace(*outdir),
		Workers:      *workers,
		Retries:      *retries,
		BackoffS:     *backoff,
		TimeoutS:     *timeout,
		Format:       strings.TrimSpace(*format),
		Dedup:        strings.TrimSpace(*dedup),
		Collapse:     *collapse,
		ParamLength:  *paramLength,
		PatternsPath: strings.TrimSpace(*patterns),
		Verbosity:    *verbosity,
		RunScanner:   *runScanner,
	}

	var fileCfg *fileConfig
	if *configPath != "" {
		info, err := os.Stat(*configPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Fatalf("no se pudo acceder al archivo de configuración %q: %v", *configPath, err)
			}
		} else if info.IsDir() {
			log.Fatalf("la ruta de configuración %q apunta a un directorio", *configPath)
		} else {
			fc, err := loadConfigFile(*configPath)
			if err != nil {
				log.Fatalf("no se pudo leer la configuración desde %q: %v", *configPath, err)
			}
			fileCfg = fc
		}
	}

	if fileCfg != nil {
		cfg.applyFile(fileCfg, setFlags)
	}

	cfg.applyDefaults()
	return cfg
}

// applyFile fusiona el archivo de configuración: un flag pasado en CLI
// siempre gana sobre el valor del archivo.
func (c *Config) applyFile(fc *fileConfig, setFlags map[string]bool) {
	if fc.Domain != nil && !setFlags["d"] {
		c.Domain = strings.TrimSpace(*fc.Domain)
	}
	if fc.ListPath != nil && !setFlags["l"] {
		c.ListPath = strings.TrimSpace(*fc.ListPath)
	}
	if fc.OutDir != nil && !setFlags["o"] {
		c.OutDir = strings.TrimSpace(*fc.OutDir)
	}
	if fc.Workers != nil && !setFlags["workers"] {
		c.Workers = *fc.Workers
	}
	if fc.Retries != nil && !setFlags["retries"] {
		c.Retries = *fc.Retries
	}
	if fc.BackoffS != nil && !setFlags["backoff"] {
		c.BackoffS = *fc.BackoffS
	}
	if fc.TimeoutS != nil && !setFlags["timeout"] {
		c.TimeoutS = *fc.TimeoutS
	}
	if fc.Format != nil && !setFlags["format"] {
		c.Format = strings.TrimSpace(*fc.Format)
	}
	if fc.Dedup != nil && !setFlags["dedup"] {
		c.Dedup = strings.TrimSpace(*fc.Dedup)
	}
	if fc.Collapse != nil && !setFlags["collapse"] {
		c.Collapse = *fc.Collapse
	}
	if fc.ParamLength != nil && !setFlags["param-length"] {
		c.ParamLength = *fc.ParamLength
	}
	if fc.PatternsPath != nil && !setFlags["patterns"] {
		c.PatternsPath = strings.TrimSpace(*fc.PatternsPath)
	}
	if fc.ArchiveBase != nil {
		c.ArchiveBase = strings.TrimSpace(*fc.ArchiveBase)
	}
	if fc.Verbosity != nil && !setFlags["v"] {
		c.Verbosity = *fc.Verbosity
	}
	if fc.RunScanner != nil && !setFlags["run-sqlmap"] {
		c.RunScanner = *fc.RunScanner
	}
}

func (c *Config) applyDefaults() {
	if c.OutDir == "" {
		c.OutDir = "."
	}
	if c.Workers <= 0 {
		c.Workers = 10
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.BackoffS <= 0 {
		c.BackoffS = 2
	}
	if c.TimeoutS <= 0 {
		c.TimeoutS = 30
	}
	if c.ParamLength <= 0 {
		c.ParamLength = 20
	}
	if c.PatternsPath == "" {
		c.PatternsPath = "sqli.patterns"
	}
}

// ResolveDomains devuelve la lista de trabajo validada, desde -d o -l.
// Que no quede ningún dominio utilizable es fatal en el arranque.
func (c *Config) ResolveDomains() ([]string, error) {
	var raw []string
	switch {
	case c.Domain != "":
		raw = []string{c.Domain}
	case c.ListPath != "":
		list, err := loadDomainList(c.ListPath)
		if err != nil {
			return nil, err
		}
		raw = list
	default:
		return nil, errors.New("config: falta el dominio (-d) o la lista (-l)")
	}

	seen := make(map[string]struct{}, len(raw))
	domains := make([]string, 0, len(raw))
	for _, entry := range raw {
		normalized := netutil.NormalizeDomain(entry)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		domains = append(domains, normalized)
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("config: ningún dominio válido en la entrada")
	}
	return domains, nil
}

func loadDomainList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: no se pudo leer la lista %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var domains []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: error leyendo %s: %w", path, err)
	}
	return domains, nil
}

func loadConfigFile(path string) (*fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg fileConfig
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			if err := json.Unmarshal(raw, &cfg); err != nil {
				return nil, err
			}
		}
	}

	return &cfg, nil
}
