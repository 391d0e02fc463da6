package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"sqlihunter/internal/classify"
	"sqlihunter/internal/config"
	"sqlihunter/internal/logx"
	"sqlihunter/internal/patterns"
	"sqlihunter/internal/urlutil"
	"sqlihunter/internal/wayback"
)

func TestMain(m *testing.M) {
	logx.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// stubCDX simula el índice CDX en formato texto: respuestas por dominio y un
// set de dominios que siempre responden 500.
func stubCDX(t *testing.T, responses map[string]string, failing map[string]bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		domain := strings.TrimSuffix(r.URL.Query().Get("url"), "/*")
		if failing[domain] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(responses[domain]))
	}))
}

func testScheduler(srvURL string, set *patterns.Set, workers int) *scheduler {
	return &scheduler{
		client: &wayback.Client{
			HTTP:       &http.Client{Timeout: 5 * time.Second},
			Base:       srvURL,
			Format:     wayback.FormatText,
			MaxRetries: 3,
			Backoff:    time.Millisecond,
		},
		set:     set,
		opts:    classify.Options{},
		policy:  urlutil.PolicyFullQuery,
		workers: workers,
	}
}

func collect(t *testing.T, results <-chan DomainResult) map[string]DomainResult {
	t.Helper()
	out := make(map[string]DomainResult)
	for res := range results {
		if _, dup := out[res.Domain]; dup {
			t.Fatalf("duplicate result for %s", res.Domain)
		}
		out[res.Domain] = res
	}
	return out
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%q): %v", path, err)
	}
	contents := strings.TrimSpace(string(data))
	if contents == "" {
		return nil
	}
	return strings.Split(contents, "\n")
}

// urlsIn descarta las líneas de cabecera (#) de un artefacto.
func urlsIn(t *testing.T, path string) []string {
	t.Helper()
	var urls []string
	for _, line := range readLines(t, path) {
		if strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls
}

func TestSchedulerOneResultPerDomain(t *testing.T) {
	t.Parallel()

	srv := stubCDX(t, map[string]string{
		"a.example":     "http://a.example/p.php?id=1\nhttp://a.example/about\nhttp://other.org/fuera?id=9\n",
		"empty.example": "",
	}, map[string]bool{"fail.example": true})
	defer srv.Close()

	sched := testScheduler(srv.URL, patterns.NewSet([]string{"id="}), 2)
	domains := []string{"a.example", "empty.example", "fail.example"}

	results := collect(t, sched.run(context.Background(), domains))
	if len(results) != len(domains) {
		t.Fatalf("expected %d results, got %d", len(domains), len(results))
	}

	a := results["a.example"]
	// La URL fuera de scope se descarta antes de dedupe/clasificación.
	wantRaw := []string{"http://a.example/p.php?id=1", "http://a.example/about"}
	if diff := cmp.Diff(wantRaw, a.Raw); diff != "" {
		t.Fatalf("unexpected raw for a.example (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"http://a.example/p.php?id=1"}, a.Suspicious); diff != "" {
		t.Fatalf("unexpected suspicious for a.example (-want +got):\n%s", diff)
	}
	if a.Failed {
		t.Fatal("a.example must not be flagged failed")
	}

	empty := results["empty.example"]
	if empty.Failed || len(empty.Raw) != 0 || len(empty.Suspicious) != 0 {
		t.Fatalf("empty domain: %+v", empty)
	}

	failed := results["fail.example"]
	if !failed.Failed {
		t.Fatal("fail.example must be flagged failed")
	}
	if len(failed.Raw) != 0 || len(failed.Suspicious) != 0 {
		t.Fatalf("failed domain must carry empty sets: %+v", failed)
	}
}

func TestSchedulerSuspiciousSubsetOfRaw(t *testing.T) {
	t.Parallel()

	srv := stubCDX(t, map[string]string{
		"a.example": "http://a.example/x?id=1\nhttp://a.example/x?id=1\nhttp://a.example/y?q=union+select\nhttp://a.example/plain\n",
	}, nil)
	defer srv.Close()

	sched := testScheduler(srv.URL, patterns.NewSet([]string{`' OR 1=1 --`}), 1)
	results := collect(t, sched.run(context.Background(), []string{"a.example"}))

	res := results["a.example"]
	if len(res.Suspicious) > len(res.Raw) {
		t.Fatalf("|suspicious| > |raw|: %d vs %d", len(res.Suspicious), len(res.Raw))
	}
	rawSet := make(map[string]struct{}, len(res.Raw))
	for _, u := range res.Raw {
		rawSet[u] = struct{}{}
	}
	for _, u := range res.Suspicious {
		if _, ok := rawSet[u]; !ok {
			t.Fatalf("suspicious URL %q not in raw set", u)
		}
	}
	// Las dos copias de ?id=1 colapsan a una.
	if len(res.Raw) != 3 {
		t.Fatalf("expected 3 deduped raw urls, got %v", res.Raw)
	}
}

func TestSchedulerCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(""))
	}))
	defer srv.Close()
	defer close(release)

	sched := testScheduler(srv.URL, patterns.Default(), 1)
	ctx, cancel := context.WithCancel(context.Background())

	results := sched.run(ctx, []string{"a.example", "b.example", "c.example"})
	cancel()

	done := make(chan int)
	go func() {
		count := 0
		for range results {
			count++
		}
		done <- count
	}()

	select {
	case count := <-done:
		// Sin dominios completados, ninguno produce resultado.
		if count != 0 {
			t.Fatalf("expected 0 results after cancel, got %d", count)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not shut down after cancellation")
	}
}

func TestAggregateGlobalDedupe(t *testing.T) {
	t.Parallel()

	outdir := t.TempDir()
	results := make(chan DomainResult, 3)
	results <- DomainResult{
		Domain:     "a.example",
		Raw:        []string{"http://a.example/x?id=1", "http://shared.example/s?id=9"},
		Suspicious: []string{"http://a.example/x?id=1", "http://shared.example/s?id=9"},
	}
	results <- DomainResult{
		Domain:     "b.example",
		Raw:        []string{"http://SHARED.example/s?id=9", "http://b.example/y?id=2"},
		Suspicious: []string{"http://SHARED.example/s?id=9", "http://b.example/y?id=2"},
	}
	results <- DomainResult{Domain: "c.example", Failed: true}
	close(results)

	agg := aggregate(results, outdir, urlutil.PolicyFullQuery, newProgressBar(0))

	// El duplicado entre dominios (host case-insensitive) queda una sola vez,
	// en orden de primera contribución.
	wantGlobal := []string{
		"http://a.example/x?id=1",
		"http://shared.example/s?id=9",
		"http://b.example/y?id=2",
	}
	if diff := cmp.Diff(wantGlobal, agg.GlobalSuspicious); diff != "" {
		t.Fatalf("unexpected global set (-want +got):\n%s", diff)
	}

	if agg.TotalRaw != 4 || agg.TotalSuspicious != 4 {
		t.Fatalf("unexpected totals: raw=%d suspicious=%d", agg.TotalRaw, agg.TotalSuspicious)
	}
	if agg.Failed != 1 || agg.Completed != 2 {
		t.Fatalf("unexpected counters: failed=%d completed=%d", agg.Failed, agg.Completed)
	}

	// Artefactos por dominio, incluso para el fallido (vacío).
	got := urlsIn(t, filepath.Join(outdir, "a.example", "raw_urls.txt"))
	if diff := cmp.Diff([]string{"http://a.example/x?id=1", "http://shared.example/s?id=9"}, got); diff != "" {
		t.Fatalf("unexpected a.example raw artifact (-want +got):\n%s", diff)
	}
	if urls := urlsIn(t, filepath.Join(outdir, "c.example", "suspicious_urls.txt")); len(urls) != 0 {
		t.Fatalf("failed domain artifact should be empty, got %v", urls)
	}

	// Artefactos globales en la raíz del directorio de la ejecución: el crudo
	// agregado también se deduplica entre dominios.
	if diff := cmp.Diff(wantGlobal, agg.GlobalRaw); diff != "" {
		t.Fatalf("unexpected global raw set (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantGlobal, urlsIn(t, filepath.Join(outdir, "raw_urls.txt"))); diff != "" {
		t.Fatalf("unexpected global raw artifact (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantGlobal, urlsIn(t, agg.SuspiciousPath)); diff != "" {
		t.Fatalf("unexpected global artifact (-want +got):\n%s", diff)
	}
}

func TestRunEndToEnd(t *testing.T) {
	srv := stubCDX(t, map[string]string{
		"example.com": "http://example.com/index.php?id=1\nhttp://example.com/about\n",
	}, nil)
	defer srv.Close()

	base := t.TempDir()
	patternsPath := filepath.Join(base, "sqli.patterns")
	if err := os.WriteFile(patternsPath, []byte("id=\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := &config.Config{
		Domain:       "example.com",
		OutDir:       base,
		Workers:      2,
		Retries:      3,
		BackoffS:     1,
		TimeoutS:     5,
		Format:       "text",
		Dedup:        "fullquery",
		ParamLength:  20,
		PatternsPath: patternsPath,
		ArchiveBase:  srv.URL,
	}

	if err := Run(cfg); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rundir := findRunDir(t, base, "output_example.com_")

	raw := urlsIn(t, filepath.Join(rundir, "example.com", "raw_urls.txt"))
	if len(raw) != 2 {
		t.Fatalf("expected 2 raw urls, got %v", raw)
	}

	globalRaw := urlsIn(t, filepath.Join(rundir, "raw_urls.txt"))
	if diff := cmp.Diff(raw, globalRaw); diff != "" {
		t.Fatalf("unexpected aggregated raw artifact (-want +got):\n%s", diff)
	}

	suspicious := urlsIn(t, filepath.Join(rundir, "suspicious_urls.txt"))
	want := []string{"http://example.com/index.php?id=1"}
	if diff := cmp.Diff(want, suspicious); diff != "" {
		t.Fatalf("unexpected suspicious artifact (-want +got):\n%s", diff)
	}

	commands := urlsIn(t, filepath.Join(rundir, "commands.txt"))
	if len(commands) == 0 {
		t.Fatal("expected generated commands")
	}
	for _, cmd := range commands {
		if !strings.Contains(cmd, filepath.Join(rundir, "suspicious_urls.txt")) {
			t.Fatalf("command must reference the global artifact: %q", cmd)
		}
	}

	if _, err := os.Stat(filepath.Join(rundir, "metrics.json")); err != nil {
		t.Fatalf("expected metrics artifact: %v", err)
	}
}

func TestRunMultiDomainWithEmptyAndFailed(t *testing.T) {
	srv := stubCDX(t, map[string]string{
		"a.example":     "http://a.example/p?id=1\n",
		"empty.example": "",
	}, map[string]bool{"fail.example": true})
	defer srv.Close()

	base := t.TempDir()
	listPath := filepath.Join(base, "domains.txt")
	list := "a.example\nempty.example\nfail.example\n"
	if err := os.WriteFile(listPath, []byte(list), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	patternsPath := filepath.Join(base, "sqli.patterns")
	if err := os.WriteFile(patternsPath, []byte("id=\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := &config.Config{
		ListPath:     listPath,
		OutDir:       base,
		Workers:      3,
		Retries:      2,
		BackoffS:     1,
		TimeoutS:     5,
		Format:       "text",
		Dedup:        "fullquery",
		ParamLength:  20,
		PatternsPath: patternsPath,
		ArchiveBase:  srv.URL,
	}

	if err := Run(cfg); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rundir := findRunDir(t, base, "output_batch_")

	// El dominio vacío y el fallido no bloquean al resto.
	var domainsWithArtifacts []string
	for _, d := range []string{"a.example", "empty.example", "fail.example"} {
		if _, err := os.Stat(filepath.Join(rundir, d, "raw_urls.txt")); err == nil {
			domainsWithArtifacts = append(domainsWithArtifacts, d)
		}
	}
	sort.Strings(domainsWithArtifacts)
	want := []string{"a.example", "empty.example", "fail.example"}
	if diff := cmp.Diff(want, domainsWithArtifacts); diff != "" {
		t.Fatalf("expected artifacts for every domain (-want +got):\n%s", diff)
	}

	suspicious := urlsIn(t, filepath.Join(rundir, "suspicious_urls.txt"))
	if diff := cmp.Diff([]string{"http://a.example/p?id=1"}, suspicious); diff != "" {
		t.Fatalf("unexpected global artifact (-want +got):\n%s", diff)
	}
	globalRaw := urlsIn(t, filepath.Join(rundir, "raw_urls.txt"))
	if diff := cmp.Diff([]string{"http://a.example/p?id=1"}, globalRaw); diff != "" {
		t.Fatalf("unexpected aggregated raw artifact (-want +got):\n%s", diff)
	}
}

func findRunDir(t *testing.T, base, prefix string) string {
	t.Helper()
	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			return filepath.Join(base, entry.Name())
		}
	}
	t.Fatalf("no run dir with prefix %q under %s", prefix, base)
	return ""
}
