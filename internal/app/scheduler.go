package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"sqlihunter/internal/classify"
	"sqlihunter/internal/logx"
	"sqlihunter/internal/netutil"
	"sqlihunter/internal/patterns"
	"sqlihunter/internal/urlutil"
	"sqlihunter/internal/wayback"
)

// scheduler reparte un fetch por dominio con a lo sumo workers en vuelo.
type scheduler struct {
	client  *wayback.Client
	set     *patterns.Set
	opts    classify.Options
	policy  urlutil.DedupPolicy
	workers int
}

// run emite exactamente un DomainResult por dominio completado, en orden de
// terminación, y cierra el canal al acabar. Un dominio cuyo fetch agotó los
// reintentos produce igualmente su resultado (vacío, con Failed); solo la
// cancelación del contexto deja dominios sin resultado, que es la política
// de "artefactos solo para dominios completados".
func (s *scheduler) run(ctx context.Context, domains []string) <-chan DomainResult {
	results := make(chan DomainResult, len(domains))

	workers := s.workers
	if workers <= 0 {
		workers = 1
	}

	group, groupCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, workers)

	for _, raw := range domains {
		current := raw
		group.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
			defer func() { <-sem }()

			return s.processDomain(groupCtx, current, results)
		})
	}

	go func() {
		if err := group.Wait(); err != nil {
			logx.Warnf("scheduler: ejecución interrumpida: %v", err)
		}
		close(results)
	}()

	return results
}

func (s *scheduler) processDomain(ctx context.Context, domain string, results chan<- DomainResult) error {
	start := time.Now()

	raw, err := s.client.Fetch(ctx, domain)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logx.Errorf("scheduler: %s marcado como fallido: %v", domain, err)
		results <- DomainResult{Domain: domain, Failed: true, Duration: time.Since(start)}
		return nil
	}

	scope := netutil.NewScope(domain)
	inScope := raw[:0:0]
	for _, u := range raw {
		if scope.AllowsURL(u) {
			inScope = append(inScope, u)
		}
	}
	if dropped := len(raw) - len(inScope); dropped > 0 {
		logx.Debugf("scheduler: %s descartadas %d URLs fuera de scope", domain, dropped)
	}

	deduped := urlutil.Dedupe(inScope, s.policy)

	var suspicious []string
	for _, u := range deduped {
		verdict := classify.Classify(u, s.set, s.opts)
		if verdict.Suspicious {
			logx.Debugf("classify: %s regla=%s", u, verdict.Rule)
			suspicious = append(suspicious, u)
		}
	}

	if len(raw) == 0 {
		logx.Infof("scheduler: %s sin URLs archivadas", domain)
	} else {
		logx.Infof("scheduler: %s crudas=%d únicas=%d sospechosas=%d",
			domain, len(raw), len(deduped), len(suspicious))
	}

	results <- DomainResult{
		Domain:     domain,
		Raw:        deduped,
		Suspicious: suspicious,
		Duration:   time.Since(start),
	}
	return nil
}
