// Package template implements the Template Resolver (C4): fetches and
// validates upstream template definitions, caching by normalized id.
// Follows a load/cache/validate shape, adapted from spec-resource
// validation to port/env validation.
package template

import (
	"context"
	"strconv"
	"strings"

	"novita-orchestrator/internal/model"
	"novita-orchestrator/pkg/cache"
	orcherrors "novita-orchestrator/pkg/errors"
)

var validPortTypes = map[string]bool{
	"http": true, "https": true, "tcp": true, "udp": true,
}

// Fetcher is the subset of the upstream client the resolver depends on.
type Fetcher interface {
	GetTemplate(ctx context.Context, id string) (model.Template, error)
	GetTemplateConfiguration(ctx context.Context, id string) (model.TemplateConfiguration, error)
}

// Resolver implements getTemplate / getTemplateConfiguration with
// validation and id-normalized caching.
type Resolver struct {
	upstream Fetcher
	cache    cache.Cache
}

// New builds a Resolver backed by a named cache from the Cache Manager.
func New(upstream Fetcher, cacheMgr *cache.Manager) *Resolver {
	c := cacheMgr.GetCache("template-resolver", cache.Options{
		Backend: cache.BackendMemory,
		MaxSize: 500,
	})
	return &Resolver{upstream: upstream, cache: c}
}

// GetTemplate fetches and validates a template by id, caching the result.
func (r *Resolver) GetTemplate(ctx context.Context, id string) (model.Template, error) {
	normalized, err := normalizeID(id)
	if err != nil {
		return model.Template{}, err
	}

	cacheKey := "template:" + normalized
	if v, ok := r.cache.Get(cacheKey); ok {
		if t, ok := v.(model.Template); ok {
			return t, nil
		}
	}

	t, err := r.upstream.GetTemplate(ctx, normalized)
	if err != nil {
		return model.Template{}, err
	}
	if err := validateTemplate(t.Image, t.Ports, t.Envs); err != nil {
		return model.Template{}, err
	}
	r.cache.Set(cacheKey, t, 0)
	return t, nil
}

// GetTemplateConfiguration returns the resolved {imageUrl, imageAuth?,
// ports[], envs[]} shape, validated per §4.4.
func (r *Resolver) GetTemplateConfiguration(ctx context.Context, id string) (model.TemplateConfiguration, error) {
	normalized, err := normalizeID(id)
	if err != nil {
		return model.TemplateConfiguration{}, err
	}

	cacheKey := "template-config:" + normalized
	if v, ok := r.cache.Get(cacheKey); ok {
		if cfg, ok := v.(model.TemplateConfiguration); ok {
			return cfg, nil
		}
	}

	cfg, err := r.upstream.GetTemplateConfiguration(ctx, normalized)
	if err != nil {
		return model.TemplateConfiguration{}, err
	}
	if err := validateTemplate(cfg.ImageURL, cfg.Ports, cfg.Envs); err != nil {
		return model.TemplateConfiguration{}, err
	}
	r.cache.Set(cacheKey, cfg, 0)
	return cfg, nil
}

// normalizeID trims whitespace and rejects empty or non-positive-integer
// ids per §4.4.
func normalizeID(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", orcherrors.New(orcherrors.KindValidation, "template id must not be empty")
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil || n <= 0 {
		return "", orcherrors.New(orcherrors.KindValidation, "template id must be a positive integer")
	}
	return trimmed, nil
}

// validateTemplate implements §4.4's validation rules.
func validateTemplate(imageURL string, ports []model.TemplatePort, envs []model.EnvVar) error {
	if strings.TrimSpace(imageURL) == "" {
		return orcherrors.New(orcherrors.KindValidation, "template imageUrl must not be empty")
	}
	for _, p := range ports {
		if p.Port < 1 || p.Port > 65535 {
			return orcherrors.Newf(orcherrors.KindValidation, "template port %d out of range [1,65535]", p.Port)
		}
		if !validPortTypes[p.Type] {
			return orcherrors.Newf(orcherrors.KindValidation, "template port type %q is not one of http, https, tcp, udp", p.Type)
		}
	}
	for _, e := range envs {
		if strings.TrimSpace(e.Key) == "" {
			return orcherrors.New(orcherrors.KindValidation, "template env key must not be empty")
		}
	}
	return nil
}
