package publishers

import (
	"context"
	"fmt"
	"strings"
)

// Builder creates a Publisher from a config entry.
type Builder func(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error)

// Registry maps publisher types to builders. The zero value is empty; use
// DefaultRegistry for the built-in sinks. Registration is not synchronized
// and is expected to finish before Build is called.
type Registry struct {
	builders map[string]Builder
}

// DefaultRegistry knows the http, sqs, sns and pubsub sinks.
func DefaultRegistry() *Registry {
	r := &Registry{}
	r.Register(TypeHTTP, newHTTPPublisher)
	r.Register(TypeSQS, newSQSPublisher)
	r.Register(TypeSNS, newSNSPublisher)
	r.Register(TypePubSub, newPubSubPublisher)
	return r
}

// Register associates a builder with a publisher type, replacing any previous one.
func (r *Registry) Register(typ string, builder Builder) {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ == "" || builder == nil {
		return
	}
	if r.builders == nil {
		r.builders = make(map[string]Builder)
	}
	r.builders[typ] = builder
}

// Build constructs the publisher for one config entry.
func (r *Registry) Build(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("publisher %q has no type configured", cfg.ID)
	}
	builder, ok := r.builders[strings.ToLower(cfg.Type)]
	if !ok {
		return nil, fmt.Errorf("no publisher registered for type %q", cfg.Type)
	}
	pub, err := builder(ctx, cfg, orNoop(log))
	if err != nil {
		return nil, fmt.Errorf("build %s publisher %q: %w", cfg.Type, cfg.ID, err)
	}
	return pub, nil
}

// BuildAll constructs every enabled entry. On failure the publishers already
// built are closed before the error is returned.
func BuildAll(ctx context.Context, reg *Registry, cfgs []PublisherConfig, log Logger) ([]Publisher, error) {
	if reg == nil {
		return nil, fmt.Errorf("publisher registry is nil")
	}
	var pubs []Publisher
	for _, cfg := range cfgs {
		if !cfg.EnabledValue() {
			continue
		}
		pub, err := reg.Build(ctx, cfg, log)
		if err != nil {
			_ = NewFanout(pubs).Close()
			return nil, err
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}
