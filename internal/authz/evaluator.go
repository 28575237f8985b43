// Package authz implements the authorization services policy evaluation
// engine: resources, scopes, policies and permissions of a resource server,
// and the evaluation of permission requests against them.
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const pkgName = "github.com/uselagoon/keycloak-authz/internal/authz"

// Evaluator evaluates permission requests.
// This object should not be constructed by itself, only via NewEvaluator().
type Evaluator struct {
	log       *slog.Logger
	store     Store
	directory Directory
	providers Providers
}

// Option performs optional configuration on Evaluator objects during
// initialization, and is passed to NewEvaluator().
type Option func(*Evaluator)

// WithDirectory configures the Evaluator to resolve role, group and client
// identifiers in policy configuration through d.
func WithDirectory(d Directory) Option {
	return func(e *Evaluator) {
		e.directory = d
	}
}

// WithProviders replaces the default policy provider registry.
func WithProviders(ps Providers) Option {
	return func(e *Evaluator) {
		e.providers = ps
	}
}

// NewEvaluator applies the given Options and returns a new Evaluator.
func NewEvaluator(log *slog.Logger, store Store, opts ...Option) *Evaluator {
	e := Evaluator{
		log:       log,
		store:     store,
		providers: DefaultProviders(),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return &e
}

// Providers returns the Evaluator's policy provider registry.
func (ev *Evaluator) Providers() Providers {
	return ev.providers
}

// WithDirectory returns a copy of the Evaluator which resolves role, group
// and client identifiers through d.
func (ev *Evaluator) WithDirectory(d Directory) *Evaluator {
	clone := *ev
	clone.directory = d
	return &clone
}

// Evaluation is the state of a single evaluation run. Policy outcomes are
// memoized for the duration of the run.
type Evaluation struct {
	ev        *Evaluator
	log       *slog.Logger
	server    *ResourceServer
	context   *Context
	directory Directory
	memo      map[string]Effect
	visiting  map[string]bool
}

// Context returns the evaluation context.
func (e *Evaluation) Context() *Context {
	return e.context
}

// target is a resource and the scopes requested on it.
type target struct {
	resource *Resource
	scopes   []*Scope
}

// Evaluate evaluates the permission requests against the policies of the
// resource server. An empty request list evaluates every resource of the
// server, in which case the decision is granted if any permission was
// granted.
func (ev *Evaluator) Evaluate(
	ctx context.Context,
	rs *ResourceServer,
	ectx *Context,
	requests []PermissionRequest,
) (*Decision, error) {
	// set up tracing
	ctx, span := otel.Tracer(pkgName).Start(ctx, "Evaluate")
	defer span.End()
	span.SetAttributes(attribute.String("resourceServer", rs.ClientID))
	timer := prometheus.NewTimer(evaluationLatency)
	defer timer.ObserveDuration()
	e := &Evaluation{
		ev:        ev,
		log:       ev.log.With(slog.String("resourceServer", rs.ClientID)),
		server:    rs,
		context:   ectx,
		directory: ev.directory,
		memo:      map[string]Effect{},
		visiting:  map[string]bool{},
	}
	if ectx.Identity != nil {
		e.log = e.log.With(slog.Any("identity", ectx.Identity))
	}
	decision, err := e.evaluate(ctx, requests)
	if err != nil {
		evaluationsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		return nil, err
	}
	if decision.Granted {
		evaluationsTotal.WithLabelValues("granted").Inc()
	} else {
		evaluationsTotal.WithLabelValues("denied").Inc()
	}
	return decision, nil
}

func (e *Evaluation) evaluate(
	ctx context.Context,
	requests []PermissionRequest,
) (*Decision, error) {
	targets, complete, err := e.targets(ctx, requests)
	if err != nil {
		return nil, err
	}
	decision := &Decision{Permissions: []GrantedPermission{}}
	granted := complete && len(targets) > 0
	for _, t := range targets {
		gp, ok, err := e.evaluateTarget(ctx, t)
		if err != nil {
			return nil, err
		}
		if !ok {
			granted = false
			continue
		}
		decision.Permissions = append(decision.Permissions, *gp)
	}
	if len(requests) == 0 {
		granted = len(decision.Permissions) > 0
	}
	decision.Granted = granted
	return decision, nil
}

// targets resolves the permission requests. The second return value is
// false if any request named scopes none of which could be resolved.
func (e *Evaluation) targets(
	ctx context.Context,
	requests []PermissionRequest,
) ([]target, bool, error) {
	var targets []target
	if len(requests) == 0 {
		resources, err := e.ev.store.Resources(ctx, e.server.ID)
		if err != nil {
			return nil, false, fmt.Errorf("couldn't list resources: %v", err)
		}
		for _, r := range resources {
			scopes, err := e.resourceScopes(ctx, r)
			if err != nil {
				return nil, false, err
			}
			targets = append(targets, target{resource: r, scopes: scopes})
		}
		return targets, true, nil
	}
	complete := true
	for _, req := range requests {
		r, err := e.resolveResource(ctx, req)
		if err != nil {
			return nil, false, err
		}
		if r == nil {
			e.log.Debug("skipping unknown resource",
				slog.String("resource", req.Resource),
				slog.String("path", req.Path))
			continue
		}
		var scopes []*Scope
		if len(req.Scopes) == 0 {
			scopes, err = e.resourceScopes(ctx, r)
		} else {
			scopes, err = e.requestedScopes(ctx, r, req.Scopes)
			if err == nil && len(scopes) == 0 {
				complete = false
				continue
			}
		}
		if err != nil {
			return nil, false, err
		}
		targets = append(targets, target{resource: r, scopes: scopes})
	}
	return targets, complete, nil
}

// resolveResource finds the requested resource by ID, name or URI path. It
// returns nil if there is no such resource.
func (e *Evaluation) resolveResource(
	ctx context.Context,
	req PermissionRequest,
) (*Resource, error) {
	store := e.ev.store
	if req.Resource != "" {
		r, err := store.Resource(ctx, req.Resource)
		if err == nil && r.ResourceServerID == e.server.ID {
			return r, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("couldn't get resource %s: %v", req.Resource, err)
		}
		r, err = store.ResourceByName(ctx, e.server.ID, req.Resource)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("couldn't get resource %s: %v", req.Resource, err)
		}
		return r, nil
	}
	if req.Path != "" {
		resources, err := store.Resources(ctx, e.server.ID)
		if err != nil {
			return nil, fmt.Errorf("couldn't list resources: %v", err)
		}
		return bestMatch(resources, req.Path), nil
	}
	return nil, nil
}

func (e *Evaluation) resourceScopes(ctx context.Context, r *Resource) ([]*Scope, error) {
	var scopes []*Scope
	for _, id := range r.ScopeIDs {
		s, err := e.ev.store.Scope(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("couldn't get scope %s: %v", id, err)
		}
		scopes = append(scopes, s)
	}
	return scopes, nil
}

// requestedScopes resolves requested scope names or IDs. Scopes the
// resource doesn't have are dropped.
func (e *Evaluation) requestedScopes(
	ctx context.Context,
	r *Resource,
	requested []string,
) ([]*Scope, error) {
	all, err := e.resourceScopes(ctx, r)
	if err != nil {
		return nil, err
	}
	var scopes []*Scope
	for _, name := range requested {
		i := slices.IndexFunc(all, func(s *Scope) bool {
			return s.Name == name || s.ID == name
		})
		if i < 0 {
			e.log.Debug("dropping scope not associated with resource",
				slog.String("resource", r.Name),
				slog.String("scope", name))
			continue
		}
		if !slices.Contains(scopes, all[i]) {
			scopes = append(scopes, all[i])
		}
	}
	return scopes, nil
}

// permissions returns the permissions applicable to the resource and
// scopes, ordered by name.
func (e *Evaluation) permissions(
	ctx context.Context,
	r *Resource,
	scopes []*Scope,
) ([]*Policy, error) {
	store := e.ev.store
	seen := map[string]bool{}
	var perms []*Policy
	add := func(ps []*Policy, keep func(*Policy) bool) {
		for _, p := range ps {
			if seen[p.ID] || !p.IsPermission() || !keep(p) {
				continue
			}
			seen[p.ID] = true
			perms = append(perms, p)
		}
	}
	all := func(*Policy) bool { return true }
	byResource, err := store.PoliciesByResource(ctx, e.server.ID, r.ID)
	if err != nil {
		return nil, fmt.Errorf("couldn't get resource policies: %v", err)
	}
	add(byResource, all)
	if r.Type != "" {
		byType, err := store.PoliciesByResourceType(ctx, e.server.ID, r.Type)
		if err != nil {
			return nil, fmt.Errorf("couldn't get resource type policies: %v", err)
		}
		add(byType, func(p *Policy) bool { return p.Type == TypeResource })
	}
	if len(scopes) > 0 {
		scopeIDs := make([]string, len(scopes))
		for i, s := range scopes {
			scopeIDs[i] = s.ID
		}
		byScope, err := store.PoliciesByScopes(ctx, e.server.ID, scopeIDs)
		if err != nil {
			return nil, fmt.Errorf("couldn't get scope policies: %v", err)
		}
		add(byScope, func(p *Policy) bool {
			return p.Type == TypeScope &&
				(len(p.ResourceIDs) == 0 || slices.Contains(p.ResourceIDs, r.ID))
		})
	}
	slices.SortFunc(perms, func(a, b *Policy) int {
		return strings.Compare(a.Name, b.Name)
	})
	return perms, nil
}

// evaluateTarget returns the permission granted on the target, and whether
// anything was granted.
func (e *Evaluation) evaluateTarget(
	ctx context.Context,
	t target,
) (*GrantedPermission, bool, error) {
	gp := &GrantedPermission{
		ResourceID:   t.resource.ID,
		ResourceName: t.resource.Name,
	}
	if e.server.EnforcementMode == Disabled {
		for _, s := range t.scopes {
			gp.Scopes = append(gp.Scopes, s.Name)
		}
		return gp, true, nil
	}
	perms, err := e.permissions(ctx, t.resource, t.scopes)
	if err != nil {
		return nil, false, err
	}
	if len(t.scopes) == 0 {
		ok, err := e.decide(ctx, perms)
		if err != nil {
			return nil, false, err
		}
		return gp, ok, nil
	}
	for _, s := range t.scopes {
		var covering []*Policy
		for _, p := range perms {
			if p.Type == TypeResource || slices.Contains(p.ScopeIDs, s.ID) {
				covering = append(covering, p)
			}
		}
		ok, err := e.decide(ctx, covering)
		if err != nil {
			return nil, false, err
		}
		e.log.Debug("scope evaluated",
			slog.String("resource", t.resource.Name),
			slog.String("scope", s.Name),
			slog.Int("permissions", len(covering)),
			slog.Bool("granted", ok))
		if ok {
			gp.Scopes = append(gp.Scopes, s.Name)
		}
	}
	return gp, len(gp.Scopes) > 0, nil
}

// decide combines the permissions with the resource server's decision
// strategy. With no permissions the enforcement mode decides.
func (e *Evaluation) decide(ctx context.Context, perms []*Policy) (bool, error) {
	if len(perms) == 0 {
		return e.server.EnforcementMode == Permissive, nil
	}
	effects := make([]Effect, 0, len(perms))
	for _, p := range perms {
		effect, err := e.Policy(ctx, p)
		if err != nil {
			return false, err
		}
		effects = append(effects, effect)
	}
	return Combine(e.server.DecisionStrategy, effects), nil
}

// Policy evaluates a policy, applying its logic. Results are memoized for
// the evaluation run.
func (e *Evaluation) Policy(ctx context.Context, p *Policy) (Effect, error) {
	if effect, ok := e.memo[p.ID]; ok {
		return effect, nil
	}
	if e.visiting[p.ID] {
		return Deny, fmt.Errorf("%w: %s", ErrPolicyCycle, p.Name)
	}
	e.visiting[p.ID] = true
	defer delete(e.visiting, p.ID)
	provider, err := e.ev.providers.Provider(p.Type)
	if err != nil {
		return Deny, err
	}
	ok, err := provider.Evaluate(ctx, e, p)
	if err != nil {
		return Deny, fmt.Errorf("couldn't evaluate policy %s: %w", p.Name, err)
	}
	if p.Logic == Negative {
		ok = !ok
	}
	effect := Deny
	if ok {
		effect = Permit
	}
	e.memo[p.ID] = effect
	policyEvaluationsTotal.WithLabelValues(p.Type, effect.String()).Inc()
	e.log.Debug("policy evaluated",
		slog.String("policy", p.Name),
		slog.String("type", p.Type),
		slog.String("effect", effect.String()))
	return effect, nil
}

// Associated evaluates the policies associated with p and combines them
// with p's decision strategy. Associated policies which no longer exist are
// ignored, and a policy with no associated policies denies.
func (e *Evaluation) Associated(ctx context.Context, p *Policy) (bool, error) {
	var effects []Effect
	for _, id := range p.AssociatedPolicyIDs {
		ap, err := e.ev.store.Policy(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				e.log.Warn("ignoring missing associated policy",
					slog.String("policy", p.Name),
					slog.String("associatedPolicyID", id))
				continue
			}
			return false, fmt.Errorf("couldn't get policy %s: %v", id, err)
		}
		effect, err := e.Policy(ctx, ap)
		if err != nil {
			return false, err
		}
		effects = append(effects, effect)
	}
	return Combine(p.DecisionStrategy, effects), nil
}

// Combine applies the decision strategy to the effects. No effects is a
// deny under every strategy.
func Combine(strategy DecisionStrategy, effects []Effect) bool {
	var permits, denies int
	for _, effect := range effects {
		if effect == Permit {
			permits++
		} else {
			denies++
		}
	}
	switch strategy {
	case Affirmative:
		return permits > 0
	case Consensus:
		return permits > denies
	default:
		return permits > 0 && denies == 0
	}
}
