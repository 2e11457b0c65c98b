//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package scenario provides the named test scenarios run by the harness.
package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/capacity"
	"github.com/daos-stack/dharness/config"
	"github.com/daos-stack/dharness/fault"
	"github.com/daos-stack/dharness/fault/code"
	"github.com/daos-stack/dharness/faultinject"
	"github.com/daos-stack/dharness/lib/dmg"
	"github.com/daos-stack/dharness/lib/ranklist"
	"github.com/daos-stack/dharness/lib/remote"
	"github.com/daos-stack/dharness/logging"
	"github.com/daos-stack/dharness/orchestrator"
	"github.com/daos-stack/dharness/report"
	"github.com/daos-stack/dharness/workload"
)

type (
	// Cluster is the cluster management interface used by scenarios.
	Cluster interface {
		faultinject.Cluster
		faultinject.RebuildObserver
		workload.PoolInfoGetter
		StorageUsage(ctx context.Context, hosts []string) (map[string]*dmg.HostStorage, error)
		StorageScan(ctx context.Context, hosts []string) (map[string]*dmg.HostStorage, error)
		NetworkScan(ctx context.Context, hosts []string) ([]string, error)
		SystemQuery(ctx context.Context) ([]*dmg.Member, error)
		SystemStart(ctx context.Context, ranks ranklist.RankList) error
		PoolCreate(ctx context.Context, req *dmg.PoolCreateReq) (*dmg.PoolCreateResp, error)
		PoolDestroy(ctx context.Context, pool string) error
		ContainerCreate(ctx context.Context, req *dmg.ContainerCreateReq) (*dmg.ContainerCreateResp, error)
		Version(ctx context.Context) (string, error)
	}

	// CapacityProber returns the fleet capacity of a set of servers.
	CapacityProber interface {
		Probe(ctx context.Context, hosts []string) (*capacity.FleetCapacity, error)
	}

	// Recorder receives run-level measurements.
	Recorder interface {
		RecordCapacity(fc *capacity.FleetCapacity)
		RecordVerdict(v *orchestrator.Verdict)
	}

	// Env holds the collaborators shared by every scenario of a run.
	Env struct {
		Log      logging.Logger
		Config   *config.Harness
		Exec     remote.Executor
		Cluster  Cluster
		Prober   CapacityProber
		Runner   orchestrator.WorkloadRunner
		Injector orchestrator.FaultRunner
		Dfuse    *workload.Dfuse
		Metrics  Recorder
		RunID    string
	}

	// Scenario is a named test procedure.
	Scenario struct {
		Name        string
		Description string
		Tags        []string
		Run         func(ctx context.Context, env *Env, out *Outcome) error
	}

	// Registry is a set of scenarios addressable by name or tag.
	Registry struct {
		sync.RWMutex
		scenarios map[string]*Scenario
	}
)

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{scenarios: make(map[string]*Scenario)}
}

// Add registers a scenario.
func (r *Registry) Add(s *Scenario) error {
	if s == nil || s.Name == "" || s.Run == nil {
		return errors.New("scenario requires a name and a run function")
	}

	r.Lock()
	defer r.Unlock()
	if _, exists := r.scenarios[s.Name]; exists {
		return FaultDuplicate(s.Name)
	}
	r.scenarios[s.Name] = s
	return nil
}

// Lookup returns the scenario with the given name.
func (r *Registry) Lookup(name string) (*Scenario, error) {
	r.RLock()
	defer r.RUnlock()
	s, found := r.scenarios[name]
	if !found {
		return nil, FaultNotFound(name)
	}
	return s, nil
}

// List returns all scenarios sorted by name.
func (r *Registry) List() []*Scenario {
	r.RLock()
	defer r.RUnlock()
	out := make([]*Scenario, 0, len(r.scenarios))
	for _, s := range r.scenarios {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Select resolves names or tags to scenarios, preserving the order given
// and dropping duplicates. A tag selects every scenario carrying it, in
// name order.
func (r *Registry) Select(names ...string) ([]*Scenario, error) {
	var out []*Scenario
	seen := make(map[string]bool)
	add := func(s *Scenario) {
		if !seen[s.Name] {
			seen[s.Name] = true
			out = append(out, s)
		}
	}

	all := r.List()
	for _, name := range names {
		if s, err := r.Lookup(name); err == nil {
			add(s)
			continue
		}
		var tagged bool
		for _, s := range all {
			if s.HasTag(name) {
				add(s)
				tagged = true
			}
		}
		if !tagged {
			return nil, FaultNotFound(name)
		}
	}
	return out, nil
}

// HasTag returns true if the scenario carries the tag.
func (s *Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Default returns a Registry holding the built-in scenarios.
func Default() *Registry {
	r := NewRegistry()
	for _, register := range []func(*Registry) error{
		RegisterFill,
		RegisterPoolCreateAll,
		RegisterDeployment,
		RegisterIor,
	} {
		if err := register(r); err != nil {
			panic(err)
		}
	}
	return r
}

// Outcome is the result of one scenario run.
type Outcome struct {
	Name     string                  `json:"name"`
	RunID    string                  `json:"run_id"`
	Err      error                   `json:"-"`
	Verdicts []*orchestrator.Verdict `json:"verdicts,omitempty"`
	Notes    []string                `json:"notes,omitempty"`
	Start    time.Time               `json:"start"`
	Elapsed  time.Duration           `json:"elapsed"`
}

// Notef appends a note to the outcome.
func (o *Outcome) Notef(format string, args ...interface{}) {
	o.Notes = append(o.Notes, fmt.Sprintf(format, args...))
}

// AddVerdict records an orchestrated run.
func (o *Outcome) AddVerdict(v *orchestrator.Verdict) {
	o.Verdicts = append(o.Verdicts, v)
}

// Skipped returns true if the scenario did not run.
func (o *Outcome) Skipped() bool {
	return fault.IsFaultCode(o.Err, code.ScenarioSkipped)
}

// Passed returns true if the scenario ran and succeeded.
func (o *Outcome) Passed() bool {
	return o.Err == nil
}

// Status returns PASS, FAIL or SKIP.
func (o *Outcome) Status() string {
	switch {
	case o.Skipped():
		return "SKIP"
	case o.Passed():
		return string(workload.StatusPass)
	default:
		return string(workload.StatusFail)
	}
}

// Case converts the outcome into a report test case.
func (o *Outcome) Case() report.Case {
	c := report.Case{
		Name:    o.Name,
		Passed:  o.Passed(),
		Skipped: o.Skipped(),
		Output:  strings.Join(o.Notes, "\n"),
		Elapsed: o.Elapsed,
	}
	if o.Err != nil {
		c.Message = o.Err.Error()
		if fault.HasResolution(o.Err) {
			c.Detail = fault.ShowResolutionFor(o.Err)
		}
	}
	for _, v := range o.Verdicts {
		c.Output += "\n" + v.Table()
	}
	return c
}

// MarshalJSON includes the status and error text.
func (o *Outcome) MarshalJSON() ([]byte, error) {
	type toJSON Outcome
	var errStr string
	if o.Err != nil {
		errStr = o.Err.Error()
	}
	return json.Marshal(&struct {
		*toJSON
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}{
		toJSON: (*toJSON)(o),
		Status: o.Status(),
		Error:  errStr,
	})
}

// Run executes one scenario and returns its outcome. A failed verdict is
// a failure even if the scenario itself returned no error.
func Run(ctx context.Context, env *Env, s *Scenario) (out *Outcome) {
	out = &Outcome{Name: s.Name, RunID: env.RunID, Start: time.Now()}
	env.Log.Noticef("%s: starting (run %s)", s.Name, env.RunID)

	defer func() {
		if r := recover(); r != nil {
			out.Err = errors.Errorf("scenario panicked: %v", r)
		}
		out.Elapsed = time.Since(out.Start)
		switch {
		case out.Skipped():
			env.Log.Noticef("%s: %s", s.Name, out.Err)
		case out.Passed():
			env.Log.Noticef("%s: PASS after %s", s.Name, out.Elapsed.Round(time.Second))
		default:
			env.Log.Errorf("%s: FAIL after %s: %s", s.Name, out.Elapsed.Round(time.Second), out.Err)
		}
	}()

	out.Err = s.Run(logging.WithRun(ctx, env.Log, env.RunID), env, out)
	if out.Err == nil {
		for _, v := range out.Verdicts {
			if !v.Passed() {
				out.Err = FaultCheckFailed("%s: %s", v.Name, v.Reason())
				break
			}
		}
	}
	return
}

// RunAll runs the scenarios one after another.
func RunAll(ctx context.Context, env *Env, scenarios []*Scenario) []*Outcome {
	outcomes := make([]*Outcome, 0, len(scenarios))
	for _, s := range scenarios {
		if ctx.Err() != nil {
			outcomes = append(outcomes, &Outcome{Name: s.Name, RunID: env.RunID,
				Err: errors.Wrap(ctx.Err(), "not started")})
			continue
		}
		outcomes = append(outcomes, Run(ctx, env, s))
	}
	return outcomes
}

// param returns a scenario parameter from the harness config.
func (env *Env) param(scenario, key, def string) string {
	return env.Config.ScenarioParam(scenario, key, def)
}

func (env *Env) durationParam(scenario, key string, def time.Duration) (time.Duration, error) {
	raw := env.param(scenario, key, "")
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, config.FaultConfigInvalid(fmt.Sprintf("scenarios.%s.%s: %s", scenario, key, err))
	}
	return d, nil
}

func (env *Env) boolParam(scenario, key string, def bool) (bool, error) {
	switch strings.ToLower(env.param(scenario, key, "")) {
	case "":
		return def, nil
	case "true", "yes", "1":
		return true, nil
	case "false", "no", "0":
		return false, nil
	default:
		return false, config.FaultConfigInvalid(fmt.Sprintf("scenarios.%s.%s must be a boolean", scenario, key))
	}
}

// label returns a unique pool or container label.
func (env *Env) label(prefix string) string {
	return prefix + "_" + strings.SplitN(uuid.New().String(), "-", 2)[0]
}

func (env *Env) recordCapacity(fc *capacity.FleetCapacity) {
	if env.Metrics != nil {
		env.Metrics.RecordCapacity(fc)
	}
}

func (env *Env) recordVerdict(out *Outcome, v *orchestrator.Verdict) {
	out.AddVerdict(v)
	if env.Metrics != nil {
		env.Metrics.RecordVerdict(v)
	}
}

func (env *Env) testContext(name string) orchestrator.TestContext {
	return orchestrator.TestContext{
		Name:    name,
		RunID:   env.RunID,
		Servers: append([]string{}, env.Config.Servers...),
		Clients: append([]string{}, env.Config.Clients...),
	}
}

func (env *Env) orchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(env.Log, env.Runner, env.Injector,
		orchestrator.WithSettleDelay(env.Config.SettleDelay))
}

// createPool creates a pool and returns a function that destroys it.
func (env *Env) createPool(ctx context.Context, req *dmg.PoolCreateReq) (*dmg.PoolCreateResp, func(), error) {
	if len(req.Props) == 0 {
		req.Props = env.Config.Pool.Properties
	}
	resp, err := env.Cluster.PoolCreate(ctx, req)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "creating pool %s", req.Label)
	}
	env.Log.Infof("created pool %s (%s)", resp.Label, resp.UUID)

	destroy := func() {
		if err := env.Cluster.PoolDestroy(context.Background(), resp.Label); err != nil {
			env.Log.Errorf("destroying pool %s: %s", resp.Label, err)
			return
		}
		env.Log.Debugf("destroyed pool %s", resp.Label)
	}
	return resp, destroy, nil
}

func (env *Env) createContainer(ctx context.Context, pool string) (*dmg.ContainerCreateResp, error) {
	cc := env.Config.Container
	resp, err := env.Cluster.ContainerCreate(ctx, &dmg.ContainerCreateReq{
		Pool:        pool,
		Label:       env.label("cont"),
		Type:        cc.Type,
		ObjectClass: cc.ObjectClass,
		Props:       cc.Properties,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "creating container in pool %s", pool)
	}
	env.Log.Infof("created container %s in pool %s", resp.Label, pool)
	return resp, nil
}

// pause waits for d or until the context is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func groupsOrSkip(env *Env) ([]*workload.Group, error) {
	if len(env.Config.Groups) == 0 {
		return nil, FaultSkipped("no client hosts configured")
	}
	return env.Config.Groups, nil
}
