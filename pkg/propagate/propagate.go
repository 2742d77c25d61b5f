// Package propagate implements the five-pass voltage-propagation engine
// of spec.md §4.5: seed min/max from declared supplies, widen to
// min-leak/max-leak through every conducting device, seed and propagate
// a first sim pass from declared logic inputs, recompute min/max with
// the sim state cutting off non-conducting paths, then refine
// resistances through the committed paths.
package propagate

import (
	"context"

	"github.com/donn/cvc/pkg/circuit"
	"github.com/donn/cvc/pkg/elaborate"
	"github.com/donn/cvc/pkg/equeue"
	"github.com/donn/cvc/pkg/model"
	"github.com/donn/cvc/pkg/netindex"
	"github.com/donn/cvc/pkg/power"
	"github.com/donn/cvc/pkg/vnet"
)

// Options carries the run-wide knobs that influence propagation itself
// (as opposed to the rule checker's error thresholds, which live in
// pkg/check).
type Options struct {
	HierarchyDelimiter string // default "/"
}

// Engine holds everything a propagation run mutates: the virtual-net
// maps, plus the read-only connectivity index and power intent it reads
// from.
type Engine struct {
	DB    *elaborate.Database
	Index *netindex.Index
	Power *power.Spec
	Maps  *vnet.Maps

	opts Options

	// Pumped records capacitor-coupled terminal pairs (by equivalent net),
	// consulted by the checker's Vds pumping-capacitor exemption.
	Pumped map[pumpedPair]bool
}

type pumpedPair struct{ a, b elaborate.NetID }

func pumpedKey(a, b elaborate.NetID) pumpedPair {
	if a > b {
		a, b = b, a
	}
	return pumpedPair{a, b}
}

// IsPumped reports whether a and b are recorded as capacitor-coupled
// terminals, consulted by the checker's Vds pumping-capacitor exemption
// (spec.md §4.6).
func (e *Engine) IsPumped(a, b elaborate.NetID) bool {
	return e.Pumped[pumpedKey(a, b)]
}

// New builds an Engine over an elaborated database and its connectivity
// index, ready to run all five passes.
func New(db *elaborate.Database, idx *netindex.Index, powerSpec *power.Spec, opts Options) *Engine {
	if opts.HierarchyDelimiter == "" {
		opts.HierarchyDelimiter = "/"
	}
	return &Engine{
		DB:     db,
		Index:  idx,
		Power:  powerSpec,
		Maps:   vnet.New(db),
		opts:   opts,
		Pumped: make(map[pumpedPair]bool),
	}
}

// mosMode controls whether, and under what condition, a MOS device's
// channel is treated as conducting during a pass.
type mosMode int

const (
	mosNever mosMode = iota
	mosAlways
	mosIfSimOn
)

// Run executes all five passes in spec.md §4.5's fixed order, returning
// the first error (context cancellation, or a structural propagation
// error) encountered.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.seedSupplies(ctx); err != nil {
		return err
	}
	if err := e.minMaxPass(ctx, vnet.Min, mosNever); err != nil {
		return err
	}
	if err := e.minMaxPass(ctx, vnet.Max, mosNever); err != nil {
		return err
	}
	if err := e.leakPass(ctx, vnet.MinLeak); err != nil {
		return err
	}
	if err := e.leakPass(ctx, vnet.MaxLeak); err != nil {
		return err
	}
	if err := e.firstSim(ctx); err != nil {
		return err
	}
	if err := e.minMaxPass(ctx, vnet.Min, mosIfSimOn); err != nil {
		return err
	}
	if err := e.minMaxPass(ctx, vnet.Max, mosIfSimOn); err != nil {
		return err
	}
	return e.resistanceRefinement(ctx)
}

// seedSupplies assigns minVoltage/maxVoltage from every declared power
// net. It enqueues nothing itself: minMaxPass and leakPass enqueue the
// devices of every net whose bound is already known, which includes
// these supplies.
func (e *Engine) seedSupplies(ctx context.Context) error {
	for n := elaborate.NetID(0); n < e.DB.NetCount; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		decl := e.Power.FindForNet(e.DB.NetName(n, e.opts.HierarchyDelimiter))
		if decl == nil || !decl.Kind.Has(power.Power) {
			continue
		}
		if decl.HasMin {
			e.Maps.SetMinVoltage(n, decl.Min.Millivolts)
		}
		if decl.HasMax {
			e.Maps.SetMaxVoltage(n, decl.Max.Millivolts)
		}
	}
	return nil
}

func (e *Engine) connectedDevices(n elaborate.NetID) []elaborate.DeviceID {
	n = e.Index.EquivalentNet(n)
	seen := make(map[elaborate.DeviceID]bool)
	var out []elaborate.DeviceID
	for _, list := range [][]elaborate.DeviceID{e.Index.Gates(n), e.Index.Sources(n), e.Index.Drains(n), e.Index.Bulks(n)} {
		for _, d := range list {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	return out
}

// minMaxPass runs the "designed connectivity" min or max propagation:
// resistor/switch_on/fuse_on always conduct, diode conducts one-way for
// Max only, and MOS conducts according to mos (never in the pre-sim
// pass, only-when-sim-confirmed-on in the post-sim pass).
func (e *Engine) minMaxPass(ctx context.Context, kind vnet.Kind, mos mosMode) error {
	q := equeue.New()
	qk := queueKindOf(kind)
	for n := elaborate.NetID(0); n < e.DB.NetCount; n++ {
		if voltageKnown(e.Maps, kind, n) {
			for _, d := range e.connectedDevices(n) {
				q.Push(d, qk, n, 0)
			}
		}
	}
	return e.drain(ctx, q, kind, qk, mos)
}

// leakPass runs the permissive min-leak/max-leak propagation: every
// conducting device, MOS included regardless of gate state, is treated
// as passing current. This yields the "could this net leak to X" bound
// the possible-leak checker compares sim voltages against.
func (e *Engine) leakPass(ctx context.Context, kind vnet.Kind) error {
	q := equeue.New()
	qk := queueKindOf(kind)
	source := vnet.Min
	if kind == vnet.MaxLeak {
		source = vnet.Max
	}
	for n := elaborate.NetID(0); n < e.DB.NetCount; n++ {
		if voltageKnown(e.Maps, source, n) {
			if kind == vnet.MinLeak {
				e.Maps.SetMinLeakVoltage(n, e.Maps.MinVoltage(n))
			} else {
				e.Maps.SetMaxLeakVoltage(n, e.Maps.MaxVoltage(n))
			}
			for _, d := range e.connectedDevices(n) {
				q.Push(d, qk, n, 0)
			}
		}
	}
	return e.drain(ctx, q, kind, qk, mosAlways)
}

// firstSim seeds sim voltages from declared logic inputs and propagates
// them through always-on devices and MOS channels that are definitely
// on given the gate's current sim voltage versus the model's threshold.
func (e *Engine) firstSim(ctx context.Context) error {
	q := equeue.New()
	for n := elaborate.NetID(0); n < e.DB.NetCount; n++ {
		decl := e.Power.FindForNet(e.DB.NetName(n, e.opts.HierarchyDelimiter))
		if decl == nil || !decl.Kind.Has(power.Input) || !decl.HasSim {
			continue
		}
		e.Maps.SetSimVoltage(n, decl.Sim.Millivolts)
		for _, d := range e.connectedDevices(n) {
			q.Push(d, equeue.SimQueue, n, 0)
		}
	}
	// Supply nets also carry a committed sim level equal to their min/max
	// (a supply doesn't toggle), so devices gated by a supply can resolve
	// their on/off state immediately.
	for n := elaborate.NetID(0); n < e.DB.NetCount; n++ {
		decl := e.Power.FindForNet(e.DB.NetName(n, e.opts.HierarchyDelimiter))
		if decl == nil || !decl.Kind.Has(power.Power) || e.Maps.HasSimVoltage(n) {
			continue
		}
		if decl.HasSim {
			e.Maps.SetSimVoltage(n, decl.Sim.Millivolts)
		} else if decl.HasMin && decl.HasMax && decl.Min.Millivolts == decl.Max.Millivolts {
			e.Maps.SetSimVoltage(n, decl.Min.Millivolts)
		}
		if e.Maps.HasSimVoltage(n) {
			for _, d := range e.connectedDevices(n) {
				q.Push(d, equeue.SimQueue, n, 0)
			}
		}
	}
	return e.drain(ctx, q, vnet.Sim, equeue.SimQueue, mosIfSimOn)
}

// resistanceRefinement re-derives final path resistances through the
// now-committed min/max paths. TryImprove already accumulates resistance
// per edge as those edges are installed, so this pass simply warms
// FinalNet's path-compression cache for every net rather than
// re-deriving the propagation from scratch.
func (e *Engine) resistanceRefinement(ctx context.Context) error {
	for n := elaborate.NetID(0); n < e.DB.NetCount; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		e.Maps.FinalNet(vnet.Min, n)
		e.Maps.FinalNet(vnet.Max, n)
	}
	return nil
}

func queueKindOf(kind vnet.Kind) equeue.Kind {
	switch kind {
	case vnet.Min, vnet.MinLeak:
		return equeue.MinQueue
	case vnet.Max, vnet.MaxLeak:
		return equeue.MaxQueue
	default:
		return equeue.SimQueue
	}
}

func voltageKnown(m *vnet.Maps, kind vnet.Kind, n elaborate.NetID) bool {
	switch kind {
	case vnet.Min:
		return m.MinVoltage(n) != vnet.UnknownVoltage
	case vnet.Max:
		return m.MaxVoltage(n) != vnet.UnknownVoltage
	case vnet.MinLeak:
		return m.MinLeakVoltage(n) != vnet.UnknownVoltage
	case vnet.MaxLeak:
		return m.MaxLeakVoltage(n) != vnet.UnknownVoltage
	default:
		return m.HasSimVoltage(n)
	}
}

// drain dispatches events from q in ascending-resistance order, applying
// the per-device propagation rule for kind until q is empty or ctx is
// cancelled.
func (e *Engine) drain(ctx context.Context, q *equeue.Queue, kind vnet.Kind, qk equeue.Kind, mos mosMode) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		ev, ok := q.Pop()
		if !ok {
			return nil
		}
		inst, dev := e.DB.DeviceAt(ev.Device)
		e.propagateDevice(q, qk, kind, mos, inst, dev, ev)
	}
}

func (e *Engine) global(inst *elaborate.Instance, dev *circuit.Device, local int) elaborate.NetID {
	return e.Index.EquivalentNet(inst.LocalToGlobalNetID[dev.Nets[local]])
}

// propagateDevice applies dev's propagation rule (spec.md §4.5) given
// that ev.Net just had its kind-bound improved. It pushes an improved
// bound to dev's other terminal(s) and enqueues their connected devices.
func (e *Engine) propagateDevice(q *equeue.Queue, qk equeue.Kind, kind vnet.Kind, mos mosMode, inst *elaborate.Instance, dev *circuit.Device, ev equeue.Event) {
	m := dev.Model
	if m == nil {
		return
	}

	switch {
	case m.Type == model.Capacitor:
		if len(dev.Nets) >= 2 {
			a, b := e.global(inst, dev, netindex.TermA), e.global(inst, dev, netindex.TermB)
			e.Pumped[pumpedKey(a, b)] = true
		}
		return

	case m.Type == model.FuseOff || m.Type == model.SwitchOff:
		return

	case m.Type == model.FuseOn:
		e.propagateBothWays(q, qk, kind, inst, dev, ev, 0)

	case m.Type == model.Resistor || m.Type == model.SwitchOn:
		r, err := m.Resistance(nil)
		if err != nil {
			r = 0
		}
		e.propagateBothWays(q, qk, kind, inst, dev, ev, r)

	case m.Type == model.Diode:
		if kind != vnet.Max && kind != vnet.MaxLeak {
			return
		}
		if len(dev.Nets) < 2 {
			return
		}
		anode, cathode := e.global(inst, dev, netindex.TermAnode), e.global(inst, dev, netindex.TermCathode)
		if ev.Net != anode {
			return // one-way: anode -> cathode only
		}
		e.tryPush(q, qk, kind, anode, cathode, ev.Resistance)

	case m.Type.IsMos():
		e.propagateMos(q, qk, kind, mos, inst, dev, ev)
	}
}

// propagateBothWays pushes ev.Net's bound across a two-terminal
// always-conducting device (resistor, switch_on, fuse_on) to its other
// terminal.
func (e *Engine) propagateBothWays(q *equeue.Queue, qk equeue.Kind, kind vnet.Kind, inst *elaborate.Instance, dev *circuit.Device, ev equeue.Event, resistance float64) {
	if len(dev.Nets) < 2 {
		return
	}
	a, b := e.global(inst, dev, netindex.TermA), e.global(inst, dev, netindex.TermB)
	switch ev.Net {
	case a:
		e.tryPush(q, qk, kind, a, b, ev.Resistance+resistance)
	case b:
		e.tryPush(q, qk, kind, b, a, ev.Resistance+resistance)
	}
}

// propagateMos pushes a sim or min/max bound across a MOS channel
// between source and drain, in whichever direction the already-known
// terminal allows, when the channel is conducting under mos.
func (e *Engine) propagateMos(q *equeue.Queue, qk equeue.Kind, kind vnet.Kind, mos mosMode, inst *elaborate.Instance, dev *circuit.Device, ev equeue.Event) {
	if len(dev.Nets) < 4 {
		return
	}
	switch mos {
	case mosNever:
		return
	case mosIfSimOn:
		if !e.isDefinitelyOn(inst, dev) {
			return
		}
	}

	m := dev.Model
	r, err := m.Resistance(nil)
	if err != nil {
		r = 0
	}
	source := e.global(inst, dev, netindex.TermSource)
	drain := e.global(inst, dev, netindex.TermDrain)
	total := ev.Resistance + r
	e.tryPush(q, qk, kind, source, drain, total)
	e.tryPush(q, qk, kind, drain, source, total)
}

// isDefinitelyOn reports whether dev's gate sim voltage, compared
// against whichever of source/drain already has a committed sim
// voltage, guarantees the channel conducts: Vgs past the model's
// threshold for an n-type channel, or the mirror image for p-type.
func (e *Engine) isDefinitelyOn(inst *elaborate.Instance, dev *circuit.Device) bool {
	m := dev.Model
	gate := e.global(inst, dev, netindex.TermGate)
	if !e.Maps.HasSimVoltage(gate) {
		return false
	}
	vg := e.Maps.SimVoltage(gate)
	vth := m.Vth.Voltage

	check := func(vref int32) bool {
		if m.Type.IsNType() {
			return vg-vref >= vth
		}
		return vref-vg >= vth
	}

	source := e.global(inst, dev, netindex.TermSource)
	if e.Maps.HasSimVoltage(source) {
		return check(e.Maps.SimVoltage(source))
	}
	drain := e.global(inst, dev, netindex.TermDrain)
	if e.Maps.HasSimVoltage(drain) {
		return check(e.Maps.SimVoltage(drain))
	}
	return false
}

// tryPush installs from's current bound under kind onto to, if it
// strictly improves to's existing bound (or to had none), recording the
// edge resistance for later FinalNet/Resistance queries and enqueuing
// to's connected devices for re-examination.
func (e *Engine) tryPush(q *equeue.Queue, qk equeue.Kind, kind vnet.Kind, from, to elaborate.NetID, totalResistance float64) {
	if from == to {
		return
	}
	// A declared supply keeps the bound its declaration seeded: min/max
	// and leak propagation never overwrite it.
	if kind != vnet.Sim {
		if decl := e.Power.FindForNet(e.DB.NetName(to, e.opts.HierarchyDelimiter)); decl != nil && decl.Kind.Has(power.Power) {
			isMin := kind == vnet.Min || kind == vnet.MinLeak
			if (isMin && decl.HasMin) || (!isMin && decl.HasMax) {
				return
			}
		}
	}

	// Min/max bounds track the extreme reachable from any source: a min
	// bound only ever moves down (the net could be pulled as low as the
	// weakest reachable driver), a max bound only ever moves up, per
	// spec.md §4.3's update rule ("installed iff it decreases (min/leak
	// pass) or increases (max pass) the voltage").
	installed := false
	switch kind {
	case vnet.Min:
		candidate := e.Maps.MinVoltage(from)
		if candidate == vnet.UnknownVoltage {
			return
		}
		if current := e.Maps.MinVoltage(to); current == vnet.UnknownVoltage || candidate < current {
			e.Maps.SetMinVoltage(to, candidate)
			installed = true
		}
	case vnet.Max:
		candidate := e.Maps.MaxVoltage(from)
		if candidate == vnet.UnknownVoltage {
			return
		}
		if current := e.Maps.MaxVoltage(to); current == vnet.UnknownVoltage || candidate > current {
			e.Maps.SetMaxVoltage(to, candidate)
			installed = true
		}
	case vnet.MinLeak:
		candidate := e.Maps.MinLeakVoltage(from)
		if candidate == vnet.UnknownVoltage {
			return
		}
		if current := e.Maps.MinLeakVoltage(to); current == vnet.UnknownVoltage || candidate < current {
			e.Maps.SetMinLeakVoltage(to, candidate)
			installed = true
		}
	case vnet.MaxLeak:
		candidate := e.Maps.MaxLeakVoltage(from)
		if candidate == vnet.UnknownVoltage {
			return
		}
		if current := e.Maps.MaxLeakVoltage(to); current == vnet.UnknownVoltage || candidate > current {
			e.Maps.SetMaxLeakVoltage(to, candidate)
			installed = true
		}
	default: // Sim: first committed assignment wins, never overwritten.
		if !e.Maps.HasSimVoltage(from) || e.Maps.HasSimVoltage(to) {
			return
		}
		e.Maps.SetSimVoltage(to, e.Maps.SimVoltage(from))
		installed = true
	}
	if !installed {
		return
	}

	e.Maps.TryImprove(kind, to, from, totalResistance, func(bool) bool { return true })
	for _, d := range e.connectedDevices(to) {
		q.Push(d, qk, to, totalResistance)
	}
}
