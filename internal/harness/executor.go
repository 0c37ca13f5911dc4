package harness

import (
	"fmt"
	"sync"
	"sync/atomic"

	"k8s.io/klog/v2"

	"github.com/born-ml/opcheck/internal/ops"
	"github.com/born-ml/opcheck/internal/parallel"
	"github.com/born-ml/opcheck/internal/perf"
	"github.com/born-ml/opcheck/internal/resource"
	"github.com/born-ml/opcheck/internal/tensor"
)

// Config tunes executor construction beyond the device and input shapes.
type Config struct {
	Index    int
	IsTrain  bool
	Seed     int64
	Parallel parallel.Config
}

// DefaultConfig runs in training mode with a fixed fill seed.
func DefaultConfig() Config {
	return Config{
		IsTrain:  true,
		Seed:     55,
		Parallel: parallel.DefaultConfig(),
	}
}

// Executor owns the five buffer groups of one operator test case and drives
// the operator over them. Construction is cheap; buffers and the operator
// instance appear on the first InitForward or InitBackward call, which are
// idempotent. One executor serves one operator on one device; its passes run
// sequentially, never concurrently with each other.
type Executor[T tensor.DType] struct {
	device      tensor.Device
	requested   tensor.Device
	cfg         Config
	inputShapes []tensor.Shape

	fwdOnce  sync.Once
	bwdOnce  sync.Once
	fwdReady atomic.Bool
	bwdReady atomic.Bool

	desc  ops.Descriptor
	op    ops.Operator
	ctx   *ops.Context
	arena *tensor.Arena
	sets  [RoleCount][]*tensor.Blob

	timing *perf.Timing

	// ResetForward refills the forward buffers; it runs once at the end of
	// forward initialization. ResetBackward does the same for the backward
	// buffers. Both default to a seeded pseudo-random fill.
	ResetForward  func(*Executor[T])
	ResetBackward func(*Executor[T])
}

// New creates an executor for the device with default config. A device
// without a registered accelerator silently falls back to the host, matching
// a build without GPU support.
func New[T tensor.DType](dev tensor.Device, inputShapes ...tensor.Shape) *Executor[T] {
	return NewWith[T](dev, DefaultConfig(), inputShapes...)
}

// NewWith creates an executor with explicit config.
func NewWith[T tensor.DType](dev tensor.Device, cfg Config, inputShapes ...tensor.Shape) *Executor[T] {
	effective := dev
	if dev != tensor.CPU && !tensor.HasAccelerator(dev) {
		klog.V(2).Infof("device %s has no registered accelerator, falling back to host", dev)
		effective = tensor.CPU
	}
	e := &Executor[T]{
		device:      effective,
		requested:   dev,
		cfg:         cfg,
		inputShapes: cloneShapes(inputShapes),
		timing:      perf.New(),
	}
	e.ResetForward = func(ex *Executor[T]) { ex.fillForward() }
	e.ResetBackward = func(ex *Executor[T]) { ex.fillBackward() }
	return e
}

// Device returns the device the executor actually runs on, after any host
// fallback.
func (e *Executor[T]) Device() tensor.Device {
	return e.device
}

// InitForward builds the operator and the forward buffers on the first call:
// it infers output and aux shapes and types from the descriptor, allocates
// the Input, Output and Aux groups, binds the forward resource requests, and
// runs the ResetForward hook. Later calls are no-ops regardless of arguments.
func (e *Executor[T]) InitForward(d ops.Descriptor, dtypes []tensor.DataType) {
	e.fwdOnce.Do(func() {
		e.initForward(d, dtypes)
		e.fwdReady.Store(true)
	})
}

// InitBackward guarantees forward initialization, then on the first call
// allocates the backward buffers: OutGrad shaped like the visible outputs
// only, InGrad shaped like every input. It binds the backward resource
// requests and runs the ResetBackward hook.
//
// The return value reports re-entry, not success: false on the call that
// performed the initialization, true on every later call.
func (e *Executor[T]) InitBackward(d ops.Descriptor, dtypes []tensor.DataType) bool {
	e.InitForward(d, dtypes)
	reentrant := true
	e.bwdOnce.Do(func() {
		reentrant = false
		e.initBackward()
		e.bwdReady.Store(true)
	})
	return reentrant
}

func (e *Executor[T]) initForward(d ops.Descriptor, dtypes []tensor.DataType) {
	if d == nil {
		panic("harness: InitForward with nil descriptor")
	}
	if len(dtypes) != len(e.inputShapes) {
		panic(fmt.Sprintf("harness: %s: %d input dtypes for %d input shapes",
			d.Name(), len(dtypes), len(e.inputShapes)))
	}
	e.desc = d

	outShapes, auxShapes, err := d.InferShape(e.inputShapes)
	if err != nil {
		panic(fmt.Sprintf("harness: %s: infer shapes: %v", d.Name(), err))
	}
	outTypes, auxTypes, err := d.InferType(dtypes)
	if err != nil {
		panic(fmt.Sprintf("harness: %s: infer types: %v", d.Name(), err))
	}
	if len(outTypes) != len(outShapes) || len(auxTypes) != len(auxShapes) {
		panic(fmt.Sprintf("harness: %s: inferred %d/%d types for %d/%d shapes",
			d.Name(), len(outTypes), len(auxTypes), len(outShapes), len(auxShapes)))
	}

	e.ctx = &ops.Context{
		Device:   e.device,
		Index:    e.cfg.Index,
		IsTrain:  e.cfg.IsTrain,
		Parallel: e.cfg.Parallel,
	}

	op, err := d.CreateOperator(e.ctx, e.inputShapes, dtypes)
	if err != nil {
		panic(fmt.Sprintf("harness: %s: create operator: %v", d.Name(), err))
	}
	if op == nil {
		panic(fmt.Sprintf("harness: %s: descriptor produced no operator", d.Name()))
	}
	e.op = op

	// Operator buffers live on the host; staging moves them per pass.
	e.arena = tensor.NewArena(tensor.CPU)
	e.sets[Input] = e.allocSet(e.inputShapes, dtypes)
	e.sets[Output] = e.allocSet(outShapes, outTypes)
	e.sets[Aux] = e.allocSet(auxShapes, auxTypes)

	e.bindResources(d.ForwardResources(e.inputShapes))
	e.ResetForward(e)
}

func (e *Executor[T]) initBackward() {
	visible := e.desc.NumVisibleOutputs()
	if visible < 0 || visible > len(e.sets[Output]) {
		panic(fmt.Sprintf("harness: %s: %d visible outputs of %d",
			e.desc.Name(), visible, len(e.sets[Output])))
	}

	outGradShapes := make([]tensor.Shape, 0, visible)
	outGradTypes := make([]tensor.DataType, 0, visible)
	for _, b := range e.sets[Output][:visible] {
		outGradShapes = append(outGradShapes, b.Shape())
		outGradTypes = append(outGradTypes, b.DType())
	}
	e.sets[OutGrad] = e.allocSet(outGradShapes, outGradTypes)

	inGradShapes := make([]tensor.Shape, 0, len(e.sets[Input]))
	inGradTypes := make([]tensor.DataType, 0, len(e.sets[Input]))
	for _, b := range e.sets[Input] {
		inGradShapes = append(inGradShapes, b.Shape())
		inGradTypes = append(inGradTypes, b.DType())
	}
	e.sets[InGrad] = e.allocSet(inGradShapes, inGradTypes)

	e.bindResources(e.desc.BackwardResources(e.inputShapes))
	e.ResetBackward(e)
}

func (e *Executor[T]) allocSet(shapes []tensor.Shape, dtypes []tensor.DataType) []*tensor.Blob {
	blobs := make([]*tensor.Blob, len(shapes))
	for i, shape := range shapes {
		blobs[i] = e.arena.Alloc(shape, dtypes[i])
	}
	return blobs
}

// bindResources grants one handle per request and attaches them to the
// operator context. Within one binding pass all temp-space requests against
// the same device slot share a single handle; random handles are always
// fresh. Host parallel-random handles get their per-worker streams here.
func (e *Executor[T]) bindResources(reqs []resource.Request) {
	mgr := resource.Get()
	rctx := resource.Context{Device: e.device, Index: e.cfg.Index}
	cachedTemp := make(map[resource.Context]*resource.Resource)

	for _, req := range reqs {
		switch req.Kind {
		case resource.TempSpace:
			if h, ok := cachedTemp[rctx]; ok {
				e.ctx.Resources = append(e.ctx.Resources, h)
				continue
			}
			h := mgr.Request(rctx, req)
			cachedTemp[rctx] = h
			e.ctx.Resources = append(e.ctx.Resources, h)
		case resource.Random:
			e.ctx.Resources = append(e.ctx.Resources, mgr.Request(rctx, req))
		case resource.ParallelRandom:
			h := mgr.Request(rctx, req)
			if e.device == tensor.CPU {
				h.AllocStreams(max(1, e.cfg.Parallel.NumWorkers))
			}
			e.ctx.Resources = append(e.ctx.Resources, h)
		default:
			panic(fmt.Sprintf("harness: resource kind %s is not supported", req.Kind))
		}
	}
}

// HasBackward reports whether the operator under test has a backward pass.
// True until a descriptor saying otherwise is bound.
func (e *Executor[T]) HasBackward() bool {
	if e.desc == nil {
		return true
	}
	return ops.HasBackward(e.desc)
}

// Forward runs the forward pass count times as one timing sample under the
// "Forward" category. On an accelerator the five buffer groups are staged to
// the device first and back after; staging stays outside the timed span.
// Panics if InitForward has not completed.
func (e *Executor[T]) Forward(count int) {
	if !e.fwdReady.Load() {
		panic("harness: Forward before InitForward")
	}
	req := ops.Fill(ops.WriteTo, len(e.sets[Output]))

	run := func(sets *[RoleCount][]*tensor.Blob) {
		e.timing.Time("Forward", count, func() {
			for i := 0; i < count; i++ {
				e.op.Forward(e.ctx, sets[Input], req, sets[Output], sets[Aux])
			}
			e.syncDevice()
		})
	}

	if e.device == tensor.CPU {
		run(&e.sets)
		return
	}
	staged := stageSets(e.device, &e.sets)
	defer staged.Release()
	run(&staged.dev)
}

// Backward runs the backward pass count times as one timing sample under the
// "Backward" category, with the same staging discipline as Forward.
// Panics if InitBackward has not completed or the operator is forward-only.
func (e *Executor[T]) Backward(count int) {
	if !e.HasBackward() {
		panic(fmt.Sprintf("harness: %s has no backward pass", e.desc.Name()))
	}
	if !e.bwdReady.Load() {
		panic("harness: Backward before InitBackward")
	}
	req := ops.Fill(ops.WriteTo, len(e.sets[InGrad]))

	run := func(sets *[RoleCount][]*tensor.Blob) {
		e.timing.Time("Backward", count, func() {
			for i := 0; i < count; i++ {
				e.op.Backward(e.ctx, sets[OutGrad], sets[Input], sets[Output], req, sets[InGrad], sets[Aux])
			}
			e.syncDevice()
		})
	}

	if e.device == tensor.CPU {
		run(&e.sets)
		return
	}
	staged := stageSets(e.device, &e.sets)
	defer staged.Release()
	run(&staged.dev)
}

// syncDevice drains the device queue so a timed span covers the kernels it
// launched, not just their submission.
func (e *Executor[T]) syncDevice() {
	if e.device == tensor.CPU {
		return
	}
	if acc, ok := tensor.AcceleratorFor(e.device); ok {
		acc.Synchronize()
	}
}

// Blobs returns the buffers of one role. The slice is the executor's own;
// callers must not grow or reorder it.
func (e *Executor[T]) Blobs(role Role) []*tensor.Blob {
	checkRole(role)
	return e.sets[role]
}

// Inputs returns the forward input buffers.
func (e *Executor[T]) Inputs() []*tensor.Blob { return e.sets[Input] }

// Outputs returns the forward output buffers.
func (e *Executor[T]) Outputs() []*tensor.Blob { return e.sets[Output] }

// AuxStates returns the auxiliary state buffers.
func (e *Executor[T]) AuxStates() []*tensor.Blob { return e.sets[Aux] }

// BwdInputs returns the backward pass's inputs, the output gradients.
func (e *Executor[T]) BwdInputs() []*tensor.Blob { return e.sets[OutGrad] }

// BwdOutputs returns the backward pass's outputs, the input gradients.
func (e *Executor[T]) BwdOutputs() []*tensor.Blob { return e.sets[InGrad] }

// Ctx returns the operator context, populated once InitForward has run.
func (e *Executor[T]) Ctx() *ops.Context { return e.ctx }

// Op returns the operator instance, or nil before initialization.
func (e *Executor[T]) Op() ops.Operator { return e.op }

// Timing returns the executor's timing collector.
func (e *Executor[T]) Timing() *perf.Timing { return e.timing }

// Release frees every buffer the executor owns.
func (e *Executor[T]) Release() {
	if e.arena != nil {
		e.arena.Release()
	}
}

func cloneShapes(shapes []tensor.Shape) []tensor.Shape {
	out := make([]tensor.Shape, len(shapes))
	for i, s := range shapes {
		out[i] = s.Clone()
	}
	return out
}
