//go:build windows

package webgpu

// WGSL compute shaders for the operator kernels.
// Using string constants instead of embed for simplicity.

// workgroupSize is the default number of threads per workgroup.
const workgroupSize = 256

// matrixTile is the workgroup edge for two-dimensional dispatches.
const matrixTile = 16

// linearShader computes y = x @ transpose(w) + bias.
// x is [batch, in_dim], w is [out_dim, in_dim], y is [batch, out_dim].
const linearShader = `
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read> w: array<f32>;
@group(0) @binding(2) var<storage, read> bias: array<f32>;
@group(0) @binding(3) var<storage, read_write> y: array<f32>;

struct Params {
    batch: u32,
    in_dim: u32,
    out_dim: u32,
    has_bias: u32,
}
@group(0) @binding(4) var<uniform> params: Params;

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let row = global_id.y;
    let col = global_id.x;

    if (row >= params.batch || col >= params.out_dim) {
        return;
    }

    var sum: f32 = 0.0;
    for (var i: u32 = 0u; i < params.in_dim; i = i + 1u) {
        sum = sum + x[row * params.in_dim + i] * w[col * params.in_dim + i];
    }
    if (params.has_bias != 0u) {
        sum = sum + bias[col];
    }
    y[row * params.out_dim + col] = sum;
}
`

// linearGradInputShader computes dx = dy @ w.
// dy is [batch, out_dim], w is [out_dim, in_dim], dx is [batch, in_dim].
const linearGradInputShader = `
@group(0) @binding(0) var<storage, read> dy: array<f32>;
@group(0) @binding(1) var<storage, read> w: array<f32>;
@group(0) @binding(2) var<storage, read_write> dx: array<f32>;

struct Params {
    batch: u32,
    in_dim: u32,
    out_dim: u32,
    has_bias: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let row = global_id.y;
    let col = global_id.x;

    if (row >= params.batch || col >= params.in_dim) {
        return;
    }

    var sum: f32 = 0.0;
    for (var o: u32 = 0u; o < params.out_dim; o = o + 1u) {
        sum = sum + dy[row * params.out_dim + o] * w[o * params.in_dim + col];
    }
    dx[row * params.in_dim + col] = sum;
}
`

// linearGradWeightShader computes dw = transpose(dy) @ x.
// dy is [batch, out_dim], x is [batch, in_dim], dw is [out_dim, in_dim].
const linearGradWeightShader = `
@group(0) @binding(0) var<storage, read> dy: array<f32>;
@group(0) @binding(1) var<storage, read> x: array<f32>;
@group(0) @binding(2) var<storage, read_write> dw: array<f32>;

struct Params {
    batch: u32,
    in_dim: u32,
    out_dim: u32,
    has_bias: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let row = global_id.y;
    let col = global_id.x;

    if (row >= params.out_dim || col >= params.in_dim) {
        return;
    }

    var sum: f32 = 0.0;
    for (var b: u32 = 0u; b < params.batch; b = b + 1u) {
        sum = sum + dy[b * params.out_dim + row] * x[b * params.in_dim + col];
    }
    dw[row * params.in_dim + col] = sum;
}
`

// linearGradBiasShader computes db[o] as the batch sum of dy[:, o].
const linearGradBiasShader = `
@group(0) @binding(0) var<storage, read> dy: array<f32>;
@group(0) @binding(1) var<storage, read_write> db: array<f32>;

struct Params {
    batch: u32,
    in_dim: u32,
    out_dim: u32,
    has_bias: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let o = global_id.x;
    if (o >= params.out_dim) {
        return;
    }

    var sum: f32 = 0.0;
    for (var b: u32 = 0u; b < params.batch; b = b + 1u) {
        sum = sum + dy[b * params.out_dim + o];
    }
    db[o] = sum;
}
`

// reluShader computes y = max(x, 0) element-wise.
const reluShader = `
@group(0) @binding(0) var<storage, read> x: array<f32>;
@group(0) @binding(1) var<storage, read_write> y: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        y[idx] = max(x[idx], 0.0);
    }
}
`

// reluGradShader passes dy through where the forward output was positive.
const reluGradShader = `
@group(0) @binding(0) var<storage, read> dy: array<f32>;
@group(0) @binding(1) var<storage, read> y: array<f32>;
@group(0) @binding(2) var<storage, read_write> dx: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        if (y[idx] > 0.0) {
            dx[idx] = dy[idx];
        } else {
            dx[idx] = 0.0;
        }
    }
}
`
