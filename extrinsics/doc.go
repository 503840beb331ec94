// Package extrinsics builds and submits the subtensor calls that do not need a registration loop:
// subnet identity, subnet creation and validator weights.
package extrinsics
