// Package packer implements the provider-batch packing loop (spec.md
// §4.4): it pulls eligible, unpacked email associations in FIFO order,
// submits them to the verification provider, and atomically marks their
// user batches processing while recording the new ProviderBatch.
package packer
