// Package usecase orchestrates the apply, revert and auto-launch flows, the
// orphan cleanup sweep and entry authoring on top of the domain ports.
//
// Every use case runs sequentially under the caller's context. Outcomes are
// values, not errors: only store read failures surface as errors.
package usecase
