// Package hcl provides the concrete HCL implementation of the config.Loader
// interface. It parses kernforge.hcl, evaluates its expressions against an
// `env` object built from an injected environment, and translates the
// decoded blocks into the format-agnostic config.Model.
package hcl
