// Package config defines the format-agnostic project model for kernforge,
// along with the Loader interface and the environment overrides that are
// layered on top of a loaded model.
//
// The `config.Model` is the single source of truth for the `builder`
// package. Concrete loaders, such as the HCL one, live in separate packages.
package config
