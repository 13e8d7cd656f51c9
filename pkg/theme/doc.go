// Package theme defines presentation-state identity and resolution for the
// glaze transition engine.
//
// A Descriptor names one requested presentation state (theme, color mode,
// context). Resolution turns a Descriptor into a VariableSet: a flat mapping
// of symbolic style keys to concrete values, produced by a caller-supplied
// Resolver. The package ships three resolvers:
//
//   - ResolverFunc adapts any function.
//   - DirResolver reads per-theme YAML files from a directory.
//   - StarlarkResolver executes a Starlark script per resolution, for themes
//     whose values are computed rather than enumerated.
//
// Cache memoizes resolutions with LRU-plus-frequency batch eviction, and
// Watcher invalidates cached entries when theme files change on disk.
package theme
