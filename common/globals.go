package common

// PyrsVersion is the current pyrs version as a string.
const PyrsVersion string = "0.4.0"

// ConfigFileName is the name of the per-project configuration file.
const ConfigFileName string = "pyrs.toml"

// HIRFileExt is the file extension for serialized HIR modules.
const HIRFileExt string = ".hir.json"

// RustFileExt is the file extension for generated Rust source files.
const RustFileExt string = ".rs"

// DefaultJobs is the number of files transpiled concurrently when the
// configuration does not specify a job count.
const DefaultJobs int = 4
