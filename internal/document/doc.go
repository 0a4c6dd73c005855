// Package document models one parsed configuration file.
//
// A Document is an ordered mapping of sections to ordered key/value pairs,
// where each value is a scalar or a sequence of scalars. Files are parsed
// from INI (the default), TOML, or YAML; all three share the reserved
// Parent_Config section, which is lifted out of the sections into a
// ParentDirective describing the file's inheritance.
//
// INI multi-valued keys use the "key[] = value" convention. Documents are
// writable until Freeze is called; afterwards any mutation panics and the
// document may be shared between goroutines without locking.
package document
