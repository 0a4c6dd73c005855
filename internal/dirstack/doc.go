// Package dirstack resolves the override directory stack.
//
// Starting from the configured override root, the resolver reads each
// directory's DirLocations.ini descriptor and follows its [Parent_Dir]
// entry, producing a stack ordered from the root ancestor down to the
// starting directory. Descriptors may also set a directory-specific
// config subdirectory under [Local_Dirs].
package dirstack
