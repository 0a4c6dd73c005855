// Package inherit loads configuration files together with the ancestors
// named by their Parent_Config sections and merges the chain into one
// read-only document.
//
// Merge rules, applied from the top ancestor down to the requested file:
//
//   - children override parents, key by key;
//   - a section listed in the child's override_full_sections replaces the
//     parent's section entirely;
//   - with merge_array_settings enabled on the child, sequences present on
//     both sides are concatenated, parent items first, without removing
//     duplicates.
package inherit
