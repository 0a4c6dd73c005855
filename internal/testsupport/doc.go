// Package testsupport builds temporary confstack configurations and
// directory layouts for tests in other packages.
package testsupport
