// Package jsc runs the JScript.NET command-line compiler as a build step.
//
// A Task holds the declarative compiler properties, usually loaded from a
// YAML task file, and turns them into jsc.exe arguments. Run executes the
// compiler and parses its output lines into build diagnostics, which are both
// logged and returned to the caller.
package jsc
