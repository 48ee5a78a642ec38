// Package projectsystem holds the domain types of the custom project system
// deployment: the dotted version read from a payload's version marker and the
// installation state derived from it.
package projectsystem
