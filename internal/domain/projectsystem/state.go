package projectsystem

// State is the installation state of the local copy.
type State struct {
	// Installed is false when the installation directory does not exist.
	Installed bool
	// Version is the installed version; zero when not installed.
	Version Version
}

// NotInstalled is the state of a missing installation directory.
func NotInstalled() State {
	return State{}
}

// Installed is the state of an installation whose marker holds v.
func Installed(v Version) State {
	return State{Installed: true, Version: v}
}

// Stale reports whether packaged should replace the local copy.
// A missing installation is always stale.
func (s State) Stale(packaged Version) bool {
	return !s.Installed || s.Version.Less(packaged)
}

// String renders the state for logs and CLI output.
func (s State) String() string {
	if !s.Installed {
		return "not installed"
	}

	return "installed " + s.Version.String()
}
