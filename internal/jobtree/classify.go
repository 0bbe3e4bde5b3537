package jobtree

// Marker names recognised inside a job directory.
const (
	ZuulInfoDir     = "zuul-info"
	AraDatabaseDir  = "ara-database"
	ConsoleTextFile = "consoleText.txt"
)

// Marker is the classifier rule that identified a job directory.
type Marker int

const (
	MarkerNone Marker = iota
	MarkerZuul
	MarkerAra
	MarkerConsole
	MarkerEmpty
)

func (m Marker) String() string {
	switch m {
	case MarkerZuul:
		return "zuul"
	case MarkerAra:
		return "ara"
	case MarkerConsole:
		return "console"
	case MarkerEmpty:
		return "empty"
	default:
		return "none"
	}
}

// Classify returns the first rule that makes c a job directory, or MarkerNone.
func Classify(c DirContent) Marker {
	switch {
	case c.HasDir(ZuulInfoDir):
		return MarkerZuul
	case c.HasDir(AraDatabaseDir):
		return MarkerAra
	case c.HasFile(ConsoleTextFile):
		return MarkerConsole
	case c.Empty():
		return MarkerEmpty
	default:
		return MarkerNone
	}
}

// IsJobDir reports whether a directory with content c is a terminal job directory.
func IsJobDir(c DirContent) bool {
	return Classify(c) != MarkerNone
}
