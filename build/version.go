package build

import "fmt"

var CurrentCommit string
var BuildType int

const (
	BuildDefault = 0
	BuildDebug   = 0x3
)

func buildType() string {
	switch BuildType {
	case BuildDefault:
		return ""
	case BuildDebug:
		return "+debug"
	default:
		return "+huh?"
	}
}

// BuildVersion is the local build version, set by build system
const BuildVersion = "0.4.0"

func UserVersion() string {
	return BuildVersion + buildType() + CurrentCommit
}

// UserAgent is sent with every gateway request.
func UserAgent() string {
	return fmt.Sprintf("arpi-go/%s", UserVersion())
}
