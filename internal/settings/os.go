package settings

import "strings"

// OS is the operating system a daemon host runs, which decides its path conventions.
type OS string

const (
	Linux   OS = "type_linux"
	Windows OS = "type_windows"
	Mac     OS = "type_mac"
)

// OSFromCode falls back to Linux for empty or unknown codes.
func OSFromCode(code string) OS {
	switch OS(strings.ToLower(strings.TrimSpace(code))) {
	case Windows:
		return Windows
	case Mac:
		return Mac
	default:
		return Linux
	}
}

func (o OS) PathSeparator() string {
	if o == Windows {
		return "\\"
	}
	return "/"
}
