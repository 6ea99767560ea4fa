package version

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Version of the media server, advertised in the DLNA Server tag.
const Version = "1.0.0"

// ServerTag returns the identification string used in HTTP and SSDP
// responses, e.g. "Linux/6.8.0, SLMS/1.0.0, UPnP/1.0, DLNADOC/1.50".
func ServerTag() string {
	osName := runtime.GOOS
	release := "unknown"

	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		osName = cString(uts.Sysname[:])
		release = cString(uts.Release[:])
	}

	return fmt.Sprintf("%s/%s, SLMS/%s, UPnP/1.0, DLNADOC/1.50", osName, release, Version)
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
