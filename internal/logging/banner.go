package logging

import (
	"fmt"
	"io"
)

const (
	reset   = "\033[0m"
	bold    = "\033[1m"
	cyan    = "\033[36m"
	green   = "\033[32m"
	magenta = "\033[35m"
	dim     = "\033[2m"
)

var logoLines = [5]string{
	`  _       _   _               `,
	` | |_ ___| |_| |__   ___ _ __ `,
	` | __/ _ \ __| '_ \ / _ \ '__|`,
	` | ||  __/ |_| | | |  __/ |   `,
	`  \__\___|\__|_| |_|\___|_|   `,
}

var chatArt = [5]string{
	`       _           _   `,
	`   ___| |__   __ _| |_ `,
	`  / __| '_ \ / _` + "`" + ` | __|`,
	` | (__| | | | (_| | |_ `,
	`  \___|_| |_|\__,_|\__|`,
}

var echoArt = [5]string{
	`           _           `,
	`   ___  ___| |__   ___  `,
	`  / _ \/ __| '_ \ / _ \ `,
	` |  __/ (__| | | | (_) |`,
	`  \___|\___|_| |_|\___/ `,
}

// PrintBanner writes the tether logo with the mode name ("chat" or "echo")
// beside it, followed by the version and target. target is the endpoint in
// chat mode and the listen address in echo mode.
func PrintBanner(w io.Writer, color bool, mode, ver, target string) {
	modeArt := &chatArt
	modeColor := green
	label := "endpoint"
	if mode == "echo" {
		modeArt = &echoArt
		modeColor = magenta
		label = "addr"
	}

	for i := range logoLines {
		if color {
			_, _ = fmt.Fprintf(w, "%s%s%s%s%s%s\n",
				bold+cyan, logoLines[i], reset,
				bold+modeColor, modeArt[i], reset)
		} else {
			_, _ = fmt.Fprintf(w, "%s%s\n", logoLines[i], modeArt[i])
		}
	}

	if color {
		_, _ = fmt.Fprintf(w, "\n  %sversion%s %s   %s%s%s %s\n\n",
			dim, reset, ver, dim, label, reset, target)
	} else {
		_, _ = fmt.Fprintf(w, "\n  version %s   %s %s\n\n", ver, label, target)
	}
}
