package common

import "time"

// Version is stamped by the release pipeline via -ldflags.
var Version = "v0.0.0"

// StartTime records process boot (unix seconds) for uptime reporting.
var StartTime = time.Now().Unix()
