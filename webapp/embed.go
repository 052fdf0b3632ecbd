// Package webapp provides the embedded page templates and static files for
// the volume browser.
package webapp

import "embed"

//go:embed templates static
var Assets embed.FS
