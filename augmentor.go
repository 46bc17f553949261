// Package augmentor is the client for the image augmentation and video
// frame extraction service.
package augmentor

import "embed"

// Version is the application version
const Version = "1.0.0"

// WebFS holds the console page served at /.
//
//go:embed web/templates
var WebFS embed.FS
