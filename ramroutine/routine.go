// Package ramroutine embeds the vendor-supplied RAM erase/write routine S19
// blob the session driver uploads before programming flash. The real
// vendor routine is an opaque binary blob outside this repository's scope;
// routine.s19 is a structurally valid stand-in with the same S19 record
// shape the driver expects to parse and upload.
package ramroutine

import _ "embed"

//go:embed routine.s19
var STM8S32K string
