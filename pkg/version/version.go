// Package version provides the server identification attached to every response.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Product is the product token used in the server identification string.
const Product = "CBMock"

// Current is the release of this server. Overridden at build time via ldflags.
var Current = "1.5.25"

// ServerString returns the identification string sent in the Server header,
// e.g. "CBMock/1.5.25 (mcd; views) go/1.25.5".
func ServerString() string {
	return fmt.Sprintf("%s/%s (mcd; views) go/%s", Product, Current, toolkitVersion())
}

// toolkitVersion returns the version of the Go runtime whose net/http stack
// serves the control plane, without the "go" prefix.
func toolkitVersion() string {
	return strings.TrimPrefix(runtime.Version(), "go")
}
