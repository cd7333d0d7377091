// Package transports imports all built-in bus transports for
// auto-registration. Import this package to have every transport
// registered with the default registry.
package transports

import (
	_ "github.com/plynkio/outputbridge/transport/channel"
	_ "github.com/plynkio/outputbridge/transport/nats"
)
