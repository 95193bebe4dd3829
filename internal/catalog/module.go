package catalog

import "go.uber.org/fx"

// Module provides the static product catalog to the fx container.
var Module = fx.Provide(Default)
