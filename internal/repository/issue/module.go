package issue

import "go.uber.org/fx"

// Module provides the issue repository to Fx.
var Module = fx.Provide(NewRepository)
