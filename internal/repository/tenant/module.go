package tenant

import "go.uber.org/fx"

// Module provides the tenant repository to Fx.
var Module = fx.Provide(NewRepository)
