package workflow

import "go.uber.org/fx"

// Module provides the workflow snapshot repository to Fx.
var Module = fx.Provide(NewRepository)
