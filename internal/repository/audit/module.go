package audit

import "go.uber.org/fx"

// Module provides the audit repository to Fx.
var Module = fx.Provide(NewRepository)
