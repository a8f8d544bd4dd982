package permission

import "go.uber.org/fx"

// Module provides the permission gate to Fx.
var Module = fx.Provide(NewGate)
