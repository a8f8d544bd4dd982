package blocker

import "go.uber.org/fx"

// Module provides the blocker evaluator to Fx.
var Module = fx.Provide(NewEvaluator)
