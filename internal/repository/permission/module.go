package permission

import (
	"go.uber.org/fx"

	"github.com/washfold/washfold/internal/permission"
)

// Module provides the grant-backed permission oracle to Fx.
var Module = fx.Provide(
	fx.Annotate(NewRepository, fx.As(new(permission.Oracle))),
)
