package app

import (
	"go.uber.org/fx"

	"github.com/washfold/washfold/internal/blocker"
	"github.com/washfold/washfold/internal/cache"
	"github.com/washfold/washfold/internal/config"
	"github.com/washfold/washfold/internal/database"
	"github.com/washfold/washfold/internal/logger"
	"github.com/washfold/washfold/internal/messaging"
	"github.com/washfold/washfold/internal/observability"
	"github.com/washfold/washfold/internal/permission"
	repositoryaudit "github.com/washfold/washfold/internal/repository/audit"
	repositoryissue "github.com/washfold/washfold/internal/repository/issue"
	repositoryorder "github.com/washfold/washfold/internal/repository/order"
	repositorypermission "github.com/washfold/washfold/internal/repository/permission"
	repositorytenant "github.com/washfold/washfold/internal/repository/tenant"
	repositoryworkflow "github.com/washfold/washfold/internal/repository/workflow"
	httpserver "github.com/washfold/washfold/internal/server/http"
	serviceorder "github.com/washfold/washfold/internal/service/order"
	transporthttp "github.com/washfold/washfold/internal/transport/http"
	"github.com/washfold/washfold/internal/worker"
	workerorder "github.com/washfold/washfold/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	permission.Module,
	blocker.Module,
	repositoryorder.Module,
	repositoryissue.Module,
	repositoryaudit.Module,
	repositoryworkflow.Module,
	repositorytenant.Module,
	repositorypermission.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
