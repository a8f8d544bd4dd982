package main

import (
	"go.uber.org/fx"

	"github.com/washfold/washfold/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
