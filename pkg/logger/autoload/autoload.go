// Package autoload initializes the global logger from the environment as
// a side effect of being imported.
package autoload

import (
	configx "github.com/sorawit/datacrew/pkg/config"
	logx "github.com/sorawit/datacrew/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))
}
