package bootstrap

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"supplier-conformance/internal/mockserver"
	"supplier-conformance/internal/pkg/clock"
)

var ServerModule = fx.Module("server",
	fx.Provide(
		clock.NewRealClock,
		mockserver.NewRepository,
		mockserver.NewHandler,
		func() *gin.Engine {
			return gin.New()
		},
	),
)
