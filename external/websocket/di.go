package websocket

import (
	"github.com/foxseedlab/jimakun/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Hub, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewHub(c.CaptionAllowedOrigins...), nil
	})
}
