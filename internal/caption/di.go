package caption

import (
	"github.com/foxseedlab/jimakun/internal/capture"
	"github.com/foxseedlab/jimakun/internal/config"
	"github.com/foxseedlab/jimakun/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		newEngine := do.MustInvoke[capture.EngineFactory](i)
		stt := do.MustInvoke[transcriber.Transcriber](i)
		sinks := do.MustInvoke[Sinks](i)
		return NewManager(cfg, newEngine, stt, sinks), nil
	})
}
