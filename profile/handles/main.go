// Profiling:
// go build ./profile/handles
// go tool pprof -http=":8000" -nodefraction=0.001 ./handles cpu.pprof

package main

import (
	"github.com/edwinsyarief/kizuna"
	"github.com/pkg/profile"
)

type texture struct {
	kizuna.RefCount
	Width, Height int
}

func main() {
	rounds := 100
	iters := 100000
	p := profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	run(rounds, iters)
	p.Stop()
}

func run(rounds, iters int) {
	for range rounds {
		owner := kizuna.New[texture](func(t *texture) { t.Width, t.Height = 256, 256 })
		for range iters {
			c := owner.Clone()
			w := c.Weak()
			l := w.Lock()
			l.Release()
			w.Release()
			c.Release()
		}
		owner.Release()
	}
}
