// Profiling:
// go build ./profile/scene
// go tool pprof -http=":8000" -nodefraction=0.001 ./scene mem.pprof

package main

import (
	"github.com/edwinsyarief/kizuna"
	"github.com/pkg/profile"
)

type mesh struct {
	kizuna.RefCount
	Vertices []float32
}

type material struct {
	kizuna.RefCount
	Albedo [4]float32
}

func main() {
	rounds := 50
	iters := 1000
	entities := 1000
	p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	run(rounds, iters, entities)
	p.Stop()
}

func run(rounds, iters, numEntities int) {
	for range rounds {
		s := kizuna.NewScene(numEntities, nil)
		m := kizuna.New[mesh](func(m *mesh) { m.Vertices = make([]float32, 64) })
		mat := kizuna.New[material](nil)
		for range iters {
			ents := s.CreateEntities(numEntities)
			for _, e := range ents {
				kizuna.Attach(s, e, m)
				kizuna.Attach(s, e, mat)
			}
			s.RemoveEntities(ents)
		}
		m.Release()
		mat.Release()
	}
}
