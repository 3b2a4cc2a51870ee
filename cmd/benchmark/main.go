// benchmark measures job dispatch throughput and component iteration
// cost at configurable worker and entity counts
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/lixenwraith/simkit/core"
	"github.com/lixenwraith/simkit/engine"
	"github.com/lixenwraith/simkit/job"
	"github.com/lixenwraith/simkit/status"
	"github.com/lixenwraith/simkit/vmath"
)

var (
	workers     int
	entityCount int
	frames      int
	groupSize   int
	profileMode string
)

type position struct{ vmath.Vec3F }
type velocity struct{ vmath.Vec3F }

func main() {
	root := &cobra.Command{
		Use:   "benchmark",
		Short: "Job engine and component store throughput benchmark",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	root.Flags().IntVarP(&workers, "workers", "w", runtime.NumCPU()-1, "worker goroutines")
	root.Flags().IntVarP(&entityCount, "entities", "n", 100_000, "live entities")
	root.Flags().IntVarP(&frames, "frames", "f", 1000, "simulated frames")
	root.Flags().IntVarP(&groupSize, "group", "g", 1024, "entities per job group")
	root.Flags().StringVar(&profileMode, "profile", "", "enable profiling: cpu or mem")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	switch profileMode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	case "":
	default:
		return fmt.Errorf("unknown profile mode %q", profileMode)
	}

	reg := status.NewRegistry()
	scopes := job.NewScopeRegistry()
	integrateScope := scopes.Register("bench.integrate")

	jobs := job.NewEngine(workers, 4096, 256, scopes, reg)
	defer jobs.Stop()

	w := engine.NewWorld()
	positions := engine.GetPool[position](w)
	velocities := engine.GetPool[velocity](w)
	for i := 0; i < entityCount; i++ {
		e := w.Create()
		h := core.Hash2(0xB5, int32(i), 0)
		positions.Set(e, position{vmath.Vec3F{X: float64(h % 512), Z: float64(h % 257)}})
		velocities.Set(e, velocity{vmath.Vec3F{X: 1, Z: 0.5}})
	}

	fmt.Printf("benchmark: %d workers, %d entities, group %d, %d frames\n",
		jobs.WorkerCount(), entityCount, groupSize, frames)

	dt := 1.0 / 60.0
	started := time.Now()
	for f := 0; f < frames; f++ {
		n := positions.Len()
		h := jobs.DispatchScoped(n, groupSize, integrateScope, func(start, end, group, worker int) {
			for i := start; i < end; i++ {
				p := positions.At(i)
				v, ok := velocities.Get(positions.EntityAt(i))
				if !ok {
					continue
				}
				p.X += v.X * dt
				p.Z += v.Z * dt
			}
		})
		jobs.Wait(h)
	}
	elapsed := time.Since(started)

	perFrame := elapsed / time.Duration(frames)
	entitiesPerSec := float64(entityCount) * float64(frames) / elapsed.Seconds()
	fmt.Printf("parallel integrate: %v/frame, %.1fM entities/s\n",
		perFrame.Round(time.Microsecond), entitiesPerSec/1e6)

	// Single-threaded view iteration for comparison
	started = time.Now()
	for f := 0; f < frames; f++ {
		engine.ForEach2(w, func(e core.Entity, p *position, v *velocity) {
			p.X += v.X * dt
			p.Z += v.Z * dt
		})
	}
	elapsed = time.Since(started)
	fmt.Printf("serial ForEach2:    %v/frame, %.1fM entities/s\n",
		(elapsed / time.Duration(frames)).Round(time.Microsecond),
		float64(entityCount)*float64(frames)/elapsed.Seconds()/1e6)

	return nil
}
