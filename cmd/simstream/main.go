// simstream is an interactive viewer for the sector streaming pipeline:
// move the camera around a procedurally generated world and watch
// sectors queue, load, activate and drain under the configured budgets
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"github.com/lixenwraith/simkit/config"
	"github.com/lixenwraith/simkit/content"
	"github.com/lixenwraith/simkit/core"
	"github.com/lixenwraith/simkit/engine"
	"github.com/lixenwraith/simkit/job"
	"github.com/lixenwraith/simkit/scheduler"
	"github.com/lixenwraith/simkit/status"
	"github.com/lixenwraith/simkit/streaming"
	"github.com/lixenwraith/simkit/vmath"
)

var (
	configPath string
	dbPath     string
)

func main() {
	root := &cobra.Command{
		Use:   "simstream",
		Short: "Interactive sector streaming viewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config (defaults built in)")
	root.Flags().StringVar(&dbPath, "db", "", "sqlite spawn database (overrides procedural generation)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if dbPath != "" {
		cfg.Streaming.SpawnDB = dbPath
	}

	loader, closeLoader, err := buildLoader(cfg.Streaming)
	if err != nil {
		return err
	}
	defer closeLoader()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to init screen: %w", err)
	}
	core.SetCrashHook(screen.Fini)
	defer screen.Fini()

	reg := status.NewRegistry()
	scopes := job.NewScopeRegistry()
	jobs := job.NewEngine(cfg.Jobs.Workers, cfg.Jobs.QueueCapacity, cfg.Jobs.FenceCount, scopes, reg)
	defer jobs.Stop()

	world := engine.NewWorld()
	stream := streaming.NewEngine(jobs, loader, cfg.Streaming.SectorSize, reg)

	app := &viewer{
		cfg:    cfg,
		screen: screen,
		world:  world,
		stream: stream,
		camera: vmath.Vec3F{X: cfg.Streaming.SectorSize / 2, Z: cfg.Streaming.SectorSize / 2},
		facing: vmath.Vec3F{Z: 1},
	}

	sched := scheduler.New(jobs, reg)
	sched.AddSystem("stream.plan", scheduler.PhaseInput, app.planSystem, nil)
	sched.AddSystem("stream.apply", scheduler.PhaseSimulation, app.applySystem, nil, "stream.plan")
	sched.AddSystem("stream.drain", scheduler.PhaseSimulation, app.drainSystem, nil, "stream.apply")
	sched.Finalize()

	keys := make(chan *tcell.EventKey, 16)
	core.Go(func() {
		for {
			ev := screen.PollEvent()
			switch e := ev.(type) {
			case *tcell.EventKey:
				keys <- e
			case nil:
				return
			}
		}
	})

	tick := time.NewTicker(time.Second / time.Duration(cfg.Simulation.TickHz))
	defer tick.Stop()

	for {
		select {
		case ev := <-keys:
			if app.handleKey(ev) {
				return nil
			}
		case <-tick.C:
			jobs.BeginFrame()
			sched.Tick(world, time.Second/time.Duration(cfg.Simulation.TickHz))
			jobs.PublishFrameTelemetry()
			app.draw(jobs.TelemetrySnapshot())
		}
	}
}

func buildLoader(cfg config.StreamingConfig) (streaming.Loader, func(), error) {
	if cfg.SpawnDB != "" {
		l, err := content.OpenSQLiteLoader(cfg.SpawnDB)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("simstream: serving sectors from %s", cfg.SpawnDB)
		return l, func() { l.Close() }, nil
	}
	return content.NewProceduralLoader(cfg.Seed, cfg.SectorSize, 12), func() {}, nil
}

// viewer owns the camera and the terminal surface
type viewer struct {
	cfg    config.Config
	screen tcell.Screen
	world  *engine.World
	stream *streaming.Engine
	camera vmath.Vec3F
	facing vmath.Vec3F
	paused bool
}

func (v *viewer) planSystem(w *engine.World, dt time.Duration, user any) {
	s := v.cfg.Streaming
	v.stream.UpdateActiveSet(v.camera, v.facing, s.LoadRadius, s.UnloadRadius,
		s.SectorBudget, s.FrustumBias, !v.paused)
	v.stream.DispatchPendingLoads(s.MaxConcurrentLoads)
}

func (v *viewer) applySystem(w *engine.World, dt time.Duration, user any) {
	s := v.cfg.Streaming
	v.stream.PumpCompletedLoads(w, s.EntityBudget, s.MaxActivationsPerFrame)
}

func (v *viewer) drainSystem(w *engine.World, dt time.Duration, user any) {
	v.stream.PumpUnloadQueue(w, v.cfg.Streaming.MaxDespawnsPerFrame)
}

// handleKey moves the camera one sector per press; returns true on quit
func (v *viewer) handleKey(ev *tcell.EventKey) bool {
	step := v.cfg.Streaming.SectorSize
	switch {
	case ev.Key() == tcell.KeyEscape || ev.Rune() == 'q':
		return true
	case ev.Key() == tcell.KeyLeft || ev.Rune() == 'h':
		v.camera.X -= step
		v.facing = vmath.Vec3F{X: -1}
	case ev.Key() == tcell.KeyRight || ev.Rune() == 'l':
		v.camera.X += step
		v.facing = vmath.Vec3F{X: 1}
	case ev.Key() == tcell.KeyUp || ev.Rune() == 'k':
		v.camera.Z -= step
		v.facing = vmath.Vec3F{Z: -1}
	case ev.Key() == tcell.KeyDown || ev.Rune() == 'j':
		v.camera.Z += step
		v.facing = vmath.Vec3F{Z: 1}
	case ev.Rune() == ' ':
		v.paused = !v.paused
	case ev.Rune() == 'p':
		cam := core.SectorFromWorld(v.camera.X, v.camera.Z, v.cfg.Streaming.SectorSize)
		v.stream.Pin(cam)
	}
	return false
}

var stateStyles = map[streaming.SectorState]tcell.Style{
	streaming.SectorUnloaded:        tcell.StyleDefault.Foreground(tcell.ColorGray),
	streaming.SectorQueued:          tcell.StyleDefault.Foreground(tcell.ColorYellow),
	streaming.SectorLoading:         tcell.StyleDefault.Foreground(tcell.ColorOrange),
	streaming.SectorReadyToActivate: tcell.StyleDefault.Foreground(tcell.ColorAqua),
	streaming.SectorActive:          tcell.StyleDefault.Foreground(tcell.ColorGreen),
	streaming.SectorUnloading:       tcell.StyleDefault.Foreground(tcell.ColorRed),
}

var stateRunes = map[streaming.SectorState]rune{
	streaming.SectorUnloaded:        '.',
	streaming.SectorQueued:          'q',
	streaming.SectorLoading:         'o',
	streaming.SectorReadyToActivate: 'r',
	streaming.SectorActive:          '#',
	streaming.SectorUnloading:       'x',
}

func (v *viewer) draw(tel job.TelemetrySnapshot) {
	v.screen.Clear()
	width, height := v.screen.Size()

	cam := core.SectorFromWorld(v.camera.X, v.camera.Z, v.cfg.Streaming.SectorSize)
	gridH := height - 2

	for sy := 0; sy < gridH; sy++ {
		for sx := 0; sx < width/2; sx++ {
			coord := core.SectorCoord{
				X: cam.X + int32(sx-width/4),
				Z: cam.Z + int32(sy-gridH/2),
			}
			state := v.stream.SectorState(coord)
			style := stateStyles[state]
			ch := stateRunes[state]
			if coord == cam {
				ch = '@'
				style = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
			}
			v.screen.SetContent(sx*2, sy, ch, nil, style)
		}
	}

	stats := v.stream.FrameStats()
	line1 := fmt.Sprintf("cam %d,%d  active %d  inflight %d  entities %d  stale %d  rejected s/e %d/%d",
		cam.X, cam.Z, stats.ActiveSectors, stats.LoadsInFlight, v.world.AliveCount(),
		stats.StaleDiscarded, stats.SectorBudgetRejections, stats.EntityBudgetRejections)
	line2 := fmt.Sprintf("jobs %d/%d busy %v  [hjkl/arrows] move  [space] pause  [p] pin  [q] quit",
		tel.Completed, tel.Enqueued, tel.Busy.Round(time.Microsecond))

	drawText(v.screen, 0, height-2, line1, tcell.StyleDefault.Foreground(tcell.ColorWhite))
	drawText(v.screen, 0, height-1, line2, tcell.StyleDefault.Foreground(tcell.ColorGray))

	v.screen.Show()
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style) {
	for i, ch := range text {
		s.SetContent(x+i, y, ch, nil, style)
	}
}
