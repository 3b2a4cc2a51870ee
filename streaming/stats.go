package streaming

// FrameStats is one frame's streaming diagnostics
// Counters reset at UpdateActiveSet; totals accumulate in the status
// registry under the streaming.* keys
type FrameStats struct {
	DesiredSectors   int
	QueuedThisFrame  int
	LoadsDispatched  int
	LoadsInFlight    int
	LoadsCompleted   int
	LoadErrors       int
	StaleDiscarded   int
	Activations      int
	Despawns         int
	ActiveSectors    int
	TrackedSectors   int

	// Budget rejections; the work retries on a later frame
	SectorBudgetRejections     int
	EntityBudgetRejections     int
	ActivationBudgetDeferrals  int
	DespawnBudgetDeferrals     int
}

// FrameStats returns a copy of the current frame's counters
func (e *Engine) FrameStats() FrameStats {
	s := e.frame
	s.LoadsInFlight = e.inFlight
	s.ActiveSectors = e.countState(SectorActive)
	s.TrackedSectors = len(e.sectors)
	return s
}

func (e *Engine) countState(st SectorState) int {
	n := 0
	for _, sec := range e.sectors {
		if sec.state == st {
			n++
		}
	}
	return n
}
