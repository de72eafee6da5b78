package main

import (
	"log/slog"

	"github.com/pthm-cable/precinct/sim"
	"github.com/pthm-cable/precinct/telemetry"
	"github.com/pthm-cable/precinct/viewer"
)

// sinks are the collaborators fed after every step. Any of them may be nil.
// Their failures are logged and never stop the run.
type sinks struct {
	output *telemetry.OutputManager
	store  *telemetry.Store
	frames *telemetry.FrameWriter
	hub    *viewer.Hub

	runID         string
	logStats      bool
	logEvery      int
	perfWindow    int
	snapshotDir   string
	snapshotEvery int

	last telemetry.StepStats
}

// observe is passed to Simulation.Run.
func (k *sinks) observe(s *sim.Simulation) {
	step := s.CurrentStep()
	stats := s.Metrics().Stats()
	k.last = stats

	if err := k.output.WriteStep(stats); err != nil {
		slog.Error("failed to write step", "step", step, "error", err)
	}
	if k.store != nil {
		if err := k.store.RecordStep(stats); err != nil {
			slog.Error("failed to record step", "step", step, "error", err)
		}
	}

	if k.frames != nil || k.hub != nil {
		frame := s.Frame()
		if k.frames != nil {
			if err := k.frames.Write(frame); err != nil {
				slog.Error("failed to write frame", "step", step, "error", err)
			}
		}
		if k.hub != nil {
			if err := k.hub.Publish(frame); err != nil {
				slog.Error("failed to publish frame", "step", step, "error", err)
			}
		}
	}

	if k.logStats && k.logEvery > 0 && step%k.logEvery == 0 {
		stats.LogStats()
	}

	if k.perfWindow > 0 && step%k.perfWindow == 0 {
		perf := s.Perf().Stats()
		if k.logStats {
			perf.LogStats()
		}
		if err := k.output.WritePerf(perf, step); err != nil {
			slog.Error("failed to write perf", "step", step, "error", err)
		}
	}

	if k.snapshotEvery > 0 && step%k.snapshotEvery == 0 {
		k.saveSnapshot(s)
	}
}

// saveSnapshot writes the model state if a snapshot directory is set.
func (k *sinks) saveSnapshot(s *sim.Simulation) {
	if k.snapshotDir == "" {
		return
	}
	path, err := telemetry.SaveSnapshot(s.Snapshot(k.runID), k.snapshotDir)
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}
	slog.Info("snapshot saved", "path", path, "step", s.CurrentStep())
}

// close finalizes every sink.
func (k *sinks) close(s *sim.Simulation) {
	if k.store != nil {
		if err := k.store.FinishRun(k.last, s.TotalCaptures()); err != nil {
			slog.Error("failed to finish run", "error", err)
		}
		if err := k.store.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}
	if k.frames != nil {
		if err := k.frames.Close(); err != nil {
			slog.Error("failed to close frame stream", "error", err)
		}
	}
	if k.hub != nil {
		k.hub.Close()
	}
	if err := k.output.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
}
