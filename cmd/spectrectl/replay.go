package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jonesrussell/north-cloud/spectre/internal/agent"
	"github.com/jonesrussell/north-cloud/spectre/internal/platform/logger"
	"github.com/spf13/cobra"
)

// replayResult summarizes one replayed session.
type replayResult struct {
	Steps   int
	Stats   agent.TransmitStats
	Dropped int64
	Elapsed time.Duration
}

// Replayer feeds a script through a Tracker in real time.
type Replayer struct {
	endpoint string
	storage  agent.Storage
	logger   logger.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewReplayer creates a Replayer posting to endpoint. storage keeps the
// session id between runs.
func NewReplayer(endpoint string, storage agent.Storage, log logger.Logger) *Replayer {
	return &Replayer{
		endpoint: endpoint,
		storage:  storage,
		logger:   log,
		sleep:    sleepContext,
	}
}

// Run starts a tracker on the script's page, plays every step and unloads
// the page. Each step is synced before the next so none are dropped.
func (r *Replayer) Run(ctx context.Context, s *Script) (replayResult, error) {
	started := time.Now()

	tracker, err := agent.New(agent.Options{
		SiteID:            s.SiteID,
		Endpoint:          r.endpoint,
		Fingerprint:       s.Fingerprint,
		Capabilities:      s.Capabilities,
		DoNotTrack:        s.DoNotTrack,
		HeatmapSampleRate: s.HeatmapSampleRate,
		Storage:           r.storage,
		Logger:            r.logger,
	})
	if err != nil {
		return replayResult{}, fmt.Errorf("create tracker: %w", err)
	}

	tracker.Start(ctx, s.AgentPage())
	defer tracker.Stop()

	for i := range s.Steps {
		st := &s.Steps[i]
		if err = r.sleep(ctx, st.Delay()); err != nil {
			return replayResult{}, fmt.Errorf("step %d: %w", i, err)
		}
		if err = r.play(tracker, s.Page.Document, st); err != nil {
			return replayResult{}, fmt.Errorf("step %d (%s): %w", i, st.Type, err)
		}
		if err = tracker.Sync(ctx); err != nil {
			return replayResult{}, err
		}
		r.logger.Debug("Replayed step", logger.Int("index", i), logger.String("type", st.Type))
	}

	tracker.Stop()

	return replayResult{
		Steps:   len(s.Steps),
		Stats:   tracker.Stats(),
		Dropped: tracker.Dropped(),
		Elapsed: time.Since(started),
	}, nil
}

func (r *Replayer) play(tracker *agent.Tracker, doc *agent.Element, st *Step) error {
	ev, err := st.Event(doc)
	if err != nil {
		return err
	}

	switch st.Type {
	case stepEvent:
		tracker.TrackEvent(st.Name, st.Category, st.Label, st.Value, st.Metadata)
	case stepGoal:
		tracker.TrackGoal(st.Name, st.Value)
	case stepPageView:
		tracker.TrackPageView()
	default:
		if !tracker.Dispatch(ev) {
			r.logger.Warn("Tracker queue rejected event", logger.String("type", st.Type))
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func replayCommand() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "replay <script.json>",
		Short: "Replay a scripted page session through the tracking agent",
		Long: `Replay loads a page session script and plays it through the tracking
agent against the collector, honouring each step's after_ms pause.
With --profile the session id is kept in a SQLite file, so repeated
replays act as the same returning visitor.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := LoadScript(args[0])
			if err != nil {
				return err
			}

			storage, closeStorage, err := openProfile(profile)
			if err != nil {
				return err
			}
			defer closeStorage()

			result, err := NewReplayer(endpoint, storage, logger.FromContext(cmd.Context())).Run(cmd.Context(), script)
			if err != nil {
				return err
			}

			renderReplayResult(os.Stdout, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "", "SQLite file keeping the visitor's session id between replays")

	return cmd
}

func openProfile(path string) (agent.Storage, func(), error) {
	if path == "" {
		return agent.NewMemoryStorage(), func() {}, nil
	}
	storage, err := agent.OpenSQLiteStorage(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open profile: %w", err)
	}
	return storage, func() { _ = storage.Close() }, nil
}

func renderReplayResult(w io.Writer, r replayResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Steps", "Sent", "Failed", "Skipped", "Dropped", "Elapsed"})
	t.AppendRow(table.Row{
		r.Steps,
		r.Stats.Sent,
		r.Stats.Failed,
		r.Stats.Skipped,
		r.Dropped,
		r.Elapsed.Round(time.Millisecond),
	})
	t.Render()
}
