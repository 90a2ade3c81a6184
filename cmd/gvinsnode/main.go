// Package main is the gvinsnode CLI command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/gnss-vio/gvins-core/clock"
	"github.com/gnss-vio/gvins-core/config"
	"github.com/gnss-vio/gvins-core/dispatch"
	"github.com/gnss-vio/gvins-core/estimator"
	"github.com/gnss-vio/gvins-core/ingest"
	"github.com/gnss-vio/gvins-core/internal/workers"
	"github.com/gnss-vio/gvins-core/logging"
	"github.com/gnss-vio/gvins-core/mechanize"
	"github.com/gnss-vio/gvins-core/recorder"
	"github.com/gnss-vio/gvins-core/replay"
)

func main() {
	var logger logging.Logger

	app := &cli.App{
		Name:  "gvinsnode",
		Usage: "run the GNSS-visual-inertial synchronization and dispatch core",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Load node configuration from `FILE`",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "replay",
				Usage: "Replay recorded flight-recorder rows from `FILE` instead of a live transport",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "debug, info, warn, or error",
			},
		},
		Before: func(c *cli.Context) error {
			if c.String("log-level") == "debug" {
				logger = logging.NewDebugLogger("gvinsnode")
			} else {
				logger = logging.NewLogger("gvinsnode")
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			return run(c, logger)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context, logger logging.Logger) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	// The nonlinear sliding-window optimizer is out of scope (spec §1); a
	// real deployment would construct its Estimator implementation here.
	// Fake stands in so the wiring below is exercised end to end.
	est := estimator.NewFake()

	var calibrator *clock.Calibrator
	if cfg.GNSS.LocalOnlineSync {
		calibrator = clock.New(logger.Sublogger("clock"), est.InputGNSSTimeDiff)
	} else {
		calibrator = clock.NewOffline(logger.Sublogger("clock"), est.InputGNSSTimeDiff, cfg.GNSS.LocalTimeDiff)
	}

	buf := ingest.New(logger.Sublogger("ingest"), cfg.GNSS.Enable, func() bool {
		_, valid := calibrator.Offset()
		return valid
	})
	synchronizer := ingest.NewSynchronizer(buf, calibrator.Offset, est.TimeOffset)

	var rec *recorder.Recorder
	if cfg.Recorder.Enable {
		rec, err = recorder.Open(cfg.Recorder.Path)
		if err != nil {
			return err
		}
		defer rec.Close()
	}

	d := dispatch.New(logger.Sublogger("dispatch"), buf, synchronizer, calibrator, est, cfg.GNSS.Enable, dispatch.Publications{
		Odometry: func(o mechanize.Odometry) {
			logger.Debugw("odometry", "t", o.T)
		},
		KeyPoses: func(poses []estimator.KeyPose) {
			logger.Debugw("keyPoses", "count", len(poses))
		},
		CameraPose: func(p estimator.Pose) {
			logger.Debugw("cameraPose", "p", p.P)
		},
		PointCloud: func(landmarks []estimator.Landmark) {
			logger.Debugw("pointCloud", "count", len(landmarks))
		},
		TF: func(transforms []estimator.Transform) {
			logger.Debugw("tf", "count", len(transforms))
		},
		Keyframe: func(kf estimator.Keyframe) {
			logger.Debugw("keyframe", "t", kf.TLocal)
		},
	})
	if rec != nil {
		d.SetRecorder(rec)
	}

	sw := workers.New(func(ctx context.Context) error {
		d.Run(ctx)
		return nil
	})
	defer func() {
		buf.Close()
		if teardownErr := sw.Stop(); teardownErr != nil {
			logger.Errorw("worker teardown reported errors", "error", teardownErr)
		}
	}()

	if path := c.String("replay"); path != "" {
		return runReplay(sw.Context(), logger, path, buf, d, calibrator)
	}

	logger.Infow("gvinsnode started", "numCam", cfg.NumCam, "gnssEnable", cfg.GNSS.Enable)
	waitForShutdown(sw.Context())
	return nil
}

// waitForShutdown blocks until SIGINT/SIGTERM arrives or ctx is canceled.
func waitForShutdown(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
	case <-ctx.Done():
	}
}

// runReplay drives the node from a recorded flight-recorder session instead
// of a live transport (the replay package's supplemented feature). The
// dispatcher worker is already running via the StoppableWorkers started in
// run(); this feeds every IMU sample, feature frame, and GNSS epoch the
// session recorded back into the same ingest API a live sensor callback
// would use, so the synchronizer and mechanizer replay the session for real
// rather than just driving the clock calibrator's pulse/trigger inputs.
func runReplay(
	ctx context.Context,
	logger logging.Logger,
	path string,
	buf *ingest.Buffers,
	d *dispatch.Dispatcher,
	calibrator *clock.Calibrator,
) error {
	rec, err := recorder.Open(path)
	if err != nil {
		return err
	}
	defer rec.Close()

	latest, err := rec.LatestSessionID()
	if err != nil {
		return err
	}
	rows, err := rec.Rows(latest)
	if err != nil {
		return err
	}
	logger.Infow("replaying recorded session", "rows", len(rows))

	var events []replay.Event
	for _, row := range rows {
		for _, s := range row.IMU {
			s := s
			events = append(events, replay.Event{At: s.TLocal, IMU: &s})
		}
		feature := row.Feature
		events = append(events, replay.Event{At: feature.TLocal, Feature: &feature})
		if row.GNSS != nil {
			events = append(events, replay.Event{At: row.GNSS.TGNSS, GNSS: row.GNSS})
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].At < events[j].At })

	sink := replay.SinkFromCalibrator(calibrator)
	sink.PushIMU = buf.PushIMU
	sink.AdmitFeature = d.Admit
	sink.PushGNSS = buf.PushGNSS

	player := replay.New(events, sink, 1.0)
	player.Run(ctx)
	return nil
}
