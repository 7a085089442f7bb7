// Package audit runs the full trip audit: halt matching followed by the
// speed checks that depend on the matched halts.
package audit

import (
	"fmt"
	"log"

	"github.com/mini-rodalies-3d/tripaudit/internal/halts"
	"github.com/mini-rodalies-3d/tripaudit/internal/speed"
	"github.com/mini-rodalies-3d/tripaudit/internal/telemetry"
)

// Report is everything produced for one trip
type Report struct {
	ID              string                 `json:"id,omitempty"`
	Date            string                 `json:"date"`
	TrainNumber     string                 `json:"train_number"`
	From            string                 `json:"from"`
	To              string                 `json:"to"`
	Summary         telemetry.Summary      `json:"summary"`
	Analysis        *halts.Result          `json:"analysis"`
	Limits          []float64              `json:"limits,omitempty"`
	Overspeed       []speed.OverspeedEvent `json:"overspeed"`
	BrakeFeel       *speed.BrakeFeelTest   `json:"brake_feel_test"`
	PlatformEntries []speed.PlatformEntry  `json:"platform_entries"`
}

// Input is one trip to audit
type Input struct {
	halts.Input
	Date      string
	BrakeFeel speed.BrakeFeelConfig
}

// Run audits one trip. The result depends only on the input, so running
// the same trip twice yields equal reports.
func Run(in Input) (*Report, error) {
	if len(in.Samples) == 0 {
		return nil, telemetry.ErrNoSamples
	}

	res, err := halts.Analyze(in.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze halts: %w", err)
	}

	r := &Report{
		Date:        in.Date,
		TrainNumber: in.Identity.Number,
		From:        in.Identity.From,
		To:          in.Identity.To,
		Summary:     telemetry.Summarize(in.Samples),
		Analysis:    res,
	}

	origin := in.Samples[0].CumulativeDistance
	if len(res.Scheduled) > 0 {
		origin = res.Scheduled[0].CumulativeDistance
	}
	profile := speed.NewLimitProfile(in.Catalog, res.Route.Variant, origin, res.SectionDistances)
	r.Limits = profile.Limits(in.Samples)

	tol := in.Tolerances
	r.Overspeed = speed.DetectOverspeed(in.Samples, r.Limits, tol.OverspeedMargin, tol.OverspeedMinCount)
	r.BrakeFeel = speed.DetectBrakeFeelTest(in.Samples, in.BrakeFeel)
	r.PlatformEntries = speed.PlatformEntrySpeeds(in.Samples, res.Scheduled, res.Route.Schedule, in.Catalog, res.Route.Variant)

	if r.BrakeFeel == nil {
		log.Printf("Warning: no brake feel test found for train %s", in.Identity.Number)
	}
	log.Printf("Audit: train %s %s-%s: %d overspeed events, %d platform entries",
		in.Identity.Number, in.Identity.From, in.Identity.To, len(r.Overspeed), len(r.PlatformEntries))
	return r, nil
}
