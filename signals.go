package noema

import "github.com/zoobzio/capitan"

// Signal definitions for cognitive loop and memory events.
// Signals follow the pattern: noema.<entity>.<event>.
var (
	// Turn lifecycle signals.
	TurnStarted = capitan.NewSignal(
		"noema.turn.started",
		"Cognitive turn initiated for an identity",
	)
	TurnCompleted = capitan.NewSignal(
		"noema.turn.completed",
		"Cognitive turn produced a response",
	)
	TurnDegraded = capitan.NewSignal(
		"noema.turn.degraded",
		"Cognitive turn completed in a degraded mode",
	)
	TurnFailed = capitan.NewSignal(
		"noema.turn.failed",
		"Cognitive turn aborted with an error",
	)

	// Stage execution signals.
	StageStarted = capitan.NewSignal(
		"noema.stage.started",
		"Pipeline stage began execution",
	)
	StageCompleted = capitan.NewSignal(
		"noema.stage.completed",
		"Pipeline stage finished successfully",
	)
	StageFailed = capitan.NewSignal(
		"noema.stage.failed",
		"Pipeline stage encountered an error",
	)

	// Affect signals.
	AffectUpdated = capitan.NewSignal(
		"noema.affect.updated",
		"Affect vector moved toward a perceived signal",
	)
	SignalRejected = capitan.NewSignal(
		"noema.signal.rejected",
		"Perceived signal failed validation and was discarded",
	)

	// Memory signals.
	FragmentInserted = capitan.NewSignal(
		"noema.fragment.inserted",
		"New memory fragment indexed",
	)
	FragmentEvicted = capitan.NewSignal(
		"noema.fragment.evicted",
		"Memory fragment removed under capacity pressure",
	)
	FragmentTouched = capitan.NewSignal(
		"noema.fragment.touched",
		"Memory fragment access recorded",
	)

	// Reasoning signals.
	CandidateProduced = capitan.NewSignal(
		"noema.candidate.produced",
		"Reasoner returned a response candidate",
	)
	CandidateFailed = capitan.NewSignal(
		"noema.candidate.failed",
		"Reasoner failed or timed out producing a candidate",
	)
	CandidateSelected = capitan.NewSignal(
		"noema.candidate.selected",
		"Arbitration selected a response candidate",
	)

	// Consolidation signals.
	ConsolidationStarted = capitan.NewSignal(
		"noema.consolidation.started",
		"Dream cycle began processing unconsolidated traces",
	)
	ConsolidationCompleted = capitan.NewSignal(
		"noema.consolidation.completed",
		"Dream cycle finished and advanced the watermark",
	)
	HypothesisCommitted = capitan.NewSignal(
		"noema.hypothesis.committed",
		"Belief hypothesis persisted with its evidence links",
	)
)

// Field keys for noema event data.
var (
	// Turn metadata.
	FieldIdentity = capitan.NewStringKey("identity")
	FieldTurnID   = capitan.NewStringKey("turn_id")
	FieldMode     = capitan.NewStringKey("mode") // normal, degraded flavors

	// Stage metadata.
	FieldStage       = capitan.NewStringKey("stage") // perceive, retrieve, reason, synthesize, persist
	FieldProvider    = capitan.NewStringKey("provider")
	FieldReasoner    = capitan.NewStringKey("reasoner")
	FieldTemperature = capitan.NewFloat32Key("temperature")

	// Affect metadata.
	FieldDimension = capitan.NewStringKey("dimension")
	FieldValence   = capitan.NewFloat32Key("valence")
	FieldArousal   = capitan.NewFloat32Key("arousal")
	FieldIntensity = capitan.NewFloat32Key("intensity")

	// Memory metrics.
	FieldFragmentID = capitan.NewStringKey("fragment_id")
	FieldImportance = capitan.NewFloat32Key("importance")
	FieldResultSize = capitan.NewIntKey("result_size")
	FieldPoolSize   = capitan.NewIntKey("pool_size")

	// Consolidation metrics.
	FieldHypothesisID = capitan.NewStringKey("hypothesis_id")
	FieldConfidence   = capitan.NewFloat32Key("confidence")
	FieldClusterSize  = capitan.NewIntKey("cluster_size")
	FieldTraceCount   = capitan.NewIntKey("trace_count")
	FieldWatermark    = capitan.NewIntKey("watermark")

	// Timing.
	FieldStageDuration = capitan.NewDurationKey("stage_duration")

	// Error information.
	FieldError = capitan.NewErrorKey("error")
)
