package usecase

import (
	"SignalForge/internal/domain/models"
	"SignalForge/internal/services/summary"
	"SignalForge/internal/workflow"
)

const (
	WorkflowSignal = "signal"
	SkillVersion   = "v1"

	SkillFetchAssets     = "fetch-assets"
	SkillFetchMacro      = "fetch-macro"
	SkillClassifyRegime  = "classify-regime"
	SkillComputeBias     = "compute-bias"
	SkillAssessQuality   = "assess-quality"
	SkillGenerateSummary = "generate-summary"
	SkillComputeDelta    = "compute-delta"
	SkillStoreSignal     = "store-signal"
	SkillPublishEvent    = "publish-event"
	SkillNotify          = "notify"
	SkillWebhooks        = "dispatch-webhooks"
)

func ref(name string) workflow.SkillRef {
	return workflow.SkillRef{Name: name, Version: SkillVersion}
}

// SignalWorkflow is the per-category DAG. Step ids equal skill names and
// the delivery steps only ever see the stored signal.
func SignalWorkflow() workflow.Definition {
	return workflow.Definition{
		Name: WorkflowSignal,
		Steps: []workflow.Step{
			{ID: SkillFetchAssets, Skill: ref(SkillFetchAssets)},
			{ID: SkillFetchMacro, Skill: ref(SkillFetchMacro)},
			{ID: SkillClassifyRegime, Skill: ref(SkillClassifyRegime), From: SkillFetchMacro},
			{
				ID:        SkillComputeBias,
				Skill:     ref(SkillComputeBias),
				DependsOn: []string{SkillFetchAssets, SkillClassifyRegime},
				Input:     biasInput,
			},
			{
				ID:        SkillAssessQuality,
				Skill:     ref(SkillAssessQuality),
				DependsOn: []string{SkillFetchAssets, SkillFetchMacro},
				Input:     qualityInput,
			},
			{
				ID:        SkillGenerateSummary,
				Skill:     ref(SkillGenerateSummary),
				DependsOn: []string{SkillComputeBias, SkillClassifyRegime},
				Input:     promptInput,
			},
			{ID: SkillComputeDelta, Skill: ref(SkillComputeDelta), From: SkillComputeBias},
			{
				ID:    SkillStoreSignal,
				Skill: ref(SkillStoreSignal),
				DependsOn: []string{
					SkillComputeBias, SkillClassifyRegime, SkillAssessQuality,
					SkillGenerateSummary, SkillComputeDelta,
				},
				Input: assembleSignal,
			},
			{ID: SkillPublishEvent, Skill: ref(SkillPublishEvent), From: SkillStoreSignal},
			{ID: SkillNotify, Skill: ref(SkillNotify), From: SkillStoreSignal},
			{ID: SkillWebhooks, Skill: ref(SkillWebhooks), From: SkillStoreSignal},
		},
	}
}

func biasInput(_ models.WorkflowContext, st *workflow.PipelineState, _ *workflow.SharedState) (any, error) {
	assets, err := workflow.Output[[]models.AssetData](st, SkillFetchAssets)
	if err != nil {
		return nil, err
	}
	snap, err := workflow.Output[models.RegimeSnapshot](st, SkillClassifyRegime)
	if err != nil {
		return nil, err
	}
	return BiasInput{Assets: assets, Regime: snap}, nil
}

func qualityInput(_ models.WorkflowContext, st *workflow.PipelineState, _ *workflow.SharedState) (any, error) {
	assets, err := workflow.Output[[]models.AssetData](st, SkillFetchAssets)
	if err != nil {
		return nil, err
	}
	macro, err := workflow.Output[models.MacroData](st, SkillFetchMacro)
	if err != nil {
		return nil, err
	}
	return QualityInput{Assets: assets, Macro: macro}, nil
}

func promptInput(wctx models.WorkflowContext, st *workflow.PipelineState, _ *workflow.SharedState) (any, error) {
	b, err := workflow.Output[models.CategoryBias](st, SkillComputeBias)
	if err != nil {
		return nil, err
	}
	snap, err := workflow.Output[models.RegimeSnapshot](st, SkillClassifyRegime)
	if err != nil {
		return nil, err
	}
	return summary.PromptData{Context: wctx, Bias: b, Regime: snap}, nil
}

func assembleSignal(wctx models.WorkflowContext, st *workflow.PipelineState, _ *workflow.SharedState) (any, error) {
	b, err := workflow.Output[models.CategoryBias](st, SkillComputeBias)
	if err != nil {
		return nil, err
	}
	snap, err := workflow.Output[models.RegimeSnapshot](st, SkillClassifyRegime)
	if err != nil {
		return nil, err
	}
	flags, err := workflow.Output[models.QualityFlags](st, SkillAssessQuality)
	if err != nil {
		return nil, err
	}
	text, err := workflow.Output[models.LLMRunResult](st, SkillGenerateSummary)
	if err != nil {
		return nil, err
	}
	d, err := workflow.Output[DeltaOutcome](st, SkillComputeDelta)
	if err != nil {
		return nil, err
	}

	return &models.Signal{
		Category:   wctx.Category,
		Date:       wctx.Date,
		TimeSlot:   wctx.TimeSlot,
		Bias:       b,
		Regime:     snap,
		Summary:    text,
		Quality:    flags,
		Delta:      d.Delta,
		Importance: d.Importance,
		Notify:     d.Notify,
		SkipReason: d.SkipReason,
	}, nil
}
