package services

// Stage is a step of a single pipeline run.
type Stage int

const (
	StageInit Stage = iota
	StageFetchListeningData
	StageSelectSeeds
	StageGatherCandidates
	StageScoreAndMix
	StageFilterAgainstHistory
	StageDryRunReport
	StageCreateAndPopulate
	StageRecordHistory
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageInit:                 "INIT",
	StageFetchListeningData:   "FETCH_LISTENING_DATA",
	StageSelectSeeds:          "SELECT_SEEDS",
	StageGatherCandidates:     "GATHER_CANDIDATES",
	StageScoreAndMix:          "SCORE_AND_MIX",
	StageFilterAgainstHistory: "FILTER_AGAINST_HISTORY",
	StageDryRunReport:         "DRY_RUN_REPORT",
	StageCreateAndPopulate:    "CREATE_AND_POPULATE",
	StageRecordHistory:        "RECORD_HISTORY",
	StageDone:                 "DONE",
	StageFailed:               "FAILED",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "UNKNOWN"
	}
	return stageNames[s]
}
