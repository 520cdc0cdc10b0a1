package services

import "testing"

func TestStageString(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageInit, "INIT"},
		{StageFilterAgainstHistory, "FILTER_AGAINST_HISTORY"},
		{StageCreateAndPopulate, "CREATE_AND_POPULATE"},
		{StageFailed, "FAILED"},
		{Stage(-1), "UNKNOWN"},
		{StageFailed + 1, "UNKNOWN"},
	}
	for _, tc := range tests {
		if got := tc.stage.String(); got != tc.want {
			t.Errorf("Stage(%d).String() = %q, want %q", int(tc.stage), got, tc.want)
		}
	}
}
