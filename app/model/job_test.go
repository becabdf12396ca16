package model

import "testing"

func TestTransitionForwardPath(t *testing.T) {
	job := Job{ID: "job-1", State: JobStateCreated}

	path := []JobState{
		JobStateScored,
		JobStateScripting,
		JobStateVoicing,
		JobStateAssetGathering,
		JobStateRendering,
		JobStateThumbnailGenerating,
		JobStateQualityChecking,
		JobStateApproved,
		JobStatePublishing,
		JobStatePublished,
	}
	for _, next := range path {
		if err := job.Transition(next); err != nil {
			t.Fatalf("状态 %s -> %s 应当被允许: %v", job.State, next, err)
		}
	}

	if job.FinishedAt == nil {
		t.Fatal("进入终态后 FinishedAt 应当被设置")
	}
}

func TestTransitionRejectsBackwards(t *testing.T) {
	job := Job{ID: "job-1", State: JobStateRendering}

	if err := job.Transition(JobStateScripting); err == nil {
		t.Fatal("回退转换应当被拒绝")
	}
	if job.State != JobStateRendering {
		t.Fatalf("失败的转换不应改变状态, 得到 %s", job.State)
	}
}

func TestTransitionRejectedOnlyFromQualityChecking(t *testing.T) {
	cases := []struct {
		from    JobState
		allowed bool
	}{
		{JobStateQualityChecking, true},
		{JobStateRendering, false},
		{JobStateScored, false},
		{JobStateApproved, false},
	}

	for _, tc := range cases {
		job := Job{ID: "job-1", State: tc.from}
		err := job.Transition(JobStateRejected)
		if tc.allowed && err != nil {
			t.Fatalf("%s -> rejected 应当被允许: %v", tc.from, err)
		}
		if !tc.allowed && err == nil {
			t.Fatalf("%s -> rejected 应当被拒绝", tc.from)
		}
	}
}

func TestTransitionFailedFromAnyActiveState(t *testing.T) {
	for _, from := range []JobState{
		JobStateCreated, JobStateScored, JobStateScripting,
		JobStateRendering, JobStateQualityChecking, JobStatePublishing,
	} {
		job := Job{ID: "job-1", State: from}
		if err := job.Transition(JobStateFailed); err != nil {
			t.Fatalf("%s -> failed 应当被允许: %v", from, err)
		}
	}
}

func TestTransitionTerminalStatesAreFinal(t *testing.T) {
	for _, terminal := range []JobState{
		JobStatePublished, JobStateRejected, JobStateFailed, JobStateCancelled,
	} {
		job := Job{ID: "job-1", State: terminal}
		if err := job.Transition(JobStateFailed); err == nil {
			t.Fatalf("终态 %s 之后不应再允许转换", terminal)
		}
	}
}

func TestTransitionCancelFlow(t *testing.T) {
	job := Job{ID: "job-1", State: JobStateRendering}

	if err := job.Transition(JobStateCancelling); err != nil {
		t.Fatalf("rendering -> cancelling 应当被允许: %v", err)
	}
	if err := job.Transition(JobStateCancelled); err != nil {
		t.Fatalf("cancelling -> cancelled 应当被允许: %v", err)
	}

	// 排队中的任务允许直接取消
	queued := Job{ID: "job-2", State: JobStateScored}
	if err := queued.Transition(JobStateCancelled); err != nil {
		t.Fatalf("scored -> cancelled 应当被允许: %v", err)
	}

	// 处理中的任务不能跳过 cancelling
	active := Job{ID: "job-3", State: JobStateVoicing}
	if err := active.Transition(JobStateCancelled); err == nil {
		t.Fatal("voicing -> cancelled 应当被拒绝")
	}
}

func TestOrdinalOutsideSuccessPath(t *testing.T) {
	if JobStateFailed.Ordinal() != -1 || JobStateCancelling.Ordinal() != -1 {
		t.Fatal("成功路径之外的状态 Ordinal 应当返回 -1")
	}
	if JobStateScored.Ordinal() >= JobStateRendering.Ordinal() {
		t.Fatal("成功路径上的状态序号应当递增")
	}
}
