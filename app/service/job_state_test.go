package service

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"summary-fusion/app/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimPendingJob(t *testing.T) {
	db := newTestDB(t)
	state := NewJobStateMachine(db, newTestLogger())
	job := createJob(t, db, model.JobStatusPending)

	claimed, err := state.Claim(job)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, model.JobStatusProcessing, job.Status)
	assert.Equal(t, 1, job.AttemptCount)
	assert.NotNil(t, job.StartedAt)
}

func TestClaimNonPendingJob(t *testing.T) {
	db := newTestDB(t)
	state := NewJobStateMachine(db, newTestLogger())

	for _, status := range []model.JobStatus{
		model.JobStatusProcessing,
		model.JobStatusCompleted,
		model.JobStatusFailed,
		model.JobStatusCancelled,
	} {
		job := createJob(t, db, status)
		claimed, err := state.Claim(job)
		require.NoError(t, err)
		assert.False(t, claimed, "状态 %s 的任务不应被认领", status)
	}
}

func TestConcurrentClaimOnlyOneWins(t *testing.T) {
	db := newTestDB(t)
	state := NewJobStateMachine(db, newTestLogger())
	job := createJob(t, db, model.JobStatusPending)

	const workers = 8
	var wins int32
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			copied := *job
			claimed, err := state.Claim(&copied)
			if err == nil && claimed {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins, "同一任务只允许一个工作者认领成功")

	var reloaded model.Job
	require.NoError(t, db.First(&reloaded, job.ID).Error)
	assert.Equal(t, model.JobStatusProcessing, reloaded.Status)
	assert.Equal(t, 1, reloaded.AttemptCount, "竞争失败的认领不应累加尝试次数")
}

func TestCompleteAndFailOnlyFromProcessing(t *testing.T) {
	db := newTestDB(t)
	state := NewJobStateMachine(db, newTestLogger())

	processing := createJob(t, db, model.JobStatusProcessing)
	ok, err := state.Complete(processing.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	var reloaded model.Job
	require.NoError(t, db.First(&reloaded, processing.ID).Error)
	assert.Equal(t, model.JobStatusCompleted, reloaded.Status)
	assert.Equal(t, 100, reloaded.Progress)
	assert.NotNil(t, reloaded.CompletedAt)

	// 终态之后的任何转换都应失败
	ok, err = state.Fail(processing.ID, model.ErrorKindInternal, "不应生效")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.First(&reloaded, processing.ID).Error)
	assert.Equal(t, model.JobStatusCompleted, reloaded.Status)
	assert.Empty(t, reloaded.ErrorKind)
}

func TestFailRecordsErrorKind(t *testing.T) {
	db := newTestDB(t)
	state := NewJobStateMachine(db, newTestLogger())
	job := createJob(t, db, model.JobStatusProcessing)

	ok, err := state.Fail(job.ID, model.ErrorKindExtraction, "提取失败")
	require.NoError(t, err)
	assert.True(t, ok)

	var reloaded model.Job
	require.NoError(t, db.First(&reloaded, job.ID).Error)
	assert.Equal(t, model.JobStatusFailed, reloaded.Status)
	assert.Equal(t, model.ErrorKindExtraction, reloaded.ErrorKind)
	assert.Equal(t, "提取失败", reloaded.ErrorMessage)
}

func TestCancelFromPendingAndProcessing(t *testing.T) {
	db := newTestDB(t)
	state := NewJobStateMachine(db, newTestLogger())

	pending := createJob(t, db, model.JobStatusPending)
	ok, err := state.Cancel(pending.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	processing := createJob(t, db, model.JobStatusProcessing)
	ok, err = state.Cancel(processing.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// 终态任务不可取消
	completed := createJob(t, db, model.JobStatusCompleted)
	ok, err = state.Cancel(completed.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRequeueRestoresPending(t *testing.T) {
	db := newTestDB(t)
	state := NewJobStateMachine(db, newTestLogger())
	job := createJob(t, db, model.JobStatusProcessing)

	ok, err := state.Requeue(job.ID, "内部错误，等待重试")
	require.NoError(t, err)
	assert.True(t, ok)

	var reloaded model.Job
	require.NoError(t, db.First(&reloaded, job.ID).Error)
	assert.Equal(t, model.JobStatusPending, reloaded.Status)
}

func TestProgressIsMonotonic(t *testing.T) {
	db := newTestDB(t)
	state := NewJobStateMachine(db, newTestLogger())
	job := createJob(t, db, model.JobStatusProcessing)

	require.NoError(t, state.UpdateProgress(job.ID, 40, "阶段二"))

	var reloaded model.Job
	require.NoError(t, db.First(&reloaded, job.ID).Error)
	assert.Equal(t, 40, reloaded.Progress)

	// 乱序到达的较小进度不允许回退
	require.NoError(t, state.UpdateProgress(job.ID, 20, "迟到的阶段一"))
	require.NoError(t, db.First(&reloaded, job.ID).Error)
	assert.Equal(t, 40, reloaded.Progress)
	assert.Equal(t, "阶段二", reloaded.Stage)

	// 相同进度允许刷新阶段描述
	require.NoError(t, state.UpdateProgress(job.ID, 40, "阶段二刷新"))
	require.NoError(t, db.First(&reloaded, job.ID).Error)
	assert.Equal(t, "阶段二刷新", reloaded.Stage)
}

func TestProgressIgnoredOnTerminalJob(t *testing.T) {
	db := newTestDB(t)
	state := NewJobStateMachine(db, newTestLogger())
	job := createJob(t, db, model.JobStatusCompleted)

	require.NoError(t, state.UpdateProgress(job.ID, 50, "不应生效"))

	var reloaded model.Job
	require.NoError(t, db.First(&reloaded, job.ID).Error)
	assert.Equal(t, 0, reloaded.Progress)
}

func TestIsCancelled(t *testing.T) {
	db := newTestDB(t)
	state := NewJobStateMachine(db, newTestLogger())

	job := createJob(t, db, model.JobStatusProcessing)
	cancelled, err := state.IsCancelled(job.ID)
	require.NoError(t, err)
	assert.False(t, cancelled)

	_, err = state.Cancel(job.ID)
	require.NoError(t, err)

	cancelled, err = state.IsCancelled(job.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestReconcileStale(t *testing.T) {
	db := newTestDB(t)
	state := NewJobStateMachine(db, newTestLogger())

	// 有成功结果的僵死任务归档为完成
	withResults := createJob(t, db, model.JobStatusProcessing)
	status, err := state.ReconcileStale(withResults.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, status)

	// 没有成功结果的归档为超时失败
	withoutResults := createJob(t, db, model.JobStatusProcessing)
	status, err = state.ReconcileStale(withoutResults.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, status)

	var reloaded model.Job
	require.NoError(t, db.First(&reloaded, withoutResults.ID).Error)
	assert.Equal(t, model.ErrorKindTimeout, reloaded.ErrorKind)

	// 状态已变化的任务拒绝归档
	terminal := createJob(t, db, model.JobStatusCompleted)
	_, err = state.ReconcileStale(terminal.ID, 0)
	assert.Error(t, err)
}

func TestJobIsStale(t *testing.T) {
	window := 5 * time.Minute
	old := time.Now().Add(-10 * time.Minute)
	fresh := time.Now().Add(-time.Minute)

	stale := &model.Job{Status: model.JobStatusProcessing, ProgressAt: &old}
	assert.True(t, stale.IsStale(window))

	active := &model.Job{Status: model.JobStatusProcessing, ProgressAt: &fresh}
	assert.False(t, active.IsStale(window))

	// 没刷新过进度的任务退回开始时间判断
	neverProgressed := &model.Job{Status: model.JobStatusProcessing, StartedAt: &old}
	assert.True(t, neverProgressed.IsStale(window))

	terminal := &model.Job{Status: model.JobStatusCompleted, ProgressAt: &old}
	assert.False(t, terminal.IsStale(window))
}
