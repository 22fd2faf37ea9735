package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"CreatorStudio-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBatcher() (*ImageBatcher, *memStore, *fakeGen, *fakeRemote) {
	store := newMemStore()
	remote := newFakeRemote()
	syncer := NewSyncer(store, remote)
	gen := newFakeGen()
	return NewImageBatcher(syncer, store, gen, remote), store, gen, remote
}

// storyboardProject 三帧分镜：f1 已有图、f2 被跳过、f3 待生成
func storyboardProject(t *testing.T, store *memStore, id string) *models.Project {
	t.Helper()
	p := models.NewProject(id, "测试项目", models.ProjectInputs{Topic: "测试选题"})
	p.Script = "完整脚本"
	p.Storyboard = models.FrameList{
		{ID: "f1", SceneNumber: 1, Description: "已有图", ImagePrompt: "x", ImageUrl: "https://img/old.png"},
		{ID: "f2", SceneNumber: 2, Description: "跳过", ImagePrompt: "y", SkipGeneration: true},
		{ID: "f3", SceneNumber: 3, Description: "待生成", ImagePrompt: "远景"},
	}
	require.NoError(t, store.SaveProject(p))
	return p
}

func TestImageBatchSkipsDoneAndSkippedFrames(t *testing.T) {
	b, store, gen, _ := newTestBatcher()
	storyboardProject(t, store, "p1")

	require.NoError(t, b.Run(context.Background(), "p1", ImageStyleRealistic))

	assert.Equal(t, 1, gen.imageCalls)
	got, err := store.GetProject("p1")
	require.NoError(t, err)
	assert.Equal(t, "https://img/old.png", got.Storyboard[0].ImageUrl)
	assert.Empty(t, got.Storyboard[1].ImageUrl)
	assert.Equal(t, "https://img.example.com/x.png", got.Storyboard[2].ImageUrl)
	assert.Equal(t, "fake-image-model", got.Storyboard[2].ImageModel)
	assert.False(t, b.Running("p1"))
}

func TestImageBatchNothingToDo(t *testing.T) {
	b, store, gen, _ := newTestBatcher()
	p := models.NewProject("p1", "测试项目", models.ProjectInputs{})
	p.Storyboard = models.FrameList{
		{ID: "f1", SceneNumber: 1, ImageUrl: "https://img/done.png"},
		{ID: "f2", SceneNumber: 2, SkipGeneration: true},
	}
	require.NoError(t, store.SaveProject(p))

	err := b.Run(context.Background(), "p1", "")
	assert.ErrorIs(t, err, ErrNothingToDo)
	assert.Equal(t, 0, gen.imageCalls)
}

func TestImageBatchPerFrameFailureContinues(t *testing.T) {
	b, store, gen, _ := newTestBatcher()
	p := models.NewProject("p1", "测试项目", models.ProjectInputs{})
	p.Storyboard = models.FrameList{
		{ID: "f1", SceneNumber: 1, ImagePrompt: "a"},
		{ID: "f2", SceneNumber: 2, ImagePrompt: "b"},
	}
	require.NoError(t, store.SaveProject(p))

	gen.imageFunc = func(call int, prompt string) ([]byte, error) {
		if call == 1 {
			return nil, errors.New("生图超时")
		}
		return []byte{1, 2, 3}, nil
	}

	require.NoError(t, b.Run(context.Background(), "p1", ImageStyleIllustration))

	got, err := store.GetProject("p1")
	require.NoError(t, err)
	// 首帧失败只记录，次帧照常生成
	assert.Empty(t, got.Storyboard[0].ImageUrl)
	assert.NotEmpty(t, got.Storyboard[1].ImageUrl)

	pr := b.Progress("p1")
	require.NotNil(t, pr)
	assert.Equal(t, 2, pr.Total)
	assert.Equal(t, 1, pr.Done)
	assert.Equal(t, []string{"f1"}, pr.Failed)
}

func TestImageBatchCancelBetweenFrames(t *testing.T) {
	b, store, gen, _ := newTestBatcher()
	p := models.NewProject("p1", "测试项目", models.ProjectInputs{})
	p.Storyboard = models.FrameList{
		{ID: "f1", SceneNumber: 1, ImagePrompt: "a"},
		{ID: "f2", SceneNumber: 2, ImagePrompt: "b"},
		{ID: "f3", SceneNumber: 3, ImagePrompt: "c"},
	}
	require.NoError(t, store.SaveProject(p))

	ctx, cancel := context.WithCancel(context.Background())
	gen.imageFunc = func(call int, prompt string) ([]byte, error) {
		if call == 1 {
			cancel() // 首帧完成后请求停止
		}
		return []byte{1, 2, 3}, nil
	}

	require.NoError(t, b.Run(ctx, "p1", ""))

	// 只处理了首帧，剩余帧保持原状
	assert.Equal(t, 1, gen.imageCalls)
	got, err := store.GetProject("p1")
	require.NoError(t, err)
	assert.NotEmpty(t, got.Storyboard[0].ImageUrl)
	assert.Empty(t, got.Storyboard[1].ImageUrl)
	assert.Empty(t, got.Storyboard[2].ImageUrl)

	pr := b.Progress("p1")
	require.NotNil(t, pr)
	assert.Equal(t, 1, pr.Done)
	assert.Empty(t, pr.Current)
	assert.False(t, b.Running("p1"))
}

func TestImageBatchInlineFallback(t *testing.T) {
	b, store, _, remote := newTestBatcher()
	p := models.NewProject("p1", "测试项目", models.ProjectInputs{})
	p.Storyboard = models.FrameList{{ID: "f1", SceneNumber: 1, ImagePrompt: "a"}}
	require.NoError(t, store.SaveProject(p))

	// 网关图床不可用且 MinIO 未初始化时退化为内联存储
	remote.putImageErr = errors.New("gateway unavailable")

	require.NoError(t, b.Run(context.Background(), "p1", ""))

	got, err := store.GetProject("p1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.Storyboard[0].ImageUrl, "data:image/png;base64,"))
}

func TestImageBatchRejectedWhileRunning(t *testing.T) {
	b, store, _, _ := newTestBatcher()
	storyboardProject(t, store, "p1")

	b.mu.Lock()
	b.running["p1"] = true
	b.mu.Unlock()

	err := b.Run(context.Background(), "p1", "")
	assert.ErrorIs(t, err, ErrBatchRunning)
}

func TestImageBatchArchivedRejected(t *testing.T) {
	b, store, gen, _ := newTestBatcher()
	p := storyboardProject(t, store, "p1")
	p.Status = models.ProjectStatusArchived
	require.NoError(t, store.SaveProject(p))

	err := b.Run(context.Background(), "p1", "")
	assert.ErrorIs(t, err, ErrProjectArchived)
	assert.Equal(t, 0, gen.imageCalls)
}

func TestImageBatchUnknownStyle(t *testing.T) {
	b, store, _, _ := newTestBatcher()
	storyboardProject(t, store, "p1")

	err := b.Run(context.Background(), "p1", "watercolor")
	assert.Error(t, err)
}

func TestCancelImageBatchRegistry(t *testing.T) {
	canceled := false
	RegisterBatchCancel("p1", func() { canceled = true })

	assert.True(t, CancelImageBatch("p1"))
	assert.True(t, canceled)
	// 再次取消已无注册项
	assert.False(t, CancelImageBatch("p1"))
}
