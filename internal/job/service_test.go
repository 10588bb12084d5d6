package job

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/frameseq/internal/codec"
	"github.com/maauso/frameseq/internal/failure"
	"github.com/maauso/frameseq/internal/media"
	"github.com/maauso/frameseq/internal/sequence"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, cfg *sequence.Config) (*media.Result, error) {
	args := m.Called(ctx, cfg)
	res, _ := args.Get(0).(*media.Result)
	return res, args.Error(1)
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Publish(ctx context.Context, key, path string) (string, error) {
	args := m.Called(ctx, key, path)
	return args.String(0), args.Error(1)
}

func (m *mockStorage) Cleanup(ctx context.Context, paths []string) error {
	args := m.Called(ctx, paths)
	return args.Error(0)
}

// fixture lays out an ffmpeg placeholder and a directory of PNG frames.
type fixture struct {
	ffmpeg string
	images string
}

func newFixture(t *testing.T, w, h, frames int) fixture {
	t.Helper()
	bin := filepath.Join(t.TempDir(), sequence.ExecutableName)
	require.NoError(t, os.WriteFile(bin, nil, 0o700))

	dir := t.TempDir()
	for i := range frames {
		f, err := os.Create(filepath.Join(dir, "frame_"+string(rune('a'+i))+".png"))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, w, h))))
		require.NoError(t, f.Close())
	}
	return fixture{ffmpeg: bin, images: dir}
}

func (f fixture) request() Request {
	return Request{ImagesDir: f.images, FrameRate: 24, Codec: codec.H264}
}

func newTestService(f fixture, runner *mockRunner, store *mockStorage, opts ...Option) (*Service, *MemoryRepository) {
	repo := NewMemoryRepository()
	opts = append([]Option{WithFFmpegPath(f.ffmpeg)}, opts...)
	return NewService(repo, runner, store, nil, opts...), repo
}

func TestNewService(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, &mockRunner{}, &mockStorage{}, nil)

	require.NotNil(t, svc)
	assert.Equal(t, repo, svc.repo)
	assert.NotNil(t, svc.logger)
	assert.Equal(t, "/usr/bin/ffmpeg", svc.ffmpegPath)
	assert.True(t, svc.inspect)
	assert.False(t, svc.cleanup)
	assert.Equal(t, defaultHeartbeat, svc.heartbeat)

	svc = NewService(repo, &mockRunner{}, &mockStorage{}, nil,
		WithFFmpegPath("/opt/ffmpeg"), WithInspection(false), WithCleanup(true))
	assert.Equal(t, "/opt/ffmpeg", svc.ffmpegPath)
	assert.False(t, svc.inspect)
	assert.True(t, svc.cleanup)
}

func TestService_Submit(t *testing.T) {
	f := newFixture(t, 4, 4, 2)
	svc, repo := newTestService(f, &mockRunner{}, &mockStorage{})
	ctx := context.Background()

	job, err := svc.Submit(ctx, f.request())
	require.NoError(t, err)

	assert.Equal(t, StatusQueued, job.Status)
	require.NotNil(t, job.Config)
	assert.Equal(t, filepath.Join(f.images, "*.png"), job.Config.InputPattern())
	assert.Equal(t, filepath.Join(f.images, sequence.DefaultOutputDir, sequence.DefaultOutputName), job.Config.OutputPath())

	saved, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, saved.Status)
}

func TestService_Submit_ValidationError(t *testing.T) {
	f := newFixture(t, 4, 4, 1)
	svc, repo := newTestService(f, &mockRunner{}, &mockStorage{})
	ctx := context.Background()

	req := f.request()
	req.Codec = codec.Unset
	_, err := svc.Submit(ctx, req)
	require.ErrorIs(t, err, sequence.ErrCodecNotSet)
	assert.Equal(t, failure.KindInvalid, failure.KindOf(err))

	_, err = svc.Submit(ctx, Request{ImagesDir: t.TempDir(), FrameRate: 24, Codec: codec.H264})
	require.ErrorIs(t, err, sequence.ErrEmptyImagesFolder)

	jobs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs, "rejected requests must not create jobs")
}

func TestService_Process_Succeeded(t *testing.T) {
	f := newFixture(t, 8, 6, 3)
	runner := &mockRunner{}
	store := &mockStorage{}
	svc, repo := newTestService(f, runner, store)
	ctx := context.Background()

	queued, err := svc.Submit(ctx, f.request())
	require.NoError(t, err)
	output := queued.Config.OutputPath()

	runner.On("Run", mock.Anything, mock.AnythingOfType("*sequence.Config")).
		Return(&media.Result{Status: media.StatusSucceeded, Stdout: "encoded"}, nil).Once()
	store.On("Publish", mock.Anything, "renders/"+queued.ID+"/_Video.mov", output).
		Return("/srv/renders/"+queued.ID+"/_Video.mov", nil).Once()

	job, err := svc.Process(ctx, queued.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, job.Status)
	assert.Equal(t, "encoded", job.Message)
	assert.Equal(t, "/srv/renders/"+queued.ID+"/_Video.mov", job.Location)
	require.NotNil(t, job.Info)
	assert.Equal(t, 3, job.Info.Frames)
	assert.Equal(t, 8, job.Info.Width)
	assert.Equal(t, 6, job.Info.Height)
	assert.False(t, job.StartedAt.IsZero())
	assert.False(t, job.CompletedAt.IsZero())

	saved, err := repo.FindByID(ctx, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, saved.Status)

	runner.AssertExpectations(t)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "Cleanup", mock.Anything, mock.Anything)
}

func TestService_Process_FailedExitIsRecorded(t *testing.T) {
	f := newFixture(t, 4, 4, 1)
	runner := &mockRunner{}
	store := &mockStorage{}
	svc, _ := newTestService(f, runner, store)
	ctx := context.Background()

	queued, err := svc.Submit(ctx, f.request())
	require.NoError(t, err)

	runner.On("Run", mock.Anything, mock.Anything).
		Return(&media.Result{Status: media.StatusFailed, ExitCode: 1, Stderr: "Unknown encoder"}, nil)

	job, err := svc.Process(ctx, queued.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, 1, job.ExitCode)
	assert.Equal(t, "Unknown encoder", job.Message)
	assert.Empty(t, job.Location)
	store.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Process_RunnerError(t *testing.T) {
	f := newFixture(t, 4, 4, 1)
	runner := &mockRunner{}
	svc, _ := newTestService(f, runner, &mockStorage{})
	ctx := context.Background()

	queued, err := svc.Submit(ctx, f.request())
	require.NoError(t, err)

	runner.On("Run", mock.Anything, mock.Anything).
		Return(nil, failure.IO("run ffmpeg", errors.New("permission denied")))

	job, err := svc.Process(ctx, queued.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusError, job.Status)
	assert.Contains(t, job.Error, "permission denied")
	assert.Empty(t, job.Message)
}

func TestService_Process_PublishError(t *testing.T) {
	f := newFixture(t, 4, 4, 1)
	runner := &mockRunner{}
	store := &mockStorage{}
	svc, _ := newTestService(f, runner, store)
	ctx := context.Background()

	queued, err := svc.Submit(ctx, f.request())
	require.NoError(t, err)

	runner.On("Run", mock.Anything, mock.Anything).
		Return(&media.Result{Status: media.StatusSucceeded}, nil)
	store.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("bucket unavailable"))

	job, err := svc.Process(ctx, queued.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusError, job.Status)
	assert.Contains(t, job.Error, "bucket unavailable")
}

func TestService_Process_CleanupAfterRemotePublish(t *testing.T) {
	f := newFixture(t, 4, 4, 1)
	runner := &mockRunner{}
	store := &mockStorage{}
	svc, _ := newTestService(f, runner, store, WithCleanup(true))
	ctx := context.Background()

	queued, err := svc.Submit(ctx, f.request())
	require.NoError(t, err)
	output := queued.Config.OutputPath()

	runner.On("Run", mock.Anything, mock.Anything).
		Return(&media.Result{Status: media.StatusSucceeded}, nil)
	store.On("Publish", mock.Anything, mock.Anything, output).
		Return("https://bucket.s3.us-east-1.amazonaws.com/renders/x/_Video.mov", nil)
	store.On("Cleanup", mock.Anything, []string{output}).
		Return(errors.New("busy")).Once()

	job, err := svc.Process(ctx, queued.ID)
	require.NoError(t, err)

	// A failed cleanup is only logged.
	assert.Equal(t, StatusSucceeded, job.Status)
	store.AssertExpectations(t)
}

func TestService_Process_NoCleanupWhenPublishedInPlace(t *testing.T) {
	f := newFixture(t, 4, 4, 1)
	runner := &mockRunner{}
	store := &mockStorage{}
	svc, _ := newTestService(f, runner, store, WithCleanup(true))
	ctx := context.Background()

	queued, err := svc.Submit(ctx, f.request())
	require.NoError(t, err)
	output := queued.Config.OutputPath()

	runner.On("Run", mock.Anything, mock.Anything).
		Return(&media.Result{Status: media.StatusSucceeded}, nil)
	store.On("Publish", mock.Anything, mock.Anything, output).Return(output, nil)

	job, err := svc.Process(ctx, queued.ID)
	require.NoError(t, err)

	assert.Equal(t, output, job.Location)
	store.AssertNotCalled(t, "Cleanup", mock.Anything, mock.Anything)
}

func TestService_Process_InspectionIsAdvisory(t *testing.T) {
	f := newFixture(t, 4, 4, 1)
	// A frame with a PNG name and garbage content still reaches ffmpeg.
	require.NoError(t, os.WriteFile(filepath.Join(f.images, "frame_z.png"), []byte("garbage"), 0o600))
	runner := &mockRunner{}
	store := &mockStorage{}
	svc, _ := newTestService(f, runner, store)
	ctx := context.Background()

	queued, err := svc.Submit(ctx, f.request())
	require.NoError(t, err)

	runner.On("Run", mock.Anything, mock.Anything).
		Return(&media.Result{Status: media.StatusSucceeded}, nil)
	store.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return("out", nil)

	job, err := svc.Process(ctx, queued.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, job.Status)
	assert.Nil(t, job.Info)
	runner.AssertExpectations(t)
}

func TestService_Process_InspectionDisabled(t *testing.T) {
	f := newFixture(t, 4, 4, 1)
	runner := &mockRunner{}
	store := &mockStorage{}
	svc, _ := newTestService(f, runner, store, WithInspection(false))
	ctx := context.Background()

	queued, err := svc.Submit(ctx, f.request())
	require.NoError(t, err)

	runner.On("Run", mock.Anything, mock.Anything).
		Return(&media.Result{Status: media.StatusSucceeded}, nil)
	store.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return("out", nil)

	job, err := svc.Process(ctx, queued.ID)
	require.NoError(t, err)
	assert.Nil(t, job.Info)
}

func TestService_Process_LogsHeartbeatWhileEncoding(t *testing.T) {
	f := newFixture(t, 4, 4, 1)
	runner := &mockRunner{}
	store := &mockStorage{}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	svc := NewService(NewMemoryRepository(), runner, store, logger,
		WithFFmpegPath(f.ffmpeg), WithInspection(false), WithHeartbeat(10*time.Millisecond))
	ctx := context.Background()

	queued, err := svc.Submit(ctx, f.request())
	require.NoError(t, err)

	runner.On("Run", mock.Anything, mock.Anything).
		After(80*time.Millisecond).
		Return(&media.Result{Status: media.StatusSucceeded}, nil).Once()
	store.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return("out", nil)

	job, err := svc.Process(ctx, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, job.Status)
	assert.Contains(t, buf.String(), "render still running")
	assert.Contains(t, buf.String(), "elapsed=")
}

func TestService_Process_NoHeartbeat(t *testing.T) {
	f := newFixture(t, 4, 4, 1)
	runner := &mockRunner{}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	svc := NewService(NewMemoryRepository(), runner, &mockStorage{}, logger,
		WithFFmpegPath(f.ffmpeg), WithInspection(false), WithHeartbeat(0))
	ctx := context.Background()

	queued, err := svc.Submit(ctx, f.request())
	require.NoError(t, err)

	runner.On("Run", mock.Anything, mock.Anything).
		After(30*time.Millisecond).
		Return(nil, errors.New("boom")).Once()

	job, err := svc.Process(ctx, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, job.Status)
	assert.NotContains(t, buf.String(), "render still running")
}

func TestService_Delete(t *testing.T) {
	f := newFixture(t, 4, 4, 1)
	runner := &mockRunner{}
	svc, repo := newTestService(f, runner, &mockStorage{})
	ctx := context.Background()

	queued, err := svc.Submit(ctx, f.request())
	require.NoError(t, err)

	err = svc.Delete(ctx, queued.ID)
	require.ErrorIs(t, err, ErrNotTerminal)
	_, err = repo.FindByID(ctx, queued.ID)
	require.NoError(t, err, "queued jobs must be kept")

	runner.On("Run", mock.Anything, mock.Anything).
		Return(&media.Result{Status: media.StatusFailed, ExitCode: 1}, nil).Once()
	_, err = svc.Process(ctx, queued.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, queued.ID))
	_, err = repo.FindByID(ctx, queued.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, queued.ID), ErrJobNotFound)
}

func TestService_Process_NotQueued(t *testing.T) {
	f := newFixture(t, 4, 4, 1)
	runner := &mockRunner{}
	store := &mockStorage{}
	svc, _ := newTestService(f, runner, store)
	ctx := context.Background()

	queued, err := svc.Submit(ctx, f.request())
	require.NoError(t, err)

	runner.On("Run", mock.Anything, mock.Anything).
		Return(&media.Result{Status: media.StatusFailed, ExitCode: 1}, nil).Once()

	_, err = svc.Process(ctx, queued.ID)
	require.NoError(t, err)

	_, err = svc.Process(ctx, queued.ID)
	assert.ErrorIs(t, err, ErrNotQueued)
	runner.AssertNumberOfCalls(t, "Run", 1)
}

func TestService_Process_NotFound(t *testing.T) {
	svc := NewService(NewMemoryRepository(), &mockRunner{}, &mockStorage{}, nil)

	_, err := svc.Process(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestService_Render(t *testing.T) {
	f := newFixture(t, 4, 4, 2)
	runner := &mockRunner{}
	store := &mockStorage{}
	svc, _ := newTestService(f, runner, store)
	ctx := context.Background()

	runner.On("Run", mock.Anything, mock.Anything).
		Return(&media.Result{Status: media.StatusSucceeded, Stdout: "ok"}, nil)
	store.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return("out", nil)

	job, err := svc.Render(ctx, f.request())
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, job.Status)
	assert.Equal(t, "ok", job.Message)

	_, err = svc.Render(ctx, Request{ImagesDir: f.images, FrameRate: 0, Codec: codec.H264})
	assert.ErrorIs(t, err, sequence.ErrInvalidFrameRate)
}

func TestService_GetAndList(t *testing.T) {
	f := newFixture(t, 4, 4, 1)
	svc, _ := newTestService(f, &mockRunner{}, &mockStorage{})
	ctx := context.Background()

	first, err := svc.Submit(ctx, f.request())
	require.NoError(t, err)
	second, err := svc.Submit(ctx, f.request())
	require.NoError(t, err)

	found, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = svc.Get(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrJobNotFound)

	jobs, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	ids := []string{jobs[0].ID, jobs[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
}
