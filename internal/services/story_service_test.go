package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	apperrors "github.com/Corphon/GameStoryMCP/internal/errors"
	"github.com/Corphon/GameStoryMCP/internal/models"
)

// stubRenderer 记录调用并返回中性渲染产物
type stubRenderer struct {
	words         int
	chapterCalls  int
	bookCalls     int
	chapterOrder  []int
	failAtChapter int // -1 表示不失败
	failBook      bool
}

func newStubRenderer(words int) *stubRenderer {
	return &stubRenderer{words: words, failAtChapter: -1}
}

func (r *stubRenderer) RenderChapter(_ context.Context, input models.ChapterAIInput) (string, error) {
	r.chapterCalls++
	r.chapterOrder = append(r.chapterOrder, input.ChapterIndex)
	if input.ChapterIndex == r.failAtChapter {
		return "", errors.New("render backend unavailable")
	}
	return neutralNarrative(r.words), nil
}

func (r *stubRenderer) RenderBook(_ context.Context, _ models.BookAIInput) (string, error) {
	r.bookCalls++
	if r.failBook {
		return "", errors.New("render backend unavailable")
	}
	return neutralNarrative(r.words), nil
}

func TestBuildGameStory_Deterministic(t *testing.T) {
	first := fixtureBuild(t)
	second := fixtureBuild(t)

	if first.Fingerprint != second.Fingerprint {
		t.Errorf("fingerprints differ: %s != %s", first.Fingerprint, second.Fingerprint)
	}
	if !reflect.DeepEqual(first.Sections, second.Sections) {
		t.Error("sections differ between identical builds")
	}
	if first.Quality != second.Quality || first.Length != second.Length {
		t.Error("quality evaluation differs between identical builds")
	}
	if first.Story.CompactStory != second.Story.CompactStory {
		t.Error("compact story differs between identical builds")
	}
}

func TestBuildGameStory_RejectsBadInput(t *testing.T) {
	svc := newTestPipeline(nil)

	if _, err := svc.BuildGameStory(fixtureMeta(), nil); !apperrors.IsStructural(err) {
		t.Errorf("BuildGameStory(empty) = %v, want structural error", err)
	}

	badMeta := fixtureMeta()
	badMeta.HomeTeamName = ""
	if _, err := svc.BuildGameStory(badMeta, fixturePlays()); !apperrors.IsStructural(err) {
		t.Errorf("BuildGameStory(bad meta) = %v, want structural error", err)
	}
}

func TestBuildGameStory_StoryShape(t *testing.T) {
	build := fixtureBuild(t)
	story := build.Story

	if story.ChapterCount != len(story.Chapters) {
		t.Errorf("ChapterCount = %d, chapters = %d", story.ChapterCount, len(story.Chapters))
	}
	if story.TotalPlays != len(fixturePlays()) {
		t.Errorf("TotalPlays = %d, want %d", story.TotalPlays, len(fixturePlays()))
	}
	if story.CompactStory == "" {
		t.Error("CompactStory is empty")
	}
	if story.FinalScore() != (models.Score{Home: 40, Away: 39}) {
		t.Errorf("FinalScore = %+v, want 40-39", story.FinalScore())
	}
	if story.HadOvertime() {
		t.Error("fixture game has no overtime")
	}
	if err := models.ValidateGameStory(story); err != nil {
		t.Errorf("ValidateGameStory() = %v", err)
	}
}

func TestGenerateFullBook_ExactlyOneRenderCall(t *testing.T) {
	build := fixtureBuild(t)
	renderer := newStubRenderer(build.Length.TargetWords)
	svc := newTestPipeline(renderer)

	narrative, err := svc.GenerateFullBook(context.Background(), build)
	if err != nil {
		t.Fatalf("GenerateFullBook() = %v", err)
	}
	if narrative == "" {
		t.Error("GenerateFullBook() returned empty narrative")
	}
	if renderer.bookCalls != 1 {
		t.Errorf("book render calls = %d, want exactly 1", renderer.bookCalls)
	}
	if renderer.chapterCalls != 0 {
		t.Errorf("chapter render calls = %d, want 0 in book mode", renderer.chapterCalls)
	}
}

func TestGenerateFullBook_RenderFailure(t *testing.T) {
	build := fixtureBuild(t)
	renderer := newStubRenderer(build.Length.TargetWords)
	renderer.failBook = true
	svc := newTestPipeline(renderer)

	if _, err := svc.GenerateFullBook(context.Background(), build); err == nil {
		t.Fatal("GenerateFullBook() = nil, want error from renderer")
	}
}

func TestGenerateFullBook_QARejectsBadLength(t *testing.T) {
	build := fixtureBuild(t)
	// 渲染产物远短于目标：质检必须整体拒绝
	renderer := newStubRenderer(build.Length.TargetWords / 4)
	svc := newTestPipeline(renderer)

	if _, err := svc.GenerateFullBook(context.Background(), build); !apperrors.IsQAValidation(err) {
		t.Fatalf("GenerateFullBook() = %v, want qa error", err)
	}
}

func TestGenerateSequential_OrderAndCount(t *testing.T) {
	build := fixtureBuild(t)
	renderer := newStubRenderer(build.Length.TargetWords)
	svc := newTestPipeline(renderer)

	narratives, err := svc.GenerateSequential(context.Background(), build, "task-seq-1")
	if err != nil {
		t.Fatalf("GenerateSequential() = %v", err)
	}
	if len(narratives) != len(build.Chapters) {
		t.Fatalf("narratives = %d, want %d", len(narratives), len(build.Chapters))
	}

	// 严格按章节顺序恰好各渲染一次
	if renderer.chapterCalls != len(build.Chapters) {
		t.Errorf("chapter render calls = %d, want %d", renderer.chapterCalls, len(build.Chapters))
	}
	for i, idx := range renderer.chapterOrder {
		if idx != i {
			t.Errorf("render call %d was for chapter %d, want strict order", i, idx)
		}
	}
	for i, n := range narratives {
		if n.ChapterIndex != i || n.ChapterID != build.Chapters[i].Chapter.ChapterID {
			t.Errorf("narrative %d identity = %+v", i, n)
		}
		if n.Summary == "" {
			t.Errorf("narrative %d has no summary", i)
		}
	}
}

func TestGenerateSequential_TrackerLifecycle(t *testing.T) {
	build := fixtureBuild(t)
	renderer := newStubRenderer(build.Length.TargetWords)
	svc := newTestPipeline(renderer)

	if _, err := svc.GenerateSequential(context.Background(), build, "task-seq-2"); err != nil {
		t.Fatalf("GenerateSequential() = %v", err)
	}

	tracker, ok := svc.progress.GetTracker("task-seq-2")
	if !ok {
		t.Fatal("tracker not found after generation")
	}
	if st := tracker.Snapshot(); st.Status != "completed" || st.Progress != 100 {
		t.Errorf("tracker snapshot = %+v, want completed at 100%%", st)
	}
}

func TestGenerateSequential_FailureStopsPipeline(t *testing.T) {
	build := fixtureBuild(t)
	renderer := newStubRenderer(build.Length.TargetWords)
	renderer.failAtChapter = 2
	svc := newTestPipeline(renderer)

	if _, err := svc.GenerateSequential(context.Background(), build, "task-seq-3"); err == nil {
		t.Fatal("GenerateSequential() = nil, want error")
	}

	// 第三章失败后不再渲染后续章节
	if renderer.chapterCalls != 3 {
		t.Errorf("chapter render calls = %d, want 3 (stop on failure)", renderer.chapterCalls)
	}
	tracker, ok := svc.progress.GetTracker("task-seq-3")
	if !ok {
		t.Fatal("tracker not found after failure")
	}
	if st := tracker.Snapshot(); st.Status != "failed" {
		t.Errorf("tracker status = %s, want failed", st.Status)
	}
}

func TestGenerateSequential_NoRendererConfigured(t *testing.T) {
	build := fixtureBuild(t)
	svc := newTestPipeline(nil)

	if _, err := svc.GenerateSequential(context.Background(), build, ""); err == nil {
		t.Error("GenerateSequential() without renderer = nil, want error")
	}
	if _, err := svc.GenerateFullBook(context.Background(), build); err == nil {
		t.Error("GenerateFullBook() without renderer = nil, want error")
	}
}
