package services

import (
	"testing"

	apperrors "github.com/Corphon/GameStoryMCP/internal/errors"
	"github.com/Corphon/GameStoryMCP/internal/models"
)

func fixtureChapters(t *testing.T) []models.Chapter {
	t.Helper()
	chapters, err := NewChapterService(DefaultChapterConfig()).BuildChapters(fixturePlays())
	if err != nil {
		t.Fatalf("BuildChapters() = %v", err)
	}
	return chapters
}

func TestValidateChapters_Passes(t *testing.T) {
	chapters := fixtureChapters(t)
	fp, err := NewCoverageService().ValidateChapters(chapters, fixturePlays()[0].Index)
	if err != nil {
		t.Fatalf("ValidateChapters() = %v, want nil", err)
	}
	if len(fp) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(fp))
	}
}

func TestValidateChapters_Empty(t *testing.T) {
	if _, err := NewCoverageService().ValidateChapters(nil, 0); !apperrors.IsCoverage(err) {
		t.Fatalf("ValidateChapters(nil) = %v, want coverage error", err)
	}
}

func TestValidateChapters_DetectsGap(t *testing.T) {
	chapters := fixtureChapters(t)
	if len(chapters) < 2 {
		t.Skip("fixture produced too few chapters")
	}

	// 把第二章整体右移一位制造缺口
	broken := make([]models.Chapter, len(chapters))
	copy(broken, chapters)
	ch := broken[1]
	ch.PlayStartIdx++
	ch.PlayEndIdx++
	for i := range ch.Plays {
		ch.Plays[i].Index++
	}
	broken[1] = ch

	if _, err := NewCoverageService().ValidateChapters(broken, fixturePlays()[0].Index); !apperrors.IsCoverage(err) {
		t.Fatalf("ValidateChapters() with gap = %v, want coverage error", err)
	}
}

func TestValidateChapters_DetectsWrongBase(t *testing.T) {
	chapters := fixtureChapters(t)
	if _, err := NewCoverageService().ValidateChapters(chapters, 99); !apperrors.IsCoverage(err) {
		t.Fatalf("ValidateChapters() with wrong base = %v, want coverage error", err)
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := fixtureChapters(t)
	b := fixtureChapters(t)
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("identical chapters produced different fingerprints")
	}
}

func TestFingerprint_SensitiveToStructure(t *testing.T) {
	chapters := fixtureChapters(t)
	original := Fingerprint(chapters)

	modified := make([]models.Chapter, len(chapters))
	copy(modified, chapters)
	ch := modified[0]
	ch.ReasonCodes = append([]models.BoundaryReason{models.ReasonOfficialReview}, ch.ReasonCodes...)
	modified[0] = ch

	if Fingerprint(modified) == original {
		t.Error("fingerprint unchanged after reason codes changed")
	}
}

func TestValidateSectionCoverage(t *testing.T) {
	build := fixtureBuild(t)
	svc := NewCoverageService()

	if err := svc.ValidateSectionCoverage(build.Sections, build.Story.Chapters); err != nil {
		t.Fatalf("ValidateSectionCoverage() = %v, want nil", err)
	}

	t.Run("duplicate chapter reference", func(t *testing.T) {
		dup := make([]models.StorySection, len(build.Sections))
		copy(dup, build.Sections)
		first := dup[0]
		first.ChaptersIncluded = append([]string{first.ChaptersIncluded[0]}, first.ChaptersIncluded...)
		dup[0] = first

		if err := svc.ValidateSectionCoverage(dup, build.Story.Chapters); !apperrors.IsCoverage(err) {
			t.Errorf("ValidateSectionCoverage() with duplicate = %v, want coverage error", err)
		}
	})

	t.Run("missing chapter reference", func(t *testing.T) {
		missing := make([]models.StorySection, len(build.Sections))
		copy(missing, build.Sections)
		last := missing[len(missing)-1]
		last.ChaptersIncluded = last.ChaptersIncluded[:len(last.ChaptersIncluded)-1]
		missing[len(missing)-1] = last

		if err := svc.ValidateSectionCoverage(missing, build.Story.Chapters); !apperrors.IsCoverage(err) {
			t.Errorf("ValidateSectionCoverage() with missing chapter = %v, want coverage error", err)
		}
	})
}
