package storage

import (
	"testing"
	"time"

	"github.com/Adda-Baaj/course-grader/internal/domain"
)

func TestMemoryStoreExpiresAndSorts(t *testing.T) {
	store, err := NewStore(TypeMemory, "", Options{RecordTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewStore memory: %v", err)
	}
	mem := store.(*memoryStore)
	now := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	mem.now = func() time.Time { return now }

	b := domain.GradeRecord{Submission: domain.Submission{CourseID: "1", GroupID: "G", LabID: "L", GitHub: "b"}}
	a := domain.GradeRecord{Submission: domain.Submission{CourseID: "1", GroupID: "G", LabID: "L", GitHub: "a"}}
	for _, rec := range []domain.GradeRecord{b, a} {
		if err := store.Record(rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	list, err := store.List()
	if err != nil || len(list) != 2 || list[0].Submission.GitHub != "a" {
		t.Fatalf("unexpected list %#v (err %v)", list, err)
	}

	now = now.Add(2 * time.Minute)
	if _, found, _ := store.Lookup(a.Submission.Key()); found {
		t.Fatalf("expired record should not be found")
	}
	if list, _ := store.List(); len(list) != 0 {
		t.Fatalf("expired records should not be listed, got %d", len(list))
	}
}
