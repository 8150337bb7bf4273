package repos

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/oakmind/oakmind-backend/internal/data/repos/testutil"
	"github.com/oakmind/oakmind-backend/internal/domain"
	pkgerrors "github.com/oakmind/oakmind-backend/internal/pkg/errors"
)

func TestReviewSessionRepoRoundTrip(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewReviewSessionRepo(db, testutil.Logger(t))
	ctx := context.Background()

	session := &domain.ReviewSession{
		ID:          uuid.New(),
		SessionKey:  "sess-" + uuid.NewString(),
		RequesterID: uuid.New(),
		ContextID:   3,
	}
	if err := session.SetItemIDs([]uuid.UUID{uuid.New(), uuid.New()}); err != nil {
		t.Fatalf("SetItemIDs: %v", err)
	}

	if _, err := repo.Create(ctx, tx, session); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetBySessionKey(ctx, tx, session.SessionKey)
	if err != nil {
		t.Fatalf("GetBySessionKey: %v", err)
	}
	ids, err := got.GetItemIDs()
	if err != nil || len(ids) != 2 {
		t.Fatalf("item ids = %v (%v)", ids, err)
	}
}

func TestReviewSessionRepoNotFound(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewReviewSessionRepo(db, testutil.Logger(t))

	_, err := repo.GetBySessionKey(context.Background(), tx, "never-created")
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReviewSessionRepoAttachAnalysisResult(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	sessions := NewReviewSessionRepo(db, testutil.Logger(t))
	analyses := NewAnalysisResultRepo(db, testutil.Logger(t))
	ctx := context.Background()

	session := &domain.ReviewSession{
		ID:          uuid.New(),
		SessionKey:  "sess-" + uuid.NewString(),
		RequesterID: uuid.New(),
		ContextID:   3,
	}
	if _, err := sessions.Create(ctx, tx, session); err != nil {
		t.Fatalf("Create session: %v", err)
	}

	result := &domain.AnalysisResult{
		ID:          uuid.New(),
		Kind:        domain.UseCaseFocusGuide,
		RequesterID: session.RequesterID,
		ContextID:   session.ContextID,
		Payload:     datatypes.JSON(`{"weakPoints":[{"topic":"x"}],"advice":"y"}`),
	}
	if _, err := analyses.Create(ctx, tx, result); err != nil {
		t.Fatalf("Create analysis: %v", err)
	}

	if err := sessions.AttachAnalysisResult(ctx, tx, session.ID, result.ID); err != nil {
		t.Fatalf("AttachAnalysisResult: %v", err)
	}

	got, err := sessions.GetBySessionKey(ctx, tx, session.SessionKey)
	if err != nil {
		t.Fatalf("GetBySessionKey: %v", err)
	}
	if got.AnalysisResultID == nil || *got.AnalysisResultID != result.ID {
		t.Fatal("analysis id must be attached")
	}
}

func TestAnalysisResultRepoGetByRequester(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewAnalysisResultRepo(db, testutil.Logger(t))
	ctx := context.Background()

	requester := uuid.New()
	for i := 0; i < 2; i++ {
		result := &domain.AnalysisResult{
			ID:          uuid.New(),
			Kind:        domain.UseCaseFocusGuide,
			RequesterID: requester,
			ContextID:   3,
			Payload:     datatypes.JSON(`{}`),
		}
		if _, err := repo.Create(ctx, tx, result); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := repo.GetByRequester(ctx, tx, requester, 3)
	if err != nil {
		t.Fatalf("GetByRequester: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}

	none, err := repo.GetByRequester(ctx, tx, requester, 999)
	if err != nil {
		t.Fatalf("GetByRequester: %v", err)
	}
	if len(none) != 0 {
		t.Fatal("other context must return nothing")
	}
}
