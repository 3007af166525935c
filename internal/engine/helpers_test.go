package engine

import (
	"context"
	"iter"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tablebuilder/internal/ir"
	"github.com/roach88/tablebuilder/internal/store"
	"github.com/roach88/tablebuilder/internal/testutil"
)

// absenceStore seeds the absence fixture and loads its subject.
func absenceStore(t *testing.T) (*store.Store, *ir.Subject) {
	t.Helper()
	s := testutil.NewStore(t, testutil.AbsenceFixture())
	subject, err := LoadSubject(context.Background(), s, "absence")
	require.NoError(t, err)
	return s, subject
}

// openSession opens a session released when the test ends.
func openSession(t *testing.T, s *store.Store) *store.Session {
	t.Helper()
	session, err := s.OpenSession(context.Background(), "session1")
	require.NoError(t, err)
	t.Cleanup(func() { session.Release(context.Background()) })
	return session
}

func matchedIDs(t *testing.T, session Session, matched *MatchedObservationSet) []string {
	t.Helper()
	ids := []string{}
	for obs, err := range session.Observations(context.Background(), matched.SubjectID, matched.Table) {
		require.NoError(t, err)
		ids = append(ids, obs.ID)
	}
	return ids
}

func rowsOf(t *testing.T, seq iter.Seq2[ir.ResultRow, error]) []ir.ResultRow {
	t.Helper()
	rows := []ir.ResultRow{}
	for row, err := range seq {
		require.NoError(t, err)
		rows = append(rows, row)
	}
	return rows
}
