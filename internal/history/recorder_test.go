package history

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castleryder/dividend-harvest/internal/contracts"
)

type fakeSaver struct {
	saved []string
	hash  string
	err   error
}

func (f *fakeSaver) SaveRun(ctx context.Context, rs *contracts.ResultSet, strategyHash string) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("missing deadline")
	}
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, rs.RunID)
	f.hash = strategyHash
	return nil
}

func TestRecorder_Publish(t *testing.T) {
	saver := &fakeSaver{}
	rec := NewRecorder(saver, "abc123")

	assert.Equal(t, "history", rec.Name())
	require.NoError(t, rec.Publish(context.Background(), &contracts.ResultSet{RunID: "run-1"}))
	assert.Equal(t, []string{"run-1"}, saver.saved)
	assert.Equal(t, "abc123", saver.hash)
}

func TestRecorder_PublishError(t *testing.T) {
	saver := &fakeSaver{err: errors.New("connection refused")}

	err := NewRecorder(saver, "").Publish(context.Background(), &contracts.ResultSet{RunID: "run-2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run-2")
}
