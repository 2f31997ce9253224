package editstream

import (
	"context"
	"errors"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuitCancelsRunAndWaits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := model{cancel: cancel, spinner: spinner.New()}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(model)

	assert.Nil(t, cmd)
	assert.True(t, m.interrupted)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Contains(t, m.View(), "Cancelling")

	next, cmd = m.Update(summaryMsg{Summary{Modified: []string{"a.go"}}})
	m = next.(model)

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.ErrorIs(t, runError(context.Background(), m, nil, nil), ErrInterrupted)
}

func TestProgressView(t *testing.T) {
	m := model{cancel: func() {}, spinner: spinner.New()}

	next, _ := m.Update(progressMsg{current: 2, total: 5})

	assert.Contains(t, next.View(), "Processing... 2/5")
}

func TestRunError(t *testing.T) {
	done := model{state: stateSummary}
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	boom := errors.New("boom")

	assert.NoError(t, runError(context.Background(), done, nil, nil))
	assert.ErrorIs(t, runError(context.Background(), done, nil, boom), boom)
	assert.ErrorIs(t, runError(context.Background(), done, boom, nil), boom)
	assert.ErrorIs(t, runError(canceled, nil, tea.ErrProgramKilled, nil), ErrInterrupted)
}
