package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarmLoadsComponentsAndSlipTable(t *testing.T) {
	q := componentFixture()
	c := newTestCatalog(q)
	w := NewWarmer(c, 0, discardLogger())

	require.True(t, w.Warm(context.Background()))
	assert.Equal(t, 4+len(SlipClasses), q.callCount())
	assert.Equal(t, 2, c.Len())

	_, err := c.Components(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4+len(SlipClasses), q.callCount(), "warmed entries are served from cache")
}

func TestWarmReportsFailure(t *testing.T) {
	q := componentFixture()
	q.answers = append([]answer{{contains: "rdf:type mk:Body .", err: errors.New("down")}}, q.answers...)
	c := newTestCatalog(q)

	assert.False(t, NewWarmer(c, 0, discardLogger()).Warm(context.Background()))
	assert.Equal(t, 0, c.Len())
}

func TestWarmerStartOnce(t *testing.T) {
	q := componentFixture()
	c := newTestCatalog(q)
	w := NewWarmer(c, 0, discardLogger())

	w.Start(context.Background())
	w.Stop()
	assert.Equal(t, 2, c.Len())
}

func TestWarmerTicksUntilStopped(t *testing.T) {
	q := componentFixture()
	c := newTestCatalog(q)
	w := NewWarmer(c, 10*time.Millisecond, discardLogger())

	w.Start(context.Background())
	require.Eventually(t, func() bool { return c.Len() == 2 }, time.Second, 5*time.Millisecond)

	c.Refresh()
	require.Eventually(t, func() bool { return c.Len() == 2 }, time.Second, 5*time.Millisecond,
		"a later tick reloads purged entries")
	w.Stop()
	w.Stop()
}

func TestWarmerStopsOnContextCancel(t *testing.T) {
	c := newTestCatalog(componentFixture())
	w := NewWarmer(c, time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("warmer did not stop after context cancel")
	}
}
