package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zeu5/hospitalbot-rl/search"
)

type trialsResponse struct {
	Trials []search.FrozenTrial `json:"trials"`
	Count  int                  `json:"count"`
}

func get(t *testing.T, h http.Handler, url string, v interface{}) {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestStatusHandler(t *testing.T) {
	tracker := NewTracker("hospitalbot_training")
	tracker.SetMode("training")
	tracker.SetPhase("learning")
	tracker.SetTimesteps(4096)
	tracker.SetEvaluation(120.5, 300)

	s := NewServer("127.0.0.1:0", tracker, nil)
	status := Status{}
	get(t, s.Handler(), "/status", &status)
	require.Equal(t, "hospitalbot_training", status.Node)
	require.Equal(t, "training", status.Mode)
	require.Equal(t, "learning", status.Phase)
	require.Equal(t, 4096, status.NumTimesteps)
	require.NotNil(t, status.BestMeanReward)
	require.Equal(t, 300.0, *status.BestMeanReward)
}

func TestTrialsHandler(t *testing.T) {
	tracker := NewTracker("hospitalbot_training")
	tracker.TrialFinished(search.FrozenTrial{Number: 0, State: search.TrialComplete, Value: 10, Params: map[string]float64{"gamma": 0.9}})
	tracker.TrialFinished(search.FrozenTrial{Number: 1, State: search.TrialFail})
	require.Equal(t, 2, tracker.Status().TrialsFinished)

	h := NewServer("127.0.0.1:0", tracker, nil).Handler()
	all := &trialsResponse{}
	get(t, h, "/trials", all)
	require.Equal(t, 2, all.Count)
	require.Equal(t, 0.9, all.Trials[0].Params["gamma"])

	failed := &trialsResponse{}
	get(t, h, "/trials?state=fail", failed)
	require.Equal(t, 1, failed.Count)
	require.Equal(t, 1, failed.Trials[0].Number)
}

func TestNilTracker(t *testing.T) {
	var tracker *Tracker
	tracker.SetPhase("x")
	tracker.TrialFinished(search.FrozenTrial{})
	require.Empty(t, tracker.Trials())
	require.Equal(t, Status{}, tracker.Status())
}

func TestServerStartAndShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewServer("127.0.0.1:0", NewTracker("n"), nil)
	require.NoError(t, s.Start(ctx))

	resp, err := http.Get(fmt.Sprintf("http://%s/status", s.Addr))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s.Shutdown()
}

func TestShutdownWithoutCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewTracker("n"), nil)
	require.NoError(t, s.Start(context.Background()))

	s.Shutdown()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("server not marked done after shutdown")
	}
	s.Shutdown()

	_, err := http.Get(fmt.Sprintf("http://%s/status", s.Addr))
	require.Error(t, err)
}

func TestCancelShutsDownServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewServer("127.0.0.1:0", NewTracker("n"), nil)
	require.NoError(t, s.Start(ctx))
	cancel()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled context did not stop the server")
	}
}
