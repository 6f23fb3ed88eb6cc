package inference

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
)

type MockGraph struct{ mock.Mock }

func (m *MockGraph) UpsertTransaction(ctx context.Context, txVertexID, props string, entities map[string]string) error {
	return m.Called(ctx, txVertexID, props, entities).Error(0)
}

func (m *MockGraph) Neighborhood(ctx context.Context, txVertexID string) (map[string][]string, error) {
	args := m.Called(ctx, txVertexID)
	n, _ := args.Get(0).(map[string][]string)
	return n, args.Error(1)
}

type MockScorer struct{ mock.Mock }

func (m *MockScorer) Invoke(ctx context.Context, endpointName string, body []byte) ([]byte, error) {
	args := m.Called(ctx, endpointName, body)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

type MockSender struct{ mock.Mock }

func (m *MockSender) Send(ctx context.Context, body string, dedupID string) (string, error) {
	args := m.Called(ctx, body, dedupID)
	return args.String(0), args.Error(1)
}

func newTestHandler(g *MockGraph, s *MockScorer, q *MockSender) *Handler {
	cfg := config.NewConfig().Fraudflow
	h := NewHandler(&cfg, g, s, q)
	clock := time.Unix(1700000000, 0)
	h.now = func() time.Time {
		clock = clock.Add(250 * time.Millisecond)
		return clock
	}
	return h
}

var sample = model.Transaction{
	ID:           "3163166",
	Amount:       117,
	ProductCD:    "W",
	Card1:        "13413",
	Card4:        "visa",
	Addr1:        "325",
	PEmailDomain: "gmail.com",
}

func TestHandler_Handle(t *testing.T) {
	g, s, q := &MockGraph{}, &MockScorer{}, &MockSender{}
	neighbors := map[string][]string{"card1-13413": {"t-3163166", "t-2987000"}}
	g.On("UpsertTransaction", mock.Anything, "t-3163166", mock.Anything, map[string]string{
		"productCD": "W", "card1": "13413", "card4": "visa", "addr1": "325", "P_emaildomain": "gmail.com",
	}).Return(nil)
	g.On("Neighborhood", mock.Anything, "t-3163166").Return(neighbors, nil)
	s.On("Invoke", mock.Anything, "frauddetection", mock.MatchedBy(func(body []byte) bool {
		var p scoringPayload
		return json.Unmarshal(body, &p) == nil &&
			len(p.TransactionData) == 1 && p.TransactionData[0].ID == "3163166" &&
			p.GraphInfo.TargetID == "t-3163166" && len(p.GraphInfo.Neighbors["card1-13413"]) == 2
	})).Return([]byte("0.82"), nil)

	var sent model.Transaction
	q.On("Send", mock.Anything, mock.Anything, "3163166").Run(func(args mock.Arguments) {
		require.NoError(t, json.Unmarshal([]byte(args.String(1)), &sent))
	}).Return("msg-1", nil)

	resp, err := newTestHandler(g, s, q).Handle(context.Background(), sample)
	require.NoError(t, err)

	assert.Equal(t, "3163166", resp.ID)
	assert.True(t, resp.Flag)
	assert.InDelta(t, 0.82, resp.PredProb, 1e-9)
	assert.InDelta(t, 0.5, resp.Time, 1e-9)
	assert.True(t, sent.IsFraud)
	assert.Equal(t, int64(1700000000), sent.Timestamp)
	assert.Equal(t, 117.0, sent.Amount)
	g.AssertExpectations(t)
	s.AssertExpectations(t)
	q.AssertExpectations(t)
}

func TestHandler_ThresholdIsExclusive(t *testing.T) {
	g, s, q := &MockGraph{}, &MockScorer{}, &MockSender{}
	g.On("UpsertTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	g.On("Neighborhood", mock.Anything, mock.Anything).Return(map[string][]string{}, nil)
	s.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return([]byte("[0.5, 0.1]"), nil)
	q.On("Send", mock.Anything, mock.MatchedBy(func(body string) bool {
		var tx model.Transaction
		return json.Unmarshal([]byte(body), &tx) == nil && !tx.IsFraud
	}), "3163166").Return("msg-1", nil)

	resp, err := newTestHandler(g, s, q).Handle(context.Background(), sample)
	require.NoError(t, err)
	assert.False(t, resp.Flag)
	assert.Equal(t, 0.5, resp.PredProb)
}

func TestHandler_Errors(t *testing.T) {
	t.Run("missing id", func(t *testing.T) {
		_, err := newTestHandler(&MockGraph{}, &MockScorer{}, &MockSender{}).Handle(context.Background(), model.Transaction{})
		assert.ErrorIs(t, err, exception.ErrValidation)
	})

	t.Run("graph failure stops before scoring", func(t *testing.T) {
		g, s, q := &MockGraph{}, &MockScorer{}, &MockSender{}
		g.On("UpsertTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection refused"))

		_, err := newTestHandler(g, s, q).Handle(context.Background(), sample)
		require.Error(t, err)
		s.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
		q.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed endpoint response", func(t *testing.T) {
		g, s, q := &MockGraph{}, &MockScorer{}, &MockSender{}
		g.On("UpsertTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		g.On("Neighborhood", mock.Anything, mock.Anything).Return(map[string][]string{}, nil)
		s.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return([]byte(`{"score":1}`), nil)

		_, err := newTestHandler(g, s, q).Handle(context.Background(), sample)
		assert.ErrorIs(t, err, exception.ErrTaskFailed)
		q.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestParseProbability(t *testing.T) {
	p, err := parseProbability([]byte("0.25"))
	require.NoError(t, err)
	assert.Equal(t, 0.25, p)

	p, err = parseProbability([]byte("[0.75]"))
	require.NoError(t, err)
	assert.Equal(t, 0.75, p)

	_, err = parseProbability([]byte("[]"))
	assert.Error(t, err)
}

func TestEntities_SkipsEmpty(t *testing.T) {
	assert.Equal(t, map[string]string{"card1": "1"}, Entities(model.Transaction{ID: "x", Card1: "1"}))
}
