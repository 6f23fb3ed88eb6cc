// Package inference scores a live transaction against the serving endpoint and
// hands the scored transaction to the persistence queue.
package inference

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tigerroll/fraudflow/pkg/fraud/adapter/graph"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

const moduleName = "inference"

// GraphStore keeps the transaction graph.
type GraphStore interface {
	UpsertTransaction(ctx context.Context, txVertexID, props string, entities map[string]string) error
	Neighborhood(ctx context.Context, txVertexID string) (map[string][]string, error)
}

// Scorer posts a payload to a serving endpoint.
type Scorer interface {
	Invoke(ctx context.Context, endpointName string, body []byte) ([]byte, error)
}

// Sender enqueues a message body.
type Sender interface {
	Send(ctx context.Context, body string, dedupID string) (string, error)
}

// Response is returned to the caller for every scored transaction.
type Response struct {
	ID       string  `json:"id"`
	Flag     bool    `json:"flag"`
	PredProb float64 `json:"pred_prob"`
	// Time is the handling latency in seconds.
	Time float64 `json:"time"`
}

type graphInfo struct {
	TargetID  string              `json:"target_id"`
	Neighbors map[string][]string `json:"neighbors"`
}

type scoringPayload struct {
	TransactionData []model.Transaction `json:"transaction_data"`
	GraphInfo       graphInfo           `json:"graph_info"`
}

// Handler runs the graph update, scoring and queue hand-off for one transaction.
type Handler struct {
	graph        GraphStore
	scorer       Scorer
	queue        Sender
	endpointName string
	threshold    float64
	now          func() time.Time
}

// NewHandler creates a Handler scoring against the configured endpoint.
func NewHandler(cfg *config.FraudflowConfig, graph GraphStore, scorer Scorer, queue Sender) *Handler {
	return &Handler{
		graph:        graph,
		scorer:       scorer,
		queue:        queue,
		endpointName: cfg.InferenceEndpointName(),
		threshold:    cfg.Inference.Threshold,
		now:          time.Now,
	}
}

// Handle scores tx. The transaction is flagged when the probability exceeds the threshold.
func (h *Handler) Handle(ctx context.Context, tx model.Transaction) (*Response, error) {
	if tx.ID == "" {
		return nil, exception.NewValidationError(moduleName, "transaction id is required", nil)
	}
	start := h.now()

	props, err := json.Marshal(tx)
	if err != nil {
		return nil, exception.NewFlowErrorf(moduleName, "failed to encode transaction %s", tx.ID, err)
	}
	vertexID := graph.TransactionVertexID(tx.ID)
	if err := h.graph.UpsertTransaction(ctx, vertexID, string(props), Entities(tx)); err != nil {
		return nil, err
	}
	neighbors, err := h.graph.Neighborhood(ctx, vertexID)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(scoringPayload{
		TransactionData: []model.Transaction{tx},
		GraphInfo:       graphInfo{TargetID: vertexID, Neighbors: neighbors},
	})
	if err != nil {
		return nil, exception.NewFlowErrorf(moduleName, "failed to encode scoring payload", err)
	}
	raw, err := h.scorer.Invoke(ctx, h.endpointName, body)
	if err != nil {
		return nil, err
	}
	prob, err := parseProbability(raw)
	if err != nil {
		return nil, err
	}

	scored := tx
	scored.IsFraud = prob > h.threshold
	scored.Timestamp = h.now().Unix()
	msg, err := json.Marshal(scored)
	if err != nil {
		return nil, exception.NewFlowErrorf(moduleName, "failed to encode scored transaction %s", tx.ID, err)
	}
	if _, err := h.queue.Send(ctx, string(msg), tx.ID); err != nil {
		return nil, err
	}

	elapsed := h.now().Sub(start).Seconds()
	logger.Infof("Scored transaction %s: probability %.4f, fraud %t (%.3fs).", tx.ID, prob, scored.IsFraud, elapsed)
	return &Response{ID: tx.ID, Flag: scored.IsFraud, PredProb: prob, Time: elapsed}, nil
}

// Entities returns the entity vertices a transaction links to, keyed by label.
// Empty identifiers are skipped.
func Entities(tx model.Transaction) map[string]string {
	fields := map[string]string{
		"productCD":     tx.ProductCD,
		"card1":         tx.Card1,
		"card2":         tx.Card2,
		"card3":         tx.Card3,
		"card4":         tx.Card4,
		"card5":         tx.Card5,
		"card6":         tx.Card6,
		"addr1":         tx.Addr1,
		"addr2":         tx.Addr2,
		"P_emaildomain": tx.PEmailDomain,
		"R_emaildomain": tx.REmailDomain,
	}
	entities := make(map[string]string, len(fields))
	for label, value := range fields {
		if value != "" {
			entities[label] = value
		}
	}
	return entities
}

// parseProbability accepts a bare number or an array whose first element is the probability.
func parseProbability(raw []byte) (float64, error) {
	var prob float64
	if err := json.Unmarshal(raw, &prob); err == nil {
		return prob, nil
	}
	var probs []float64
	if err := json.Unmarshal(raw, &probs); err != nil {
		return 0, exception.NewFlowErrorf(moduleName, "unexpected endpoint response %q", string(raw), exception.ErrTaskFailed)
	}
	if len(probs) == 0 {
		return 0, exception.NewFlowErrorf(moduleName, "endpoint returned no probability", exception.ErrTaskFailed)
	}
	return probs[0], nil
}
