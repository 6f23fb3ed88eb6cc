package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	gremlingo "github.com/apache/tinkerpop/gremlin-go/v3/driver"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/config"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

const (
	// TransactionLabel labels transaction vertices.
	TransactionLabel = "Transaction"
	// EdgeLabel labels transaction to entity edges.
	EdgeLabel = "CATEGORY"
	// PropsKey holds a vertex's serialized feature values.
	PropsKey = "props_values"
)

// TransactionVertexID returns the vertex id of a transaction.
func TransactionVertexID(transactionID string) string {
	return "t-" + transactionID
}

// EntityVertexID returns the vertex id of an entity, e.g. "card1-13926".
func EntityVertexID(label, value string) string {
	return label + "-" + value
}

// EdgeID returns the id of the edge between a transaction vertex and an entity vertex.
func EdgeID(txVertexID, entityVertexID string) string {
	return txVertexID + "-" + entityVertexID
}

// entityLabel extracts the label part of an entity vertex id.
func entityLabel(vertexID string) string {
	if i := strings.Index(vertexID, "-"); i >= 0 {
		return vertexID[:i]
	}
	return vertexID
}

// Client reads and writes the transaction graph.
type Client struct {
	handle       *Handle
	maxNeighbors int
}

// NewClient creates a Client.
func NewClient(handle *Handle, cfg *config.GraphConfig) *Client {
	return &Client{handle: handle, maxNeighbors: cfg.MaxNeighbors}
}

// UpsertTransaction writes the transaction vertex with its props, one vertex
// per entity and a CATEGORY edge to each. Existing vertices and edges are kept.
func (c *Client) UpsertTransaction(ctx context.Context, txVertexID, props string, entities map[string]string) error {
	g, err := c.handle.Traversal()
	if err != nil {
		return err
	}

	if err := c.upsertVertex(ctx, g, TransactionLabel, txVertexID); err != nil {
		return err
	}
	if err := <-g.V(txVertexID).Property(PropsKey, props).Iterate(); err != nil {
		return exception.NewFlowErrorf("graph", "failed to set props of %s", txVertexID, transportError(err))
	}

	labels := make([]string, 0, len(entities))
	for label := range entities {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		nodeID := EntityVertexID(label, entities[label])
		if err := c.upsertVertex(ctx, g, label, nodeID); err != nil {
			return err
		}
		edgeID := EdgeID(txVertexID, nodeID)
		exists, err := g.E(edgeID).HasNext()
		if err != nil {
			return exception.NewFlowErrorf("graph", "failed to look up edge %s", edgeID, transportError(err))
		}
		if exists {
			logger.Debugf("Edge %s already exists.", edgeID)
			continue
		}
		if err := <-g.V(txVertexID).AddE(EdgeLabel).To(gremlingo.T__.V(nodeID)).Property(gremlingo.T.Id, edgeID).Iterate(); err != nil {
			return exception.NewFlowErrorf("graph", "failed to insert edge %s", edgeID, transportError(err))
		}
	}
	return nil
}

func (c *Client) upsertVertex(ctx context.Context, g *gremlingo.GraphTraversalSource, label, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := <-g.V(id).Fold().
		Coalesce(gremlingo.T__.Unfold(), gremlingo.T__.AddV(label).Property(gremlingo.T.Id, id)).
		Iterate()
	if err != nil {
		return exception.NewFlowErrorf("graph", "failed to upsert vertex %s", id, transportError(err))
	}
	return nil
}

// Neighborhood returns, per entity label linked to the transaction, the ids of
// up to maxNeighbors vertices sharing that entity.
func (c *Client) Neighborhood(ctx context.Context, txVertexID string) (map[string][]string, error) {
	g, err := c.handle.Traversal()
	if err != nil {
		return nil, err
	}

	entities, err := g.V(txVertexID).Out().Id().ToList()
	if err != nil {
		return nil, exception.NewFlowErrorf("graph", "failed to list entities of %s", txVertexID, transportError(err))
	}

	neighborhood := make(map[string][]string, len(entities))
	for _, r := range entities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entityID := fmt.Sprint(r.GetInterface())
		nodes, err := g.V(entityID).Both().Limit(c.maxNeighbors).Id().ToList()
		if err != nil {
			return nil, exception.NewFlowErrorf("graph", "failed to list neighbors of %s", entityID, transportError(err))
		}
		ids := make([]string, 0, len(nodes))
		for _, n := range nodes {
			ids = append(ids, fmt.Sprint(n.GetInterface()))
		}
		neighborhood[entityLabel(entityID)] = ids
	}
	return neighborhood, nil
}
