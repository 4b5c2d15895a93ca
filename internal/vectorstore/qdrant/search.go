package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/askdesk/askdesk/internal/namespace"
	"github.com/askdesk/askdesk/internal/pkg/errors"
	"github.com/askdesk/askdesk/internal/retrieval"
)

// Search queries one namespace collection with a dense vector and returns
// raw similarity scores. A missing collection is an error; the caller
// decides whether a namespace failure degrades the query or fails it.
func (c *Client) Search(ctx context.Context, ns namespace.Namespace, vector []float32, topK int) ([]retrieval.Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.New(errors.CodeUnavailable, "qdrant client is closed")
	}
	if len(vector) == 0 {
		return nil, errors.New(errors.CodeValidation, "query vector cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	limit := uint64(topK)
	if limit == 0 {
		limit = 20
	}

	points, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.collectionName(string(ns)),
		Query:          qdrant.NewQueryDense(vector),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, errors.VectorStoreError("searching "+string(ns), err)
	}

	return scoredPointsToResults(points, ns), nil
}

// scoredPointsToResults converts Qdrant scored points to retrieval results.
func scoredPointsToResults(points []*qdrant.ScoredPoint, ns namespace.Namespace) []retrieval.Result {
	results := make([]retrieval.Result, 0, len(points))
	for _, p := range points {
		results = append(results, retrieval.Result{
			ID:        pointID(p.Id),
			Score:     p.Score,
			Metadata:  extractPayload(p.Payload),
			Namespace: ns,
		})
	}
	return results
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	}
	return ""
}

// extractPayload converts a Qdrant payload into plain metadata. Nested
// structs and lists are flattened into native Go values so downstream
// fusion and generation never see protobuf types.
func extractPayload(payload map[string]*qdrant.Value) map[string]any {
	if len(payload) == 0 {
		return nil
	}

	result := make(map[string]any, len(payload))
	for key, value := range payload {
		result[key] = convertValue(value)
	}
	return result
}

func convertValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch kind := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := make([]any, 0, len(kind.ListValue.Values))
		for _, item := range kind.ListValue.Values {
			items = append(items, convertValue(item))
		}
		return items
	case *qdrant.Value_StructValue:
		fields := make(map[string]any, len(kind.StructValue.Fields))
		for k, item := range kind.StructValue.Fields {
			fields[k] = convertValue(item)
		}
		return fields
	}
	return nil
}
