package vectorindex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadIDField stores the caller-supplied original id in the point
// payload, since Qdrant point ids must be UUIDs or positive integers.
const payloadIDField = "_original_id"

// QdrantIndex is a VectorIndex backed by Qdrant's gRPC API.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrantIndex connects to dsn, a URL such as http://host:6334 (gRPC port,
// default 6334; an https scheme enables TLS; an "api_key" query parameter
// selects authentication), and ensures collection exists with the given
// dimension and cosine distance.
func NewQdrantIndex(ctx context.Context, dsn, collection string, dimension int) (*QdrantIndex, error) {
	if collection == "" {
		return nil, fmt.Errorf("vectorindex: collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: invalid qdrant port: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: create qdrant client: %w", err)
	}
	q := &QdrantIndex{client: client, collection: collection, dimension: dimension}
	if err := q.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return q, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("vectorindex: check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if q.dimension <= 0 {
		return fmt.Errorf("vectorindex: qdrant requires dimension > 0")
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorindex: create collection: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Dimension() int { return q.dimension }

func (q *QdrantIndex) Close() error { return q.client.Close() }

func pointUUID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func (q *QdrantIndex) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	if q.dimension > 0 && len(vector) != q.dimension {
		return &ErrDimensionMismatch{Expected: q.dimension, Got: len(vector)}
	}
	uid := pointUUID(id)
	payload := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		payload[k] = v
	}
	if uid != id {
		payload[payloadIDField] = id
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	points := []*qdrant.PointStruct{{
		Id:      qdrant.NewIDUUID(uid),
		Vectors: qdrant.NewVectorsDense(vec),
		Payload: qdrant.NewValueMap(payload),
	}}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: q.collection, Points: points})
	if err != nil {
		return fmt.Errorf("vectorindex: qdrant upsert: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Get(ctx context.Context, id string) ([]float32, bool, error) {
	uid := pointUUID(id)
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(uid)},
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("vectorindex: qdrant get: %w", err)
	}
	if len(points) == 0 {
		return nil, false, nil
	}
	dense := points[0].GetVectors().GetVector().GetData()
	return dense, true, nil
}

func (q *QdrantIndex) Search(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	var queryFilter *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			must = append(must, qdrant.NewMatch(k, v))
		}
		queryFilter = &qdrant.Filter{Must: must}
	}
	limit := uint64(k)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         queryFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: qdrant query: %w", err)
	}
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		id := hit.Id.GetUuid()
		if hit.Payload != nil {
			if v, ok := hit.Payload[payloadIDField]; ok {
				id = v.GetStringValue()
			}
		}
		out = append(out, Result{ID: id, Score: float64(hit.Score)})
	}
	// Deterministic tie-break by id ascending on equal scores (Qdrant itself
	// returns score-descending but does not guarantee id order on ties).
	stableSortByScoreThenID(out)
	return out, nil
}

func stableSortByScoreThenID(out []Result) {
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			if a.Score > b.Score || (a.Score == b.Score && a.ID <= b.ID) {
				break
			}
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
}

var _ VectorIndex = (*QdrantIndex)(nil)
