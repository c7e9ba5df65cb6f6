package kv

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
)

// MilvusIndex is a Store backed by a Milvus collection, used when search
// quality matters more than the substring fallback the other backends use.
// Put/Get/Delete/List still read through an underlying Store (typically a
// RedisStore or MemoryStore) that holds the authoritative Value/Metadata;
// MilvusIndex only owns the vector index and Search.
type MilvusIndex struct {
	client     *milvusclient.Client
	collection string
	dim        int
	embedder   Embedder
	underlying Store
}

// NewMilvusIndex connects to addr and ensures the backing collection exists
// with an IVF_FLAT/L2 index over a dim-dimensional embedding field.
func NewMilvusIndex(ctx context.Context, addr, collection string, dim int, embedder Embedder, underlying Store) (*MilvusIndex, error) {
	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{Address: addr})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}

	m := &MilvusIndex{client: c, collection: collection, dim: dim, embedder: embedder, underlying: underlying}
	if err := m.ensureCollection(ctx); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	return m, nil
}

func (m *MilvusIndex) ensureCollection(ctx context.Context) error {
	exists, err := m.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(m.collection))
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}

	schema := entity.NewSchema().
		WithName(m.collection).
		WithDescription("graphrun long-term memory entries").
		WithAutoID(true)
	schema.WithField(entity.NewField().WithName("id").WithDataType(entity.FieldTypeInt64).WithIsPrimaryKey(true).WithIsAutoID(true))
	schema.WithField(entity.NewField().WithName("embedding").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(m.dim)))
	schema.WithField(entity.NewField().WithName("namespace").WithDataType(entity.FieldTypeVarChar).WithMaxLength(512))
	schema.WithField(entity.NewField().WithName("ref_key").WithDataType(entity.FieldTypeVarChar).WithMaxLength(512))

	if err := m.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(m.collection, schema)); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(entity.L2, 128)
	task, err := m.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(m.collection, "embedding", idx))
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("await index: %w", err)
	}

	loadTask, err := m.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(m.collection))
	if err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return loadTask.Await(ctx)
}

func (m *MilvusIndex) Put(ctx context.Context, namespace []string, key string, value map[string]any) error {
	if err := m.underlying.Put(ctx, namespace, key, value); err != nil {
		return err
	}

	text, _ := value["text"].(string)
	if text == "" || m.embedder == nil {
		return nil
	}
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed value: %w", err)
	}

	cols := []column.Column{
		column.NewColumnFloatVector("embedding", m.dim, [][]float32{vec}),
		column.NewColumnVarChar("namespace", []string{namespaceKey(namespace)}),
		column.NewColumnVarChar("ref_key", []string{key}),
	}
	_, err = m.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(m.collection, cols...))
	if err != nil {
		return fmt.Errorf("insert vector: %w", err)
	}
	_, err = m.client.Flush(ctx, milvusclient.NewFlushOption(m.collection))
	return err
}

func (m *MilvusIndex) Get(ctx context.Context, namespace []string, key string) (Entry, error) {
	return m.underlying.Get(ctx, namespace, key)
}

func (m *MilvusIndex) Delete(ctx context.Context, namespace []string, key string) error {
	return m.underlying.Delete(ctx, namespace, key)
}

func (m *MilvusIndex) List(ctx context.Context, namespace []string, limit int) ([]Entry, error) {
	return m.underlying.List(ctx, namespace, limit)
}

// Search performs ANN search over the Milvus collection and resolves each
// hit's ref_key back through the underlying store to recover the full Entry.
func (m *MilvusIndex) Search(ctx context.Context, namespace []string, query string, k int) ([]Entry, error) {
	if m.embedder == nil {
		return m.underlying.Search(ctx, namespace, query, k)
	}

	qvec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := m.client.Search(ctx, milvusclient.NewSearchOption(
		m.collection, k, []entity.Vector{entity.FloatVector(qvec)},
	).WithANNSField("embedding").
		WithSearchParam("nprobe", "16").
		WithFilter(fmt.Sprintf("namespace == %q", namespaceKey(namespace))).
		WithOutputFields("ref_key"))
	if err != nil {
		return nil, fmt.Errorf("search vectors: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	var keys []string
	for _, field := range results[0].Fields {
		if col, ok := field.(*column.ColumnVarChar); ok && col.Name() == "ref_key" {
			keys = col.Data()
		}
	}

	out := make([]Entry, 0, len(keys))
	for _, key := range keys {
		e, err := m.underlying.Get(ctx, namespace, key)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Close releases the Milvus client connection.
func (m *MilvusIndex) Close(ctx context.Context) error {
	return m.client.Close(ctx)
}
