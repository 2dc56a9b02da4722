package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastra-run/mastra-go/crd"
	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/schema"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	validator := schema.New()
	registry := crd.New(validator, nil)
	return New(validator, registry, map[string]string{"API_KEY": "secret-value"})
}

func TestParseContentDecodesToolSpec(t *testing.T) {
	l := newTestLoader(t)
	docs := []byte(`
apiVersion: mastra.dev/v1
kind: Tool
metadata:
  name: search
  namespace: default
spec:
  id: search
  execute: search.run
  parameters:
    query: { type: string }
`)
	resources, err := l.ParseContent(docs)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, resource.KindTool, resources[0].Kind)
	spec, ok := resources[0].Spec.(resource.ToolSpec)
	require.True(t, ok)
	assert.Equal(t, "search", spec.ID)
}

func TestParseContentRejectsMissingRequiredField(t *testing.T) {
	l := newTestLoader(t)
	docs := []byte(`
apiVersion: mastra.dev/v1
kind: Tool
metadata:
  name: search
spec:
  execute: search.run
`)
	_, err := l.ParseContent(docs)
	var valErr *ValidationFailedError
	require.ErrorAs(t, err, &valErr)
}

func TestParseContentUnknownKindFails(t *testing.T) {
	l := newTestLoader(t)
	docs := []byte(`
apiVersion: mastra.dev/v1
kind: Ghost
metadata:
  name: x
spec: {}
`)
	_, err := l.ParseContent(docs)
	var unknown *UnknownKindError
	require.ErrorAs(t, err, &unknown)
}

func TestParseContentEnvSubstitution(t *testing.T) {
	l := newTestLoader(t)
	docs := []byte(`
apiVersion: mastra.dev/v1
kind: LLM
metadata:
  name: claude
spec:
  provider: anthropic
  model: claude-3
  apiKeyEnv: "${env.API_KEY}"
`)
	resources, err := l.ParseContent(docs)
	require.NoError(t, err)
	spec := resources[0].Spec.(resource.LLMSpec)
	assert.Equal(t, "secret-value", spec.APIKeyEnv)
}

func TestParseContentResolvesCrossDocumentRef(t *testing.T) {
	validator := schema.New()
	registry := crd.New(validator, nil)
	require.NoError(t, registry.Register("my-pipeline", resource.CRDSpec{
		Group: "mastra.dev",
		Names: resource.CRDNames{Kind: "Pipeline", Plural: "pipelines"},
		Scope: resource.CRDScopeNamespaced,
		Validation: resource.CRDValidation{OpenAPIV3Schema: map[string]any{"type": "object"}},
	}))
	l := New(validator, registry, nil)

	docs := []byte(`
apiVersion: mastra.dev/v1
kind: Tool
metadata:
  name: search
spec:
  id: search
  execute: search.run
---
apiVersion: mastra.dev/v1
kind: Pipeline
metadata:
  name: research-pipeline
spec:
  source:
    $ref: "Tool/search"
`)
	resources, err := l.ParseContent(docs)
	require.NoError(t, err)
	require.Len(t, resources, 2)

	var pipeline *resource.Resource
	for _, r := range resources {
		if r.Kind == "Pipeline" {
			pipeline = r
		}
	}
	require.NotNil(t, pipeline)
	spec, ok := pipeline.Spec.(map[string]any)
	require.True(t, ok)
	source, ok := spec["source"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "search", source["metadata"].(map[string]any)["name"])
}

func TestParseContentDanglingRefFails(t *testing.T) {
	validator := schema.New()
	registry := crd.New(validator, nil)
	require.NoError(t, registry.Register("my-pipeline", resource.CRDSpec{
		Group: "mastra.dev",
		Names: resource.CRDNames{Kind: "Pipeline", Plural: "pipelines"},
		Scope: resource.CRDScopeNamespaced,
		Validation: resource.CRDValidation{OpenAPIV3Schema: map[string]any{"type": "object"}},
	}))
	l := New(validator, registry, nil)

	docs := []byte(`
apiVersion: mastra.dev/v1
kind: Pipeline
metadata:
  name: research-pipeline
spec:
  source:
    $ref: "Tool/missing"
`)
	_, err := l.ParseContent(docs)
	var dangling *DanglingReferenceError
	require.ErrorAs(t, err, &dangling)
}

func TestParseContentValidatesAgainstRegisteredCRD(t *testing.T) {
	validator := schema.New()
	registry := crd.New(validator, nil)
	require.NoError(t, registry.Register("my-datasource", resource.CRDSpec{
		Group: "mastra.dev",
		Names: resource.CRDNames{Kind: "DataSource", Plural: "datasources"},
		Scope: resource.CRDScopeNamespaced,
		Validation: resource.CRDValidation{
			OpenAPIV3Schema: map[string]any{
				"type":     "object",
				"required": []any{"url"},
			},
		},
	}))
	l := New(validator, registry, nil)

	_, err := l.ParseContent([]byte(`
apiVersion: mastra.dev/v1
kind: DataSource
metadata:
  name: prod-db
spec: {}
`))
	var valErr *ValidationFailedError
	require.ErrorAs(t, err, &valErr)

	resources, err := l.ParseContent([]byte(`
apiVersion: mastra.dev/v1
kind: DataSource
metadata:
  name: prod-db
spec:
  url: https://example.com
`))
	require.NoError(t, err)
	require.Len(t, resources, 1)
}
