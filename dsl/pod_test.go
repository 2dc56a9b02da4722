package dsl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastra-run/mastra-go/crd"
	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/schema"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseMastraPodInlineAndFileInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tool.yaml", `
apiVersion: mastra.dev/v1
kind: Tool
metadata:
  name: search
spec:
  id: search
  execute: search.run
`)
	podPath := writeFile(t, dir, "pod.yaml", `
kind: MastraPod
config:
  env: production
resources:
  - file: tool.yaml
  - apiVersion: mastra.dev/v1
    kind: LLM
    metadata:
      name: claude
    spec:
      provider: anthropic
      model: claude-3
`)

	l := newTestLoader(t)
	pod, err := l.ParseMastraPod(podPath)
	require.NoError(t, err)
	assert.Equal(t, "production", pod.Config["env"])
	require.Len(t, pod.Resources, 2)
}

func TestParseMastraPodDirectoryInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tools/search.yaml", `
apiVersion: mastra.dev/v1
kind: Tool
metadata:
  name: search
spec:
  id: search
  execute: search.run
`)
	writeFile(t, dir, "tools/fetch.yaml", `
apiVersion: mastra.dev/v1
kind: Tool
metadata:
  name: fetch
spec:
  id: fetch
  execute: fetch.run
`)
	podPath := writeFile(t, dir, "pod.yaml", `
kind: MastraPod
resources:
  - directory: tools
`)

	l := newTestLoader(t)
	pod, err := l.ParseMastraPod(podPath)
	require.NoError(t, err)
	assert.Len(t, pod.Resources, 2)
}

func TestParseMastraPodDetectsCircularFileInclude(t *testing.T) {
	dir := t.TempDir()
	podPath := filepath.Join(dir, "pod.yaml")
	writeFile(t, dir, "pod.yaml", `
kind: MastraPod
resources:
  - file: pod.yaml
`)

	l := newTestLoader(t)
	_, err := l.ParseMastraPod(podPath)
	var circular *CircularReferenceError
	require.ErrorAs(t, err, &circular)
}

func TestParseMastraPodTopLevelRefResolvesAgainstBatch(t *testing.T) {
	validator := schema.New()
	registry := crd.New(validator, nil)
	require.NoError(t, registry.Register("my-pipeline", resource.CRDSpec{
		Group: "mastra.dev",
		Names: resource.CRDNames{Kind: "Pipeline", Plural: "pipelines"},
		Scope: resource.CRDScopeNamespaced,
		Validation: resource.CRDValidation{OpenAPIV3Schema: map[string]any{"type": "object"}},
	}))
	l := New(validator, registry, nil)

	dir := t.TempDir()
	podPath := writeFile(t, dir, "pod.yaml", `
kind: MastraPod
resources:
  - apiVersion: mastra.dev/v1
    kind: Pipeline
    metadata:
      name: research-pipeline
    spec: {}
  - $ref: "Pipeline/research-pipeline"
`)

	pod, err := l.ParseMastraPod(podPath)
	require.NoError(t, err)
	require.Len(t, pod.Resources, 2)
}
