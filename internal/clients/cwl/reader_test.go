package cwl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/asterlab/mission-gateway/internal/platform/apierr"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

const sampleDoc = `cwlVersion: v1.2
$graph:
  - class: Workflow
    id: "#granule-subset"
    label: Granule Subsetter
    doc: Subsets a granule to a bounding box.
    inputs:
      granule_url: File
    outputs: []
    steps:
      run_tool:
        run: "#subset-tool"
        in: []
        out: []
  - class: CommandLineTool
    id: "#subset-tool"
    baseCommand: [python, subset.py]
    requirements:
      - class: ResourceRequirement
        ramMin: 4096
        coresMin: 2
    inputs: []
    outputs: []
s:version: 2.1.0
s:keywords: sar, subsetting, l2
s:codeRepository: https://git.example.org/missions/granule-subset
s:commitHash: 0a1b2c3d
s:author:
  - class: s:Person
    s:name: R. Doe
`

func testReader(t *testing.T) Reader {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	return NewReader(log, 0)
}

func TestReadInlineDocument(t *testing.T) {
	t.Parallel()
	r := testReader(t)

	m, err := r.Read(context.Background(), Source{Inline: sampleDoc})
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if m.Ident != "granule-subset" {
		t.Fatalf("unexpected ident: got=%q", m.Ident)
	}
	if m.Version != "2.1.0" {
		t.Fatalf("unexpected version: got=%q", m.Version)
	}
	if m.Title != "Granule Subsetter" {
		t.Fatalf("unexpected title: got=%q", m.Title)
	}
	if want := []string{"sar", "subsetting", "l2"}; !reflect.DeepEqual(m.Keywords, want) {
		t.Fatalf("unexpected keywords: got=%v want=%v", m.Keywords, want)
	}
	if m.SourceRepoURL != "https://git.example.org/missions/granule-subset" {
		t.Fatalf("unexpected repo url: got=%q", m.SourceRepoURL)
	}
	if m.SourceCommit != "0a1b2c3d" {
		t.Fatalf("unexpected commit: got=%q", m.SourceCommit)
	}
	if m.Author != "R. Doe" {
		t.Fatalf("unexpected author: got=%q", m.Author)
	}
	if m.RAMMin != 4096 || m.CoresMin != 2 {
		t.Fatalf("unexpected resource hints: ram=%d cores=%d", m.RAMMin, m.CoresMin)
	}
	if m.BaseCommand != "python subset.py" {
		t.Fatalf("unexpected base command: got=%q", m.BaseCommand)
	}
	if m.Raw != sampleDoc {
		t.Fatal("raw document not preserved")
	}
}

func TestReadFetchesFromURL(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(sampleDoc))
	}))
	defer srv.Close()

	m, err := testReader(t).Read(context.Background(), Source{URL: srv.URL})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if m.Ident != "granule-subset" || m.Version != "2.1.0" {
		t.Fatalf("unexpected metadata: ident=%q version=%q", m.Ident, m.Version)
	}
}

func TestReadRejections(t *testing.T) {
	t.Parallel()
	r := testReader(t)

	cases := []struct {
		name string
		doc  string
	}{
		{"empty", "   "},
		{"no workflow", "class: CommandLineTool\nid: \"#t\"\n"},
		{"no tool", "class: Workflow\nid: \"#w\"\ns:version: 1.0\n"},
		{"no version", `$graph:
  - class: Workflow
    id: "#w"
  - class: CommandLineTool
    id: "#t"
`},
		{"version with colon", `$graph:
  - class: Workflow
    id: "#w"
  - class: CommandLineTool
    id: "#t"
s:version: "1:0"
`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := r.Read(context.Background(), Source{Inline: tc.doc})
			if err == nil {
				t.Fatal("expected read to fail")
			}
			if !apierr.IsCode(err, apierr.CodeInvalidRequest) {
				t.Fatalf("unexpected error code: %v", err)
			}
		})
	}
}

func TestReadResolvesSteppedToolReference(t *testing.T) {
	t.Parallel()

	// The stager tool appears first in $graph; the workflow's first step
	// runs the subsetter, so the subsetter's hints must win.
	const doc = `cwlVersion: v1.2
$graph:
  - class: CommandLineTool
    id: "#stage-tool"
    baseCommand: [python, stage.py]
    requirements:
      - class: ResourceRequirement
        ramMin: 512
        coresMin: 1
    inputs: []
    outputs: []
  - class: Workflow
    id: "#granule-subset"
    inputs: []
    outputs: []
    steps:
      - id: subset
        run: "#subset-tool"
        in: []
        out: []
      - id: stage
        run: "#stage-tool"
        in: []
        out: []
  - class: CommandLineTool
    id: "#subset-tool"
    baseCommand: [python, subset.py]
    requirements:
      - class: ResourceRequirement
        ramMin: 8192
        coresMin: 4
    inputs: []
    outputs: []
s:version: 1.0.0
`
	m, err := testReader(t).Read(context.Background(), Source{Inline: doc})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if m.BaseCommand != "python subset.py" {
		t.Fatalf("wrong tool resolved: got=%q", m.BaseCommand)
	}
	if m.RAMMin != 8192 || m.CoresMin != 4 {
		t.Fatalf("hints from wrong tool: ram=%d cores=%d", m.RAMMin, m.CoresMin)
	}
}

func TestReadUpstreamFailures(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testReader(t).Read(context.Background(), Source{URL: srv.URL})
	if !apierr.IsCode(err, apierr.CodeUpstreamRejected) {
		t.Fatalf("unexpected error: %v", err)
	}
}
