package services

import (
	"testing"

	"github.com/asterlab/mission-gateway/internal/clients/compute"
	types "github.com/asterlab/mission-gateway/internal/domain"
	"github.com/asterlab/mission-gateway/internal/platform/apierr"
)

func testPrincipal() *types.Principal {
	return &types.Principal{ID: 9, Username: "rdoe", Role: types.RoleMember, Status: types.PrincipalActive}
}

func testSpec() *compute.JobSpec {
	return &compute.JobSpec{
		Type: "job-granule-subset_9:1.0",
		Params: []compute.ParamDef{
			{Name: "username", Type: "string", Destination: "context"},
			{Name: "granule_url", Type: "download"},
			{Name: "bbox", Type: "string", Default: "-180,-90,180,90"},
			{Name: "scale", Type: "number"},
			{Name: "dry_run", Type: "boolean", Default: false},
		},
	}
}

func TestValidateFillsDefaultsAndContext(t *testing.T) {
	t.Parallel()
	svc := NewInputService(testLogger(t))

	params, err := svc.Validate(testSpec(), map[string]interface{}{
		"granule_url": "s3://bucket/granule.h5",
		"scale":       "2.5",
	}, testPrincipal())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if got := params["username"]; got != "rdoe" {
		t.Fatalf("unexpected username: got=%v want=rdoe", got)
	}
	if got := params["bbox"]; got != "-180,-90,180,90" {
		t.Fatalf("default not applied: got=%v", got)
	}
	if got := params["scale"]; got != 2.5 {
		t.Fatalf("number not coerced: got=%v (%T)", got, got)
	}
	if got := params["dry_run"]; got != false {
		t.Fatalf("boolean default not applied: got=%v", got)
	}
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()
	svc := NewInputService(testLogger(t))

	cases := []struct {
		name   string
		inputs map[string]interface{}
	}{
		{"missing required", map[string]interface{}{}},
		{"download without scheme", map[string]interface{}{"granule_url": "bucket/granule.h5"}},
		{"number mismatch", map[string]interface{}{"granule_url": "s3://b/g.h5", "scale": "not-a-number"}},
		{"unknown input", map[string]interface{}{"granule_url": "s3://b/g.h5", "scale": 1, "bogus": 1}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Validate(testSpec(), tc.inputs, testPrincipal())
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !apierr.IsCode(err, apierr.CodeInvalidRequest) {
				t.Fatalf("unexpected error code: %v", err)
			}
		})
	}
}

func TestValidateIgnoresCallerSuppliedContextValue(t *testing.T) {
	t.Parallel()
	svc := NewInputService(testLogger(t))

	params, err := svc.Validate(testSpec(), map[string]interface{}{
		"granule_url": "s3://b/g.h5",
		"scale":       1,
		"username":    "eve",
	}, testPrincipal())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := params["username"]; got != "rdoe" {
		t.Fatalf("context value not pinned to principal: got=%v", got)
	}
}

func TestValidatePassthrough(t *testing.T) {
	t.Parallel()
	svc := NewInputService(testLogger(t))

	spec := testSpec()
	spec.AllowPassthrough = true

	params, err := svc.Validate(spec, map[string]interface{}{
		"granule_url": "s3://b/g.h5",
		"scale":       2,
		"extra_flag":  "yes",
	}, testPrincipal())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := params["extra_flag"]; got != "yes" {
		t.Fatalf("passthrough input dropped: got=%v", got)
	}
}
