// Package approvo provides an approval and review workflow engine.
//
// Administrators author versioned form and flow definitions; submitters
// start instances that walk approval steps whose approvers are resolved
// from an organizational directory; approvers decide steps under all, any
// or sequential policies. Review tasks of multi-phase pipelines select
// outcomes that may roll the pipeline back to an earlier task.
//
// The root package wires the layers from a Config:
//
//   - service/definition – versioned definition store
//   - service/approval   – engine façade (submit, decide, cancel, pipelines)
//   - service/event      – fire-and-forget notification delivery
//   - rest               – HTTP surface
//
// Typical embedding:
//
//	srv, _ := approvo.New(approvo.WithConfig(conf), approvo.WithDirectory(dir))
//	engine := srv.Engine()
//	inst, err := engine.Submit(ctx, &approval.SubmitRequest{DefinitionID: "expense", SubmittedBy: "u1"})
//
// The approvod command serves the same engine over HTTP.
package approvo
