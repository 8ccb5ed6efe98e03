package approval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/internal/clock"
	"github.com/viant/approvo/logger"
	"github.com/viant/approvo/metrics"
	"github.com/viant/approvo/model"
	"github.com/viant/approvo/runtime/instance"
	"github.com/viant/approvo/runtime/pipeline"
	"github.com/viant/approvo/service/advancer"
	"github.com/viant/approvo/service/aggregator"
	"github.com/viant/approvo/service/compiler"
	"github.com/viant/approvo/service/dao"
	"github.com/viant/approvo/service/dao/store"
	"github.com/viant/approvo/service/definition"
	"github.com/viant/approvo/service/directory"
	"github.com/viant/approvo/service/event"
	"github.com/viant/approvo/service/locker"
	"github.com/viant/approvo/service/resolver"
	"github.com/viant/approvo/tracing"
	"go.uber.org/zap"
)

// Service is the approval engine.
type Service struct {
	definitions     *definition.Service
	directory       directory.Directory
	resolver        *resolver.Service
	compiler        *compiler.Service
	advancer        *advancer.Service
	instances       dao.Service[string, instance.Instance]
	pipelines       dao.Service[string, pipeline.Pipeline]
	templates       dao.Service[string, pipeline.Template]
	locker          locker.Locker
	publisher       Publisher
	metrics         *metrics.Recorder
	resolverOptions []resolver.Option
}

// New creates an engine; stores default to memory and the locker to an
// in-process keyed mutex.
func New(definitions *definition.Service, dir directory.Directory, options ...Option) *Service {
	ret := &Service{definitions: definitions, directory: dir}
	for _, option := range options {
		option(ret)
	}
	if ret.instances == nil {
		ret.instances = store.NewMemoryStore[string, instance.Instance](InstanceKey,
			store.WithClone[string, instance.Instance](InstanceClone),
			store.WithFilter[string, instance.Instance](InstanceFilter))
	}
	if ret.pipelines == nil {
		ret.pipelines = store.NewMemoryStore[string, pipeline.Pipeline](PipelineKey,
			store.WithClone[string, pipeline.Pipeline](PipelineClone),
			store.WithFilter[string, pipeline.Pipeline](PipelineFilter))
	}
	if ret.templates == nil {
		ret.templates = store.NewMemoryStore[string, pipeline.Template](TemplateKey,
			store.WithClone[string, pipeline.Template](TemplateClone))
	}
	if ret.locker == nil {
		ret.locker = locker.NewMemory()
	}
	resolverOptions := ret.resolverOptions
	if ret.metrics != nil {
		resolverOptions = append([]resolver.Option{resolver.WithObserver(ret.metrics.Resolution)}, resolverOptions...)
	}
	ret.resolver = resolver.New(dir, resolverOptions...)
	ret.compiler = compiler.New(ret.resolver)
	ret.advancer = advancer.New(ret.resolver)
	return ret
}

func instanceLockKey(id string) string { return "instance:" + id }
func pipelineLockKey(id string) string { return "pipeline:" + id }

// begin opens a span and returns the function closing it with the
// operation result.
func (s *Service) begin(ctx context.Context, operation string, attrs map[string]string) (context.Context, func(err error)) {
	started := time.Now()
	ctx, span := tracing.StartSpan(ctx, "approval."+operation, tracing.KindInternal)
	span.WithAttributes(attrs)
	return ctx, func(err error) {
		tracing.EndSpan(span, err)
		s.metrics.Operation(operation, started, err)
	}
}

func (s *Service) lock(ctx context.Context, key string) (locker.Release, error) {
	release, err := s.locker.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", key, err)
	}
	return release, nil
}

func (s *Service) publish(ctx context.Context, events []*event.Event) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	s.publisher.Publish(ctx, events...)
}

// CreateDraft stores a new draft version.
func (s *Service) CreateDraft(ctx context.Context, def *model.Definition) (ret *model.Definition, err error) {
	ctx, end := s.begin(ctx, "createDraft", nil)
	defer func() { end(err) }()
	return s.definitions.CreateDraft(ctx, def)
}

// Publish publishes a draft version.
func (s *Service) Publish(ctx context.Context, id string, version int) (ret *model.Definition, err error) {
	ctx, end := s.begin(ctx, "publish", map[string]string{"definition.id": id})
	defer func() { end(err) }()
	return s.definitions.Publish(ctx, id, version)
}

// Unpublish withdraws the published version of id.
func (s *Service) Unpublish(ctx context.Context, id string) (ret *model.Definition, err error) {
	ctx, end := s.begin(ctx, "unpublish", map[string]string{"definition.id": id})
	defer func() { end(err) }()
	return s.definitions.Unpublish(ctx, id)
}

// Definition returns a version of id; version 0 selects the published one.
func (s *Service) Definition(ctx context.Context, id string, version int) (*model.Definition, error) {
	return s.definitions.Get(ctx, id, version)
}

// Submit compiles a submission and activates its first step. When the first
// step can not be resolved the saved instance is returned together with an
// *errs.UnresolvedApproversError.
func (s *Service) Submit(ctx context.Context, request *SubmitRequest) (ret *instance.Instance, err error) {
	if request == nil {
		return nil, fmt.Errorf("submit request was nil")
	}
	ctx, end := s.begin(ctx, "submit", map[string]string{"definition.id": request.DefinitionID})
	defer func() { end(err) }()
	if err = request.validate(); err != nil {
		return nil, err
	}
	def, err := s.definitions.Get(ctx, request.DefinitionID, request.Version)
	if err != nil {
		return nil, err
	}
	if request.Review != nil {
		if err = s.checkReview(ctx, request.Review); err != nil {
			return nil, err
		}
	}
	inst, err := s.compiler.Compile(ctx, def, request.FormData, &instance.Context{
		SubmitterID:  request.SubmittedBy,
		DepartmentID: request.DepartmentID,
		SelfSelected: request.SelfSelected,
	})
	if err != nil {
		return nil, err
	}
	if request.Review != nil {
		review := *request.Review
		review.Applied, review.Error = false, ""
		inst.Review = &review
	}
	transition, activateErr := s.advancer.Activate(ctx, inst, 0)
	if activateErr != nil && !errors.Is(activateErr, errs.ErrUnresolved) {
		return nil, activateErr
	}
	inst.Touch(clock.Now())
	if err = s.instances.Save(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to save instance %s: %w", inst.ID, err)
	}
	s.metrics.Submitted(inst.DefinitionID)
	logger.Info("instance submitted",
		zap.String("instance", inst.ID),
		zap.String("definition", inst.Definition.Key()),
		zap.String("submittedBy", inst.SubmittedBy))
	s.publish(ctx, s.transitionEvents(inst, transition, inst.SubmittedBy))
	return inst, activateErr
}

func (s *Service) checkReview(ctx context.Context, review *instance.ReviewBinding) error {
	issues := errs.NewValidationError()
	p, err := s.pipelines.Load(ctx, review.PipelineID)
	if err != nil {
		if dao.IsNotFound(err) {
			issues.Add("review.pipelineId", "pipeline %s not found", review.PipelineID)
			return issues
		}
		return err
	}
	var ref *pipeline.TaskRef
	if p.Template != nil {
		ref = p.Template.Task(review.TaskCode)
	}
	if ref == nil || !ref.Task.Review {
		issues.Add("review.taskCode", "%s is not a review task of pipeline %s", review.TaskCode, p.ID)
		return issues
	}
	if review.OnApproved != "" && ref.Task.Outcome(review.OnApproved) == nil {
		issues.Add("review.onApproved", "unknown outcome %q", review.OnApproved)
	}
	if review.OnRejected != "" && ref.Task.Outcome(review.OnRejected) == nil {
		issues.Add("review.onRejected", "unknown outcome %q", review.OnRejected)
	}
	return issues.OrNil()
}

func (s *Service) load(ctx context.Context, id string) (*instance.Instance, error) {
	ret, err := s.instances.Load(ctx, id)
	if err != nil {
		if dao.IsNotFound(err) {
			return nil, errs.NotFound("instance", id)
		}
		return nil, fmt.Errorf("failed to load instance %s: %w", id, err)
	}
	return ret, nil
}

// mutate runs fn on the locked instance and saves it when fn succeeds or
// reports unresolved approvers. Events returned by fn are published after
// the lock is released.
func (s *Service) mutate(ctx context.Context, id string, fn func(inst *instance.Instance) ([]*event.Event, error)) (*instance.Instance, error) {
	release, err := s.lock(ctx, instanceLockKey(id))
	if err != nil {
		return nil, err
	}
	inst, err := s.load(ctx, id)
	if err != nil {
		release()
		return nil, err
	}
	events, fnErr := fn(inst)
	if fnErr != nil && !errors.Is(fnErr, errs.ErrUnresolved) {
		release()
		return nil, fnErr
	}
	inst.Touch(clock.Now())
	if err = s.instances.Save(ctx, inst); err != nil {
		release()
		return nil, fmt.Errorf("failed to save instance %s: %w", id, err)
	}
	release()
	s.publish(ctx, events)
	return inst, fnErr
}

// Decide records a decision and advances the instance when the step
// resolves. A repeated decision returns the recorded outcome flagged
// Duplicate without changing anything.
func (s *Service) Decide(ctx context.Context, request *DecideRequest) (ret *aggregator.StepOutcome, err error) {
	if request == nil {
		return nil, fmt.Errorf("decide request was nil")
	}
	ctx, end := s.begin(ctx, "decide", map[string]string{"instance.id": request.InstanceID, "approver.id": request.ApproverID})
	defer func() { end(err) }()
	if err = request.validate(); err != nil {
		return nil, err
	}
	var outcome *aggregator.StepOutcome
	_, err = s.mutate(ctx, request.InstanceID, func(inst *instance.Instance) ([]*event.Event, error) {
		var decideErr error
		outcome, decideErr = aggregator.Decide(inst, request.StepIndex, request.ApproverID, request.Decision, request.Comment)
		if decideErr != nil {
			return nil, decideErr
		}
		events := []*event.Event{s.decisionEvent(inst, outcome)}
		if !outcome.Resolved {
			return events, nil
		}
		transition, advanceErr := s.advancer.Advance(ctx, inst)
		if advanceErr != nil && !errors.Is(advanceErr, errs.ErrUnresolved) {
			return nil, advanceErr
		}
		events = append(events, s.transitionEvents(inst, transition, request.ApproverID)...)
		events = append(events, s.applyReview(ctx, inst, request.ApproverID)...)
		return events, advanceErr
	})
	switch {
	case errors.Is(err, errs.ErrDuplicateDecision) && outcome != nil:
		s.metrics.Decision(string(outcome.Verdict), "duplicate")
		return outcome, nil
	case err != nil && !errors.Is(err, errs.ErrUnresolved):
		s.metrics.Decision(string(request.Decision), "refused")
		return nil, err
	}
	s.metrics.Decision(string(outcome.Verdict), "accepted")
	return outcome, err
}

// Cancel withdraws a pending instance on behalf of its submitter.
func (s *Service) Cancel(ctx context.Context, instanceID, by string) (ret *instance.Instance, err error) {
	ctx, end := s.begin(ctx, "cancel", map[string]string{"instance.id": instanceID})
	defer func() { end(err) }()
	return s.mutate(ctx, instanceID, func(inst *instance.Instance) ([]*event.Event, error) {
		transition, err := s.advancer.Cancel(inst, by)
		if err != nil {
			return nil, err
		}
		return s.transitionEvents(inst, transition, by), nil
	})
}

// Retry re-runs approver resolution for the blocked step.
func (s *Service) Retry(ctx context.Context, instanceID string) (ret *instance.Instance, err error) {
	ctx, end := s.begin(ctx, "retry", map[string]string{"instance.id": instanceID})
	defer func() { end(err) }()
	return s.mutate(ctx, instanceID, func(inst *instance.Instance) ([]*event.Event, error) {
		transition, err := s.advancer.Retry(ctx, inst)
		if err != nil && !errors.Is(err, errs.ErrUnresolved) {
			return nil, err
		}
		return s.transitionEvents(inst, transition, ""), err
	})
}

// Assign activates the blocked step with operator supplied approvers. Every
// approver must be a known active user.
func (s *Service) Assign(ctx context.Context, instanceID string, stepIndex int, approverIDs []string) (ret *instance.Instance, err error) {
	ctx, end := s.begin(ctx, "assign", map[string]string{"instance.id": instanceID})
	defer func() { end(err) }()
	if err = s.checkApprovers(ctx, approverIDs); err != nil {
		return nil, err
	}
	return s.mutate(ctx, instanceID, func(inst *instance.Instance) ([]*event.Event, error) {
		transition, err := s.advancer.Assign(inst, stepIndex, approverIDs)
		if err != nil {
			return nil, err
		}
		return s.transitionEvents(inst, transition, ""), nil
	})
}

func (s *Service) checkApprovers(ctx context.Context, ids []string) error {
	issues := errs.NewValidationError()
	for i, id := range ids {
		key := fmt.Sprintf("approvers[%d]", i)
		user, err := s.directory.User(ctx, id)
		switch {
		case errors.Is(err, errs.ErrNotFound):
			issues.Add(key, "unknown user %q", id)
		case err != nil:
			return fmt.Errorf("failed to lookup approver %s: %w", id, err)
		case !user.Active:
			issues.Add(key, "user %q is not active", id)
		}
	}
	return issues.OrNil()
}

// Instance returns a snapshot of an instance.
func (s *Service) Instance(ctx context.Context, id string) (*instance.Instance, error) {
	return s.load(ctx, id)
}

// ListPending returns pending instances awaiting a decision from approverID,
// oldest first.
func (s *Service) ListPending(ctx context.Context, approverID string) ([]*instance.Instance, error) {
	if approverID == "" {
		issues := errs.NewValidationError()
		issues.Add("approverId", "is required")
		return nil, issues
	}
	ret, err := s.instances.List(ctx,
		dao.NewParameter(dao.ParamStatus, string(instance.StatusPending)),
		dao.NewParameter(dao.ParamApprover, approverID))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending instances: %w", err)
	}
	filtered := ret[:0]
	for _, inst := range ret {
		if inst.AwaitsDecisionFrom(approverID) {
			filtered = append(filtered, inst)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].CreatedAt.Before(filtered[j].CreatedAt) })
	return filtered, nil
}

// applyReview applies the outcome mapped to a terminal status onto the bound
// pipeline task. Failures are recorded on the binding and never fail the
// decision that completed the instance.
func (s *Service) applyReview(ctx context.Context, inst *instance.Instance, by string) []*event.Event {
	review := inst.Review
	if review == nil || review.Applied || !inst.Status.Terminal() {
		return nil
	}
	code := review.OutcomeFor(inst.Status)
	if code == "" {
		return nil
	}
	_, events, err := s.selectOutcome(ctx, &OutcomeRequest{
		PipelineID:  review.PipelineID,
		TaskCode:    review.TaskCode,
		OutcomeCode: code,
		By:          by,
		Comment:     fmt.Sprintf("approval instance %s %s", inst.ID, inst.Status),
	})
	if err != nil {
		review.Error = err.Error()
		logger.Warn("failed to apply review outcome",
			zap.String("instance", inst.ID),
			zap.String("pipeline", review.PipelineID),
			zap.String("task", review.TaskCode),
			zap.Error(err))
		return nil
	}
	review.Applied = true
	review.Error = ""
	return events
}
