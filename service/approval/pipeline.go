package approval

import (
	"context"
	"fmt"

	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/internal/clock"
	"github.com/viant/approvo/internal/idgen"
	"github.com/viant/approvo/logger"
	"github.com/viant/approvo/runtime/pipeline"
	"github.com/viant/approvo/service/dao"
	"github.com/viant/approvo/service/event"
	"github.com/viant/approvo/service/rollback"
	"go.uber.org/zap"
)

// RegisterTemplate validates and stores a pipeline template, replacing any
// template with the same id. Running pipelines keep their own copy.
func (s *Service) RegisterTemplate(ctx context.Context, template *pipeline.Template) (ret *pipeline.Template, err error) {
	ctx, end := s.begin(ctx, "registerTemplate", nil)
	defer func() { end(err) }()
	if err = rollback.ValidateTemplate(template); err != nil {
		return nil, err
	}
	if err = s.templates.Save(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to save template %s: %w", template.ID, err)
	}
	logger.Info("pipeline template registered", zap.String("template", template.ID))
	return template.Clone(), nil
}

// Template returns a registered template.
func (s *Service) Template(ctx context.Context, id string) (*pipeline.Template, error) {
	ret, err := s.templates.Load(ctx, id)
	if err != nil {
		if dao.IsNotFound(err) {
			return nil, errs.NotFound("template", id)
		}
		return nil, fmt.Errorf("failed to load template %s: %w", id, err)
	}
	return ret, nil
}

// StartPipeline starts a pipeline from a template; an empty id is generated.
func (s *Service) StartPipeline(ctx context.Context, templateID, pipelineID string) (ret *pipeline.Pipeline, err error) {
	ctx, end := s.begin(ctx, "startPipeline", map[string]string{"template.id": templateID})
	defer func() { end(err) }()
	template, err := s.Template(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if pipelineID == "" {
		pipelineID = idgen.New()
	}
	release, err := s.lock(ctx, pipelineLockKey(pipelineID))
	if err != nil {
		return nil, err
	}
	defer release()
	if _, loadErr := s.pipelines.Load(ctx, pipelineID); loadErr == nil {
		return nil, &errs.ConflictError{Resource: "pipeline " + pipelineID, Reason: "already exists"}
	} else if !dao.IsNotFound(loadErr) {
		return nil, fmt.Errorf("failed to load pipeline %s: %w", pipelineID, loadErr)
	}
	p, err := rollback.Start(template, pipelineID)
	if err != nil {
		return nil, err
	}
	p.Touch(clock.Now())
	if err = s.pipelines.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save pipeline %s: %w", pipelineID, err)
	}
	logger.Info("pipeline started", zap.String("pipeline", p.ID), zap.String("template", templateID))
	return p, nil
}

// Pipeline returns a snapshot of a pipeline.
func (s *Service) Pipeline(ctx context.Context, id string) (*pipeline.Pipeline, error) {
	ret, err := s.pipelines.Load(ctx, id)
	if err != nil {
		if dao.IsNotFound(err) {
			return nil, errs.NotFound("pipeline", id)
		}
		return nil, fmt.Errorf("failed to load pipeline %s: %w", id, err)
	}
	return ret, nil
}

// mutatePipeline runs fn on the locked pipeline and saves it when fn succeeds.
func (s *Service) mutatePipeline(ctx context.Context, id string, fn func(p *pipeline.Pipeline) (*rollback.Result, error)) (*PipelineChange, error) {
	release, err := s.lock(ctx, pipelineLockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()
	p, err := s.Pipeline(ctx, id)
	if err != nil {
		return nil, err
	}
	result, err := fn(p)
	if err != nil {
		return nil, err
	}
	p.Touch(clock.Now())
	if err = s.pipelines.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save pipeline %s: %w", id, err)
	}
	return &PipelineChange{Pipeline: p, Result: result}, nil
}

// CompleteTask completes the in-progress non review task.
func (s *Service) CompleteTask(ctx context.Context, pipelineID, taskCode, by string) (ret *PipelineChange, err error) {
	ctx, end := s.begin(ctx, "completeTask", map[string]string{"pipeline.id": pipelineID, "task.code": taskCode})
	defer func() { end(err) }()
	return s.mutatePipeline(ctx, pipelineID, func(p *pipeline.Pipeline) (*rollback.Result, error) {
		return rollback.Complete(p, taskCode, by)
	})
}

// AttachWorkProduct records an opaque work product id on a task.
func (s *Service) AttachWorkProduct(ctx context.Context, pipelineID, taskCode, productID string) (ret *PipelineChange, err error) {
	ctx, end := s.begin(ctx, "attachWorkProduct", map[string]string{"pipeline.id": pipelineID, "task.code": taskCode})
	defer func() { end(err) }()
	if productID == "" {
		issues := errs.NewValidationError()
		issues.Add("workProduct", "is required")
		return nil, issues
	}
	return s.mutatePipeline(ctx, pipelineID, func(p *pipeline.Pipeline) (*rollback.Result, error) {
		if !p.AddWorkProduct(taskCode, productID) {
			return nil, errs.NotFound("task", taskCode)
		}
		return &rollback.Result{PipelineID: p.ID, TaskCode: taskCode, Status: p.Status}, nil
	})
}

// SelectOutcome applies a review outcome to the in-progress review task.
func (s *Service) SelectOutcome(ctx context.Context, request *OutcomeRequest) (ret *PipelineChange, err error) {
	if request == nil {
		return nil, fmt.Errorf("outcome request was nil")
	}
	ctx, end := s.begin(ctx, "selectOutcome", map[string]string{"pipeline.id": request.PipelineID, "task.code": request.TaskCode})
	defer func() { end(err) }()
	change, events, err := s.selectOutcome(ctx, request)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events)
	return change, nil
}

func (s *Service) selectOutcome(ctx context.Context, request *OutcomeRequest) (*PipelineChange, []*event.Event, error) {
	change, err := s.mutatePipeline(ctx, request.PipelineID, func(p *pipeline.Pipeline) (*rollback.Result, error) {
		return rollback.ApplyOutcome(p, request.TaskCode, request.OutcomeCode, request.By, request.Comment)
	})
	if err != nil {
		return nil, nil, err
	}
	result := change.Result
	if result.Outcome != nil {
		s.metrics.Outcome(string(result.Outcome.Type))
	}
	logger.Info("review outcome applied",
		zap.String("pipeline", request.PipelineID),
		zap.String("task", request.TaskCode),
		zap.String("outcome", request.OutcomeCode),
		zap.String("status", string(result.Status)))
	var events []*event.Event
	if len(result.Reopened) > 0 {
		events = append(events, rollbackEvent(result, request.By))
	}
	return change, events, nil
}

// ReopenTask resumes a halted pipeline at taskCode.
func (s *Service) ReopenTask(ctx context.Context, pipelineID, taskCode, by string) (ret *PipelineChange, err error) {
	ctx, end := s.begin(ctx, "reopenTask", map[string]string{"pipeline.id": pipelineID, "task.code": taskCode})
	defer func() { end(err) }()
	ret, err = s.mutatePipeline(ctx, pipelineID, func(p *pipeline.Pipeline) (*rollback.Result, error) {
		return rollback.Reopen(p, taskCode, by)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, []*event.Event{rollbackEvent(ret.Result, by)})
	return ret, nil
}
