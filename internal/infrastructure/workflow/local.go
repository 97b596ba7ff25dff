// Package workflow provides workflow.Navigator adapters: an embedded
// navigator over stored definitions and an HTTP client for a remote one.
package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"procurement/internal/core/apperror"
	domain "procurement/internal/domain/workflow"
)

var tracer = otel.Tracer("procurement/workflow")

// LocalNavigator walks stored workflow definitions. Each non-terminal stage
// may carry a CEL condition over amount and doc_type; stages whose
// condition is false are skipped. The last stage is terminal.
type LocalNavigator struct {
	defs domain.DefinitionSource
	env  *cel.Env

	mu       sync.Mutex
	programs map[string]cel.Program
}

var _ domain.Navigator = (*LocalNavigator)(nil)

// NewLocalNavigator creates the embedded navigator.
func NewLocalNavigator(defs domain.DefinitionSource) (*LocalNavigator, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("doc_type", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	return &LocalNavigator{
		defs:     defs,
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Start implements workflow.Navigator.
func (n *LocalNavigator) Start(ctx context.Context, workflowID string, payload domain.Payload) (*domain.Navigation, error) {
	ctx, span := tracer.Start(ctx, "workflow.start", trace.WithAttributes(attribute.String("workflow.id", workflowID)))
	defer span.End()

	def, err := n.definition(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return n.navigation(def, 0, "", payload)
}

// Stage implements workflow.Navigator.
func (n *LocalNavigator) Stage(ctx context.Context, workflowID, stage string) (*domain.StageInfo, error) {
	def, err := n.definition(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	i := stageIndex(def, stage)
	if i < 0 {
		return nil, apperror.NewNotFound("workflow_stage", stage).WithDetail("workflow_id", workflowID)
	}
	info := def.Stages[i].StageInfo
	return &info, nil
}

// Navigate implements workflow.Navigator.
func (n *LocalNavigator) Navigate(ctx context.Context, req domain.NavigateRequest) (*domain.Navigation, error) {
	ctx, span := tracer.Start(ctx, "workflow.navigate", trace.WithAttributes(
		attribute.String("workflow.id", req.WorkflowID),
		attribute.String("workflow.stage", req.CurrentStage),
	))
	defer span.End()

	def, err := n.definition(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}
	i := stageIndex(def, req.CurrentStage)
	if i < 0 {
		return nil, apperror.NewNotFound("workflow_stage", req.CurrentStage).WithDetail("workflow_id", req.WorkflowID)
	}
	if i == len(def.Stages)-1 {
		return nil, apperror.NewInvalidArgument("workflow is already complete").WithDetail("stage", req.CurrentStage)
	}

	j, err := n.nextApplicable(def, i, req.Payload)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return n.navigation(def, j, def.Stages[i].Name, req.Payload)
}

// navigation describes stage i of def as the current stage.
func (n *LocalNavigator) navigation(def *domain.Definition, i int, previous string, payload domain.Payload) (*domain.Navigation, error) {
	nav := &domain.Navigation{
		WorkflowName:     def.Name,
		CurrentStageInfo: def.Stages[i].StageInfo,
		PreviousStep:     previous,
	}
	if nav.PreviousStep == "" {
		nav.PreviousStep = "-"
	}
	if i == len(def.Stages)-1 {
		return nav, nil
	}

	j, err := n.nextApplicable(def, i, payload)
	if err != nil {
		return nil, err
	}
	nav.NextStageInfo = &domain.NextStageInfo{Name: def.Stages[j].Name}
	nav.NextStep = def.Stages[j].Name
	return nav, nil
}

// nextApplicable returns the first stage after i whose condition holds.
// The terminal stage always applies.
func (n *LocalNavigator) nextApplicable(def *domain.Definition, i int, payload domain.Payload) (int, error) {
	last := len(def.Stages) - 1
	for j := i + 1; j < last; j++ {
		ok, err := n.applies(def.Stages[j], payload)
		if err != nil {
			return 0, err
		}
		if ok {
			return j, nil
		}
	}
	return last, nil
}

func (n *LocalNavigator) applies(stage domain.StageDefinition, payload domain.Payload) (bool, error) {
	if stage.Condition == "" {
		return true, nil
	}
	prg, err := n.program(stage.Condition)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{
		"amount":   payload.Amount.InexactFloat64(),
		"doc_type": payload.DocType,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate condition of stage %q: %w", stage.Name, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition of stage %q is not boolean", stage.Name)
	}
	return b, nil
}

func (n *LocalNavigator) program(expr string) (cel.Program, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if prg, ok := n.programs[expr]; ok {
		return prg, nil
	}
	ast, iss := n.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, apperror.NewInvalidArgument("invalid stage condition").
			WithDetail("condition", expr).
			WithCause(iss.Err())
	}
	prg, err := n.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build program for %q: %w", expr, err)
	}
	n.programs[expr] = prg
	return prg, nil
}

func (n *LocalNavigator) definition(ctx context.Context, workflowID string) (*domain.Definition, error) {
	def, err := n.defs.Definition(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if len(def.Stages) < 2 {
		return nil, fmt.Errorf("workflow %s needs at least two stages, has %d", workflowID, len(def.Stages))
	}
	return def, nil
}

func stageIndex(def *domain.Definition, name string) int {
	for i := range def.Stages {
		if def.Stages[i].Name == name {
			return i
		}
	}
	return -1
}
