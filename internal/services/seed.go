package services

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/gbacskai/docflow4-sub002/internal/pkg/dbctx"
	"github.com/gbacskai/docflow4-sub002/internal/pkg/logger"
	"github.com/gbacskai/docflow4-sub002/internal/schema"
	"github.com/gbacskai/docflow4-sub002/internal/types"
)

// SeedFile is the yaml shape of a seed definition: document types plus an
// optional default workflow, applied once at startup when nothing with the
// same identifier/name exists yet.
type SeedFile struct {
	DocumentTypes []SeedDocumentType `yaml:"document_types"`
	Workflow      *SeedWorkflow      `yaml:"workflow"`
}

type SeedDocumentType struct {
	Identifier string      `yaml:"identifier"`
	Name       string      `yaml:"name"`
	Order      *int        `yaml:"order"`
	Fields     []SeedField `yaml:"fields"`
}

type SeedField struct {
	Name     string   `yaml:"name"`
	Label    string   `yaml:"label"`
	Type     string   `yaml:"type"`
	Required bool     `yaml:"required"`
	Options  []string `yaml:"options"`
}

type SeedWorkflow struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Rules       []SeedRule `yaml:"rules"`
}

type SeedRule struct {
	ID         string `yaml:"id"`
	Validation string `yaml:"validation"`
	Action     string `yaml:"action"`
}

func (dt SeedDocumentType) formSchema() *schema.FormSchema {
	out := &schema.FormSchema{Fields: make([]schema.Field, 0, len(dt.Fields))}
	for _, f := range dt.Fields {
		out.Fields = append(out.Fields, schema.Field{
			Name:     f.Name,
			Label:    f.Label,
			Type:     f.Type,
			Required: f.Required,
			Options:  f.Options,
		})
	}
	return out
}

type SeedService interface {
	ApplyFile(dbc dbctx.Context, path string) error
}

type seedService struct {
	db        *gorm.DB
	log       *logger.Logger
	docTypes  DocumentTypeService
	workflows WorkflowService
}

func NewSeedService(db *gorm.DB, log *logger.Logger, docTypes DocumentTypeService, workflows WorkflowService) SeedService {
	serviceLog := log.With("service", "SeedService")
	return &seedService{
		db:        db,
		log:       serviceLog,
		docTypes:  docTypes,
		workflows: workflows,
	}
}

func (ss *seedService) ApplyFile(dbc dbctx.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("decode seed file: %w", err)
	}

	ctx := dbc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	for _, dt := range seed.DocumentTypes {
		if err := ss.seedDocumentType(ctx, dt); err != nil {
			return err
		}
	}
	if seed.Workflow != nil {
		if err := ss.seedWorkflow(ctx, *seed.Workflow); err != nil {
			return err
		}
	}
	return nil
}

func (ss *seedService) seedDocumentType(ctx context.Context, dt SeedDocumentType) error {
	input := DocumentTypeInput{
		Identifier: dt.Identifier,
		Name:       dt.Name,
		Order:      dt.Order,
	}
	if len(dt.Fields) > 0 {
		input.Schema = dt.formSchema()
	}
	_, err := ss.docTypes.Create(ctx, input)
	if err != nil {
		// Re-seeding against an existing type is expected on restart.
		ss.log.Debug("Document type seed skipped", "identifier", dt.Identifier, "reason", err)
		return nil
	}
	ss.log.Info("Seeded document type", "identifier", dt.Identifier)
	return nil
}

func (ss *seedService) seedWorkflow(ctx context.Context, wf SeedWorkflow) error {
	existing, err := ss.workflows.List(ctx)
	if err != nil {
		return err
	}
	for _, rec := range existing {
		attrs, err := rec.AttributeMap()
		if err != nil {
			continue
		}
		if name, _ := attrs["name"].(string); name == wf.Name {
			ss.log.Debug("Workflow seed skipped, name already present", "name", wf.Name)
			return nil
		}
	}

	rules := make([]types.Rule, 0, len(wf.Rules))
	for _, r := range wf.Rules {
		rules = append(rules, types.Rule{ID: r.ID, Validation: r.Validation, Action: r.Action})
	}
	for _, check := range ss.workflows.CheckRules(rules) {
		if !check.Valid {
			return fmt.Errorf("seed workflow %q rule %s: %s", wf.Name, check.RuleID, check.Error)
		}
	}

	_, err = ss.workflows.Create(ctx, WorkflowInput{
		Name:        wf.Name,
		Description: wf.Description,
		Rules:       rules,
	})
	if err != nil {
		return err
	}
	ss.log.Info("Seeded workflow", "name", wf.Name, "rules", len(rules))
	return nil
}
