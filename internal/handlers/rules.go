package handlers

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"
	"text/template"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/angelmondragon/eventcore/internal/conditions"
	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/enums"
	"github.com/angelmondragon/eventcore/pkg/types"
)

// Rules is the handler configuration file.
type Rules struct {
	TrackedFields map[string][]string `yaml:"tracked_fields"`
	Chain         ChainRules          `yaml:"chain"`
	Tasks         []TaskRule          `yaml:"tasks"`
	Notifications []NotificationRule  `yaml:"notifications"`

	// Warnings lists conditions that will never match (unknown or reserved types).
	Warnings []string `yaml:"-"`
}

// ChainRules holds optional gate conditions per handler. Order may be given
// for readability but must equal DefaultOrder.
type ChainRules struct {
	Order      []string                         `yaml:"order"`
	Conditions map[string]*conditions.Condition `yaml:"conditions"`
}

type TaskRule struct {
	Name          string                `yaml:"name"`
	EventTypes    []string              `yaml:"event_types"`
	Condition     *conditions.Condition `yaml:"condition"`
	Title         string                `yaml:"title"`
	Description   string                `yaml:"description"`
	AssigneeField string                `yaml:"assignee_field"`
	Priority      string                `yaml:"priority"`
	DueInDays     int                   `yaml:"due_in_days"`

	priority    enums.TaskPriority
	title       *template.Template
	description *template.Template
}

type NotificationRule struct {
	Name           string                `yaml:"name"`
	EventTypes     []string              `yaml:"event_types"`
	Condition      *conditions.Condition `yaml:"condition"`
	RecipientField string                `yaml:"recipient_field"`
	Recipient      string                `yaml:"recipient"`
	Type           string                `yaml:"type"`
	Title          string                `yaml:"title"`
	Message        string                `yaml:"message"`
	// LinkTask names the task rule whose task (created earlier in the chain)
	// supplies the due date and task reference.
	LinkTask  string `yaml:"link_task"`
	DueInDays int    `yaml:"due_in_days"`

	notificationType enums.NotificationType
	title            *template.Template
	message          *template.Template
}

// LoadRules reads and validates a YAML rules file.
func LoadRules(file string) (*Rules, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read handler rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules validates YAML rules and compiles their templates.
func ParseRules(data []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse handler rules: %w", err)
	}
	var errs []error
	if len(rules.Chain.Order) > 0 && !slices.Equal(rules.Chain.Order, DefaultOrder) {
		errs = append(errs, fmt.Errorf("chain order %v is fixed; expected %v", rules.Chain.Order, DefaultOrder))
	}
	rules.Chain.Order = slices.Clone(DefaultOrder)
	for name := range rules.Chain.Conditions {
		if !slices.Contains(DefaultOrder, name) {
			errs = append(errs, fmt.Errorf("chain condition for unknown handler %q", name))
		}
	}

	names := map[string]struct{}{}
	for i := range rules.Tasks {
		rule := &rules.Tasks[i]
		if err := checkRuleHeader("task", rule.Name, rule.EventTypes, names); err != nil {
			errs = append(errs, err)
			continue
		}
		rules.warn("task rule "+rule.Name, rule.Condition)
		priority, err := enums.ParseTaskPriority(rule.Priority)
		if err != nil {
			errs = append(errs, fmt.Errorf("task rule %s: %w", rule.Name, err))
		}
		rule.priority = priority
		if strings.TrimSpace(rule.Title) == "" {
			errs = append(errs, fmt.Errorf("task rule %s: title required", rule.Name))
		}
		if rule.DueInDays < 0 {
			errs = append(errs, fmt.Errorf("task rule %s: due_in_days must be >= 0", rule.Name))
		}
		if rule.title, err = compile(rule.Name+".title", rule.Title); err != nil {
			errs = append(errs, err)
		}
		if rule.description, err = compile(rule.Name+".description", rule.Description); err != nil {
			errs = append(errs, err)
		}
	}

	taskRules := names
	names = map[string]struct{}{}
	for i := range rules.Notifications {
		rule := &rules.Notifications[i]
		if err := checkRuleHeader("notification", rule.Name, rule.EventTypes, names); err != nil {
			errs = append(errs, err)
			continue
		}
		rules.warn("notification rule "+rule.Name, rule.Condition)
		nt, err := enums.ParseNotificationType(rule.Type)
		if err != nil {
			errs = append(errs, fmt.Errorf("notification rule %s: %w", rule.Name, err))
		}
		rule.notificationType = nt
		if rule.RecipientField == "" && rule.Recipient == "" {
			errs = append(errs, fmt.Errorf("notification rule %s: recipient_field or recipient required", rule.Name))
		}
		if rule.LinkTask != "" {
			if _, ok := taskRules[rule.LinkTask]; !ok {
				errs = append(errs, fmt.Errorf("notification rule %s: unknown task rule %q", rule.Name, rule.LinkTask))
			}
		}
		if rule.title, err = compile(rule.Name+".title", rule.Title); err != nil {
			errs = append(errs, err)
		}
		if rule.message, err = compile(rule.Name+".message", rule.Message); err != nil {
			errs = append(errs, err)
		}
	}

	for name, cond := range rules.Chain.Conditions {
		rules.warn("chain condition "+name, cond)
	}
	if len(errs) > 0 {
		return nil, multierr.Combine(errs...)
	}
	return &rules, nil
}

func (r *Rules) warn(owner string, cond *conditions.Condition) {
	if err := conditions.Validate(cond); err != nil {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %v", owner, err))
	}
}

func checkRuleHeader(kind, name string, eventTypes []string, seen map[string]struct{}) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s rule without name", kind)
	}
	if _, dup := seen[name]; dup {
		return fmt.Errorf("%s rule %s defined twice", kind, name)
	}
	seen[name] = struct{}{}
	if len(eventTypes) == 0 {
		return fmt.Errorf("%s rule %s: event_types required", kind, name)
	}
	for _, pattern := range eventTypes {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("%s rule %s: bad event type pattern %q", kind, name, pattern)
		}
	}
	return nil
}

// matchesEventType reports whether eventType matches one of the glob patterns.
func matchesEventType(patterns []string, eventType string) bool {
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, eventType); ok {
			return true
		}
	}
	return false
}

var templateFuncs = template.FuncMap{
	"field": func(state map[string]any, key string) string {
		return types.StringValue(state[key])
	},
}

func compile(name, text string) (*template.Template, error) {
	tpl, err := template.New(name).Funcs(templateFuncs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	return tpl, nil
}

// templateData is what rule templates can reference.
type templateData struct {
	EventType     string
	EntityType    string
	EntityID      string
	Tenant        string
	Action        string
	Actor         string
	ChangedFields []string
	Previous      map[string]any
	Current       map[string]any
	Metadata      map[string]any
}

func newTemplateData(evt *models.Event) templateData {
	return templateData{
		EventType:     evt.EventType,
		EntityType:    evt.EntityType,
		EntityID:      evt.EntityID,
		Tenant:        evt.Tenant(),
		Action:        string(evt.Action),
		Actor:         evt.Actor(),
		ChangedFields: []string(evt.ChangedFields),
		Previous:      evt.PreviousState,
		Current:       evt.CurrentState,
		Metadata:      evt.Metadata,
	}
}

func render(tpl *template.Template, data templateData) (string, error) {
	if tpl == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
