package transform

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/rgehrsitz/kepay/internal/domain"
	"github.com/shopspring/decimal"
)

// TransformRegistry creates transforms from string parameters for the CLI
type TransformRegistry struct {
	factories map[string]TransformFactory
}

// TransformFactory is a function that creates a transform from parameters
type TransformFactory func(params map[string]string) (RequestTransform, error)

// NewTransformRegistry creates a registry with every built-in transform
func NewTransformRegistry() *TransformRegistry {
	registry := &TransformRegistry{
		factories: make(map[string]TransformFactory),
	}

	registry.Register("set_date", createSetPayrollDate)
	registry.Register("shift_date", createShiftPayrollDate)
	registry.Register("set_gross", createSetGrossPay)
	registry.Register("raise_gross", createRaiseGrossPay)
	registry.Register("override", createOverrideFormula)
	registry.Register("clear_override", createClearOverride)
	registry.Register("add_component", createAddComponent)
	registry.Register("remove_component", createRemoveComponent)

	return registry
}

// Register adds a transform factory to the registry
func (r *TransformRegistry) Register(name string, factory TransformFactory) {
	r.factories[name] = factory
}

// Create creates a transform by name with the given parameters
func (r *TransformRegistry) Create(name string, params map[string]string) (RequestTransform, error) {
	factory, exists := r.factories[name]
	if !exists {
		return nil, fmt.Errorf("unknown transform: %s", name)
	}
	return factory(params)
}

// List returns the sorted names of all registered transforms
func (r *TransformRegistry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseTransformSpec parses "name:param1=value1,param2=value2", for example
// "override:component=nssf,formula=nssf-2024"
func (r *TransformRegistry) ParseTransformSpec(spec string) (RequestTransform, error) {
	name, paramsStr, ok := strings.Cut(spec, ":")
	if !ok {
		return nil, fmt.Errorf("invalid transform spec format, expected 'name:params', got: %s", spec)
	}
	name = strings.TrimSpace(name)
	paramsStr = strings.TrimSpace(paramsStr)

	params := make(map[string]string)
	if paramsStr != "" {
		for _, pair := range strings.Split(paramsStr, ",") {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, fmt.Errorf("invalid parameter format, expected 'key=value', got: %s", pair)
			}
			params[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return r.Create(name, params)
}

func required(transform string, params map[string]string, key string) (string, error) {
	v, ok := params[key]
	if !ok || v == "" {
		return "", fmt.Errorf("%s requires '%s' parameter", transform, key)
	}
	return v, nil
}

func requiredDecimal(transform string, params map[string]string, key string) (decimal.Decimal, error) {
	v, err := required(transform, params, key)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return d, nil
}

func createSetPayrollDate(params map[string]string) (RequestTransform, error) {
	v, err := required("set_date", params, "date")
	if err != nil {
		return nil, err
	}
	d, err := civil.ParseDate(v)
	if err != nil {
		return nil, fmt.Errorf("invalid date value: %w", err)
	}
	return &SetPayrollDate{Date: d}, nil
}

func createShiftPayrollDate(params map[string]string) (RequestTransform, error) {
	v, err := required("shift_date", params, "months")
	if err != nil {
		return nil, err
	}
	months, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("invalid months value: %w", err)
	}
	return &ShiftPayrollDate{Months: months}, nil
}

func createSetGrossPay(params map[string]string) (RequestTransform, error) {
	amount, err := requiredDecimal("set_gross", params, "amount")
	if err != nil {
		return nil, err
	}
	return &SetGrossPay{Amount: amount}, nil
}

func createRaiseGrossPay(params map[string]string) (RequestTransform, error) {
	pct, err := requiredDecimal("raise_gross", params, "percent")
	if err != nil {
		return nil, err
	}
	return &RaiseGrossPay{Percent: pct}, nil
}

func createOverrideFormula(params map[string]string) (RequestTransform, error) {
	component, err := required("override", params, "component")
	if err != nil {
		return nil, err
	}
	formula, err := required("override", params, "formula")
	if err != nil {
		return nil, err
	}
	return &OverrideFormula{Component: domain.ComponentKey(component), FormulaID: formula}, nil
}

func createClearOverride(params map[string]string) (RequestTransform, error) {
	component, err := required("clear_override", params, "component")
	if err != nil {
		return nil, err
	}
	return &ClearOverride{Component: domain.ComponentKey(component)}, nil
}

func createAddComponent(params map[string]string) (RequestTransform, error) {
	component, err := required("add_component", params, "component")
	if err != nil {
		return nil, err
	}
	t := &AddComponent{Component: domain.ComponentKey(component)}
	if _, ok := params["base"]; ok {
		base, err := requiredDecimal("add_component", params, "base")
		if err != nil {
			return nil, err
		}
		t.Base = &base
	}
	return t, nil
}

func createRemoveComponent(params map[string]string) (RequestTransform, error) {
	component, err := required("remove_component", params, "component")
	if err != nil {
		return nil, err
	}
	return &RemoveComponent{Component: domain.ComponentKey(component)}, nil
}
