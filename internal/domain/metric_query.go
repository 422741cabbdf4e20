package domain

import (
	"encoding/json"
	"fmt"
)

// FilterOperator is the comparison applied by a filter rule.
type FilterOperator string

const (
	FilterOperatorIsNull             FilterOperator = "isNull"
	FilterOperatorNotNull            FilterOperator = "notNull"
	FilterOperatorEquals             FilterOperator = "equals"
	FilterOperatorNotEquals          FilterOperator = "notEquals"
	FilterOperatorStartsWith         FilterOperator = "startsWith"
	FilterOperatorEndsWith           FilterOperator = "endsWith"
	FilterOperatorInclude            FilterOperator = "include"
	FilterOperatorNotInclude         FilterOperator = "doesNotInclude"
	FilterOperatorLessThan           FilterOperator = "lessThan"
	FilterOperatorLessThanOrEqual    FilterOperator = "lessThanOrEqual"
	FilterOperatorGreaterThan        FilterOperator = "greaterThan"
	FilterOperatorGreaterThanOrEqual FilterOperator = "greaterThanOrEqual"
	FilterOperatorInBetween          FilterOperator = "inBetween"
	FilterOperatorNotInBetween       FilterOperator = "notInBetween"
)

// FieldTarget points a filter rule at a field id.
type FieldTarget struct {
	FieldID string `json:"fieldId"`
}

// FilterRule is one predicate over a field.
type FilterRule struct {
	ID       string         `json:"id"`
	Target   FieldTarget    `json:"target"`
	Operator FilterOperator `json:"operator"`
	Values   []any          `json:"values,omitempty"`
}

// FilterGroup combines rules and nested groups with AND or OR. Exactly one of And/Or is set.
type FilterGroup struct {
	ID  string            `json:"id"`
	And []FilterGroupItem `json:"and,omitempty"`
	Or  []FilterGroupItem `json:"or,omitempty"`
}

// Items returns the members of the group regardless of its connective.
func (g *FilterGroup) Items() []FilterGroupItem {
	if g.And != nil {
		return g.And
	}
	return g.Or
}

// FilterGroupItem is either a rule or a nested group.
type FilterGroupItem struct {
	Rule  *FilterRule
	Group *FilterGroup
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *FilterGroupItem) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	_, hasAnd := probe["and"]
	_, hasOr := probe["or"]
	if hasAnd || hasOr {
		var g FilterGroup
		if err := json.Unmarshal(data, &g); err != nil {
			return err
		}
		*i = FilterGroupItem{Group: &g}
		return nil
	}
	if _, ok := probe["target"]; !ok {
		return fmt.Errorf("filter item is neither a rule nor a group")
	}
	var r FilterRule
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*i = FilterGroupItem{Rule: &r}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (i FilterGroupItem) MarshalJSON() ([]byte, error) {
	if i.Group != nil {
		return json.Marshal(i.Group)
	}
	return json.Marshal(i.Rule)
}

// Filters scopes filter trees to dimensions (WHERE) and metrics (HAVING).
type Filters struct {
	Dimensions *FilterGroup `json:"dimensions,omitempty"`
	Metrics    *FilterGroup `json:"metrics,omitempty"`
}

// SortField orders results by a field id.
type SortField struct {
	FieldID    string `json:"fieldId"`
	Descending bool   `json:"descending"`
}

// TableCalculation is carried through untouched.
type TableCalculation struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	SQL         string `json:"sql"`
}

// DefaultQueryMaxLimit is the row limit applied when the server configures none.
const DefaultQueryMaxLimit = 5000

// MetricQuery is a structured query against one explore.
type MetricQuery struct {
	ExploreName       string             `json:"exploreName"`
	Dimensions        []string           `json:"dimensions"`
	Metrics           []string           `json:"metrics"`
	Filters           Filters            `json:"filters"`
	Sorts             []SortField        `json:"sorts"`
	Limit             int                `json:"limit"`
	TableCalculations []TableCalculation `json:"tableCalculations"`
}

// ResultValue is one cell of a query result.
type ResultValue struct {
	Raw       any    `json:"raw"`
	Formatted string `json:"formatted"`
}

// ResultCell wraps a value the way the result row wire format expects.
type ResultCell struct {
	Value ResultValue `json:"value"`
}

// ResultRow maps field id to cell.
type ResultRow map[string]ResultCell

// QueryResult is returned by the warehouse execution boundary.
type QueryResult struct {
	Rows   []ResultRow      `json:"rows"`
	Fields map[string]Field `json:"fields"`
}
