package model

type Category string

const (
	CategoryFeelings          Category = "feelings"
	CategoryProjectNotes      Category = "project_notes"
	CategoryUserContext       Category = "user_context"
	CategoryTechnicalInsights Category = "technical_insights"
	CategoryWorldKnowledge    Category = "world_knowledge"
)

type CategorySpec struct {
	Category Category
	Heading  string
	Scope    Scope
}

// Categories is the static category table in write order.
var Categories = []CategorySpec{
	{Category: CategoryFeelings, Heading: "Feelings", Scope: ScopeUser},
	{Category: CategoryProjectNotes, Heading: "Project Notes", Scope: ScopeProject},
	{Category: CategoryUserContext, Heading: "User Context", Scope: ScopeUser},
	{Category: CategoryTechnicalInsights, Heading: "Technical Insights", Scope: ScopeUser},
	{Category: CategoryWorldKnowledge, Heading: "World Knowledge", Scope: ScopeUser},
}

// Thoughts holds optional text per category. A nil field means the category was not given.
type Thoughts struct {
	Feelings          *string `json:"feelings,omitempty"`
	ProjectNotes      *string `json:"project_notes,omitempty"`
	UserContext       *string `json:"user_context,omitempty"`
	TechnicalInsights *string `json:"technical_insights,omitempty"`
	WorldKnowledge    *string `json:"world_knowledge,omitempty"`
}

func (t *Thoughts) Get(c Category) *string {
	if t == nil {
		return nil
	}
	switch c {
	case CategoryFeelings:
		return t.Feelings
	case CategoryProjectNotes:
		return t.ProjectNotes
	case CategoryUserContext:
		return t.UserContext
	case CategoryTechnicalInsights:
		return t.TechnicalInsights
	case CategoryWorldKnowledge:
		return t.WorldKnowledge
	}
	return nil
}

func (t *Thoughts) Empty() bool {
	for _, spec := range Categories {
		if t.Get(spec.Category) != nil {
			return false
		}
	}
	return true
}

func CategoryByHeading(heading string) (CategorySpec, bool) {
	for _, spec := range Categories {
		if spec.Heading == heading {
			return spec, true
		}
	}
	return CategorySpec{}, false
}
